package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDBName is the run store file name.
const DefaultDBName = "hornetcast.db"

// GlobalDataPath returns the path to the global .hornetcast directory.
// On Unix: ~/.hornetcast
// On Windows: %USERPROFILE%\.hornetcast
func GlobalDataPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hornetcast"), nil
}

// DefaultDBPath returns ~/.hornetcast/hornetcast.db.
func DefaultDBPath() (string, error) {
	dir, err := GlobalDataPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDBName), nil
}
