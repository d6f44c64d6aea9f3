package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.hornetcast/
// MUST be called for any test that loads config or opens the default store
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// mustExecute is execute that fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("hornetcast %s failed: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func decodeJSON(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return v
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// corridor is a France -> Spain -> Portugal fixture set in which France
// saturates in 2025 and invades Spain in 2026.
type corridor struct {
	dir         string
	hives       string
	areas       string
	adjacency   string
	beeHistory  string
	predators   string
	out         string
	db          string
	inputArgs   []string
	horizonArgs []string
}

func newCorridor(t *testing.T) *corridor {
	t.Helper()
	dir := t.TempDir()
	isolateHome(t, dir)
	c := &corridor{
		dir: dir,
		hives: writeFixture(t, dir, "hives.csv",
			"country,year,hive_count\nFrance,2024,3035\nFrance,2025,3310\n"),
		areas: writeFixture(t, dir, "areas.csv",
			"country,area_km2\nFrance,551695\nSpain,505990\nPortugal,92212\n"),
		adjacency: writeFixture(t, dir, "adjacency.yaml",
			"France: [Spain]\nSpain: [Portugal]\n"),
		beeHistory: writeFixture(t, dir, "bees.csv",
			"Country,Year,Bee_Density,Bee_Count,Area_km2\n"+
				"France,2025,10,5516950,551695\n"+
				"Portugal,2025,8,737696,92212\n"),
		predators: writeFixture(t, dir, "predators.csv",
			"country,predator_total\nFrance,10\nSpain,0\n"),
		out: filepath.Join(dir, "out"),
		db:  filepath.Join(dir, "runs.db"),
	}
	c.inputArgs = []string{"--observations", c.hives, "--areas", c.areas, "--adjacency", c.adjacency}
	c.horizonArgs = []string{"--horizon", "2030", "--out", c.out}
	return c
}

func (c *corridor) args(cmd string, extra ...string) []string {
	args := append([]string{cmd}, c.inputArgs...)
	args = append(args, c.horizonArgs...)
	return append(args, extra...)
}

func TestVersionCmd(t *testing.T) {
	out := mustExecute(t, "version")
	if !strings.Contains(out, "hornetcast version "+version) {
		t.Errorf("version output = %q", out)
	}

	v := decodeJSON(t, mustExecute(t, "version", "--json"))
	if v["version"] != version {
		t.Errorf("version = %v, want %s", v["version"], version)
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	want := []string{"version", "classify", "spread", "bees", "run", "analyze", "graph",
		"validate", "runs", "export", "config", "mcp-server"}
	have := make(map[string]bool)
	for _, c := range newRootCmd().Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	isolateHome(t, t.TempDir())
	_, err := execute(t, "analyze", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("error = %v, want invalid log level", err)
	}
}
