package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readAuditEntries(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("parsing audit entry %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestAuditLogger_NilSafety(t *testing.T) {
	t.Run("nil logger Log is no-op", func(t *testing.T) {
		var logger *AuditLogger
		logger.Log(AuditEntry{Tool: "test"})
	})

	t.Run("nil logger Close is no-op", func(t *testing.T) {
		var logger *AuditLogger
		if err := logger.Close(); err != nil {
			t.Errorf("Close() on nil logger returned error: %v", err)
		}
	})
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	now := time.Now()
	logger.Log(AuditEntry{
		Timestamp:  now,
		Tool:       "hornet_spread",
		DurationMs: 42,
		Status:     "success",
		RunID:      "run-1",
		Params:     map[string]string{"horizon_year": "2040"},
	})

	entries := readAuditEntries(t, filepath.Join(dir, AuditFileName))
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Tool != "hornet_spread" || entry.DurationMs != 42 || entry.RunID != "run-1" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Params["horizon_year"] != "2040" {
		t.Errorf("params = %v", entry.Params)
	}
}

func TestAuditLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	logger.Log(AuditEntry{Tool: "test"})

	info, err := os.Stat(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	const goroutines = 10
	const entriesPerGoroutine = 5

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < entriesPerGoroutine; i++ {
				logger.Log(AuditEntry{Tool: "hornet_classify", Status: "success"})
			}
		}()
	}
	wg.Wait()

	entries := readAuditEntries(t, filepath.Join(dir, AuditFileName))
	if len(entries) != goroutines*entriesPerGoroutine {
		t.Errorf("entries = %d, want %d", len(entries), goroutines*entriesPerGoroutine)
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	logger := NewAuditLogger(t.TempDir())
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAuditLogger_NonFatalOnBadPath(t *testing.T) {
	dir := t.TempDir()
	blockPath := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blockPath, []byte("file"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	logger := NewAuditLogger(blockPath)
	if logger != nil {
		logger.Close()
		t.Error("expected nil logger when the directory cannot be created")
	}
	logger.Log(AuditEntry{Tool: "test"})
}

func TestSanitizeToolParams(t *testing.T) {
	t.Run("nil params", func(t *testing.T) {
		if got := sanitizeToolParams(nil); got != nil {
			t.Errorf("sanitizeToolParams(nil) = %v, want nil", got)
		}
	})

	t.Run("safe values are included", func(t *testing.T) {
		result := sanitizeToolParams(map[string]interface{}{
			"kind":         "spread",
			"horizon_year": 2040,
			"save":         true,
		})
		if result["kind"] != "spread" || result["horizon_year"] != "2040" || result["save"] != "true" {
			t.Errorf("result = %v", result)
		}
		if result["_param_count"] != "3" {
			t.Errorf("_param_count = %q, want 3", result["_param_count"])
		}
	})

	t.Run("tables are presence only", func(t *testing.T) {
		result := sanitizeToolParams(map[string]interface{}{
			"history":     3,
			"bee_history": 2,
			"run_id":      "abc",
		})
		for _, key := range []string{"history", "bee_history", "run_id"} {
			if result[key] != "(set)" {
				t.Errorf("%s = %q, want (set)", key, result[key])
			}
		}
	})

	t.Run("unknown params are dropped", func(t *testing.T) {
		result := sanitizeToolParams(map[string]interface{}{"secret": "x"})
		if _, ok := result["secret"]; ok {
			t.Error("unknown param should not be logged")
		}
		if result["_param_count"] != "1" {
			t.Errorf("_param_count = %q, want 1", result["_param_count"])
		}
	})
}

func TestAuditTool_Integration(t *testing.T) {
	server, dir := setupTestServer(t)
	defer server.Close()

	if server.auditLogger == nil {
		t.Fatal("expected auditLogger to be initialized")
	}

	start := time.Now()
	time.Sleep(1 * time.Millisecond)
	server.auditTool("hornet_test", start, nil, "", map[string]string{"kind": "spread"})
	server.auditTool("hornet_test", start, errors.New("boom"), "run-9", nil)

	entries := readAuditEntries(t, filepath.Join(dir, AuditFileName))
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Status != "success" || entries[0].DurationMs < 1 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" || entries[1].RunID != "run-9" {
		t.Errorf("second entry = %+v", entries[1])
	}
}
