package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLoggingState() {
	CloseAll()
	configMu.Lock()
	config = LoggingConfig{}
	configLoaded = false
	configMu.Unlock()
	logsDir = ""
	root = ""
}

func TestAllCategoriesLogWhenDebugEnabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "hybridmem_logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	defer resetLoggingState()

	cfg := &LoggingConfig{DebugMode: true, Level: "debug"}
	if err := Initialize(tempDir, cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	categories := []Category{
		CategoryBoot, CategoryStore, CategoryVector, CategoryWAL, CategoryFact,
		CategoryGraph, CategoryProcedure, CategoryVault, CategoryRetrieval,
		CategoryLifecycle, CategoryAdapter, CategoryLLM, CategorySession,
	}

	for _, cat := range categories {
		Get(cat).Info("test message for %s", cat)
	}

	entries, err := os.ReadDir(filepath.Join(tempDir, "logs"))
	if err != nil {
		t.Fatalf("failed to read logs dir: %v", err)
	}
	// boot category logs its own init message plus every category we touched.
	if len(entries) < len(categories) {
		t.Errorf("expected at least %d log files, got %d", len(categories), len(entries))
	}
}

func TestLoggingDisabledByDefault(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "hybridmem_logging_test_disabled")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	defer resetLoggingState()

	if err := Initialize(tempDir, &LoggingConfig{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Errorf("expected no logs directory to be created when debug_mode is false")
	}

	l := Get(CategoryStore)
	l.Info("should be a no-op")
	if l.logger != nil {
		t.Errorf("expected a no-op logger when debug mode is disabled")
	}
}

func TestCategoryFiltering(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "hybridmem_logging_test_filter")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	defer resetLoggingState()

	cfg := &LoggingConfig{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"vault": true, "store": false},
	}
	if err := Initialize(tempDir, cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !IsCategoryEnabled(CategoryVault) {
		t.Errorf("expected vault category to be enabled")
	}
	if IsCategoryEnabled(CategoryStore) {
		t.Errorf("expected store category to be disabled")
	}
	// Categories absent from the map default to enabled.
	if !IsCategoryEnabled(CategoryWAL) {
		t.Errorf("expected unmentioned category wal to default to enabled")
	}
}

func TestStructuredLogJSONFormat(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "hybridmem_logging_test_json")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	defer resetLoggingState()

	cfg := &LoggingConfig{DebugMode: true, Level: "debug", JSONFormat: true}
	if err := Initialize(tempDir, cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Get(CategoryVault).StructuredLog("info", "credential accessed", map[string]interface{}{"key": "github_token"})

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(tempDir, "logs", date+"_vault.log"))
	if err != nil {
		t.Fatalf("failed to read vault log: %v", err)
	}
	if !strings.Contains(string(data), `"cat":"vault"`) {
		t.Errorf("expected structured JSON log entry, got: %s", data)
	}
}

func TestTimerStop(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "hybridmem_logging_test_timer")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	defer resetLoggingState()

	if err := Initialize(tempDir, &LoggingConfig{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	timer := StartTimer(CategoryRetrieval, "rank_candidates")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Errorf("expected non-negative elapsed duration")
	}
}
