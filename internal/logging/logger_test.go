package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readLogs(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", e.Name(), err)
		}
		out[e.Name()] = string(data)
	}
	return out
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{DebugMode: true, Level: "debug", LogsDir: logs}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	if !IsDebugMode() {
		t.Fatal("Expected debug mode to be enabled")
	}

	for _, cat := range AllCategories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		Get(cat).Info("Test info message for %s", cat)
		Get(cat).Debug("Test debug message for %s", cat)
	}
	Agent("Convenience agent log")
	Tools("Convenience tools log")
	CloseAll()

	files := readLogs(t, logs)
	for _, cat := range AllCategories {
		found := false
		for name, content := range files {
			if strings.HasSuffix(name, "_"+string(cat)+".log") {
				found = true
				if !strings.Contains(content, "Test info message for "+string(cat)) {
					t.Errorf("log file for %s missing info line: %q", cat, content)
				}
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{DebugMode: false, LogsDir: logs}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	Agent("should not be written")
	Get(CategoryStore).Error("should not be written either")
	CloseAll()

	if _, err := os.Stat(logs); !os.IsNotExist(err) {
		t.Fatalf("logs directory should not exist in production mode, stat err=%v", err)
	}
}

func TestCategoryFilter(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	err := Initialize(Options{
		DebugMode:  true,
		Level:      "info",
		LogsDir:    logs,
		Categories: map[string]bool{"agent": true, "store": false},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	if IsCategoryEnabled(CategoryStore) {
		t.Error("store should be disabled")
	}
	if !IsCategoryEnabled(CategoryTools) {
		t.Error("categories missing from the filter default to enabled")
	}

	Store("hidden")
	Agent("visible")
	CloseAll()

	for name := range readLogs(t, logs) {
		if strings.HasSuffix(name, "_store.log") {
			t.Errorf("unexpected store log file %s", name)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{DebugMode: true, Level: "warn", LogsDir: logs, JSONFormat: true}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	AgentDebug("debug-line")
	Agent("info-line")
	AgentWarn("warn-line")
	CloseAll()

	var agentLog string
	for name, content := range readLogs(t, logs) {
		if strings.HasSuffix(name, "_agent.log") {
			agentLog = content
		}
	}
	if strings.Contains(agentLog, "debug-line") || strings.Contains(agentLog, "info-line") {
		t.Errorf("lines below warn leaked: %q", agentLog)
	}
	if !strings.Contains(agentLog, "warn-line") {
		t.Errorf("warn line missing: %q", agentLog)
	}
	if !strings.Contains(agentLog, `"cat":"agent"`) {
		t.Errorf("json output should carry the category field: %q", agentLog)
	}
}

func TestRequestLogger(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{DebugMode: true, Level: "debug", LogsDir: logs, JSONFormat: true}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	WithRequestID(CategoryAgent, "turn-123").WithField("step", 2).Info("dispatching %s", "medication_tool")
	CloseAll()

	for name, content := range readLogs(t, logs) {
		if strings.HasSuffix(name, "_agent.log") {
			if !strings.Contains(content, `"req":"turn-123"`) || !strings.Contains(content, `"step":2`) {
				t.Errorf("request fields missing: %q", content)
			}
			return
		}
	}
	t.Fatal("agent log not written")
}

func TestConcurrentGet(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{DebugMode: true, LogsDir: logs}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Get(AllCategories[i%len(AllCategories)]).Info("message %d", i)
		}(i)
	}
	wg.Wait()
	CloseAll()
}

func TestInitializeRequiresDirInDebugMode(t *testing.T) {
	if err := Initialize(Options{DebugMode: true}); err == nil {
		t.Fatal("expected error without logs dir")
	}
	_ = Initialize(Options{})
}

func TestTimerStopWithThreshold(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{DebugMode: true, Level: "warn", LogsDir: logs}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	StartTimer(CategoryAPI, "fast-call").StopWithThreshold(time.Hour)
	if d := StartTimer(CategoryAPI, "slow-call").StopWithThreshold(0); d < 0 {
		t.Fatalf("negative duration %v", d)
	}
	CloseAll()

	for name, content := range readLogs(t, logs) {
		if strings.HasSuffix(name, "_api.log") {
			if strings.Contains(content, "fast-call") {
				t.Errorf("call under the threshold logged at warn level: %q", content)
			}
			if !strings.Contains(content, "slow-call took") {
				t.Errorf("slow call warning missing: %q", content)
			}
			return
		}
	}
	t.Fatal("api log not written")
}
