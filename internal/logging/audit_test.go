package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readAudit(t *testing.T, dir string) []map[string]interface{} {
	t.Helper()
	for name, content := range readLogs(t, dir) {
		if !strings.HasSuffix(name, "_audit.log") {
			continue
		}
		var events []map[string]interface{}
		for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
			var ev map[string]interface{}
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				t.Fatalf("audit line is not JSON: %q: %v", line, err)
			}
			events = append(events, ev)
		}
		return events
	}
	t.Fatal("audit log not written")
	return nil
}

func TestAuditWritesScopedEvents(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	// Audit events are written regardless of the category level.
	if err := Initialize(Options{DebugMode: true, Level: "error", LogsDir: logs}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Initialize(Options{}) })

	a := AuditWithSession("sess-1", "patient-7")
	a.SessionStart(4)
	a.TurnStart("turn-1", 12)
	a.LLMCall("turn-1", "openai", 30*time.Millisecond, nil)
	a.ToolExec("turn-1", "medication_tool", 5*time.Millisecond, errors.New("db locked"))
	a.Malformed("turn-1", 2, 40)
	a.TurnEnd("turn-1", "response", 3, time.Second, true)
	CloseAll()

	events := readAudit(t, logs)
	if len(events) != 6 {
		t.Fatalf("expected 6 events, got %d: %v", len(events), events)
	}

	wantOrder := []AuditEventType{AuditSessionStart, AuditTurnStart, AuditLLMResponse, AuditToolError, AuditMalformed, AuditTurnEnd}
	for i, want := range wantOrder {
		if events[i]["event"] != string(want) {
			t.Errorf("event %d: expected %s, got %v", i, want, events[i]["event"])
		}
		if events[i]["session"] != "sess-1" || events[i]["patient"] != "patient-7" {
			t.Errorf("event %d missing session scope: %v", i, events[i])
		}
	}

	tool := events[3]
	if tool["target"] != "medication_tool" || tool["error"] != "db locked" || tool["success"] != false {
		t.Errorf("unexpected tool event: %v", tool)
	}
	end := events[5]["fields"].(map[string]interface{})
	if end["outcome"] != "response" || end["steps"] != float64(3) {
		t.Errorf("unexpected turn_end fields: %v", end)
	}
}

func TestAuditNoopOutsideDebugMode(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(Options{LogsDir: logs}); err != nil {
		t.Fatal(err)
	}
	Audit().TurnStart("turn-1", 1)
	var nilLogger *AuditLogger
	nilLogger.TurnStart("turn-2", 1)
	CloseAll()

	if _, err := os.Stat(logs); !os.IsNotExist(err) {
		t.Fatalf("audit must not create the logs dir in production mode, stat err=%v", err)
	}
}
