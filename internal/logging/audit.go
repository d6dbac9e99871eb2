package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of audit record.
type AuditEventType string

const (
	// Session lifecycle
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"

	// Agent turns
	AuditTurnStart AuditEventType = "turn_start"
	AuditTurnEnd   AuditEventType = "turn_end"

	// LLM provider calls
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	// Tool dispatch
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	// Completions that matched no marker
	AuditMalformed AuditEventType = "malformed_completion"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	EventType AuditEventType
	SessionID string
	PatientID string
	TurnID    string
	Target    string // tool name or provider
	Success   bool
	Duration  time.Duration
	Error     string
	Fields    map[string]interface{}
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile *os.File
	auditCore *zap.Logger
	auditMu   sync.Mutex
)

// AuditLogger writes audit events scoped to one session.
// The zero value is usable and unscoped.
type AuditLogger struct {
	sessionID string
	patientID string
}

// InitAudit opens <logs_dir>/<date>_audit.log. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	optsMu.RLock()
	dir := logsDir
	optsMu.RUnlock()

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.LevelKey = ""
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder

	auditFile = file
	auditCore = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel))
	return nil
}

// CloseAudit flushes and closes the audit log.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditCore != nil {
		_ = auditCore.Sync()
		auditCore = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession scopes audit events to a patient session.
func AuditWithSession(sessionID, patientID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, patientID: patientID}
}

// Log writes event unless audit logging is closed.
func (a *AuditLogger) Log(event AuditEvent) {
	if a == nil {
		return
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	if event.PatientID == "" {
		event.PatientID = a.patientID
	}

	fields := []zap.Field{zap.Bool("success", event.Success)}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session", event.SessionID))
	}
	if event.PatientID != "" {
		fields = append(fields, zap.String("patient", event.PatientID))
	}
	if event.TurnID != "" {
		fields = append(fields, zap.String("turn", event.TurnID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.Duration.Milliseconds()))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Fields) > 0 {
		fields = append(fields, zap.Any("fields", event.Fields))
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditCore == nil {
		return
	}
	auditCore.Info(string(event.EventType), fields...)
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// SessionStart records a new patient session.
func (a *AuditLogger) SessionStart(transcriptLen int) {
	a.Log(AuditEvent{
		EventType: AuditSessionStart,
		Success:   true,
		Fields:    map[string]interface{}{"transcript_len": transcriptLen},
	})
}

// SessionEnd records a session being closed.
func (a *AuditLogger) SessionEnd(turns int, lifetime time.Duration) {
	a.Log(AuditEvent{
		EventType: AuditSessionEnd,
		Success:   true,
		Duration:  lifetime,
		Fields:    map[string]interface{}{"turns": turns},
	})
}

// TurnStart records the start of an agent turn.
func (a *AuditLogger) TurnStart(turnID string, inputLen int) {
	a.Log(AuditEvent{
		EventType: AuditTurnStart,
		TurnID:    turnID,
		Success:   true,
		Fields:    map[string]interface{}{"input_len": inputLen},
	})
}

// TurnEnd records how an agent turn ended.
func (a *AuditLogger) TurnEnd(turnID, outcome string, steps int, duration time.Duration, success bool) {
	a.Log(AuditEvent{
		EventType: AuditTurnEnd,
		TurnID:    turnID,
		Success:   success,
		Duration:  duration,
		Fields:    map[string]interface{}{"outcome": outcome, "steps": steps},
	})
}

// LLMCall records one provider completion.
func (a *AuditLogger) LLMCall(turnID, provider string, duration time.Duration, err error) {
	e := AuditEvent{
		EventType: AuditLLMResponse,
		TurnID:    turnID,
		Target:    provider,
		Success:   err == nil,
		Duration:  duration,
	}
	if err != nil {
		e.EventType = AuditLLMError
		e.Error = err.Error()
	}
	a.Log(e)
}

// ToolExec records one tool dispatch.
func (a *AuditLogger) ToolExec(turnID, tool string, duration time.Duration, err error) {
	e := AuditEvent{
		EventType: AuditToolComplete,
		TurnID:    turnID,
		Target:    tool,
		Success:   err == nil,
		Duration:  duration,
	}
	if err != nil {
		e.EventType = AuditToolError
		e.Error = err.Error()
	}
	a.Log(e)
}

// Malformed records a completion that carried neither a response nor an action.
func (a *AuditLogger) Malformed(turnID string, step, size int) {
	a.Log(AuditEvent{
		EventType: AuditMalformed,
		TurnID:    turnID,
		Fields:    map[string]interface{}{"step": step, "bytes": size},
	})
}
