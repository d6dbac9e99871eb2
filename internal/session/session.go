// Package session binds one agent, its tools and its persisted transcript to
// each patient, and manages the set of live sessions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"healthguard/internal/agent"
	"healthguard/internal/logging"
	"healthguard/internal/store"
	"healthguard/internal/types"
)

// Session is one patient's conversation. Send calls are serialized.
type Session struct {
	ID        string
	PatientID string
	CreatedAt time.Time

	mu          sync.Mutex
	agent       *agent.Agent
	transcripts *store.TranscriptStore
	transcript  []types.Message
	dirty       bool // transcript has exchanges the file is missing
	turns       int
	audit       *logging.AuditLogger
}

func newSession(id, patientID string, a *agent.Agent, audit *logging.AuditLogger, transcripts *store.TranscriptStore) (*Session, error) {
	existing, err := transcripts.Load(patientID)
	if err != nil {
		return nil, fmt.Errorf("load transcript for %s: %w", patientID, err)
	}
	s := &Session{
		ID:          id,
		PatientID:   patientID,
		CreatedAt:   time.Now(),
		agent:       a,
		transcripts: transcripts,
		transcript:  existing,
		audit:       audit,
	}
	audit.SessionStart(len(existing))
	logging.Session("Session %s created for patient %s (%d transcript messages)", s.ID, patientID, len(existing))
	return s, nil
}

// Send runs one agent turn and appends the exchange to the transcript.
// The returned error only reports a failure to persist the transcript;
// the turn itself always yields an answer.
func (s *Session) Send(ctx context.Context, utterance string) (agent.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := s.agent.HandleTurn(ctx, utterance)
	s.turns++
	exchange := []types.Message{
		types.NewMessage(types.RoleUser, utterance),
		types.NewMessage(types.RoleAssistant, turn.Answer),
	}
	s.transcript = append(s.transcript, exchange...)

	if err := s.transcripts.Append(s.PatientID, exchange...); err != nil {
		s.dirty = true
		logging.SessionError("Session %s: transcript append failed: %v", s.ID, err)
		return turn, fmt.Errorf("persist transcript: %w", err)
	}
	logging.SessionDebug("Session %s: turn %s outcome=%s", s.ID, turn.ID, turn.Outcome)
	return turn, nil
}

// Clear resets the agent conversation and deletes the persisted transcript.
func (s *Session) Clear() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.agent.ClearConversation()
	s.transcript = nil
	s.dirty = false
	return msg, s.transcripts.Clear(s.PatientID)
}

// History returns the persisted user/assistant transcript.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Conversation returns the agent's working conversation, system prompt first.
func (s *Session) Conversation() []types.Message {
	return s.agent.History()
}

// Agent exposes the session's agent.
func (s *Session) Agent() *agent.Agent { return s.agent }

// Flush rewrites the transcript file from memory after a failed append.
// It does nothing when every exchange already reached the file.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.transcripts.Save(s.PatientID, s.transcript); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// end records the session's lifetime in the audit log.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit.SessionEnd(s.turns, time.Since(s.CreatedAt))
}
