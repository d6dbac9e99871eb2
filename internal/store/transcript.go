package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"healthguard/internal/logging"
	"healthguard/internal/types"
)

// DefaultTranscriptID replaces patient ids that sanitize to nothing.
const DefaultTranscriptID = "default_patient"

// TranscriptStore persists one JSON chat log per patient under a directory.
// The file holds an array of {role, content} records.
type TranscriptStore struct {
	mu  sync.Mutex
	dir string
}

// NewTranscriptStore creates a transcript store rooted at dir.
func NewTranscriptStore(dir string) *TranscriptStore {
	return &TranscriptStore{dir: dir}
}

// Dir returns the directory transcripts are written to.
func (t *TranscriptStore) Dir() string { return t.dir }

// SanitizePatientID keeps letters, digits, '_' and '-'.
func SanitizePatientID(patientID string) string {
	var sb strings.Builder
	for _, r := range patientID {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return DefaultTranscriptID
	}
	return sb.String()
}

// TranscriptKey names the transcript file for patientID. Ids that survive
// sanitization unchanged map to themselves; any other id gets a short hash
// suffix so distinct patients never share a file.
func TranscriptKey(patientID string) string {
	clean := SanitizePatientID(patientID)
	if clean == patientID || patientID == "" {
		return clean
	}
	sum := sha256.Sum256([]byte(patientID))
	return clean + "_" + hex.EncodeToString(sum[:4])
}

// Path returns the transcript file for patientID.
func (t *TranscriptStore) Path(patientID string) string {
	return filepath.Join(t.dir, fmt.Sprintf("chat_history_%s.json", TranscriptKey(patientID)))
}

// Load reads the transcript for patientID. A missing file is an empty transcript.
func (t *TranscriptStore) Load(patientID string) ([]types.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked(patientID)
}

func (t *TranscriptStore) loadLocked(patientID string) ([]types.Message, error) {
	path := t.Path(patientID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	var msgs []types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("invalid transcript %s: %w", path, err)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("invalid transcript %s: message %d has role %q", path, i, m.Role)
		}
	}
	return msgs, nil
}

// Save replaces the transcript for patientID.
func (t *TranscriptStore) Save(patientID string, msgs []types.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked(patientID, msgs)
}

func (t *TranscriptStore) saveLocked(patientID string, msgs []types.Message) error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated file.
	path := t.Path(patientID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	logging.StoreDebug("Transcript saved: %s (%d messages)", path, len(msgs))
	return nil
}

// Append adds msgs to the end of the transcript for patientID.
func (t *TranscriptStore) Append(patientID string, msgs ...types.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.loadLocked(patientID)
	if err != nil {
		return err
	}
	return t.saveLocked(patientID, append(existing, msgs...))
}

// Clear removes the transcript for patientID. Clearing a missing transcript is not an error.
func (t *TranscriptStore) Clear(patientID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(t.Path(patientID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	logging.Store("Transcript cleared for patient %s", patientID)
	return nil
}
