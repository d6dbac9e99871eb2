package store

import (
	"context"
	"fmt"
	"time"

	"healthguard/internal/logging"
)

// Symptom is one recorded symptom occurrence.
type Symptom struct {
	ID           int64
	PatientID    string
	Symptom      string
	Severity     int // 1-10
	Description  string
	DateRecorded time.Time
	Duration     string
	Triggers     string
	CreatedAt    time.Time
}

// AddSymptom inserts s and returns its id. Severity is clamped to 1-10 and
// DateRecorded defaults to now.
func (s *LocalStore) AddSymptom(ctx context.Context, sym Symptom) (int64, error) {
	if sym.PatientID == "" || sym.Symptom == "" {
		return 0, fmt.Errorf("symptom requires patient_id and symptom")
	}
	sym.Severity = ClampSeverity(sym.Severity)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	recorded := formatTime(sym.DateRecorded)
	if recorded == "" {
		recorded = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO symptoms
		(patient_id, symptom, severity, description, date_recorded, duration, triggers, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.PatientID, sym.Symptom, sym.Severity, sym.Description, recorded, sym.Duration, sym.Triggers, now)
	if err != nil {
		return 0, fmt.Errorf("failed to add symptom: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read symptom id: %w", err)
	}
	logging.StoreDebug("AddSymptom: patient=%s symptom=%s severity=%d id=%d", sym.PatientID, sym.Symptom, sym.Severity, id)
	return id, nil
}

// ListSymptoms returns a patient's symptoms, newest first.
func (s *LocalStore) ListSymptoms(ctx context.Context, patientID string) ([]Symptom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, symptom, severity, COALESCE(description, ''), date_recorded,
			COALESCE(duration, ''), COALESCE(triggers, ''), created_at
		FROM symptoms
		WHERE patient_id = ?
		ORDER BY date_recorded DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symptoms: %w", err)
	}
	defer rows.Close()

	var out []Symptom
	for rows.Next() {
		var sym Symptom
		var recorded, created string
		if err := rows.Scan(&sym.ID, &sym.PatientID, &sym.Symptom, &sym.Severity, &sym.Description,
			&recorded, &sym.Duration, &sym.Triggers, &created); err != nil {
			return nil, fmt.Errorf("failed to scan symptom: %w", err)
		}
		sym.DateRecorded = parseTime(recorded)
		sym.CreatedAt = parseTime(created)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ClampSeverity bounds a severity score to 1-10.
func ClampSeverity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
