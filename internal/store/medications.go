package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthguard/internal/logging"
)

// Medication is one prescription tracked for a patient.
type Medication struct {
	ID        int64
	PatientID string
	Name      string
	Dosage    string
	Frequency string
	TimeOfDay string
	Notes     string
	StartDate string
	EndDate   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MedicationUpdate holds the fields to change; nil fields are left alone.
type MedicationUpdate struct {
	Name      *string
	Dosage    *string
	Frequency *string
	TimeOfDay *string
	Notes     *string
	StartDate *string
	EndDate   *string
}

// Empty reports whether the update changes nothing.
func (u MedicationUpdate) Empty() bool {
	return u.Name == nil && u.Dosage == nil && u.Frequency == nil && u.TimeOfDay == nil &&
		u.Notes == nil && u.StartDate == nil && u.EndDate == nil
}

// DoseLog records whether a scheduled dose was taken.
type DoseLog struct {
	ID           int64
	MedicationID int64
	TakenAt      time.Time
	Taken        bool
	Notes        string
}

// AdherenceStat summarizes the dose logs of one medication.
type AdherenceStat struct {
	MedicationID int64
	Name         string
	Total        int
	Taken        int
}

// Rate returns the taken percentage, or false when nothing was logged.
func (a AdherenceStat) Rate() (float64, bool) {
	if a.Total == 0 {
		return 0, false
	}
	return float64(a.Taken) / float64(a.Total) * 100, true
}

// AddMedication inserts m and returns its id. StartDate defaults to now.
func (s *LocalStore) AddMedication(ctx context.Context, m Medication) (int64, error) {
	if m.PatientID == "" || m.Name == "" || m.Dosage == "" || m.Frequency == "" {
		return 0, fmt.Errorf("medication requires patient_id, name, dosage and frequency")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	if m.StartDate == "" {
		m.StartDate = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO medications
		(patient_id, name, dosage, frequency, time_of_day, notes, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.PatientID, m.Name, m.Dosage, m.Frequency, m.TimeOfDay, m.Notes, m.StartDate, m.EndDate, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to add medication: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read medication id: %w", err)
	}
	logging.StoreDebug("AddMedication: patient=%s name=%s id=%d", m.PatientID, m.Name, id)
	return id, nil
}

const medicationColumns = `id, patient_id, name, dosage, frequency, COALESCE(time_of_day, ''), COALESCE(notes, ''),
	COALESCE(start_date, ''), COALESCE(end_date, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (Medication, error) {
	var m Medication
	var created, updated string
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.TimeOfDay, &m.Notes,
		&m.StartDate, &m.EndDate, &created, &updated)
	if err != nil {
		return Medication{}, err
	}
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return m, nil
}

// ListMedications returns a patient's medications ordered by name.
func (s *LocalStore) ListMedications(ctx context.Context, patientID string) ([]Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE patient_id = ? ORDER BY name, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

// GetMedication returns the medication with id, or ErrNotFound.
func (s *LocalStore) GetMedication(ctx context.Context, id int64) (Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = ?`, id)
	m, err := scanMedication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Medication{}, fmt.Errorf("medication %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Medication{}, fmt.Errorf("failed to get medication: %w", err)
	}
	return m, nil
}

// UpdateMedication applies u to the medication with id and bumps updated_at.
func (s *LocalStore) UpdateMedication(ctx context.Context, id int64, u MedicationUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("name", u.Name)
	add("dosage", u.Dosage)
	add("frequency", u.Frequency)
	add("time_of_day", u.TimeOfDay)
	add("notes", u.Notes)
	add("start_date", u.StartDate)
	add("end_date", u.EndDate)

	s.mu.Lock()
	defer s.mu.Unlock()

	sets = append(sets, "updated_at = ?")
	args = append(args, s.timestamp(), id)

	res, err := s.db.ExecContext(ctx, `UPDATE medications SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("medication %d: %w", id, ErrNotFound)
	}
	logging.StoreDebug("UpdateMedication: id=%d fields=%d", id, len(sets)-1)
	return nil
}

// LogDose records a dose for an existing medication. TakenAt defaults to now.
func (s *LocalStore) LogDose(ctx context.Context, l DoseLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM medications WHERE id = ?`, l.MedicationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("medication %d: %w", l.MedicationID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check medication: %w", err)
	}

	takenAt := formatTime(l.TakenAt)
	if takenAt == "" {
		takenAt = s.timestamp()
	}
	taken := 0
	if l.Taken {
		taken = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO medication_logs (medication_id, taken_at, taken, notes) VALUES (?, ?, ?, ?)`,
		l.MedicationID, takenAt, taken, l.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to log dose: %w", err)
	}
	return res.LastInsertId()
}

// Adherence returns per-medication dose statistics for a patient, ordered by id.
func (s *LocalStore) Adherence(ctx context.Context, patientID string) ([]AdherenceStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name, COUNT(l.id), COALESCE(SUM(CASE WHEN l.taken = 1 THEN 1 ELSE 0 END), 0)
		FROM medications m
		LEFT JOIN medication_logs l ON l.medication_id = m.id
		WHERE m.patient_id = ?
		GROUP BY m.id, m.name
		ORDER BY m.id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute adherence: %w", err)
	}
	defer rows.Close()

	var stats []AdherenceStat
	for rows.Next() {
		var a AdherenceStat
		if err := rows.Scan(&a.MedicationID, &a.Name, &a.Total, &a.Taken); err != nil {
			return nil, fmt.Errorf("failed to scan adherence: %w", err)
		}
		stats = append(stats, a)
	}
	return stats, rows.Err()
}
