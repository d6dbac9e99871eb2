package store

import (
	"fmt"

	"healthguard/internal/logging"
)

const createMedicationsTable = `
CREATE TABLE IF NOT EXISTS medications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id TEXT NOT NULL,
	name TEXT NOT NULL,
	dosage TEXT NOT NULL,
	frequency TEXT NOT NULL,
	time_of_day TEXT,
	notes TEXT,
	start_date TEXT,
	end_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const createMedicationLogsTable = `
CREATE TABLE IF NOT EXISTS medication_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	medication_id INTEGER NOT NULL,
	taken_at TEXT NOT NULL,
	taken INTEGER NOT NULL,
	notes TEXT,
	FOREIGN KEY (medication_id) REFERENCES medications (id)
);`

const createSymptomsTable = `
CREATE TABLE IF NOT EXISTS symptoms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id TEXT NOT NULL,
	symptom TEXT NOT NULL,
	severity INTEGER NOT NULL,
	description TEXT,
	date_recorded TEXT NOT NULL,
	duration TEXT,
	triggers TEXT,
	created_at TEXT NOT NULL
);`

var schemaStatements = []string{
	createMedicationsTable,
	createMedicationLogsTable,
	createSymptomsTable,
	`CREATE INDEX IF NOT EXISTS idx_medications_patient ON medications(patient_id)`,
	`CREATE INDEX IF NOT EXISTS idx_medication_logs_med ON medication_logs(medication_id)`,
	`CREATE INDEX IF NOT EXISTS idx_symptoms_patient ON symptoms(patient_id, date_recorded)`,
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	logging.StoreDebug("Database schema initialized (%d statements)", len(schemaStatements))
	return nil
}
