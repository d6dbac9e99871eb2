package store

import (
	"context"
	"fmt"

	"healthguard/internal/logging"
)

// SeedDemoPatient inserts sample medications, dose logs and symptoms for
// patientID when the patient has no medications yet. It reports whether
// anything was inserted.
func (s *LocalStore) SeedDemoPatient(ctx context.Context, patientID string) (bool, error) {
	existing, err := s.ListMedications(ctx, patientID)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		logging.StoreDebug("SeedDemoPatient: %s already has %d medications", patientID, len(existing))
		return false, nil
	}

	now := s.now()
	yesterday := now.AddDate(0, 0, -1)
	twoDaysAgo := now.AddDate(0, 0, -2)

	meds := []Medication{
		{PatientID: patientID, Name: "Lisinopril", Dosage: "10mg", Frequency: "Once daily", TimeOfDay: "Morning", Notes: "For blood pressure", StartDate: formatTime(yesterday)},
		{PatientID: patientID, Name: "Metformin", Dosage: "500mg", Frequency: "Twice daily", TimeOfDay: "Morning, Evening", Notes: "For blood sugar", StartDate: formatTime(twoDaysAgo)},
		{PatientID: patientID, Name: "Vitamin D", Dosage: "1000 IU", Frequency: "Once daily", TimeOfDay: "Anytime", StartDate: formatTime(yesterday)},
	}
	ids := make([]int64, len(meds))
	for i, m := range meds {
		id, err := s.AddMedication(ctx, m)
		if err != nil {
			return false, fmt.Errorf("seed medication %s: %w", m.Name, err)
		}
		ids[i] = id
	}

	logs := []DoseLog{
		{MedicationID: ids[0], TakenAt: yesterday, Taken: true, Notes: "Taken with breakfast"},
		{MedicationID: ids[1], TakenAt: twoDaysAgo, Taken: true, Notes: "Taken morning dose"},
		{MedicationID: ids[1], TakenAt: yesterday, Taken: false, Notes: "Forgot evening dose"},
		{MedicationID: ids[0], TakenAt: now, Taken: true, Notes: "Taken morning dose"},
	}
	for _, l := range logs {
		if _, err := s.LogDose(ctx, l); err != nil {
			return false, fmt.Errorf("seed dose log: %w", err)
		}
	}

	symptoms := []Symptom{
		{PatientID: patientID, Symptom: "Headache", Severity: 6, Description: "Pressure behind eyes", DateRecorded: twoDaysAgo, Duration: "2 hours", Triggers: "Stress"},
		{PatientID: patientID, Symptom: "Fatigue", Severity: 7, Description: "Feeling sluggish all day", DateRecorded: yesterday, Duration: "All day", Triggers: "Poor sleep"},
		{PatientID: patientID, Symptom: "Headache", Severity: 4, Description: "Mild throbbing", DateRecorded: now, Duration: "Ongoing", Triggers: "Screen time"},
	}
	for _, sym := range symptoms {
		if _, err := s.AddSymptom(ctx, sym); err != nil {
			return false, fmt.Errorf("seed symptom %s: %w", sym.Symptom, err)
		}
	}

	logging.Store("SeedDemoPatient: seeded %s with %d medications, %d dose logs, %d symptoms",
		patientID, len(meds), len(logs), len(symptoms))
	return true, nil
}
