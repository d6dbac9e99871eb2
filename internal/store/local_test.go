package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var drivers = []string{DriverMattn, DriverModernc}

func openTestStore(t *testing.T, driver string) *LocalStore {
	t.Helper()
	s, err := Open(driver, filepath.Join(t.TempDir(), "healthguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setClock(s *LocalStore, t time.Time) {
	s.now = func() time.Time { return t }
}

func strPtr(s string) *string { return &s }

func forEachDriver(t *testing.T, fn func(t *testing.T, s *LocalStore)) {
	for _, d := range drivers {
		t.Run(d, func(t *testing.T) {
			fn(t, openTestStore(t, d))
		})
	}
}

func TestOpen(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *LocalStore) {
		require.NoError(t, s.Ping(context.Background()))
		assert.FileExists(t, s.Path())
	})

	_, err := Open("postgres", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
}

func TestOpenInMemory(t *testing.T) {
	s, err := NewLocalStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, DriverMattn, s.Driver())

	_, err = s.AddMedication(context.Background(), Medication{PatientID: "p", Name: "A", Dosage: "1mg", Frequency: "daily"})
	require.NoError(t, err)
}

func TestMedicationLifecycle(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *LocalStore) {
		ctx := context.Background()

		id, err := s.AddMedication(ctx, Medication{PatientID: "p1", Name: "Metformin", Dosage: "500mg", Frequency: "Twice daily"})
		require.NoError(t, err)
		_, err = s.AddMedication(ctx, Medication{PatientID: "p1", Name: "Aspirin", Dosage: "81mg", Frequency: "Once daily", TimeOfDay: "Morning"})
		require.NoError(t, err)
		_, err = s.AddMedication(ctx, Medication{PatientID: "p2", Name: "Other", Dosage: "1mg", Frequency: "daily"})
		require.NoError(t, err)

		meds, err := s.ListMedications(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, meds, 2)
		assert.Equal(t, "Aspirin", meds[0].Name, "ordered by name")
		assert.Equal(t, "Morning", meds[0].TimeOfDay)
		assert.NotEmpty(t, meds[1].StartDate, "start date defaults to now")
		assert.False(t, meds[1].CreatedAt.IsZero())

		require.NoError(t, s.UpdateMedication(ctx, id, MedicationUpdate{Dosage: strPtr("1000mg"), Notes: strPtr("with food")}))
		got, err := s.GetMedication(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "1000mg", got.Dosage)
		assert.Equal(t, "with food", got.Notes)
		assert.Equal(t, "Metformin", got.Name)

		err = s.UpdateMedication(ctx, 9999, MedicationUpdate{Name: strPtr("x")})
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.GetMedication(ctx, 9999)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestAddMedicationRequiresFields(t *testing.T) {
	s := openTestStore(t, DriverMattn)
	_, err := s.AddMedication(context.Background(), Medication{PatientID: "p1", Name: "X"})
	require.Error(t, err)
}

func TestDoseLogsAndAdherence(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *LocalStore) {
		ctx := context.Background()
		a, _ := s.AddMedication(ctx, Medication{PatientID: "p1", Name: "A", Dosage: "1", Frequency: "daily"})
		b, _ := s.AddMedication(ctx, Medication{PatientID: "p1", Name: "B", Dosage: "1", Frequency: "daily"})

		for _, taken := range []bool{true, true, false} {
			_, err := s.LogDose(ctx, DoseLog{MedicationID: a, Taken: taken})
			require.NoError(t, err)
		}

		_, err := s.LogDose(ctx, DoseLog{MedicationID: 424242, Taken: true})
		assert.True(t, errors.Is(err, ErrNotFound))

		stats, err := s.Adherence(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, stats, 2)

		assert.Equal(t, AdherenceStat{MedicationID: a, Name: "A", Total: 3, Taken: 2}, stats[0])
		rate, ok := stats[0].Rate()
		assert.True(t, ok)
		assert.InDelta(t, 66.67, rate, 0.01)

		assert.Equal(t, AdherenceStat{MedicationID: b, Name: "B"}, stats[1])
		_, ok = stats[1].Rate()
		assert.False(t, ok)

		none, err := s.Adherence(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSymptoms(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *LocalStore) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		_, err := s.AddSymptom(ctx, Symptom{PatientID: "p1", Symptom: "Headache", Severity: 14, DateRecorded: base})
		require.NoError(t, err)
		_, err = s.AddSymptom(ctx, Symptom{PatientID: "p1", Symptom: "Nausea", Severity: 0, DateRecorded: base.Add(time.Hour), Triggers: "coffee"})
		require.NoError(t, err)

		syms, err := s.ListSymptoms(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, syms, 2)
		assert.Equal(t, "Nausea", syms[0].Symptom, "newest first")
		assert.Equal(t, 1, syms[0].Severity)
		assert.Equal(t, "coffee", syms[0].Triggers)
		assert.Equal(t, 10, syms[1].Severity)
		assert.True(t, syms[1].DateRecorded.Equal(base))
	})
}

func TestSeedDemoPatient(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *LocalStore) {
		ctx := context.Background()
		setClock(s, time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

		seeded, err := s.SeedDemoPatient(ctx, "demo_patient_001")
		require.NoError(t, err)
		assert.True(t, seeded)

		meds, err := s.ListMedications(ctx, "demo_patient_001")
		require.NoError(t, err)
		names := make([]string, len(meds))
		for i, m := range meds {
			names[i] = m.Name
		}
		assert.Equal(t, []string{"Lisinopril", "Metformin", "Vitamin D"}, names)

		stats, err := s.Adherence(ctx, "demo_patient_001")
		require.NoError(t, err)
		assert.Equal(t, 2, stats[0].Total)
		assert.Equal(t, 2, stats[0].Taken)
		assert.Equal(t, 2, stats[1].Total)
		assert.Equal(t, 1, stats[1].Taken)

		syms, err := s.ListSymptoms(ctx, "demo_patient_001")
		require.NoError(t, err)
		assert.Len(t, syms, 3)

		again, err := s.SeedDemoPatient(ctx, "demo_patient_001")
		require.NoError(t, err)
		assert.False(t, again, "second seed is a no-op")
	})
}

func TestConcurrentWrites(t *testing.T) {
	s := openTestStore(t, DriverMattn)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddSymptom(ctx, Symptom{PatientID: "p", Symptom: "s", Severity: i + 1})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	syms, err := s.ListSymptoms(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, syms, 10)
}
