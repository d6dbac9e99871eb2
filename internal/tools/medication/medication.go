// Package medication implements the medication_tool: adding, listing and
// updating prescriptions, logging doses and reporting adherence.
package medication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthguard/internal/logging"
	"healthguard/internal/store"
	"healthguard/internal/tools"
	"healthguard/internal/types"
)

const (
	Name          = "Medication Tool"
	Description   = "tracks and manages patient medications, schedules, and reminders"
	ArgumentShape = "JSON object with medication information or query"

	// ParseFailureText is returned when a free-text request cannot be turned into an action.
	ParseFailureText = "I couldn't parse your medication request. Please provide more specific details about what you'd like to do with your medications."
	invalidInputText = "Invalid input format. Please provide either a text query or a properly structured medication object."
)

const parsePrompt = `You are a medication management assistant. Parse the user's request into a structured format.
Extract the following information if present:
- action (add, list, update, log, or adherence)
- name (medication name)
- dosage
- frequency (e.g., daily, twice daily)
- time_of_day
- id or medication_id when the request refers to an existing medication
- taken (true or false) when logging a dose
- notes

Return only a JSON object with the extracted information.`

// Store is the persistence the tool needs.
type Store interface {
	AddMedication(ctx context.Context, m store.Medication) (int64, error)
	ListMedications(ctx context.Context, patientID string) ([]store.Medication, error)
	UpdateMedication(ctx context.Context, id int64, u store.MedicationUpdate) error
	LogDose(ctx context.Context, l store.DoseLog) (int64, error)
	Adherence(ctx context.Context, patientID string) ([]store.AdherenceStat, error)
}

// Tool is the medication_tool bound to one patient session.
type Tool struct {
	desc      tools.Descriptor
	store     Store
	llm       types.LLMClient
	patientID string
}

// New creates a medication tool. patientID fills requests that omit patient_id;
// llm parses free-text requests and may be nil.
func New(st Store, llm types.LLMClient, patientID string) *Tool {
	return &Tool{
		desc:      tools.NewDescriptor(Name, Description, ArgumentShape),
		store:     st,
		llm:       llm,
		patientID: patientID,
	}
}

// Descriptor returns the tool descriptor.
func (t *Tool) Descriptor() tools.Descriptor { return t.desc }

// Run handles a structured request, or asks the LLM to structure a text one.
func (t *Tool) Run(ctx context.Context, arg types.Argument) (string, error) {
	if obj, ok := arg.Object(); ok {
		return t.handle(ctx, tools.Fields(obj))
	}
	if arg.IsStructured() {
		return invalidInputText, nil
	}
	return t.handleText(ctx, arg.Raw)
}

func (t *Tool) handleText(ctx context.Context, text string) (string, error) {
	reply, err := tools.Ask(ctx, t.llm, parsePrompt, text)
	if err != nil {
		return "", err
	}
	fields, err := tools.DecodeFields(reply)
	if err != nil {
		logging.ToolsDebug("medication: could not decode LLM parse %q: %v", reply, err)
		return ParseFailureText, nil
	}
	return t.handle(ctx, fields)
}

func (t *Tool) handle(ctx context.Context, f tools.Fields) (string, error) {
	patientID := f.StringOr("patient_id", t.patientID)
	action := f.Action()
	logging.ToolsDebug("medication: action=%s patient=%s", action, patientID)

	switch action {
	case "add":
		return t.add(ctx, patientID, f)
	case "list":
		return t.list(ctx, patientID)
	case "update":
		return t.update(ctx, f)
	case "log":
		return t.logDose(ctx, f)
	case "adherence":
		return t.adherence(ctx, patientID)
	default:
		return fmt.Sprintf("Unknown action: %s. Supported actions are: add, list, update, log, adherence.", action), nil
	}
}

func (t *Tool) add(ctx context.Context, patientID string, f tools.Fields) (string, error) {
	for _, field := range []string{"name", "dosage", "frequency"} {
		if !f.Has(field) {
			return "Missing required field: " + field, nil
		}
	}
	m := store.Medication{
		PatientID: patientID,
		Name:      f.StringOr("name", ""),
		Dosage:    f.StringOr("dosage", ""),
		Frequency: f.StringOr("frequency", ""),
		TimeOfDay: f.StringOr("time_of_day", ""),
		Notes:     f.StringOr("notes", ""),
		StartDate: f.StringOr("start_date", ""),
		EndDate:   f.StringOr("end_date", ""),
	}
	id, err := t.store.AddMedication(ctx, m)
	if err != nil {
		return "", fmt.Errorf("adding medication: %w", err)
	}
	return fmt.Sprintf("Added medication: %s (%s) to be taken %s. Medication ID: %d", m.Name, m.Dosage, m.Frequency, id), nil
}

func (t *Tool) list(ctx context.Context, patientID string) (string, error) {
	meds, err := t.store.ListMedications(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("listing medications: %w", err)
	}
	if len(meds) == 0 {
		return "No medications found for patient ID: " + patientID, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Medications for patient %s:\n\n", patientID)
	for _, m := range meds {
		fmt.Fprintf(&sb, "- %s (%s)\n", m.Name, m.Dosage)
		fmt.Fprintf(&sb, "  Frequency: %s\n", m.Frequency)
		if m.TimeOfDay != "" {
			fmt.Fprintf(&sb, "  Time: %s\n", m.TimeOfDay)
		}
		if m.Notes != "" {
			fmt.Fprintf(&sb, "  Notes: %s\n", m.Notes)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (t *Tool) update(ctx context.Context, f tools.Fields) (string, error) {
	id, ok := f.Int("id")
	if !ok {
		if id, ok = f.Int("medication_id"); !ok {
			return "Missing medication ID for update", nil
		}
	}

	var u store.MedicationUpdate
	for key, dst := range map[string]**string{
		"name":        &u.Name,
		"dosage":      &u.Dosage,
		"frequency":   &u.Frequency,
		"time_of_day": &u.TimeOfDay,
		"notes":       &u.Notes,
		"start_date":  &u.StartDate,
		"end_date":    &u.EndDate,
	} {
		if s, ok := f.String(key); ok {
			*dst = &s
		}
	}

	if err := t.store.UpdateMedication(ctx, id, u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Medication with ID %d not found", id), nil
		}
		return "", fmt.Errorf("updating medication: %w", err)
	}
	return fmt.Sprintf("Updated medication ID %d", id), nil
}

func (t *Tool) logDose(ctx context.Context, f tools.Fields) (string, error) {
	if !f.Has("medication_id") {
		return "Missing required field: medication_id", nil
	}
	if !f.Has("taken") {
		return "Missing required field: taken", nil
	}
	id, ok := f.Int("medication_id")
	if !ok {
		s, _ := f.String("medication_id")
		return fmt.Sprintf("Medication with ID %s not found", s), nil
	}
	taken, _ := f.Bool("taken")

	entry := store.DoseLog{MedicationID: id, Taken: taken, Notes: f.StringOr("notes", "")}
	if s, ok := f.String("taken_at"); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			entry.TakenAt = ts
		}
	}

	if _, err := t.store.LogDose(ctx, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Medication with ID %d not found", id), nil
		}
		return "", fmt.Errorf("logging medication: %w", err)
	}

	status := "skipped"
	if taken {
		status = "taken"
	}
	return fmt.Sprintf("Logged medication ID %d as %s", id, status), nil
}

func (t *Tool) adherence(ctx context.Context, patientID string) (string, error) {
	stats, err := t.store.Adherence(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("calculating adherence: %w", err)
	}
	if len(stats) == 0 {
		return "No medications found for patient ID: " + patientID, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Medication Adherence Report for patient %s:\n\n", patientID)
	for _, s := range stats {
		rate, ok := s.Rate()
		if !ok {
			fmt.Fprintf(&sb, "- %s: No data\n", s.Name)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %.1f%% (%d/%d)\n", s.Name, rate, s.Taken, s.Total)
	}
	return sb.String(), nil
}
