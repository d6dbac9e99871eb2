// Package symptom implements the symptom_tool: logging symptoms with a 1-10
// severity, listing them and asking the LLM for a pattern analysis.
package symptom

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"healthguard/internal/logging"
	"healthguard/internal/store"
	"healthguard/internal/tools"
	"healthguard/internal/types"
)

const (
	Name          = "Symptom Tool"
	Description   = "logs and analyzes patient symptoms, tracks patterns, and provides insights"
	ArgumentShape = "JSON object with symptom information or query"

	// ParseFailureText is returned when a free-text request cannot be turned into an action.
	ParseFailureText = "I couldn't parse your symptom request. Please provide more specific details about what you'd like to do with your symptom tracking."
	invalidInputText = "Invalid input format. Please provide either a text query or a properly structured symptom object."

	// DefaultSeverity is used when a severity cannot be interpreted.
	DefaultSeverity = 5
)

const parsePrompt = `You are a symptom tracking assistant. Parse the user's request into a structured format.
Extract the following information if present:
- action (log, list, analyze)
- symptom (symptom name)
- severity (1-10 or descriptions like mild, moderate, severe)
- description of the symptom
- duration (when it started or how long it lasted)
- triggers (any possible triggers)

Return only a JSON object with the extracted information.`

const analysisPrompt = `Analyze the following symptom data for a patient:

%s

Identify:
1. Any patterns in symptom occurrence
2. Potential triggers
3. Progression of severity over time
4. Correlations between different symptoms (if present)
5. Suggestions for lifestyle adjustments that might help (no medical advice)

Keep your analysis concise and focus on the patterns in the data.`

var severityWords = map[string]int{
	"minimal":     1,
	"minor":       2,
	"slight":      2,
	"very mild":   2,
	"mild":        3,
	"light":       3,
	"moderate":    5,
	"medium":      5,
	"average":     5,
	"severe":      8,
	"intense":     8,
	"serious":     9,
	"very severe": 9,
	"extreme":     10,
	"worst":       10,
}

var severityLabels = [...]string{
	1:  "very mild",
	2:  "mild",
	3:  "mild to moderate",
	4:  "moderate",
	5:  "moderate",
	6:  "moderate to severe",
	7:  "severe",
	8:  "severe",
	9:  "very severe",
	10: "extreme",
}

// SeverityLabel describes a clamped 1-10 severity in words.
func SeverityLabel(severity int) string {
	return severityLabels[store.ClampSeverity(severity)]
}

// ParseSeverity converts a number, numeric string or severity word to 1-10.
func ParseSeverity(v any) int {
	switch t := v.(type) {
	case float64:
		return store.ClampSeverity(int(t))
	case int:
		return store.ClampSeverity(t)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		s = strings.TrimSuffix(s, "/10")
		if n, err := strconv.Atoi(s); err == nil {
			return store.ClampSeverity(n)
		}
		if n, ok := severityWords[s]; ok {
			return n
		}
	}
	return DefaultSeverity
}

// Store is the persistence the tool needs.
type Store interface {
	AddSymptom(ctx context.Context, s store.Symptom) (int64, error)
	ListSymptoms(ctx context.Context, patientID string) ([]store.Symptom, error)
}

// Tool is the symptom_tool bound to one patient session.
type Tool struct {
	desc      tools.Descriptor
	store     Store
	llm       types.LLMClient
	patientID string
}

// New creates a symptom tool for patientID.
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

	reply, err := tools.Ask(ctx, t.llm, parsePrompt, arg.Raw)
	if err != nil {
		return "", err
	}
	fields, err := tools.DecodeFields(reply)
	if err != nil {
		logging.ToolsDebug("symptom: could not decode LLM parse %q: %v", reply, err)
		return ParseFailureText, nil
	}
	return t.handle(ctx, fields)
}

func (t *Tool) handle(ctx context.Context, f tools.Fields) (string, error) {
	patientID := f.StringOr("patient_id", t.patientID)
	action := f.Action()
	logging.ToolsDebug("symptom: action=%s patient=%s", action, patientID)

	switch action {
	case "log":
		return t.log(ctx, patientID, f)
	case "list":
		return t.list(ctx, patientID)
	case "analyze":
		return t.analyze(ctx, patientID)
	default:
		return fmt.Sprintf("Unknown action: %s. Supported actions are: log, list, analyze.", action), nil
	}
}

func (t *Tool) log(ctx context.Context, patientID string, f tools.Fields) (string, error) {
	for _, field := range []string{"symptom", "severity"} {
		if !f.Has(field) {
			return "Missing required field: " + field, nil
		}
	}

	sym := store.Symptom{
		PatientID:   patientID,
		Symptom:     f.StringOr("symptom", ""),
		Severity:    ParseSeverity(f["severity"]),
		Description: f.StringOr("description", ""),
		Duration:    f.StringOr("duration", ""),
		Triggers:    f.StringOr("triggers", ""),
	}
	if s, ok := f.String("date_recorded"); ok {
		sym.DateRecorded = parseDate(s)
	}

	if _, err := t.store.AddSymptom(ctx, sym); err != nil {
		return "", fmt.Errorf("logging symptom: %w", err)
	}
	return fmt.Sprintf("Logged %s %s symptom.", SeverityLabel(sym.Severity), sym.Symptom), nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func (t *Tool) list(ctx context.Context, patientID string) (string, error) {
	syms, err := t.store.ListSymptoms(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("listing symptoms: %w", err)
	}
	if len(syms) == 0 {
		return "No symptoms recorded for patient ID: " + patientID, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent symptoms for patient %s:\n\n", patientID)
	for _, s := range syms {
		fmt.Fprintf(&sb, "- %s (Severity: %d/10) on %s\n", s.Symptom, s.Severity, s.DateRecorded.Format("2006-01-02 15:04"))
		if s.Description != "" {
			fmt.Fprintf(&sb, "  Description: %s\n", s.Description)
		}
		if s.Duration != "" {
			fmt.Fprintf(&sb, "  Duration: %s\n", s.Duration)
		}
		if s.Triggers != "" {
			fmt.Fprintf(&sb, "  Possible triggers: %s\n", s.Triggers)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

type analysisRow struct {
	Symptom  string `json:"symptom"`
	Severity int    `json:"severity"`
	Date     string `json:"date"`
	Triggers string `json:"triggers"`
}

func (t *Tool) analyze(ctx context.Context, patientID string) (string, error) {
	syms, err := t.store.ListSymptoms(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("analyzing symptoms: %w", err)
	}
	if len(syms) == 0 {
		return fmt.Sprintf("No symptoms recorded for patient ID: %s. Unable to perform analysis.", patientID), nil
	}

	// Oldest first so the model reads the progression in order.
	rows := make([]analysisRow, 0, len(syms))
	for i := len(syms) - 1; i >= 0; i-- {
		s := syms[i]
		rows = append(rows, analysisRow{
			Symptom:  s.Symptom,
			Severity: s.Severity,
			Date:     s.DateRecorded.Format(time.RFC3339),
			Triggers: s.Triggers,
		})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding symptoms: %w", err)
	}

	analysis, err := tools.Ask(ctx, t.llm, "", fmt.Sprintf(analysisPrompt, data))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Symptom Analysis for patient %s:\n\n%s", patientID, analysis), nil
}
