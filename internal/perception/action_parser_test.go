package perception

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"healthguard/internal/types"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		wantTool   string
		wantHas    bool
		wantKind   types.ArgumentKind
		wantRaw    string
	}{
		{
			name:       "structured single line",
			completion: "Thought: ok\nAction: medication_tool\nAction Input: {\"action\":\"list\",\"patient_id\":\"p1\"}\nObservation:",
			wantTool:   "medication_tool",
			wantHas:    true,
			wantKind:   types.ArgumentStructured,
			wantRaw:    `{"action":"list","patient_id":"p1"}`,
		},
		{
			name:       "plain text argument",
			completion: "Action: medical_info_tool\nAction Input: what is metformin used for?",
			wantTool:   "medical_info_tool",
			wantHas:    true,
			wantKind:   types.ArgumentRaw,
			wantRaw:    "what is metformin used for?",
		},
		{
			name: "multi-line json",
			completion: "Thought: log it\nAction: symptom_tool\nAction Input: {\n  \"action\": \"log\",\n\n  \"symptom\": \"headache\"\n}\nObservation: pending",
			wantTool: "symptom_tool",
			wantHas:  true,
			wantKind: types.ArgumentStructured,
			wantRaw:  "{\n  \"action\": \"log\",\n  \"symptom\": \"headache\"\n}",
		},
		{
			name:       "text after observation is ignored",
			completion: "Action: t\nAction Input: first\nObservation: result\nthis is not input",
			wantTool:   "t",
			wantHas:    true,
			wantKind:   types.ArgumentRaw,
			wantRaw:    "first",
		},
		{
			name:       "last action wins",
			completion: "Action: first_tool\nAction: second_tool\nAction Input: x",
			wantTool:   "second_tool",
			wantHas:    true,
			wantKind:   types.ArgumentRaw,
			wantRaw:    "x",
		},
		{
			name:       "empty action input",
			completion: "Action: health_analysis_tool\nAction Input:\nObservation:",
			wantTool:   "health_analysis_tool",
			wantHas:    true,
			wantKind:   types.ArgumentRaw,
			wantRaw:    "",
		},
		{
			name:       "no action",
			completion: "Thought: I should just chat.\nHello there!",
			wantTool:   "",
			wantHas:    false,
			wantKind:   types.ArgumentRaw,
			wantRaw:    "",
		},
		{
			name:       "leading whitespace before markers",
			completion: "  Action:  symptom_tool \n\tAction Input: [1, 2]",
			wantTool:   "symptom_tool",
			wantHas:    true,
			wantKind:   types.ArgumentStructured,
			wantRaw:    "[1, 2]",
		},
		{
			name:       "second action input restarts buffer",
			completion: "Action: t\nAction Input: draft\nAction Input: final",
			wantTool:   "t",
			wantHas:    true,
			wantKind:   types.ArgumentRaw,
			wantRaw:    "final",
		},
		{
			name:       "crlf line endings",
			completion: "Action: t\r\nAction Input: {\"a\": 1}\r\nObservation:\r\n",
			wantTool:   "t",
			wantHas:    true,
			wantKind:   types.ArgumentStructured,
			wantRaw:    `{"a": 1}`,
		},
		{
			name:       "broken json stays raw",
			completion: "Action: t\nAction Input: {\"action\": \"list\"",
			wantTool:   "t",
			wantHas:    true,
			wantKind:   types.ArgumentRaw,
			wantRaw:    `{"action": "list"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAction(tt.completion)
			if got.ToolName != tt.wantTool {
				t.Errorf("ToolName = %q, want %q", got.ToolName, tt.wantTool)
			}
			if got.HasTool != tt.wantHas {
				t.Errorf("HasTool = %v, want %v", got.HasTool, tt.wantHas)
			}
			if got.Argument.Kind != tt.wantKind {
				t.Errorf("Argument.Kind = %s, want %s", got.Argument.Kind, tt.wantKind)
			}
			if got.Argument.Raw != tt.wantRaw {
				t.Errorf("Argument.Raw = %q, want %q", got.Argument.Raw, tt.wantRaw)
			}
		})
	}
}

func TestParseActionStructuredValue(t *testing.T) {
	got := ParseAction("Thought: ok\nAction: medication_tool\nAction Input: {\"action\":\"list\",\"patient_id\":\"p1\"}\nObservation:")
	want := map[string]any{"action": "list", "patient_id": "p1"}
	if diff := cmp.Diff(want, got.Argument.Value); diff != "" {
		t.Errorf("structured value mismatch (-want +got):\n%s", diff)
	}
}

func TestFinalResponse(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       string
		ok         bool
	}{
		{"simple", "Thought: done\nResponse: Take your pill at 8am.", "Take your pill at 8am.", true},
		{"last marker wins", "Response: draft\nThought: hmm\nResponse:  final answer \n", "final answer", true},
		{"beats earlier action", "Action: t\nAction Input: x\nResponse: skip the tool", "skip the tool", true},
		{"multi-line", "Response: line one\nline two", "line one\nline two", true},
		{"absent", "Thought: still thinking", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FinalResponse(tt.completion)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("FinalResponse() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestHasToolStep(t *testing.T) {
	if !HasToolStep("Action: t\nAction Input: x") {
		t.Error("expected tool step")
	}
	if HasToolStep("Action: t") {
		t.Error("action without input is not a tool step")
	}
	if HasToolStep("Action Input: x") {
		t.Error("input without action is not a tool step")
	}
}
