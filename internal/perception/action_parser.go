package perception

import (
	"strings"

	"healthguard/internal/logging"
	"healthguard/internal/types"
)

// Markers of the Thought/Action/Action Input/Observation/Response protocol.
const (
	MarkerThought     = "Thought:"
	MarkerAction      = "Action:"
	MarkerActionInput = "Action Input:"
	MarkerObservation = "Observation:"
	MarkerResponse    = "Response:"
)

type parseState int

const (
	stateSeeking parseState = iota
	stateInActionInput
)

func (s parseState) String() string {
	if s == stateInActionInput {
		return "InActionInput"
	}
	return "Seeking"
}

// ParseAction extracts the tool name and argument from one completion.
//
// Lines are scanned in order. "Action:" sets the tool name (last one wins).
// "Action Input:" starts a fresh argument buffer; following non-empty lines
// are appended verbatim until "Observation:". The trimmed buffer is decoded
// as a JSON object or array when possible and kept as raw text otherwise.
// ParseAction never fails: a completion with no "Action:" line yields a
// ParsedAction with HasTool false.
func ParseAction(completion string) types.ParsedAction {
	var (
		action  types.ParsedAction
		state   = stateSeeking
		buf     []string
		sawArgs bool
	)

	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSuffix(line, "\r")
		marker := strings.TrimLeft(line, " \t")

		switch {
		case strings.HasPrefix(marker, MarkerActionInput):
			state = stateInActionInput
			sawArgs = true
			buf = buf[:0]
			if rest := strings.TrimSpace(marker[len(MarkerActionInput):]); rest != "" {
				buf = append(buf, rest)
			}

		case strings.HasPrefix(marker, MarkerAction):
			action.ToolName = strings.TrimSpace(marker[len(MarkerAction):])
			action.HasTool = true

		case strings.HasPrefix(marker, MarkerObservation):
			state = stateSeeking

		case state == stateInActionInput && strings.TrimSpace(line) != "":
			buf = append(buf, line)
		}
	}

	action.Argument = types.DecodeArgument(strings.Join(buf, "\n"))
	logging.ParserDebug("ParseAction: tool=%q has_tool=%v has_input=%v arg_kind=%s final_state=%s",
		action.ToolName, action.HasTool, sawArgs, action.Argument.Kind, state)
	return action
}

// FinalResponse returns the text after the last "Response:" marker, trimmed.
// The bool is false when there is no marker.
func FinalResponse(completion string) (string, bool) {
	i := strings.LastIndex(completion, MarkerResponse)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(completion[i+len(MarkerResponse):]), true
}

// HasToolStep reports whether the completion carries both an "Action:" and
// an "Action Input:" marker.
func HasToolStep(completion string) bool {
	return strings.Contains(completion, MarkerAction) && strings.Contains(completion, MarkerActionInput)
}
