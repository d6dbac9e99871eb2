// Package medinfo implements the medical_info_tool. Sensitive questions get a
// safety-framed LLM answer; everything else is looked up on the web when
// search is enabled, with the LLM as fallback.
package medinfo

import (
	"context"
	"fmt"
	"strings"

	"healthguard/internal/logging"
	"healthguard/internal/tools"
	"healthguard/internal/types"
)

const (
	Name          = "Medical Info Tool"
	Description   = "retrieves reliable medical information about conditions, medications, and treatments"
	ArgumentShape = "medical query string"

	// EmptyQueryText is returned when the argument carries no question.
	EmptyQueryText = "Please provide a medical question to look up."

	// LLMDisclaimer is appended to model-generated answers.
	LLMDisclaimer = "\n\n*Note: This information is general in nature and should not replace professional medical advice. Always consult with qualified healthcare providers for personal medical concerns.*"

	// SearchDisclaimer closes formatted search results.
	SearchDisclaimer = "Note: This information is for informational purposes and not a substitute for professional medical advice."

	sensitiveHeader = "⚠️ This appears to be a sensitive medical question. While I can provide general information, I'm not qualified to provide medical diagnoses or emergency advice.\n\n"
	sensitiveFooter = "\n\nPlease consult with a qualified healthcare professional for proper medical guidance."
)

var sensitiveKeywords = []string{
	"diagnose", "diagnosis", "cancer", "terminal", "fatal", "emergency",
	"life-threatening", "critical", "urgent medical", "suicide", "self-harm",
}

const sensitivePrompt = `You are a healthcare assistant responding to a potentially sensitive medical query.
Always prioritize patient safety and wellbeing. For any serious medical concerns:

1. Never provide a diagnosis
2. Emphasize the importance of consulting a qualified healthcare professional
3. Suggest appropriate next steps (e.g., calling a doctor, visiting urgent care)
4. Provide general, factual information when safe to do so

For emergencies, always advise seeking immediate medical attention.`

const infoPrompt = `You are a medical information assistant providing factual, evidence-based information.

Guidelines:
1. Provide accurate information based on current medical understanding
2. Include disclaimers where appropriate
3. Cite general sources of information when possible (e.g., "According to medical literature...")
4. Avoid making definitive claims about treatments
5. Never provide a diagnosis or suggest specific treatments
6. Emphasize consulting healthcare professionals for medical advice

Keep responses factual, balanced, and educational.`

// IsSensitive reports whether query mentions a topic that needs safety framing.
func IsSensitive(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Tool is the medical_info_tool.
type Tool struct {
	desc     tools.Descriptor
	llm      types.LLMClient
	searcher Searcher
}

// New creates the tool. A nil searcher answers every question from the LLM.
func New(llm types.LLMClient, searcher Searcher) *Tool {
	return &Tool{
		desc:     tools.NewDescriptor(Name, Description, ArgumentShape),
		llm:      llm,
		searcher: searcher,
	}
}

// Descriptor returns the tool descriptor.
func (t *Tool) Descriptor() tools.Descriptor { return t.desc }

// Run answers the medical question in arg.
func (t *Tool) Run(ctx context.Context, arg types.Argument) (string, error) {
	query := queryFrom(arg)
	if query == "" {
		return EmptyQueryText, nil
	}

	if IsSensitive(query) {
		logging.Tools("medinfo: sensitive query, answering with safety framing")
		answer, err := tools.Ask(ctx, t.llm, sensitivePrompt, query)
		if err != nil {
			return "", err
		}
		return sensitiveHeader + answer + sensitiveFooter, nil
	}

	if t.searcher != nil {
		results, err := t.searcher.Search(ctx, query)
		switch {
		case err != nil:
			logging.ToolsWarn("medinfo: search failed, falling back to LLM: %v", err)
		case len(results) == 0:
			logging.ToolsDebug("medinfo: no search results for %q, falling back to LLM", query)
		default:
			return FormatResults(results), nil
		}
	}

	answer, err := tools.Ask(ctx, t.llm, infoPrompt, query)
	if err != nil {
		return "", err
	}
	return answer + LLMDisclaimer, nil
}

// queryFrom accepts either plain text or an object with a "query" field.
func queryFrom(arg types.Argument) string {
	if obj, ok := arg.Object(); ok {
		if q := tools.Fields(obj).StringOr("query", ""); q != "" {
			return strings.TrimSpace(q)
		}
	}
	return strings.TrimSpace(arg.Text())
}

// FormatResults renders search hits followed by the disclaimer.
func FormatResults(results []SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Here's what I found from a web search:\n\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(SearchDisclaimer)
	return sb.String()
}
