// Package analysis implements the health_analysis_tool, a demo report
// generator backed by the LLM.
package analysis

import (
	"context"
	"fmt"

	"healthguard/internal/tools"
	"healthguard/internal/types"
)

const (
	Name          = "Health Analysis Tool"
	Description   = "analyzes health data and generates insights and visualizations"
	ArgumentShape = "analysis request or patient_id"

	// Disclaimer is appended to every report.
	Disclaimer = "\n\n*Note: This is a demo analysis with simulated data. In the full version, HealthGuard would generate actual visualizations and insights based on your real health data.*"
)

const systemPrompt = `You are a health data analyst providing insights based on patient information.

1. Acknowledge that this is a simplified demo version
2. Pretend you have analyzed the patient's health data
3. Generate realistic but fictional insights about medication adherence, symptom patterns, etc.
4. Describe a chart or visualization that would be helpful for this analysis
5. Include some actionable recommendations based on the fictional analysis

Make the response sound data-driven and analytical, while clearly indicating it's a demo.`

// Tool is the health_analysis_tool.
type Tool struct {
	desc tools.Descriptor
	llm  types.LLMClient
}

// New creates the tool.
func New(llm types.LLMClient) *Tool {
	return &Tool{
		desc: tools.NewDescriptor(Name, Description, ArgumentShape),
		llm:  llm,
	}
}

// Descriptor returns the tool descriptor.
func (t *Tool) Descriptor() tools.Descriptor { return t.desc }

// Run generates a report for the request in arg.
func (t *Tool) Run(ctx context.Context, arg types.Argument) (string, error) {
	var prompt string
	if arg.IsStructured() {
		prompt = fmt.Sprintf("Generate a health analysis report based on these parameters: %s", arg.Text())
	} else {
		prompt = fmt.Sprintf("Generate a health analysis report for this query: '%s'", arg.Raw)
	}

	report, err := tools.Ask(ctx, t.llm, systemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return report + Disclaimer, nil
}
