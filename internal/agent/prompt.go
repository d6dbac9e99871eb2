package agent

import (
	"strings"

	"healthguard/internal/tools"
)

// DefaultSystemPrompt is the HealthGuard persona and protocol description.
// {tools} expands to the tool catalogue and {tool_names} to a comma list.
const DefaultSystemPrompt = `You are HealthGuard, an AI healthcare assistant designed to help patients manage their health.
You have access to the following specialized healthcare tools:

{tools}

Always prioritize patient safety and well-being. Never provide medical diagnoses or replace professional medical advice.
Instead, focus on:
1. Helping patients track their medications and symptoms
2. Providing reliable health information from trusted sources
3. Offering general wellness suggestions
4. Organizing and visualizing health data

For any serious health concerns, always recommend consulting a healthcare professional.

Use the following format:

Patient: the patient's question or request
Thought: carefully consider the appropriate action to take
Action: the action to take, should be one of [{tool_names}]
Action Input: the input for the tool
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat as needed)
Thought: I now know how to respond to the patient
Response: your helpful, empathetic response to the patient

Begin!`

// NudgeText is fed back as an observation when a completion has neither a
// response nor a complete tool step.
const NudgeText = `Your last reply did not follow the required format. To use a tool, reply with an "Action:" line and an "Action Input:" line. To answer the patient, reply with a "Response:" line.`

// BuildSystemPrompt expands the placeholders in template from registry.
// An empty template selects DefaultSystemPrompt.
func BuildSystemPrompt(template string, registry *tools.Registry) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultSystemPrompt
	}
	r := strings.NewReplacer(
		"{tools}", registry.DescribeAll(),
		"{tool_names}", strings.Join(registry.Names(), ", "),
	)
	return r.Replace(template)
}
