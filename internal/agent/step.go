// Package agent implements the step loop. The model is driven through an
// explicit plan/action/observe/output protocol: every model message is one
// or more JSON envelopes, action envelopes dispatch into the tool registry,
// and the loop ends when the model emits an output envelope.
package agent

import (
	"encoding/json"
	"regexp"
)

// StepType identifies a protocol envelope.
type StepType string

const (
	StepPlan    StepType = "plan"
	StepAction  StepType = "action"
	StepObserve StepType = "observe"
	StepOutput  StepType = "output"
)

// Step is one protocol envelope from the model.
type Step struct {
	Type     StepType `json:"step"`
	Content  string   `json:"content,omitempty"`
	Function string   `json:"function,omitempty"`
	Input    string   `json:"input,omitempty"`
}

// IsValid reports whether the step has a known type.
func (s Step) IsValid() bool {
	switch s.Type {
	case StepPlan, StepAction, StepObserve, StepOutput:
		return true
	}
	return false
}

// Models wrap envelopes in prose and code fences, so a full-document parse
// is useless. Flat objects are enough for the protocol fields.
var stepPattern = regexp.MustCompile(`\{[^{}]+\}`)

// ExtractSteps pulls protocol envelopes out of raw model text, in order.
// Non-JSON matches and objects without a known step type are skipped.
func ExtractSteps(text string) []Step {
	matches := stepPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var steps []Step
	for _, match := range matches {
		var step Step
		if err := json.Unmarshal([]byte(match), &step); err != nil {
			continue
		}
		if !step.IsValid() {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

// observeEnvelope renders the observation message sent back to the model
// after an action.
func observeEnvelope(toolName, toolOutput string) string {
	env := Step{
		Type:    StepObserve,
		Content: "Tool '" + toolName + "' returned: " + toolOutput,
	}
	data, _ := json.Marshal(env)
	return string(data)
}
