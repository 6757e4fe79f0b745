package agent

import (
	"fmt"
	"strings"

	"tinker/internal/tools"
)

const protocolPrompt = `You are an AI assistant specialized in making code changes.
You operate in the following sequence: start -> plan -> action -> observe -> output.
For a given user query and the available tools, you must:
1. Start by planning your next step.
2. When ready, output an "action" step specifying a tool to call and its input.
3. Always respond in strict JSON (one JSON object per message) with the following keys:
    - "step": either "plan", "action", "observe", or "output"
    - "content": a textual explanation (for plan/observe/output steps)
    - "function": (action steps only) the name of the tool to invoke
    - "input": (action steps only) the input string for the tool
Use one step per message and stop only when your output step is generated.
Tools that take several arguments receive them in one input string joined with "||".`

// renderSystemPrompt builds the system prompt for a tool subset.
func renderSystemPrompt(available []*tools.Tool) string {
	var sb strings.Builder
	sb.WriteString(protocolPrompt)
	sb.WriteString("\n\nAvailable tools:\n")
	for _, tool := range available {
		fmt.Fprintf(&sb, "- %s: %s%s\n", tool.Name, tool.Description, renderInputHint(tool))
	}
	return sb.String()
}

func renderInputHint(tool *tools.Tool) string {
	required := tool.Schema.Required
	if len(required) == 0 {
		return " (no input required)"
	}
	return " (input: " + strings.Join(required, "||") + ")"
}
