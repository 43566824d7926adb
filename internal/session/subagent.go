package session

import (
	"fmt"
	"sort"
	"strings"
)

// BuildSubAgentSystemPrompt builds a self-contained system prompt for a
// spawned LLM sub-agent from its goal, an optional context map of key/value
// pairs the parent wants carried into the child, and an optional filter
// restricting which tools the child may call. It never reads or modifies
// the parent's workspace SYSTEM_PROMPT.md — a sub-agent's prompt is built
// fresh from its spawn arguments, not inherited.
func BuildSubAgentSystemPrompt(goal string, contextVars map[string]string, toolFilter []string) string {
	var b strings.Builder

	b.WriteString("You are a sub-agent spawned by another session to accomplish one goal.\n")
	b.WriteString("Work until the goal is accomplished, then report your result and stop.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", goal)

	if len(contextVars) > 0 {
		keys := make([]string, 0, len(contextVars))
		for k := range contextVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\nContext passed from the parent session:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, contextVars[k])
		}
	}

	if len(toolFilter) > 0 {
		fmt.Fprintf(&b, "\nYou have access to only these tools: %s\n", strings.Join(toolFilter, ", "))
	}

	return b.String()
}
