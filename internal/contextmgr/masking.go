package contextmgr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/binarymuse/ouroboros/internal/models"
)

// MaskOldestObservations walks history oldest-first and replaces the
// content of up to n not-already-masked tool-role messages with a
// tool-specific placeholder, mutating history in place. Messages are never
// removed or reordered; only the ToolResult.Content body shrinks. It
// returns the count actually masked and updates manager.MaskedCount.
func (m *Manager) MaskOldestObservations(history []models.Message, n int) int {
	if n <= 0 {
		return 0
	}

	masked := 0
	toolName := ""
	callIDToName := toolNamesByCallID(history)

	for i := range history {
		msg := &history[i]
		if msg.Role != models.RoleTool || msg.ToolResult == nil {
			continue
		}
		if isMasked(*msg) {
			continue
		}

		toolName = callIDToName[msg.ToolResult.ToolCallID]
		msg.ToolResult.Content = placeholderFor(toolName, msg.ToolResult.Content)
		msg.ToolResult.Masked = true
		masked++
		if masked >= n {
			break
		}
	}

	m.MaskedCount += masked
	return masked
}

// toolNamesByCallID maps each ToolCall.ID to its Name, so masking can name
// the tool that produced a given tool-role message.
func toolNamesByCallID(history []models.Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range history {
		if msg.Role != models.RoleAssistant {
			continue
		}
		for _, call := range msg.ToolCalls {
			names[call.ID] = call.Name
		}
	}
	return names
}

func placeholderFor(toolName, content string) string {
	switch toolName {
	case "file_read":
		return filereadPlaceholder(content)
	case "shell_exec":
		return shellExecPlaceholder(content)
	default:
		return fmt.Sprintf("[%s masked — %d bytes of output]", orUnknown(toolName), len(content))
	}
}

func filereadPlaceholder(content string) string {
	lines := strings.Split(content, "\n")
	n := len(lines)
	preview := content
	if len(preview) > 60 {
		preview = preview[:60]
	}
	return fmt.Sprintf("[file_read masked — %d lines, starts with: %s]", n, preview)
}

type shellExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
}

func shellExecPlaceholder(content string) string {
	var parsed shellExecResult
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return fmt.Sprintf("[shell_exec masked — exit_code=%d, stdout=%d bytes]", parsed.ExitCode, len(parsed.Stdout))
	}
	return fmt.Sprintf("[shell_exec masked — exit_code=unknown, stdout=%d bytes]", len(content))
}

func orUnknown(name string) string {
	if name == "" {
		return "unknown_tool"
	}
	return name
}

// GenerateMaskNotification builds the short user-role message the Session
// Driver injects after masking, so the agent knows it lost detail.
func GenerateMaskNotification(count int, reclaimedPct float64) string {
	return fmt.Sprintf("Masked %d older tool result(s) to reclaim ~%.0f%% of context window capacity.", count, reclaimedPct)
}
