package contextmgr

import "github.com/binarymuse/ouroboros/internal/models"

// ExtractCarryover scans history backward for the K-th most recent turn
// boundary — a text-only assistant message with no tool calls — and
// returns the slice from that boundary through the end of history. This
// guarantees no tool-call/tool-response pair is split across the boundary.
//
// If fewer than K boundaries exist, it falls back to the last K*3 messages.
// Any leading tool-role message whose correlating assistant message fell
// outside the returned slice is then dropped, since on its own it would
// violate well-formedness.
func ExtractCarryover(history []models.Message, k int) []models.Message {
	if k <= 0 || len(history) == 0 {
		return nil
	}

	boundaries := 0
	start := 0
	found := false
	for i := len(history) - 1; i >= 0; i-- {
		if isTurnBoundary(history[i]) {
			boundaries++
			if boundaries == k {
				start = i
				found = true
				break
			}
		}
	}

	if !found {
		fallback := k * 3
		start = len(history) - fallback
		if start < 0 {
			start = 0
		}
	}

	slice := history[start:]
	return dropOrphanLeadingToolMessages(slice)
}

func isTurnBoundary(msg models.Message) bool {
	return msg.Role == models.RoleAssistant && len(msg.ToolCalls) == 0
}

// dropOrphanLeadingToolMessages removes tool-role messages from the front of
// slice until it starts with a non-tool message (or becomes empty), since a
// leading tool-role message's correlating assistant call was cut off by the
// boundary scan.
func dropOrphanLeadingToolMessages(slice []models.Message) []models.Message {
	i := 0
	for i < len(slice) && slice[i].Role == models.RoleTool {
		i++
	}
	return slice[i:]
}
