// Package contextmgr converts raw token accounting into one of four
// graduated actions — Continue, Mask, WindDown, Restart — and implements the
// masking and carryover-extraction operations those actions trigger.
package contextmgr

import (
	"strconv"
	"strings"

	"github.com/binarymuse/ouroboros/internal/models"
)

// Action is the graduated response to a context-pressure evaluation.
type Action int

const (
	ActionContinue Action = iota
	ActionMask
	ActionWindDown
	ActionRestart
)

// Decision is the result of one Evaluate call: an action plus, for
// ActionMask, how many additional observations to mask.
type Decision struct {
	Action    Action
	MaskCount int
}

// Manager holds one session's context-pressure state: configured thresholds,
// the latest reported token usage, and masking progress. A fresh Manager is
// created per Session Driver instance (including sub-agents) and is never
// shared across sessions.
type Manager struct {
	Window        int
	SoftThreshold float64
	HardThreshold float64
	MaskBatch     int

	// PromptTokens is set (never added) to the most recently reported
	// prompt_tokens value, since the endpoint reports the total input size
	// of the request just made, not an incremental delta.
	PromptTokens int

	// CompletionTokens accumulates for auxiliary metrics only; it never
	// feeds the threshold ratio.
	CompletionTokens int

	// CharFallbackCount holds the total_chars/4 estimate used when a
	// provider response carries no usage block.
	CharFallbackCount int

	MaskedCount  int
	WindDownSent bool
}

// NewManager builds a Manager from the four configured values.
func NewManager(window int, softThreshold, hardThreshold float64, maskBatch int) *Manager {
	return &Manager{
		Window:        window,
		SoftThreshold: softThreshold,
		HardThreshold: hardThreshold,
		MaskBatch:     maskBatch,
	}
}

// UpdateUsage records the latest usage for this turn. If usage is absent
// (reportedPromptTokens <= 0), the caller should instead call
// UpdateCharFallback.
func (m *Manager) UpdateUsage(reportedPromptTokens, reportedCompletionTokens int) {
	m.PromptTokens = reportedPromptTokens
	m.CompletionTokens += reportedCompletionTokens
}

// UpdateCharFallback records the character-length heuristic for a turn whose
// provider response carried no usage block. totalChars is the serialized
// length of the full conversation history.
func (m *Manager) UpdateCharFallback(totalChars int) {
	estimate := totalChars / 4
	m.CharFallbackCount = estimate
	m.PromptTokens = estimate
}

// Utilization returns P/W, the ratio threshold logic is evaluated against.
func (m *Manager) Utilization() float64 {
	if m.Window <= 0 {
		return 0
	}
	return float64(m.PromptTokens) / float64(m.Window)
}

// Evaluate applies the threshold logic against the current token state and
// the conversation history, returning the action the Session Driver should
// take. history is used only to detect the "all tool-role messages already
// masked" edge case that escalates Mask to WindDown.
func (m *Manager) Evaluate(history []models.Message) Decision {
	r := m.Utilization()

	switch {
	case r < m.SoftThreshold:
		return Decision{Action: ActionContinue}

	case r < m.HardThreshold:
		if allToolMessagesMasked(history) {
			return Decision{Action: ActionWindDown}
		}
		return Decision{Action: ActionMask, MaskCount: m.MaskBatch}

	default:
		if m.WindDownSent {
			return Decision{Action: ActionRestart}
		}
		m.WindDownSent = true
		return Decision{Action: ActionWindDown}
	}
}

func allToolMessagesMasked(history []models.Message) bool {
	any := false
	for _, msg := range history {
		if msg.Role != models.RoleTool {
			continue
		}
		any = true
		if !isMasked(msg) {
			return false
		}
	}
	return any
}

// isMasked detects the "already masked" condition structurally: either the
// ToolResult carries the in-memory Masked flag, or its content contains the
// marker substring "masked" (covering results round-tripped through a log
// and reloaded without the flag).
func isMasked(msg models.Message) bool {
	if msg.ToolResult == nil {
		return false
	}
	if msg.ToolResult.Masked {
		return true
	}
	return strings.Contains(strings.ToLower(msg.ToolResult.Content), "masked")
}

// WindDownMessage is the static user-role text injected when the Manager
// returns ActionWindDown.
func WindDownMessage(utilizationPct int) string {
	return "Context window ~" + strconv.Itoa(utilizationPct) + "% full; please save important state to workspace files; session will restart shortly."
}
