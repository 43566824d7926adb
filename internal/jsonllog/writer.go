// Package jsonllog writes the append-only, line-delimited JSON session event
// log consumed by external dashboards and audit tooling. One Writer owns one
// file: the root session logs to "<workspace-parent>/.ouro-logs/session-<ts>.jsonl",
// and each sub-agent logs to its own "sub-<id>/session-<ts>.jsonl" file
// alongside it.
package jsonllog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/observability"
)

// Writer appends one JSON object per line to a single log file. It is safe
// for concurrent use; writes are serialized under a mutex and each line is
// flushed with its own Write call so a crash never leaves a torn line mid
// file.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	redacts []*regexp.Regexp
}

// SessionLogPath builds the root session log path: <logDir>/session-<unix>.jsonl.
func SessionLogPath(logDir string, now time.Time) string {
	return filepath.Join(logDir, fmt.Sprintf("session-%d.jsonl", now.Unix()))
}

// SubAgentLogPath builds a sub-agent's session log path:
// <logDir>/sub-<id>/session-<unix>.jsonl.
func SubAgentLogPath(logDir, subAgentID string, now time.Time) string {
	return filepath.Join(logDir, fmt.Sprintf("sub-%s", subAgentID), fmt.Sprintf("session-%d.jsonl", now.Unix()))
}

// Open creates (or appends to) the log file at path, creating parent
// directories as needed. extraRedactPatterns supplements the shared default
// secret-redaction patterns used across the harness's structured logs.
func Open(path string, extraRedactPatterns []string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	redacts := make([]*regexp.Regexp, 0)
	for _, pattern := range append(append([]string{}, observability.DefaultRedactPatterns...), extraRedactPatterns...) {
		if re, compileErr := regexp.Compile(pattern); compileErr == nil {
			redacts = append(redacts, re)
		}
	}

	return &Writer{f: f, redacts: redacts}, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *Writer) redact(s string) string {
	for _, re := range w.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (w *Writer) write(record map[string]any) {
	record["timestamp_secs"] = time.Now().Unix()
	for k, v := range record {
		if s, ok := v.(string); ok {
			record[k] = w.redact(s)
		}
	}

	line, err := json.Marshal(record)
	if err != nil {
		return
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = w.f.Write(line)
}

// SessionStart records the start of a session run.
func (w *Writer) SessionStart(sessionNumber int, workspacePath, model string) {
	w.write(map[string]any{
		"type":           "session_start",
		"session_number": sessionNumber,
		"workspace_path": workspacePath,
		"model":          model,
	})
}

// AssistantText records a completed (non-streamed) chunk of assistant reply
// text.
func (w *Writer) AssistantText(text string) {
	w.write(map[string]any{
		"type": "assistant_text",
		"text": text,
	})
}

// ToolCall records a dispatched tool call.
func (w *Writer) ToolCall(toolCallID, name, arguments string) {
	w.write(map[string]any{
		"type":         "tool_call",
		"tool_call_id": toolCallID,
		"name":         name,
		"arguments":    arguments,
	})
}

// ToolResult records a tool call's terminal outcome.
func (w *Writer) ToolResult(toolCallID, name, content string, isError bool) {
	w.write(map[string]any{
		"type":         "tool_result",
		"tool_call_id": toolCallID,
		"name":         name,
		"content":      content,
		"is_error":     isError,
	})
}

// TokenUsage records the Context Manager's token accounting after an
// evaluation.
func (w *Writer) TokenUsage(promptTokens, completionTokens int, utilization float64) {
	w.write(map[string]any{
		"type":              "token_usage",
		"prompt_tokens":     promptTokens,
		"completion_tokens": completionTokens,
		"utilization":       utilization,
	})
}

// ContextMask records a mask_oldest_observations pass.
func (w *Writer) ContextMask(count int, reclaimedPct float64) {
	w.write(map[string]any{
		"type":          "context_mask",
		"masked_count":  count,
		"reclaimed_pct": reclaimedPct,
	})
}

// SessionRestart records the Outer Loop starting a new session.
func (w *Writer) SessionRestart(sessionNumber, carryoverMessages int, reason string) {
	w.write(map[string]any{
		"type":               "session_restart",
		"session_number":     sessionNumber,
		"carryover_messages": carryoverMessages,
		"reason":             reason,
	})
}

// SessionEnd records a session's terminal result.
func (w *Writer) SessionEnd(kind, reason string, turns int) {
	w.write(map[string]any{
		"type":   "session_end",
		"kind":   kind,
		"reason": reason,
		"turns":  turns,
	})
}

// Error records an error surfaced to the event sink.
func (w *Writer) Error(message string, retriable bool) {
	w.write(map[string]any{
		"type":      "error",
		"message":   message,
		"retriable": retriable,
	})
}

// SystemMessage records a harness-originated informational message, distinct
// from assistant or tool output.
func (w *Writer) SystemMessage(message string) {
	w.write(map[string]any{
		"type":    "system_message",
		"message": message,
	})
}

// SubAgentStatusChanged records a registry entry's status transition.
func (w *Writer) SubAgentStatusChanged(agentID string, kind models.SubAgentKind, from, to models.SubAgentStatus) {
	w.write(map[string]any{
		"type":     "sub_agent_status_changed",
		"agent_id": agentID,
		"kind":     string(kind),
		"from":     string(from),
		"to":       string(to),
	})
}

// Emit implements models.EventSink, translating the AgentEvent types that
// have a direct JSONL line-type counterpart. Event types with no line-type
// counterpart (e.g. StateChanged, Discovery, CountersUpdated) are not
// written; session_start, session_end, and system_message have no
// AgentEvent equivalent and must be called directly.
func (w *Writer) Emit(_ context.Context, e models.AgentEvent) {
	switch e.Type {
	case models.EventThoughtText:
		if e.Thought != nil {
			w.AssistantText(e.Thought.Text)
		}
	case models.EventToolCallStarted:
		if e.ToolStarted != nil {
			w.ToolCall(e.ToolStarted.ToolCallID, e.ToolStarted.Name, e.ToolStarted.Arguments)
		}
	case models.EventToolCallCompleted:
		if e.ToolCompleted != nil {
			w.ToolResult(e.ToolCompleted.ToolCallID, e.ToolCompleted.Name, e.ToolCompleted.Content, e.ToolCompleted.IsError)
		}
	case models.EventContextPressure:
		if e.ContextPress != nil {
			w.TokenUsage(e.ContextPress.UsedTokens, 0, e.ContextPress.Utilization)
		}
	case models.EventSessionRestarted:
		if e.SessionRestart != nil {
			w.SessionRestart(e.SessionRestart.SessionNumber, e.SessionRestart.CarryoverMessages, e.SessionRestart.Reason)
		}
	case models.EventError:
		if e.Error != nil {
			w.Error(e.Error.Message, e.Error.Retriable)
		}
	case models.EventSubAgentStatusChange:
		if e.SubAgentStatus != nil {
			w.SubAgentStatusChanged(e.SubAgentStatus.AgentID, e.SubAgentStatus.Kind, e.SubAgentStatus.From, e.SubAgentStatus.To)
		}
	}
}

var _ models.EventSink = (*Writer)(nil)
