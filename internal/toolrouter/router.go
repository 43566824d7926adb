// Package toolrouter dispatches tool calls to their executors and always
// returns a tool-role reply, even on failure, so the conversation history
// stays well-formed.
package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/binarymuse/ouroboros/internal/files"
	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/safety"
	"github.com/binarymuse/ouroboros/internal/supervisor"
)

// Router dispatches the core tool surface. Supervisor and Safety are
// optional: a test harness may construct a Router with Safety only (or
// neither); sub-agent tools return a clear error JSON when Supervisor is
// nil. The root session always supplies both.
type Router struct {
	Safety     *safety.Layer
	Supervisor *supervisor.Manager

	// SessionID identifies the owning session for spawn_llm_session, so
	// spawned sub-agents register under the calling agent's id.
	SessionID string
}

// New builds a Router. Either argument may be nil.
func New(safetyLayer *safety.Layer, sup *supervisor.Manager) *Router {
	return &Router{Safety: safetyLayer, Supervisor: sup}
}

// Dispatch routes call to its executor and returns the tool-role message
// that should be appended to history. Dispatch never panics and never
// returns an error; every failure mode is captured in the result content.
func (r *Router) Dispatch(ctx context.Context, call models.ToolCall) models.ToolResult {
	content, isError := r.dispatch(ctx, call)
	return models.ToolResult{
		ToolCallID: call.ID,
		Content:    content,
		IsError:    isError,
	}
}

func (r *Router) dispatch(ctx context.Context, call models.ToolCall) (string, bool) {
	switch call.Name {
	case "shell_exec":
		return r.shellExec(ctx, call.Arguments)
	case "file_read":
		return r.fileRead(call.Arguments)
	case "file_write":
		return r.fileWrite(call.Arguments)
	case "spawn_llm_session":
		return r.spawnLLMSession(call.Arguments)
	case "spawn_background_task":
		return r.spawnBackgroundTask(call.Arguments)
	case "agent_status":
		return r.agentStatus(call.Arguments)
	case "agent_result":
		return r.agentResult(call.Arguments)
	case "kill_agent":
		return r.killAgent(call.Arguments)
	case "write_stdin":
		return r.writeStdin(call.Arguments)
	default:
		return errorJSON(fmt.Sprintf("unknown tool %q", call.Name)), true
	}
}

func errorJSON(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"` + msg + `"}`
	}
	return string(b)
}

func unavailableJSON(handle, tool string) string {
	return errorJSON(fmt.Sprintf("%s unavailable: no %s configured for this session", tool, handle))
}

type shellExecArgs struct {
	Command string `json:"command"`
}

func (r *Router) shellExec(ctx context.Context, raw json.RawMessage) (string, bool) {
	if r.Safety == nil {
		return unavailableJSON("safety layer", "shell_exec"), true
	}
	var args shellExecArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}

	result, err := r.Safety.Exec(ctx, args.Command)
	if err != nil {
		return errorJSON(err.Error()), true
	}

	b, err := json.Marshal(result)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	return string(b), result.Blocked || (result.ExitCode != nil && *result.ExitCode != 0)
}

type fileReadArgs struct {
	Path string `json:"path"`
}

func (r *Router) fileRead(raw json.RawMessage) (string, bool) {
	var args fileReadArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}
	content, err := files.Read(args.Path)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	return content, false
}

type fileWriteArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (r *Router) fileWrite(raw json.RawMessage) (string, bool) {
	if r.Safety == nil {
		return unavailableJSON("safety layer", "file_write"), true
	}
	var args fileWriteArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}

	result, err := files.Write(r.Safety, args.Path, args.Content)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	b, err := json.Marshal(result)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	return string(b), false
}

type spawnLLMSessionArgs struct {
	Goal        string            `json:"goal"`
	Model       string            `json:"model,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	Tools       []string          `json:"tools,omitempty"`
	TimeoutSecs int               `json:"timeout_secs,omitempty"`
}

func (r *Router) spawnLLMSession(raw json.RawMessage) (string, bool) {
	if r.Supervisor == nil {
		return unavailableJSON("sub-agent supervisor", "spawn_llm_session"), true
	}
	var args spawnLLMSessionArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}
	if args.Goal == "" {
		return errorJSON("goal is required"), true
	}

	var timeout time.Duration
	if args.TimeoutSecs > 0 {
		timeout = time.Duration(args.TimeoutSecs) * time.Second
	}

	id, err := r.Supervisor.SpawnLLMSubAgent(r.SessionID, args.Goal, args.Model, args.Context, args.Tools, timeout)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	b, _ := json.Marshal(map[string]string{"id": id})
	return string(b), false
}

type spawnBackgroundTaskArgs struct {
	Command     string `json:"command"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
}

func (r *Router) spawnBackgroundTask(raw json.RawMessage) (string, bool) {
	if r.Supervisor == nil {
		return unavailableJSON("sub-agent supervisor", "spawn_background_task"), true
	}
	if r.Safety == nil {
		return unavailableJSON("safety layer", "spawn_background_task"), true
	}
	var args spawnBackgroundTaskArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}
	if args.Command == "" {
		return errorJSON("command is required"), true
	}

	var timeout time.Duration
	if args.TimeoutSecs > 0 {
		timeout = time.Duration(args.TimeoutSecs) * time.Second
	}

	id, err := r.Supervisor.SpawnBackgroundProcess(r.Safety.WorkspaceRoot(), args.Command, r.SessionID, timeout)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	b, _ := json.Marshal(map[string]string{"id": id})
	return string(b), false
}

type agentStatusArgs struct {
	ID string `json:"id,omitempty"`
}

func (r *Router) agentStatus(raw json.RawMessage) (string, bool) {
	if r.Supervisor == nil {
		return unavailableJSON("sub-agent supervisor", "agent_status"), true
	}
	var args agentStatusArgs
	_ = json.Unmarshal(raw, &args)

	if args.ID == "" {
		all := r.Supervisor.ListAll()
		b, err := json.Marshal(all)
		if err != nil {
			return errorJSON(err.Error()), true
		}
		return string(b), false
	}

	status, ok := r.Supervisor.GetStatus(args.ID)
	if !ok {
		return errorJSON(fmt.Sprintf("unknown agent id %q", args.ID)), true
	}
	b, _ := json.Marshal(map[string]string{"id": args.ID, "status": string(status)})
	return string(b), false
}

type agentResultArgs struct {
	ID string `json:"id"`
}

func (r *Router) agentResult(raw json.RawMessage) (string, bool) {
	if r.Supervisor == nil {
		return unavailableJSON("sub-agent supervisor", "agent_result"), true
	}
	var args agentResultArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}

	result, ok := r.Supervisor.GetResult(args.ID)
	if !ok {
		return errorJSON(fmt.Sprintf("no result available for agent id %q", args.ID)), true
	}
	return result, false
}

type killAgentArgs struct {
	ID string `json:"id"`
}

func (r *Router) killAgent(raw json.RawMessage) (string, bool) {
	if r.Supervisor == nil {
		return unavailableJSON("sub-agent supervisor", "kill_agent"), true
	}
	var args killAgentArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}

	if !r.Supervisor.Cancel(args.ID) {
		return errorJSON(fmt.Sprintf("unknown agent id %q", args.ID)), true
	}
	b, _ := json.Marshal(map[string]bool{"cancelled": true})
	return string(b), false
}

type writeStdinArgs struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (r *Router) writeStdin(raw json.RawMessage) (string, bool) {
	if r.Supervisor == nil {
		return unavailableJSON("sub-agent supervisor", "write_stdin"), true
	}
	var args writeStdinArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), true
	}

	n, err := r.Supervisor.WriteToStdin(args.ID, []byte(args.Data))
	if err != nil {
		return errorJSON(err.Error()), true
	}
	b, _ := json.Marshal(map[string]int{"bytes_written": n})
	return string(b), false
}
