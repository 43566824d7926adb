package session

import "github.com/binarymuse/ouroboros/internal/llm"

// CoreToolSchemas is the fixed set of tool schemas advertised to the model,
// matching the dispatch table in internal/toolrouter.
func CoreToolSchemas() []llm.ToolSchema {
	return []llm.ToolSchema{
		{
			Name:        "shell_exec",
			Description: "Run a shell command inside the sandboxed workspace, subject to the command blocklist and a configured timeout.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "The shell command to run via sh -c."},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "file_read",
			Description: "Read a file's contents. Reads are unrestricted and may target any path.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "file_write",
			Description: "Write content to a file. Writes are confined to the workspace; paths that resolve outside it are rejected.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        "spawn_llm_session",
			Description: "Spawn a child LLM session with its own goal and conversation, optionally scoped to a subset of tools.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"goal":         map[string]any{"type": "string"},
					"model":        map[string]any{"type": "string"},
					"context":      map[string]any{"type": "object"},
					"tools":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"timeout_secs": map[string]any{"type": "integer"},
				},
				"required": []string{"goal"},
			},
		},
		{
			Name:        "spawn_background_task",
			Description: "Spawn a long-running shell process in the background, returning an id usable with agent_status, write_stdin, and kill_agent.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command":      map[string]any{"type": "string"},
					"timeout_secs": map[string]any{"type": "integer"},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "agent_status",
			Description: "Query the status of one sub-agent by id, or list every registered sub-agent when id is omitted.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"id": map[string]any{"type": "string"}},
			},
		},
		{
			Name:        "agent_result",
			Description: "Fetch the final structured result of a completed or failed sub-agent.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"id": map[string]any{"type": "string"}},
				"required":   []string{"id"},
			},
		},
		{
			Name:        "kill_agent",
			Description: "Cancel a sub-agent and every descendant in its subtree.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"id": map[string]any{"type": "string"}},
				"required":   []string{"id"},
			},
		},
		{
			Name:        "write_stdin",
			Description: "Write bytes to a background process's stdin.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":   map[string]any{"type": "string"},
					"data": map[string]any{"type": "string"},
				},
				"required": []string{"id", "data"},
			},
		},
	}
}

// FilterToolSchemas restricts schemas to the names in allowed. A nil or
// empty allowed list means no filtering (every tool is available), matching
// spawn_llm_session's optional tool-name filter.
func FilterToolSchemas(schemas []llm.ToolSchema, allowed []string) []llm.ToolSchema {
	if len(allowed) == 0 {
		return schemas
	}
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	out := make([]llm.ToolSchema, 0, len(schemas))
	for _, s := range schemas {
		if set[s.Name] {
			out = append(out, s)
		}
	}
	return out
}
