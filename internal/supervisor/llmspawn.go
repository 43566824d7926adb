package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/binarymuse/ouroboros/internal/models"
)

// SpawnLLMSubAgent registers an LlmSession entry and runs a full Session
// Driver against this same supervisor (so grandchildren can be spawned) via
// the injected RunChildSession callback. The callback is supplied by the
// session package at wiring time; supervisor never imports session, which
// would create an import cycle.
//
// It does not read or modify the parent's workspace system prompt: the
// callback is responsible for building a sub-agent-specific system prompt
// from goal, modelOverride, contextVars, and toolFilter.
func (m *Manager) SpawnLLMSubAgent(parentID, goal, modelOverride string, contextVars map[string]string, toolFilter []string, timeout time.Duration) (string, error) {
	if m.RunChildSession == nil {
		return "", fmt.Errorf("spawn_llm_session unavailable: no session runner configured")
	}

	id, handle, err := m.Register(models.KindLlmSession, parentID)
	if err != nil {
		return "", err
	}

	ctx := handle.Context()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	go func() {
		if cancel != nil {
			defer cancel()
		}
		start := time.Now()
		summary, err := m.RunChildSession(ctx, id, goal, modelOverride, contextVars, toolFilter)
		elapsed := time.Since(start)

		if err != nil {
			m.SetResult(id, fmt.Sprintf(`{"id":%q,"status":"failed","summary":%q,"elapsed_secs":%d}`, id, err.Error(), int(elapsed.Seconds())))
			m.UpdateStatus(id, models.StatusFailed)
			return
		}

		m.SetResult(id, fmt.Sprintf(`{"id":%q,"status":"completed","summary":%q,"elapsed_secs":%d}`, id, summary, int(elapsed.Seconds())))
		m.UpdateStatus(id, models.StatusCompleted)
	}()

	return id, nil
}
