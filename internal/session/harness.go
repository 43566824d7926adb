package session

import (
	"context"
	"fmt"
	"time"

	"github.com/binarymuse/ouroboros/internal/config"
	"github.com/binarymuse/ouroboros/internal/contextmgr"
	"github.com/binarymuse/ouroboros/internal/events"
	"github.com/binarymuse/ouroboros/internal/jsonllog"
	"github.com/binarymuse/ouroboros/internal/llm"
	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/observability"
	"github.com/binarymuse/ouroboros/internal/safety"
	"github.com/binarymuse/ouroboros/internal/supervisor"
	"github.com/binarymuse/ouroboros/internal/toolrouter"
)

// Harness wires the shared services one process holds exactly once: the
// inference provider, the Safety Layer, the Sub-Agent Supervisor, and the
// log directory every session (root or child) writes under. Its
// RunChildSession method is assigned to supervisor.Manager.RunChildSession
// at startup, closing the import-cycle gap between the two packages.
type Harness struct {
	Config     *config.Config
	Provider   llm.Provider
	Safety     *safety.Layer
	Supervisor *supervisor.Manager
	LogDir     string

	// ExternalSink receives every event in addition to the per-session
	// jsonllog file, e.g. for a live dashboard. Optional.
	ExternalSink models.EventSink

	// Metrics is optional; when set, every sub-agent's Driver records
	// against it the same as the root session's.
	Metrics *observability.Metrics
}

// RunChildSession implements supervisor.Manager.RunChildSession: it builds a
// self-contained system prompt from the spawn arguments, runs a full
// Session Driver against the shared Safety Layer and Supervisor (so a child
// can itself spawn grandchildren), and returns a short textual summary of
// the outcome.
func (h *Harness) RunChildSession(ctx context.Context, id, goal, modelOverride string, contextVars map[string]string, toolFilter []string) (string, error) {
	model := modelOverride
	if model == "" {
		model = h.Config.Model.Name
	}

	router := toolrouter.New(h.Safety, h.Supervisor)
	router.SessionID = id

	logPath := jsonllog.SubAgentLogPath(h.LogDir, id, time.Now())
	writer, err := jsonllog.Open(logPath, nil)
	if err != nil {
		return "", fmt.Errorf("open sub-agent log: %w", err)
	}
	defer writer.Close()

	sink := models.NewMultiSink(writer, h.ExternalSink)

	shutdown := NewShutdownFlag()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			shutdown.Set()
		case <-done:
		}
	}()

	driver := &Driver{
		SessionNumber:  1,
		MaxTurns:       h.Config.Session.MaxTurns,
		Provider:       h.Provider,
		Model:          model,
		Tools:          FilterToolSchemas(CoreToolSchemas(), toolFilter),
		Router:         router,
		Context:        contextmgr.NewManager(h.Config.Context.Window, h.Config.Context.SoftThreshold, h.Config.Context.HardThreshold, h.Config.Context.MaskBatch),
		CarryoverTurns: h.Config.Context.CarryoverTurns,
		Emitter:        events.New(sink),
		Log:            writer,
		Shutdown:       shutdown,
		Metrics:        h.Metrics,
	}

	systemPrompt := BuildSubAgentSystemPrompt(goal, contextVars, toolFilter)
	result, err := driver.Run(ctx, systemPrompt, nil)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s after %d turn(s): %s", result.Kind, result.Turns, result.Reason), nil
}
