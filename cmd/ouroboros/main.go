// Command ouroboros runs the autonomous LLM agent harness: the Session
// Driver's turn loop wrapped in an Outer Loop that restarts across context
// exhaustion, backed by a sandboxed Safety Layer and a Sub-Agent Supervisor.
//
// Argument parsing here is intentionally minimal (a config path and a
// verbosity override); layered config-file merging and a richer CLI surface
// are external-collaborator concerns this harness doesn't own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/binarymuse/ouroboros/internal/config"
	"github.com/binarymuse/ouroboros/internal/contextmgr"
	"github.com/binarymuse/ouroboros/internal/events"
	"github.com/binarymuse/ouroboros/internal/jsonllog"
	"github.com/binarymuse/ouroboros/internal/llm"
	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/observability"
	"github.com/binarymuse/ouroboros/internal/restart"
	"github.com/binarymuse/ouroboros/internal/safety"
	"github.com/binarymuse/ouroboros/internal/session"
	"github.com/binarymuse/ouroboros/internal/supervisor"
	"github.com/binarymuse/ouroboros/internal/toolrouter"
	"github.com/binarymuse/ouroboros/internal/workspace"
)

func main() {
	configPath := flag.String("config", "ouroboros.yaml", "path to the harness configuration file")
	logLevel := flag.String("log-level", "", "override config.logging.level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ouroboros: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := observability.MustNewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	root, err := workspace.EnsureRoot(cfg.Workspace.Path)
	if err != nil {
		logger.Error(context.Background(), "failed to prepare workspace", "error", err)
		os.Exit(1)
	}

	safetyLayer, err := safety.New(cfg)
	if err != nil {
		logger.Error(context.Background(), "failed to start safety layer", "error", err)
		os.Exit(1)
	}

	if prior, err := restart.ConsumeSentinel(cfg.Session.StateDir); err != nil {
		logger.Error(context.Background(), "failed to read prior restart sentinel", "error", err)
	} else if prior != nil {
		logger.Info(context.Background(), "previous run ended", "summary", restart.Summarize(prior.Payload))
	}

	sup := supervisor.New(supervisor.NewRootHandle(), cfg.SubAgent.MaxDepth, cfg.SubAgent.MaxTotal)

	provider := llm.NewOpenAIProvider(cfg.Model)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		srv := observability.StartMetricsServer(cfg.Metrics.Port)
		defer observability.StopMetricsServer(context.Background(), srv)
		sup.Metrics = metrics
	}

	logDir := cfg.Session.StateDir + "/logs"
	harness := &session.Harness{
		Config:     cfg,
		Provider:   provider,
		Safety:     safetyLayer,
		Supervisor: sup,
		LogDir:     logDir,
		Metrics:    metrics,
	}
	sup.RunChildSession = harness.RunChildSession

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownFlag := session.NewShutdownFlag()
	go func() {
		<-ctx.Done()
		shutdownFlag.Set()
	}()

	var maxRestarts *int
	if cfg.Context.MaxRestarts != nil {
		v := *cfg.Context.MaxRestarts
		maxRestarts = &v
	}

	loop := &session.OuterLoop{
		WorkspaceRoot: root.Path,
		StateDir:      cfg.Session.StateDir,
		AutoRestart:   cfg.Context.AutoRestart,
		MaxRestarts:   maxRestarts,
		NewDriver: func(sessionNumber int) *session.Driver {
			var writer *jsonllog.Writer
			w, err := jsonllog.Open(jsonllog.SessionLogPath(logDir, time.Now()), nil)
			if err != nil {
				logger.Error(context.Background(), "failed to open session log", "error", err)
			} else {
				writer = w
			}

			var sink models.EventSink = models.NopSink{}
			if writer != nil {
				sink = writer
			}

			return &session.Driver{
				SessionNumber: sessionNumber,
				MaxTurns:      cfg.Session.MaxTurns,
				Provider:      provider,
				Model:         cfg.Model.Name,
				Tools:         session.CoreToolSchemas(),
				Router:        toolrouter.New(safetyLayer, sup),
				Context: contextmgr.NewManager(
					cfg.Context.Window, cfg.Context.SoftThreshold, cfg.Context.HardThreshold, cfg.Context.MaskBatch,
				),
				CarryoverTurns: cfg.Context.CarryoverTurns,
				Emitter:        events.New(sink),
				Log:            writer,
				Shutdown:       shutdownFlag,
				Metrics:        metrics,
			}
		},
	}

	result, err := loop.Run(ctx, func() { sup.ShutdownAll(30 * time.Second) })
	if err != nil {
		logger.Error(context.Background(), "outer loop exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info(context.Background(), "outer loop exited", "kind", string(result.Kind), "turns", result.Turns, "reason", result.Reason)
}
