package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/petasbytes/chatloop/internal/config"
	"github.com/petasbytes/chatloop/internal/provider"
	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/internal/windowing"
	"github.com/petasbytes/chatloop/memory"
	"github.com/petasbytes/chatloop/runner"
	"github.com/petasbytes/chatloop/tools"
)

var apiKeyEnv = map[string]string{
	provider.NameAnthropic: "ANTHROPIC_API_KEY",
	provider.NameOpenAI:    "OPENAI_API_KEY",
}

// app holds everything a command needs to run conversations.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	runner  *runner.Runner
	defs    []tools.ToolDefinition
	store   memory.Store
	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	env := apiKeyEnv[cfg.Provider]
	key := os.Getenv(env)
	if key == "" {
		return nil, fmt.Errorf("missing %s; export it before running", env)
	}
	svc, err := provider.New(cfg.Provider, provider.Options{
		APIKey:  key,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	return assemble(ctx, cfg, log, svc)
}

// assemble wires storage, telemetry and the runner around svc.
func assemble(ctx context.Context, cfg config.Config, log *slog.Logger, svc runner.ChatService) (*app, error) {
	a := &app{cfg: cfg, log: log, defs: tools.Registry()}

	if cfg.TokenBudget > 0 {
		w := windowing.NewService(svc, cfg.TokenBudget)
		w.Logger = log
		svc = w
	}
	a.runner = &runner.Runner{Service: svc, Logger: log, MaxParallelTools: cfg.MaxParallelTools}

	if cfg.RedisURL != "" {
		rs, err := memory.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.store = rs
		a.closers = append(a.closers, func() { _ = rs.Close() })
	} else {
		a.store = memory.NewFileStore(cfg.ConversationPath)
	}

	if cfg.NATSURL != "" {
		closeNATS, err := telemetry.ConnectNATS(cfg.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closeNATS)
	}
	return a, nil
}

// request is the run template shared by every turn.
func (a *app) request() runner.Request {
	return runner.Request{
		Model:        a.cfg.Model,
		Tools:        tools.Specs(a.defs),
		ToolHandler:  tools.Handler(a.defs),
		RunLoopLimit: a.cfg.RunLoopLimit,
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
