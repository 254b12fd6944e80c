package windowing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// ErrNewestOverBudget is returned when the newest group alone cannot be sent
// within the budget. Tool output caps should prevent this, so it points at a
// budget that is too low.
var ErrNewestOverBudget = errors.New("windowing: newest group exceeds token budget; increase budget with headroom or tighten tool caps")

// Service is a runner.ChatService that sends each request through a
// pair-safe budgeted window before handing it to Next.
type Service struct {
	Next runner.ChatService
	// Budget is the estimated input-token budget. Zero or less disables windowing.
	Budget  int
	Counter TokenCounter
	Logger  *slog.Logger
}

// NewService wraps next with the heuristic counter.
func NewService(next runner.ChatService, budget int) *Service {
	return &Service{Next: next, Budget: budget, Counter: HeuristicCounter{}}
}

// Completion windows req and forwards it to Next.
func (s *Service) Completion(ctx context.Context, req runner.ChatRequest) (message.Message, error) {
	req, err := s.window(ctx, req)
	if err != nil {
		return message.Message{}, err
	}
	return s.Next.Completion(ctx, req)
}

// CompletionStream windows req and streams it from Next.
func (s *Service) CompletionStream(ctx context.Context, req runner.ChatRequest, onUpdate func(message.Message) error) error {
	req, err := s.window(ctx, req)
	if err != nil {
		return err
	}
	return s.Next.CompletionStream(ctx, req, onUpdate)
}

func (s *Service) window(ctx context.Context, req runner.ChatRequest) (runner.ChatRequest, error) {
	if s.Budget <= 0 {
		return req, nil
	}
	counter := s.Counter
	if counter == nil {
		counter = HeuristicCounter{}
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	window, stats := PrepareSendWindow(req.Messages, s.Budget, counter)

	runID, _ := telemetry.RunIDFromContext(ctx)
	telemetry.Emit("window_prepared", map[string]any{
		"run_id":             runID,
		"model":              req.Model,
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"pinned":             stats.Pinned,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"over_budget_newest": stats.OverBudgetNewest,
	})
	logger.Debug("window prepared",
		"run_id", runID,
		"budget", stats.Budget,
		"est_total", stats.Total,
		"groups_in", stats.IncludedGroups,
		"groups_skip", stats.SkippedGroups,
		"newest_over", stats.OverBudgetNewest,
	)

	if stats.OverBudgetNewest {
		return req, ErrNewestOverBudget
	}
	req.Messages = window
	return req, nil
}
