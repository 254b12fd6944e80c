package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/petasbytes/chatloop/internal/metrics"
	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/message"
)

// DefaultRunLoopLimit bounds the backend requests of a run when
// Request.RunLoopLimit is not set.
const DefaultRunLoopLimit = 10

var (
	// ErrNoService is returned when a Runner has no ChatService.
	ErrNoService = errors.New("runner: no chat service")
	// ErrEmptyStream is returned when a streaming backend finished without a delta.
	ErrEmptyStream = errors.New("runner: stream produced no message")

	errConsumerStopped = errors.New("runner: stream consumer stopped")
)

// Request configures one run. It is not modified by the Runner.
type Request struct {
	Model    string
	Messages []message.Message
	Tools    []Tool
	// ToolChoice is sent with the first backend request only.
	ToolChoice *Tool
	// ToolHandler executes tool calls. Without one the run stops after the
	// first backend response.
	ToolHandler ToolHandler
	// RunLoopLimit caps backend requests; <= 0 means DefaultRunLoopLimit.
	RunLoopLimit int
}

// Runner executes runs against a ChatService. It is safe for concurrent use.
type Runner struct {
	Service ChatService
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// MaxParallelTools caps concurrent tool calls per message; 0 means no cap.
	MaxParallelTools int
}

// New returns a Runner backed by svc.
func New(svc ChatService) *Runner {
	return &Runner{Service: svc}
}

// Run executes a run in batch mode and returns every message it produced.
// Backend failures abort the run; the partial Response is returned with the error.
func (r *Runner) Run(ctx context.Context, req Request) (*Response, error) {
	return r.run(ctx, req, nil)
}

// Stream executes a run in streaming mode. It yields the accumulated assistant
// message after every backend delta and each tool result as it is appended.
// A failure is yielded once as the final element. Breaking out of the loop
// cancels the run.
func (r *Runner) Stream(ctx context.Context, req Request) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		emit := func(m message.Message) error {
			if stopped {
				return errConsumerStopped
			}
			if !yield(m, nil) {
				stopped = true
				cancel()
				return errConsumerStopped
			}
			return nil
		}
		if _, err := r.run(ctx, req, emit); err != nil && !stopped {
			yield(message.Message{}, err)
		}
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// run is shared by both modes; emit is nil in batch mode.
func (r *Runner) run(ctx context.Context, req Request, emit func(message.Message) error) (resp *Response, err error) {
	if r.Service == nil {
		return nil, ErrNoService
	}
	limit := req.RunLoopLimit
	if limit <= 0 {
		limit = DefaultRunLoopLimit
	}

	runID := uuid.NewString()
	ctx = telemetry.WithRunID(ctx, runID)
	log := r.logger().With("run_id", runID)
	resp = &Response{RunID: runID}
	history := slices.Clone(req.Messages)

	start := time.Now()
	telemetry.Emit("run_started", map[string]any{
		"run_id":    runID,
		"model":     req.Model,
		"stream":    emit != nil,
		"history":   len(history),
		"tools":     len(req.Tools),
		"loop_cap":  limit,
		"forced":    req.ToolChoice != nil,
		"has_tools": req.ToolHandler != nil,
	})
	defer func() { r.finish(log, resp, err, start) }()

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		creq := ChatRequest{
			Model:    req.Model,
			Messages: message.Sendable(history),
		}
		// Tools are withheld in calibration mode so runs measure plain completions.
		if !telemetry.CalibrationModeEnabled() {
			creq.Tools = req.Tools
		}
		// Forcing a tool after the first round could loop forever.
		if i == 0 {
			creq.ToolChoice = req.ToolChoice
		}

		log.Debug("backend request", "iteration", i, "messages", len(creq.Messages))
		resp.Iterations++
		msg, err := r.complete(ctx, creq, runID, emit)
		if err != nil {
			return resp, fmt.Errorf("runner: iteration %d: %w", i, err)
		}
		history = message.Upsert(history, msg)
		resp.Messages = message.Upsert(resp.Messages, msg)

		if req.ToolHandler == nil {
			break
		}

		if n := len(msg.ToolCalls); n > 0 {
			log.Debug("tool fan-out", "iteration", i, "calls", n)
		}
		result := CallTools(ctx, msg, req.ToolHandler, r.MaxParallelTools)
		for _, m := range result.Messages {
			if detail, ok := m.Metadata[message.MetaError]; ok {
				log.Warn("tool call failed", "tool", m.Name, "tool_call_id", m.ToolCallID, "err", detail)
			}
			history = message.Upsert(history, m)
			resp.Messages = message.Upsert(resp.Messages, m)
			if emit != nil {
				if err := emit(m); err != nil {
					return resp, err
				}
			}
		}

		if !result.ShouldContinue {
			break
		}
		if i+1 >= limit {
			resp.Truncated = true
		}
	}
	return resp, nil
}

// complete performs one backend round. In streaming mode deltas are merged
// into one message and the running result is emitted after each.
func (r *Runner) complete(ctx context.Context, req ChatRequest, runID string, emit func(message.Message) error) (message.Message, error) {
	if emit == nil {
		msg, err := r.Service.Completion(ctx, req)
		if err != nil {
			return message.Message{}, err
		}
		msg.RunID = runID
		return ensureIdentity(msg, message.RoleAssistant), nil
	}

	var acc message.Message
	started := false
	err := r.Service.CompletionStream(ctx, req, func(delta message.Message) error {
		delta.RunID = runID
		if started {
			acc = acc.Apply(delta)
		} else {
			acc, started = ensureIdentity(delta, message.RoleAssistant), true
		}
		return emit(acc)
	})
	if err != nil {
		return acc, err
	}
	if !started {
		return acc, ErrEmptyStream
	}
	return acc, nil
}

// ensureIdentity gives a message an ID, a role and timestamps when it lacks them.
func ensureIdentity(m message.Message, role message.Role) message.Message {
	if m.ID == "" {
		m.ID = message.NewID()
	}
	if m.Role == "" {
		m.Role = role
	}
	if m.Created.IsZero() {
		m.Created = time.Now()
	}
	if m.Modified.IsZero() {
		m.Modified = m.Created
	}
	return m
}

func (r *Runner) finish(log *slog.Logger, resp *Response, err error, start time.Time) {
	if resp == nil {
		return
	}
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, errConsumerStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeCancelled
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.ObserveRun(outcome, resp.Iterations, resp.Truncated)

	fields := map[string]any{
		"run_id":      resp.RunID,
		"outcome":     outcome,
		"iterations":  resp.Iterations,
		"messages":    len(resp.Messages),
		"truncated":   resp.Truncated,
		"duration_ms": time.Since(start).Milliseconds(),
		"error":       nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	telemetry.Emit("run_finished", fields)

	switch {
	case outcome == metrics.OutcomeError:
		log.Error("run failed", "iterations", resp.Iterations, "err", err)
	case resp.Truncated:
		log.Warn("run stopped at loop limit", "iterations", resp.Iterations)
	default:
		log.Info("run finished", "outcome", outcome, "iterations", resp.Iterations, "messages", len(resp.Messages))
	}
}
