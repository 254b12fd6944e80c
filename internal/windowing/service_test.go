package windowing_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/internal/windowing"
	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

type recordingService struct {
	got []runner.ChatRequest
}

func (r *recordingService) Completion(ctx context.Context, req runner.ChatRequest) (message.Message, error) {
	r.got = append(r.got, req)
	return message.NewAssistant("ok"), nil
}

func (r *recordingService) CompletionStream(ctx context.Context, req runner.ChatRequest, onUpdate func(message.Message) error) error {
	r.got = append(r.got, req)
	return onUpdate(message.NewAssistant("ok"))
}

func history() []message.Message {
	return []message.Message{Sys("sys"), User("old"), User("new")} // 7 each
}

func TestService_DisabledPassesThrough(t *testing.T) {
	next := &recordingService{}
	svc := windowing.NewService(next, 0)

	if _, err := svc.Completion(context.Background(), runner.ChatRequest{Messages: history()}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(next.got) != 1 || len(next.got[0].Messages) != 3 {
		t.Fatalf("request should be untouched: %+v", next.got)
	}
}

func TestService_TrimsBothModes(t *testing.T) {
	next := &recordingService{}
	svc := windowing.NewService(next, 14)
	req := runner.ChatRequest{Model: "m", Messages: history()}

	if _, err := svc.Completion(context.Background(), req); err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if err := svc.CompletionStream(context.Background(), req, func(message.Message) error { return nil }); err != nil {
		t.Fatalf("CompletionStream: %v", err)
	}
	for i, got := range next.got {
		if len(got.Messages) != 2 || got.Messages[0].Content != "sys" || got.Messages[1].Content != "new" {
			t.Fatalf("request %d not windowed: %+v", i, got.Messages)
		}
		if got.Model != "m" {
			t.Fatalf("request %d lost its model", i)
		}
	}
	if len(req.Messages) != 3 {
		t.Fatal("caller's request was modified")
	}
}

func TestService_NewestOverBudgetFailsFast(t *testing.T) {
	next := &recordingService{}
	svc := windowing.NewService(next, 5)

	_, err := svc.Completion(context.Background(), runner.ChatRequest{Messages: history()})
	if !errors.Is(err, windowing.ErrNewestOverBudget) {
		t.Fatalf("want ErrNewestOverBudget, got %v", err)
	}
	err = svc.CompletionStream(context.Background(), runner.ChatRequest{Messages: history()}, func(message.Message) error { return nil })
	if !errors.Is(err, windowing.ErrNewestOverBudget) {
		t.Fatalf("want ErrNewestOverBudget, got %v", err)
	}
	if len(next.got) != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestService_EmitsWindowPrepared(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_ARTIFACTS_DIR", base)

	svc := windowing.NewService(&recordingService{}, 14)
	ctx := telemetry.WithRunID(context.Background(), "run-7")
	if _, err := svc.Completion(ctx, runner.ChatRequest{Model: "m", Messages: history()}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "events.jsonl"))
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &ev); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := map[string]any{
		"event":              "window_prepared",
		"run_id":             "run-7",
		"model":              "m",
		"budget":             float64(14),
		"total_estimated":    float64(14),
		"pinned":             float64(1),
		"included_groups":    float64(1),
		"skipped_groups":     float64(1),
		"over_budget_newest": false,
	}
	for k, v := range want {
		if ev[k] != v {
			t.Errorf("%s: got %v want %v", k, ev[k], v)
		}
	}
}
