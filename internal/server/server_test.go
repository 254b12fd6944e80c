package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// scriptedService answers the i-th request with replies[i] (the last one is
// repeated). In streaming mode the reply content is sent one word at a time.
type scriptedService struct {
	mu       sync.Mutex
	requests []runner.ChatRequest
	replies  []message.Message
	err      error
}

func (s *scriptedService) next(req runner.ChatRequest) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return message.Message{}, s.err
	}
	i := min(len(s.requests)-1, len(s.replies)-1)
	return s.replies[i], nil
}

func (s *scriptedService) Completion(_ context.Context, req runner.ChatRequest) (message.Message, error) {
	return s.next(req)
}

func (s *scriptedService) CompletionStream(_ context.Context, req runner.ChatRequest, onUpdate func(message.Message) error) error {
	m, err := s.next(req)
	if err != nil {
		return err
	}
	id := message.NewID()
	words := strings.SplitAfter(m.Content, " ")
	for i, w := range words {
		d := message.Message{ID: id, Role: message.RoleAssistant, Content: w}
		if i == len(words)-1 {
			d.ToolCalls = m.ToolCalls
			d.FinishReason = m.FinishReason
		}
		if err := onUpdate(d); err != nil {
			return err
		}
	}
	return nil
}

func text(s string) message.Message {
	m := message.NewAssistant(s)
	m.FinishReason = message.FinishStop
	return m
}

func callTo(name string) message.Message {
	m := message.NewAssistant("")
	m.FinishReason = message.FinishToolCalls
	m.ToolCalls = []message.ToolCall{{ID: "call-1", Type: "function", Function: message.FunctionCall{Name: name, Arguments: "{}"}}}
	return m
}

func newTestServer(t *testing.T, svc runner.ChatService) *httptest.Server {
	t.Helper()
	s := &Server{
		Runner: runner.New(svc),
		Tools:  []runner.Tool{{Name: "echo", Description: "echoes"}},
		ToolHandler: func(_ context.Context, call message.ToolCall) (runner.ToolResult, error) {
			return runner.ToolResult{
				Messages:       []message.Message{message.NewTool(call.ID, call.Function.Name, "echoed")},
				ShouldContinue: true,
			}, nil
		},
		Model:        "test-model",
		RunLoopLimit: 4,
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &scriptedService{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestCreateRun_Batch(t *testing.T) {
	svc := &scriptedService{replies: []message.Message{callTo("echo"), text("all done")}}
	ts := newTestServer(t, svc)

	resp := post(t, ts, `{"messages":[{"role":"user","content":"hi"}],"tool_choice":"echo"}`)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RunID == "" || out.Truncated || out.Iterations != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("want 3 messages, got %d", len(out.Messages))
	}
	if out.Messages[1].Role != message.RoleTool || out.Messages[1].Content != "echoed" {
		t.Fatalf("tool message: %+v", out.Messages[1])
	}
	if out.Messages[2].Content != "all done" {
		t.Fatalf("final message: %+v", out.Messages[2])
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.requests[0].Model != "test-model" {
		t.Fatalf("default model not applied: %q", svc.requests[0].Model)
	}
	if svc.requests[0].ToolChoice == nil || svc.requests[0].ToolChoice.Name != "echo" {
		t.Fatal("tool choice not forwarded")
	}
	if svc.requests[1].ToolChoice != nil {
		t.Fatal("tool choice must only apply to the first request")
	}
}

func TestCreateRun_Truncated(t *testing.T) {
	ts := newTestServer(t, &scriptedService{replies: []message.Message{callTo("echo")}})

	resp := post(t, ts, `{"messages":[{"role":"user","content":"loop"}],"run_loop_limit":2}`)
	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Truncated || out.Iterations != 2 {
		t.Fatalf("want truncated after 2 iterations, got %+v", out)
	}
}

func TestCreateRun_BadRequests(t *testing.T) {
	ts := newTestServer(t, &scriptedService{replies: []message.Message{text("x")}})

	cases := map[string]string{
		"invalid json":   `{"messages":`,
		"no messages":    `{"messages":[]}`,
		"missing role":   `{"messages":[{"content":"hi"}]}`,
		"unknown choice": `{"messages":[{"role":"user","content":"hi"}],"tool_choice":"nope"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := post(t, ts, body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("want 400, got %d", resp.StatusCode)
			}
			var e map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e["error"] == "" {
				t.Fatalf("want error body, got %v, %v", e, err)
			}
		})
	}
}

func TestCreateRun_BackendError(t *testing.T) {
	ts := newTestServer(t, &scriptedService{err: errors.New("upstream down")})

	resp := post(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("want 502, got %d", resp.StatusCode)
	}
	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out.Error, "upstream down") || out.RunID == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func readLines(t *testing.T, r io.Reader) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var v map[string]any
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		lines = append(lines, v)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

func TestCreateRun_Stream(t *testing.T) {
	ts := newTestServer(t, &scriptedService{replies: []message.Message{text("one two three")}})

	resp := post(t, ts, `{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type %q", ct)
	}
	lines := readLines(t, resp.Body)
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d: %v", len(lines), lines)
	}
	want := []string{"one ", "one two ", "one two three"}
	for i, l := range lines {
		if l["content"] != want[i] {
			t.Fatalf("line %d: want %q, got %v", i, want[i], l["content"])
		}
		if l["id"] != lines[0]["id"] {
			t.Fatal("deltas of one response must share an id")
		}
	}
	if lines[2]["finish_reason"] != string(message.FinishStop) {
		t.Fatalf("finish reason: %v", lines[2]["finish_reason"])
	}
}

func TestCreateRun_StreamError(t *testing.T) {
	ts := newTestServer(t, &scriptedService{err: errors.New("upstream down")})

	resp := post(t, ts, `{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
	lines := readLines(t, resp.Body)
	if len(lines) != 1 {
		t.Fatalf("want one error line, got %v", lines)
	}
	if msg, _ := lines[0]["error"].(string); !strings.Contains(msg, "upstream down") {
		t.Fatalf("unexpected error line: %v", lines[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &scriptedService{replies: []message.Message{text("ok")}})
	post(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "chatloop_runs_total") {
		t.Fatalf("metrics output missing run counter:\n%s", b)
	}
}
