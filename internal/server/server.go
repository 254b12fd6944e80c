// Package server exposes the runner over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/petasbytes/chatloop/internal/metrics"
	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// Server serves runs against a shared Runner.
type Server struct {
	Runner      *runner.Runner
	Tools       []runner.Tool
	ToolHandler runner.ToolHandler
	// Model is used when a request does not name one.
	Model string
	// RunLoopLimit is used when a request does not set one.
	RunLoopLimit int
	Logger       *slog.Logger
}

type runRequest struct {
	Model        string            `json:"model,omitempty"`
	Messages     []message.Message `json:"messages"`
	ToolChoice   string            `json:"tool_choice,omitempty"`
	RunLoopLimit int               `json:"run_loop_limit,omitempty"`
	Stream       bool              `json:"stream,omitempty"`
}

type runResponse struct {
	RunID      string            `json:"run_id"`
	Messages   []message.Message `json:"messages"`
	Truncated  bool              `json:"truncated"`
	Iterations int               `json:"iterations"`
	Error      string            `json:"error,omitempty"`
}

// Router registers the API routes on a new router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/v1/runs", s.createRun).Methods(http.MethodPost)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger().Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createRun handles POST /v1/runs. Batch runs answer with one JSON document;
// streaming runs answer with one accumulated message per NDJSON line.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req, err := s.buildRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if body.Stream {
		s.streamRun(w, r, req)
		return
	}

	resp, err := s.Runner.Run(r.Context(), req)
	if resp == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := runResponse{
		RunID:      resp.RunID,
		Messages:   resp.Messages,
		Truncated:  resp.Truncated,
		Iterations: resp.Iterations,
	}
	if out.Messages == nil {
		out.Messages = []message.Message{}
	}
	status := http.StatusOK
	if err != nil {
		out.Error = err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}

func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, req runner.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for m, err := range s.Runner.Stream(r.Context(), req) {
		if err != nil {
			_ = enc.Encode(map[string]string{"error": err.Error()})
			break
		}
		if err := enc.Encode(m); err != nil {
			s.logger().Debug("stream write failed", "err", err)
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) buildRequest(body runRequest) (runner.Request, error) {
	if len(body.Messages) == 0 {
		return runner.Request{}, errors.New("messages are required")
	}
	msgs := make([]message.Message, len(body.Messages))
	for i, m := range body.Messages {
		if m.ID == "" {
			m.ID = message.NewID()
		}
		if m.Role == "" {
			return runner.Request{}, errors.New("every message needs a role")
		}
		msgs[i] = m
	}

	req := runner.Request{
		Model:        body.Model,
		Messages:     msgs,
		Tools:        s.Tools,
		ToolHandler:  s.ToolHandler,
		RunLoopLimit: body.RunLoopLimit,
	}
	if req.Model == "" {
		req.Model = s.Model
	}
	if req.RunLoopLimit <= 0 {
		req.RunLoopLimit = s.RunLoopLimit
	}
	if body.ToolChoice != "" {
		for i := range s.Tools {
			if s.Tools[i].Name == body.ToolChoice {
				req.ToolChoice = &s.Tools[i]
				break
			}
		}
		if req.ToolChoice == nil {
			return runner.Request{}, errors.New("unknown tool_choice " + body.ToolChoice)
		}
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
