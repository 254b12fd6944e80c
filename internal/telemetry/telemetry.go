// Package telemetry records run events as JSON lines and, optionally, publishes
// them to a message bus. Events never carry raw message or tool payloads.
package telemetry

import (
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Publisher receives every emitted event. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// SubjectPrefix prefixes the subject an event is published under.
const SubjectPrefix = "agent.events."

var (
	mu        sync.Mutex
	publisher Publisher
)

// SetPublisher installs p as the event publisher. A nil p disables publishing.
func SetPublisher(p Publisher) {
	mu.Lock()
	defer mu.Unlock()
	publisher = p
}

// Emit records one event. It writes a JSON line to <ArtifactsDir>/events.jsonl
// when observation is on and publishes to the installed publisher, if any.
// The event map gets RFC3339Nano "time" and "event" keys; fields is not mutated.
func Emit(name string, fields map[string]any) {
	mu.Lock()
	pub := publisher
	mu.Unlock()

	observe := ObserveEnabled()
	if !observe && pub == nil {
		return
	}

	m := make(map[string]any, len(fields)+2)
	maps.Copy(m, fields)
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		slog.Warn("telemetry: marshal", "event", name, "err", err)
		return
	}

	if pub != nil {
		if err := pub.Publish(SubjectPrefix+name, b); err != nil {
			slog.Warn("telemetry: publish", "event", name, "err", err)
		}
	}
	if observe {
		appendLine(b)
	}
}

func appendLine(b []byte) {
	mu.Lock()
	defer mu.Unlock()

	dir := ArtifactsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("telemetry: mkdir", "dir", dir, "err", err)
		return
	}

	path := filepath.Join(dir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("telemetry: open", "path", path, "err", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		slog.Warn("telemetry: write", "path", path, "err", err)
	}
}
