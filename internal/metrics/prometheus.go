package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Tool call statuses.
const (
	ToolOK      = "ok"
	ToolError   = "error"
	ToolUnknown = "unknown"
)

var (
	// Registry holds every collector below plus the Go and process collectors.
	Registry = prometheus.NewRegistry()

	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatloop",
		Name:      "runs_total",
		Help:      "Completed runs by outcome.",
	}, []string{"outcome"})

	RunsTruncated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatloop",
		Name:      "runs_truncated_total",
		Help:      "Runs that stopped because the loop limit was reached.",
	})

	RunIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatloop",
		Name:      "run_iterations",
		Help:      "Backend requests per run.",
		Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20},
	})

	ToolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatloop",
		Name:      "tool_calls_total",
		Help:      "Tool calls by tool name and status.",
	}, []string{"tool", "status"})

	UserTurnRunes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatloop",
		Name:      "user_turn_runes",
		Help:      "Size of user turns in runes.",
		Buckets:   prometheus.ExponentialBuckets(16, 4, 6),
	})

	ToolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatloop",
		Name:      "tool_duration_seconds",
		Help:      "Tool execution time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RunsTotal,
		RunsTruncated,
		RunIterations,
		ToolCalls,
		ToolDuration,
		UserTurnRunes,
	)
}

// ObserveRun records the end of a run.
func ObserveRun(outcome string, iterations int, truncated bool) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunIterations.Observe(float64(iterations))
	if truncated {
		RunsTruncated.Inc()
	}
}

// ObserveTool records one tool execution.
func ObserveTool(name, status string, seconds float64) {
	ToolCalls.WithLabelValues(name, status).Inc()
	ToolDuration.WithLabelValues(name).Observe(seconds)
}

// ObserveUserTurn records the size of one user turn.
func ObserveUserTurn(f Features) {
	UserTurnRunes.Observe(float64(f.Runes))
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
