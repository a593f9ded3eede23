package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stlcpilot/internal/machine"
	"stlcpilot/internal/stage"
	"stlcpilot/internal/store"
	"stlcpilot/internal/workflow"
)

var (
	// transitions counts committed stage transitions.
	// Labels: from, to
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stlcpilot",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Committed stage transitions",
	}, []string{"from", "to"})

	// drafts counts draft attempts.
	// Labels: stage, status (success, error)
	drafts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stlcpilot",
		Subsystem: "session",
		Name:      "drafts_total",
		Help:      "Draft generation attempts by outcome",
	}, []string{"stage", "status"})

	// generationDuration measures generator latency per stage.
	// Labels: stage
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stlcpilot",
		Subsystem: "session",
		Name:      "generation_duration_seconds",
		Help:      "Time spent generating a stage draft",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"stage"})

	// rejections counts rejected operations.
	// Labels: op, kind
	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stlcpilot",
		Subsystem: "session",
		Name:      "rejections_total",
		Help:      "Rejected session operations by kind",
	}, []string{"op", "kind"})

	// completed counts sessions that reached done.
	completed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stlcpilot",
		Subsystem: "session",
		Name:      "completed_total",
		Help:      "Sessions that reached the done stage",
	})
)

func recordTransition(from, to stage.Stage) {
	transitions.WithLabelValues(string(from), string(to)).Inc()
	if to.IsTerminal() {
		completed.Inc()
	}
}

func recordDraft(s stage.Stage, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	drafts.WithLabelValues(string(s), status).Inc()
	generationDuration.WithLabelValues(string(s)).Observe(seconds)
}

func recordRejection(op string, err error) {
	rejections.WithLabelValues(op, errorKind(err)).Inc()
}

// errorKind maps an error to a low-cardinality label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSessionBusy):
		return "busy"
	case errors.Is(err, machine.ErrValidation):
		return "validation"
	case errors.Is(err, machine.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, machine.ErrNotReady):
		return "not_ready"
	case errors.Is(err, machine.ErrAlreadyTerminal):
		return "already_terminal"
	case errors.Is(err, machine.ErrCorruptState):
		return "corrupt_state"
	case errors.Is(err, workflow.ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
