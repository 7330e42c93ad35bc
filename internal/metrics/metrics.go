// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reason labels for marks.
const (
	ReasonSessionNotFound  = "session_not_found"
	ReasonAlreadyMarked    = "already_marked"
	ReasonLocationRequired = "location_required"
	ReasonOutsideFence     = "outside_fence"
)

// Metrics holds the domain counters registered on a Prometheus registerer.
type Metrics struct {
	SessionsStarted prometheus.Counter
	TokensRotated   prometheus.Counter
	MarksAccepted   prometheus.Counter
	MarksRejected   *prometheus.CounterVec
}

// New registers the counters with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "classattend_sessions_started_total",
			Help: "Attendance sessions started.",
		}),
		TokensRotated: factory.NewCounter(prometheus.CounterOpts{
			Name: "classattend_tokens_rotated_total",
			Help: "Session tokens rotated.",
		}),
		MarksAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "classattend_marks_accepted_total",
			Help: "Attendance marks accepted.",
		}),
		MarksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classattend_marks_rejected_total",
			Help: "Attendance marks rejected, by reason.",
		}, []string{"reason"}),
	}
}
