package calls

import (
	"errors"
	"strconv"

	"callbridge/internal/telephony"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records call lifecycle counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	callsStarted     prometheus.Counter
	callsEnded       prometheus.Counter
	providerFailures *prometheus.CounterVec
	callDuration     prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in the server and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		callsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Outbound calls accepted by the provider",
		}),
		callsEnded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Call sessions transitioned to completed",
		}),
		providerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Failed voice provider requests by operation and reason",
		}, []string{"op", "reason"}),
		callDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of completed calls in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
	}
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.callsStarted.Inc()
}

func (m *Metrics) callEnded(s CallSession) {
	if m == nil {
		return
	}
	m.callsEnded.Inc()
	if s.DurationSeconds != nil {
		m.callDuration.Observe(float64(*s.DurationSeconds))
	}
}

func (m *Metrics) providerFailure(op providerOp, err error) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(string(op), failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, telephony.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, telephony.ErrTimeout):
		return "timeout"
	case errors.Is(err, telephony.ErrMissingConversationID):
		return "missing_id"
	}
	if code := telephony.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	return "transport"
}
