// Package metrics exposes Prometheus collectors for the interview service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interviewd"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	agentCalls      *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	mediaAttachFail prometheus.Counter
	feedbackFolds   *prometheus.CounterVec
	speechFailures  *prometheus.CounterVec
}

// New creates collectors on a fresh registry, so tests can build as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route"}),
		agentCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "call_duration_seconds",
			Help:      "Remote agent call latency by agent and outcome.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"agent", "outcome"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "turns_total",
			Help:      "Interview turns by resulting status.",
		}, []string{"status"}),
		mediaAttachFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "media_attach_failures_total",
			Help:      "Media attachments that could not be recorded.",
		}),
		feedbackFolds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "folds_total",
			Help:      "Feedback entries folded into aggregates.",
		}, []string{"final"}),
		speechFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "speech",
			Name:      "failures_total",
			Help:      "Transcription and synthesis failures.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.agentCalls,
		m.turns,
		m.mediaAttachFail,
		m.feedbackFolds,
		m.speechFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveAgentCall records one remote agent round trip.
func (m *Metrics) ObserveAgentCall(agent string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.agentCalls.WithLabelValues(agent, outcome).Observe(d.Seconds())
}

// IncTurn counts an interview turn by status.
func (m *Metrics) IncTurn(status string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(status).Inc()
}

// IncMediaAttachFailure counts a swallowed media attachment failure.
func (m *Metrics) IncMediaAttachFailure() {
	if m == nil {
		return
	}
	m.mediaAttachFail.Inc()
}

// IncFeedbackFold counts one fold.
func (m *Metrics) IncFeedbackFold(final bool) {
	if m == nil {
		return
	}
	m.feedbackFolds.WithLabelValues(strconv.FormatBool(final)).Inc()
}

// IncSpeechFailure counts a failed transcription or synthesis.
func (m *Metrics) IncSpeechFailure(op string) {
	if m == nil {
		return
	}
	m.speechFailures.WithLabelValues(op).Inc()
}
