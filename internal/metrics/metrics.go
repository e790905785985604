// Package metrics holds the Prometheus collectors for the assistant. Every
// method is safe on a nil *Metrics so callers can run without instrumentation.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hr_agent"

// Turn outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
)

type Metrics struct {
	registry *prometheus.Registry

	turns            *prometheus.CounterVec
	dropped          prometheus.Counter
	collaborator     *prometheus.HistogramVec
	reviewTags       prometheus.Counter
	dateCorrections  *prometheus.CounterVec
	formEdits        *prometheus.CounterVec
	leaveSubmissions *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Accepted turns by outcome.",
		}, []string{"outcome"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_dropped_total",
			Help:      "Submissions ignored because a turn was in flight or the text was blank.",
		}),
		collaborator: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Latency of reasoning collaborator calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"outcome"}),
		reviewTags: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_form_tags_total",
			Help:      "Assistant turns tagged with the review-form action.",
		}),
		dateCorrections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_corrections_total",
			Help:      "Proposed leave dates moved by the normalizer.",
		}, []string{"kind"}),
		formEdits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_edits_total",
			Help:      "Direct leave form edits by field and result.",
		}, []string{"field", "result"}),
		leaveSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leave_submissions_total",
			Help:      "Leave request submissions by result.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TurnCompleted(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SubmissionDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) CollaboratorCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.collaborator.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ReviewTagged() {
	if m == nil {
		return
	}
	m.reviewTags.Inc()
}

func (m *Metrics) DateCorrected(kind string) {
	if m == nil {
		return
	}
	m.dateCorrections.WithLabelValues(kind).Inc()
}

func (m *Metrics) FormEdited(field string, err error) {
	if m == nil {
		return
	}
	m.formEdits.WithLabelValues(field, resultLabel(err)).Inc()
}

func (m *Metrics) LeaveSubmitted(err error) {
	if m == nil {
		return
	}
	m.leaveSubmissions.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) HTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "rejected"
	}
	return "accepted"
}

// Snapshot is a small roll-up for the CLI status line.
type Snapshot struct {
	Turns     int64
	Fallbacks int64
	Dropped   int64
}

func (s Snapshot) FallbackRate() float64 {
	if s.Turns <= 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.Turns)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("metrics: turns=%d fallback=%.1f%% dropped=%d", s.Turns, s.FallbackRate()*100, s.Dropped)
}

// Snapshot gathers the turn counters from the registry.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	families, err := m.registry.Gather()
	if err != nil {
		return Snapshot{}
	}
	var s Snapshot
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_turns_total":
			for _, metric := range mf.GetMetric() {
				v := int64(metric.GetCounter().GetValue())
				s.Turns += v
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == OutcomeFallback {
						s.Fallbacks += v
					}
				}
			}
		case namespace + "_submissions_dropped_total":
			for _, metric := range mf.GetMetric() {
				s.Dropped += int64(metric.GetCounter().GetValue())
			}
		}
	}
	return s
}
