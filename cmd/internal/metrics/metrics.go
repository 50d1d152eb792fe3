// Package metrics owns the Prometheus collectors exported on /metrics.
//
// Collectors live on a private registry rather than the global default so
// tests can build as many instances as they like.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "secureauth"

// Auth outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeLimited   = "rate_limited"
	OutcomeError     = "error"
	OutcomeInvalid   = "invalid"
	OutcomeNoAccount = "no_account"
)

type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	AuthEvents  *prometheus.CounterVec
	GateRejects *prometheus.CounterVec

	OTPIssued     prometheus.Counter
	OTPCollisions prometheus.Counter
	OTPVerify     *prometheus.CounterVec
	RateLimitHits *prometheus.CounterVec

	Mail *Mail
}

// Mail counts mail dispatcher outcomes. It satisfies mail.Observer.
type Mail struct {
	sent, failed, dropped prometheus.Counter
}

func (m *Mail) MailSent()    { m.sent.Inc() }
func (m *Mail) MailFailed()  { m.failed.Inc() }
func (m *Mail) MailDropped() { m.dropped.Inc() }

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route"}),
		AuthEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Signup, login and logout attempts by outcome.",
		}, []string{"event", "outcome"}),
		GateRejects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "Requests refused by the auth gate, by reason.",
		}, []string{"reason"}),
		OTPIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "Verification codes issued.",
		}),
		OTPCollisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_generation_retries_total",
			Help:      "Generated codes discarded because they were already live.",
		}),
		OTPVerify: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "Code verification attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by a rate limit, by rule.",
		}, []string{"rule"}),
		Mail: &Mail{
			sent: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_sent_total",
				Help:      "Messages handed to the mail transport successfully.",
			}),
			failed: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_failed_total",
				Help:      "Messages the mail transport rejected.",
			}),
			dropped: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_dropped_total",
				Help:      "Messages dropped because the send queue was full or closed.",
			}),
		},
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}

func (m *Metrics) Auth(event, outcome string) {
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) GateRejected(reason string) {
	m.GateRejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) RateLimited(rule string) {
	m.RateLimitHits.WithLabelValues(rule).Inc()
}

// CodeIssued records an issued code and how many generated candidates were
// discarded before it.
func (m *Metrics) CodeIssued(retries int) {
	m.OTPIssued.Inc()
	if retries > 0 {
		m.OTPCollisions.Add(float64(retries))
	}
}

func (m *Metrics) CodeVerified(outcome string) {
	m.OTPVerify.WithLabelValues(outcome).Inc()
}
