// Package metrics exposes the portal and worker Prometheus collectors. All
// methods are safe on a nil *Registry so callers and tests can skip metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "submita"

type Registry struct {
	reg *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	gateDecisions   *prometheus.CounterVec
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendUp       prometheus.Gauge
	auditEvents     *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Portal HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Portal HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Authorization decisions by stage and action.",
		}, []string{"stage", "action"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Calls to the Submita backend by status class.",
		}, []string{"method", "class"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		backendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "up",
			Help:      "1 when the last backend health probe succeeded.",
		}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Audit events by stage (published, stored) and result.",
		}, []string{"stage", "result"}),
	}

	reg.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.gateDecisions,
		r.backendCalls,
		r.backendDuration,
		r.backendUp,
		r.auditEvents,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.DefaultGatherer
	}
	return r.reg
}

func (r *Registry) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveDecision counts a gate decision. stage is "middleware" or "page".
func (r *Registry) ObserveDecision(stage, action string) {
	if r == nil {
		return
	}
	r.gateDecisions.WithLabelValues(stage, action).Inc()
}

// ObserveBackendCall records one backend round trip. Status 0 means the call
// never got a response (timeout or transport failure).
func (r *Registry) ObserveBackendCall(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.backendCalls.WithLabelValues(method, statusClass(status)).Inc()
	r.backendDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (r *Registry) SetBackendUp(up bool) {
	if r == nil {
		return
	}
	if up {
		r.backendUp.Set(1)
		return
	}
	r.backendUp.Set(0)
}

func (r *Registry) ObserveAudit(stage string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.auditEvents.WithLabelValues(stage, result).Inc()
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
