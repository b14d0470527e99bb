// Package metrics holds the Prometheus collectors exposed on /metrics.
// Record methods are safe on a nil *Metrics so tests can omit them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Lead lifecycle metrics
	LeadsCreated           *prometheus.CounterVec
	LeadStatusTransitions  *prometheus.CounterVec
	LeadContactsConverted  prometheus.Counter
	LeadAssignments        *prometheus.CounterVec
	HistoryWriteFailures   prometheus.Counter

	// Reminder metrics
	RemindersSent *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LeadsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_leads_created_total",
				Help: "Leads created, by source",
			},
			[]string{"source"}, // manual, import, form
		),
		LeadStatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_lead_status_transitions_total",
				Help: "Lead status transitions, by target status",
			},
			[]string{"status"},
		),
		LeadContactsConverted: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_lead_contacts_converted_total",
			Help: "Contacts created from leads",
		}),
		LeadAssignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_lead_assignments_total",
				Help: "Lead assignment changes, by kind",
			},
			[]string{"kind"}, // first_assign, reassign, unassign, auto
		),
		HistoryWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_history_write_failures_total",
			Help: "History entries that could not be stored",
		}),
		RemindersSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_reminders_sent_total",
				Help: "Task reminders delivered, by channel",
			},
			[]string{"channel"}, // sse, email
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath() // route pattern, e.g. /api/v1/leads/:id
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordLeadCreated increments the created counter for a source.
func (m *Metrics) RecordLeadCreated(source string) {
	if m == nil {
		return
	}
	m.LeadsCreated.WithLabelValues(source).Inc()
}

// RecordStatusTransition increments the transition counter for a target status.
func (m *Metrics) RecordStatusTransition(status string) {
	if m == nil {
		return
	}
	m.LeadStatusTransitions.WithLabelValues(status).Inc()
}

// RecordContactConverted increments the lead-to-contact counter.
func (m *Metrics) RecordContactConverted() {
	if m == nil {
		return
	}
	m.LeadContactsConverted.Inc()
}

// RecordAssignment increments the assignment counter for a kind.
func (m *Metrics) RecordAssignment(kind string) {
	if m == nil {
		return
	}
	m.LeadAssignments.WithLabelValues(kind).Inc()
}

// RecordHistoryWriteFailure increments the history failure counter.
func (m *Metrics) RecordHistoryWriteFailure() {
	if m == nil {
		return
	}
	m.HistoryWriteFailures.Inc()
}

// RecordReminderSent increments the reminder counter for a channel.
func (m *Metrics) RecordReminderSent(channel string) {
	if m == nil {
		return
	}
	m.RemindersSent.WithLabelValues(channel).Inc()
}
