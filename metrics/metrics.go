package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one server instance on its own registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	usersRegistered prometheus.Counter
	logins          *prometheus.CounterVec
	studentsSaved   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentpay_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studentpay_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentpay_notification_events_total",
			Help: "Notification inbox changes by event type",
		}, []string{"type"}),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studentpay_users_registered_total",
			Help: "Total number of accounts created",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentpay_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		studentsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studentpay_students_saved_total",
			Help: "Total number of student records written",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.notifications,
		m.usersRegistered,
		m.logins,
		m.studentsSaved,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordNotificationEvent(eventType string) {
	if m != nil {
		m.notifications.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) RecordUserRegistered() {
	if m != nil {
		m.usersRegistered.Inc()
	}
}

func (m *Metrics) RecordLogin(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordStudentsSaved(n int) {
	if m != nil {
		m.studentsSaved.Add(float64(n))
	}
}
