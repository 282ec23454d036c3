package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Authentication metrics
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"}, // success, failure, locked
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackdesk_sessions_active",
			Help: "Number of currently active sessions",
		},
	)

	// Domain metrics
	clientsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackdesk_clients_total",
			Help: "Number of provisioned client accounts",
		},
	)

	entityOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_entity_operations_total",
			Help: "Total number of entity mutations",
		},
		[]string{"entity", "operation"}, // task/create, note/delete, ...
	)

	accessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_access_denied_total",
			Help: "Total number of denied ownership checks",
		},
		[]string{"entity"},
	)

	attachmentBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackdesk_attachment_bytes_total",
			Help: "Total bytes of uploaded attachments",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackdesk_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackdesk_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // auth, database, redis, validation
	)
)

// PrometheusMiddleware creates a Fiber middleware for Prometheus metrics
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// RecordLogin increments the login counter for the given outcome
func RecordLogin(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}

// UpdateActiveSessions updates the active sessions gauge
func UpdateActiveSessions(count int) {
	sessionsActive.Set(float64(count))
}

// UpdateClientCount updates the provisioned clients gauge
func UpdateClientCount(count int) {
	clientsTotal.Set(float64(count))
}

// IncrementEntityOperation increments the mutation counter for an entity kind
func IncrementEntityOperation(entity, operation string) {
	entityOperationsTotal.WithLabelValues(entity, operation).Inc()
}

// IncrementAccessDenied increments the denied ownership check counter
func IncrementAccessDenied(entity string) {
	accessDeniedTotal.WithLabelValues(entity).Inc()
}

// AddAttachmentBytes records uploaded attachment bytes
func AddAttachmentBytes(n int64) {
	attachmentBytesTotal.Add(float64(n))
}

// UpdateDatabaseMetrics updates database connection metrics
func UpdateDatabaseMetrics(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}

// IncrementError increments error counter
func IncrementError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
