package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counter
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udsp_login_total",
			Help: "Total number of login attempts",
		},
	)

	// User creation counter
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udsp_register_total",
			Help: "Total number of user registrations",
		},
	)

	// Test data operation counter
	TestDataOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udsp_testdata_operations_total",
			Help: "Total number of test data operations",
		},
		[]string{"operation"}, // "create", "update", "delete", "list"
	)

	// Lab test operation counter
	LabTestOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udsp_labtest_operations_total",
			Help: "Total number of lab test catalog operations",
		},
		[]string{"operation"}, // "create", "update", "delete", "list"
	)

	// Report generation counter
	ReportCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udsp_reports_total",
			Help: "Total number of generated reports",
		},
		[]string{"type"}, // "data", "summary", "csv"
	)

	// User admin operation counter
	UserOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udsp_user_operations_total",
			Help: "Total number of user management operations",
		},
		[]string{"operation"}, // "create", "update", "delete", "status_toggle", "password_reset"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udsp_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udsp_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "invalid_password", "missing_token", "inactive_account" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "udsp_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "udsp_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active tokens
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "udsp_active_tokens",
			Help: "Number of currently active authentication tokens",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "udsp_info",
			Help: "Information about the UDSP service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(TestDataOperationCounter)
	prometheus.MustRegister(LabTestOperationCounter)
	prometheus.MustRegister(ReportCounter)
	prometheus.MustRegister(UserOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordTestDataOperation records a test data operation
func RecordTestDataOperation(operation string) {
	TestDataOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordLabTestOperation records a lab test catalog operation
func RecordLabTestOperation(operation string) {
	LabTestOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordReport records a generated report by type
func RecordReport(reportType string) {
	ReportCounter.With(prometheus.Labels{"type": reportType}).Inc()
}

// RecordUserOperation records a user management operation
func RecordUserOperation(operation string) {
	UserOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}
