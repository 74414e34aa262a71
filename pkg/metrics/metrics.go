package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds Prometheus metrics for the service. All recording methods are
// safe to call on a nil *Metrics.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
	DBConnPoolStats  *prometheus.GaugeVec

	RemoteCalls     *prometheus.CounterVec
	PublishOutcomes *prometheus.CounterVec
	AutosaveWrites  *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance registered on reg
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "requests_total",
				Help:      "Total number of requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
			[]string{"method"},
		),
		DBConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"}, // open, in_use, idle, wait_count, wait_duration_ms
		),
		RemoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "remote_calls_total",
				Help:      "Remote test/question store calls issued by the promotion protocol",
			},
			[]string{"op", "status"},
		),
		PublishOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "publish_outcomes_total",
				Help:      "Publish attempts by outcome",
			},
			[]string{"outcome"}, // published, invalid, partial, failed
		),
		AutosaveWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bilimpoz",
				Subsystem: serviceName,
				Name:      "autosave_writes_total",
				Help:      "Debounced autosave writes to the draft store",
			},
			[]string{"status"},
		),
	}
}

// UnaryServerInterceptor returns a new unary server interceptor for metrics
func UnaryServerInterceptor(metrics *Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := info.FullMethod

		metrics.RequestsInFlight.WithLabelValues(method).Inc()
		defer metrics.RequestsInFlight.WithLabelValues(method).Dec()

		start := time.Now()
		defer func() {
			metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		}()

		resp, err := handler(ctx, req)

		statusCode := "ok"
		if err != nil {
			st, _ := status.FromError(err)
			statusCode = st.Code().String()
		}
		metrics.RequestCounter.WithLabelValues(method, statusCode).Inc()

		return resp, err
	}
}

// StreamServerInterceptor returns a new stream server interceptor for metrics
func StreamServerInterceptor(metrics *Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		method := info.FullMethod

		metrics.RequestsInFlight.WithLabelValues(method).Inc()
		defer metrics.RequestsInFlight.WithLabelValues(method).Dec()

		start := time.Now()
		defer func() {
			metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		}()

		err := handler(srv, stream)

		statusCode := "ok"
		if err != nil {
			st, _ := status.FromError(err)
			statusCode = st.Code().String()
		}
		metrics.RequestCounter.WithLabelValues(method, statusCode).Inc()

		return err
	}
}

// TrackHTTP marks an HTTP request as in flight and returns the function that
// records its completion.
func (m *Metrics) TrackHTTP(method string) func(code int) {
	if m == nil {
		return func(int) {}
	}
	m.RequestsInFlight.WithLabelValues(method).Inc()
	start := time.Now()
	return func(code int) {
		m.RequestsInFlight.WithLabelValues(method).Dec()
		m.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
}

// RecordRemoteCall counts one remote store call
func (m *Metrics) RecordRemoteCall(op string, err error) {
	if m == nil {
		return
	}
	statusLabel := "ok"
	if err != nil {
		statusLabel = "error"
	}
	m.RemoteCalls.WithLabelValues(op, statusLabel).Inc()
}

// RecordPublish counts one publish attempt by outcome
func (m *Metrics) RecordPublish(outcome string) {
	if m == nil {
		return
	}
	m.PublishOutcomes.WithLabelValues(outcome).Inc()
}

// RecordAutosave counts one debounced draft write
func (m *Metrics) RecordAutosave(err error) {
	if m == nil {
		return
	}
	statusLabel := "ok"
	if err != nil {
		statusLabel = "error"
	}
	m.AutosaveWrites.WithLabelValues(statusLabel).Inc()
}

// RecordDBPoolStats records database connection pool statistics
func (m *Metrics) RecordDBPoolStats(open, inUse, idle int, waitCount int64, waitDuration time.Duration) {
	if m == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(open))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(waitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(waitDuration.Milliseconds()))
}
