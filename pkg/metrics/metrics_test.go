package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRemoteCall("question-create", nil)
		m.RecordPublish("published")
		m.RecordAutosave(errors.New("boom"))
		m.RecordDBPoolStats(1, 1, 0, 0, 0)
		m.TrackHTTP("GET /x")(200)
	})
}

func TestRecorders(t *testing.T) {
	m := NewMetrics("metrics_test", prometheus.NewRegistry())

	m.RecordRemoteCall("question-create", nil)
	m.RecordRemoteCall("question-create", errors.New("timeout"))
	m.RecordRemoteCall("question-create", nil)
	m.RecordPublish("partial")
	m.RecordAutosave(nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RemoteCalls.WithLabelValues("question-create", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RemoteCalls.WithLabelValues("question-create", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PublishOutcomes.WithLabelValues("partial")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AutosaveWrites.WithLabelValues("ok")))

	done := m.TrackHTTP("POST /api/v1/tests/{id}/publish")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsInFlight.WithLabelValues("POST /api/v1/tests/{id}/publish")))
	done(502)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RequestsInFlight.WithLabelValues("POST /api/v1/tests/{id}/publish")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestCounter.WithLabelValues("POST /api/v1/tests/{id}/publish", "502")))
}

func TestUnaryServerInterceptor(t *testing.T) {
	m := NewMetrics("interceptor_test", prometheus.NewRegistry())
	intercept := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := intercept(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})

	assert.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestCounter.WithLabelValues(info.FullMethod, "Unavailable")))
}
