// Package health reports whether the service's dependencies are reachable,
// over gRPC (grpc.health.v1) and as a JSON HTTP endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"bilimpoz/testbuilder-service/pkg/logger"
)

// ServiceName is the gRPC health service name of the test builder
const ServiceName = "bilimpoz.testbuilder.v1"

// Check is one dependency ping
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type DependencyStatus struct {
	Name    string `json:"service"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

type Report struct {
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
	Uptime    string             `json:"uptime"`
	Services  []DependencyStatus `json:"services"`
}

// Checker runs the checks and publishes the result on a gRPC health server
type Checker struct {
	checks  []Check
	timeout time.Duration
	server  *health.Server
	logger  *logger.Logger
	started time.Time
}

func NewChecker(log *logger.Logger, timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		checks:  checks,
		timeout: timeout,
		server:  health.NewServer(),
		logger:  log,
		started: time.Now(),
	}
}

// Server returns the gRPC health server to register
func (c *Checker) Server() *health.Server {
	return c.server
}

// CheckAll pings every dependency and updates the serving status
func (c *Checker) CheckAll(ctx context.Context) *Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := &Report{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Services:  make([]DependencyStatus, 0, len(c.checks)),
	}
	for _, check := range c.checks {
		start := time.Now()
		err := check.Ping(ctx)
		st := DependencyStatus{Name: check.Name, Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			st.Status = "unhealthy"
			st.Error = err.Error()
			report.Status = "unhealthy"
			c.logger.WithField("dependency", check.Name).WithError(err).Warn("health check failed")
		}
		report.Services = append(report.Services, st)
	}

	servingStatus := healthpb.HealthCheckResponse_SERVING
	if report.Status != "healthy" {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", servingStatus)
	c.server.SetServingStatus(ServiceName, servingStatus)
	return report
}

// Run re-checks every interval until ctx is done
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.CheckAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// ServeHTTP runs the checks and writes the report as JSON
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := c.CheckAll(r.Context())

	statusCode := http.StatusOK
	if report.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(report)
}
