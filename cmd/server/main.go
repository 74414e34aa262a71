package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"bilimpoz/testbuilder-service/internal/autosave"
	"bilimpoz/testbuilder-service/internal/config"
	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/handler"
	"bilimpoz/testbuilder-service/internal/health"
	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/repository"
	"bilimpoz/testbuilder-service/internal/schema"
	"bilimpoz/testbuilder-service/internal/service"
	"bilimpoz/testbuilder-service/pkg/db"
	"bilimpoz/testbuilder-service/pkg/logger"
	"bilimpoz/testbuilder-service/pkg/metrics"
)

func main() {
	log := logger.NewLogger("testbuilder-service")

	if err := godotenv.Load(); err != nil {
		log.Warnf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()
	log.Info("Successfully connected to database")

	if cfg.SchemaGuard {
		if err := db.NewSchemaGuard(conn.DB).ValidateTables(ctx, db.TestBuilderSchemas()); err != nil {
			log.Fatalf("Database schema check failed: %v", err)
		}
	}

	redisClient, err := draftstore.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	m := metrics.NewMetrics("testbuilder", prometheus.DefaultRegisterer)

	drafts := draftstore.NewRedisStore(redisClient, cfg.DraftKeyPrefix, cfg.DraftTTL)
	testRepo := repository.NewTestRepository(conn.DB)
	questionRepo := repository.NewQuestionRepository(conn.DB)
	registry := schema.NewRegistry()
	ids := identity.NewAllocator()

	debouncer := autosave.NewDebouncer(drafts, autosave.Options{Window: cfg.AutosaveWindow}, log, m)
	editorService := service.NewEditorService(testRepo, drafts, registry, ids, log)
	promotionService := service.NewPromotionService(testRepo, questionRepo, drafts, ids, log, m)
	promotionService.SetFlusher(debouncer)

	checker := health.NewChecker(log, 3*time.Second,
		health.Check{Name: "mysql", Ping: conn.Ping},
		health.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)
	go checker.Run(ctx, 30*time.Second)
	go recordPoolStats(ctx, conn, m)

	router := mux.NewRouter()
	router.Use(handler.LoggingMiddleware(log), handler.MetricsMiddleware(m))
	handler.NewTestBuilderHandler(editorService, promotionService, debouncer, registry, log).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Handle("/health", checker).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.CORSMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.UnaryServerInterceptor(log),
			metrics.UnaryServerInterceptor(m),
		),
		grpc.ChainStreamInterceptor(
			logger.StreamServerInterceptor(log),
			metrics.StreamServerInterceptor(m),
		),
	)
	healthpb.RegisterHealthServer(grpcServer, checker.Server())
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("Failed to listen on gRPC port %s: %v", cfg.GRPCPort, err)
	}

	go func() {
		log.Infof("gRPC server listening on port %s", cfg.GRPCPort)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	go func() {
		log.Infof("HTTP server listening on port %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := debouncer.Flush(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to flush pending autosaves")
	}
	grpcServer.GracefulStop()
	log.Info("Server stopped")
}

func recordPoolStats(ctx context.Context, conn *db.Connection, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := conn.DB.Stats()
			m.RecordDBPoolStats(stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount, stats.WaitDuration)
		}
	}
}
