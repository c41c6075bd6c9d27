package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/healthoffice-api/internal/clock"
	"github.com/jwalitptl/healthoffice-api/internal/config"
	appointmentHandler "github.com/jwalitptl/healthoffice-api/internal/handler/appointment"
	"github.com/jwalitptl/healthoffice-api/internal/handler/health"
	promHandler "github.com/jwalitptl/healthoffice-api/internal/handler/prometheus"
	"github.com/jwalitptl/healthoffice-api/internal/middleware"
	"github.com/jwalitptl/healthoffice-api/internal/policy"
	"github.com/jwalitptl/healthoffice-api/internal/repository/postgres"
	"github.com/jwalitptl/healthoffice-api/internal/router"
	appointmentService "github.com/jwalitptl/healthoffice-api/internal/service/appointment"
	"github.com/jwalitptl/healthoffice-api/internal/service/catalog"
	"github.com/jwalitptl/healthoffice-api/internal/service/history"
	"github.com/jwalitptl/healthoffice-api/internal/service/notification"
	"github.com/jwalitptl/healthoffice-api/internal/service/queue"
	"github.com/jwalitptl/healthoffice-api/pkg/auth"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	log.Logger = appLogger.ZL

	if cfg.JWT.Secret == "" {
		appLogger.Fatal(nil, "jwt.secret is required")
	}

	clk, err := clock.New(cfg.Clock.Timezone)
	if err != nil {
		appLogger.Fatal(err, "failed to load office timezone", "timezone", cfg.Clock.Timezone)
	}

	ctx := context.Background()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, appLogger); err != nil {
			appLogger.Fatal(err, "failed to apply migrations")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("healthoffice", registry)

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	historyRepo := postgres.NewHistoryRepository(base)
	queueRepo := postgres.NewQueueRepository(base)
	serviceRepo := postgres.NewServiceRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	medicalRepo := postgres.NewMedicalRecordRepository(base)

	// Initialize services
	engine := appointmentService.NewService(appointmentService.Dependencies{
		Appointments:   appointmentRepo,
		MedicalRecords: medicalRepo,
		Recorder:       history.NewRecorder(historyRepo),
		Allocator:      queue.NewAllocator(queueRepo, m),
		Catalog:        catalog.NewService(serviceRepo, cfg.Catalog.CacheTTL),
		Cancellation: policy.NewCancellationPolicy(clk.Location(), policy.Config{
			Window:  cfg.Policy.CancellationWindow,
			AMStart: cfg.Policy.AMStart,
			PMStart: cfg.Policy.PMStart,
		}),
		Clock:           clk,
		Notifier:        notification.NewService(outboxRepo, appLogger, m),
		Logger:          appLogger,
		Metrics:         m,
		ConflictRetries: cfg.Engine.ConflictRetries,
	})

	if err := middleware.RegisterValidators(); err != nil {
		appLogger.Fatal(err, "failed to register request validators")
	}

	gin.SetMode(gin.ReleaseMode)
	routerConfig := router.RouterConfig{
		CORSConfig: middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)),
		appointmentHandler.NewHandler(engine, clk),
		health.NewHandler(db),
		promHandler.New(registry, m),
		routerConfig,
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port, "timezone", cfg.Clock.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}

	// in-flight notifications still need the database
	done := make(chan struct{})
	go func() {
		engine.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Server.ShutdownTimeout):
		appLogger.Warn(nil, "gave up waiting for pending notifications")
	}

	appLogger.Info("server exited")
}
