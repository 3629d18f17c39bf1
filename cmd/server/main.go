package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/dailyexpenses/internal/api"
	"github.com/mmynk/dailyexpenses/internal/audit"
	"github.com/mmynk/dailyexpenses/internal/auth"
	"github.com/mmynk/dailyexpenses/internal/config"
	"github.com/mmynk/dailyexpenses/internal/events"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/service"
	"github.com/mmynk/dailyexpenses/internal/storage/backend"
	"github.com/mmynk/dailyexpenses/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.Env == config.ProfileProduction)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.DataBackend)

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	loc := cfg.Location()
	m := metrics.New()
	jwtManager := auth.NewJWTManager(cfg.JWTSecretKey, cfg.JWTAccessTokenExpiry)
	reports := service.NewReportService(store, loc, m)

	handler := api.NewRouter(api.Deps{
		Auth:           service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger),
		Expenses:       service.NewExpenseService(store, publisher, loc, cfg.CurrencyPlaces, logger),
		Reports:        reports,
		JWT:            jwtManager,
		Health:         store,
		Metrics:        m,
		Logger:         logger,
		CurrencyPlaces: cfg.CurrencyPlaces,
		CORSOrigins:    cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	auditor := audit.New(reports, m, logger)
	if cfg.AuditSchedule != "" {
		if err := auditor.Schedule(cfg.AuditSchedule); err != nil {
			return err
		}
		auditor.Start()
		logger.Info("Integrity audit scheduled", "schedule", cfg.AuditSchedule)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting",
			"address", srv.Addr,
			"url", fmt.Sprintf("http://localhost:%s", cfg.Port),
			"env", cfg.Env,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := auditor.Stop(shutdownCtx); err != nil {
			logger.Warn("Audit did not stop in time", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.Nop{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange)
	return p, nil
}
