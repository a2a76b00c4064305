package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"volumeapi/docs"
	handlers "volumeapi/internal/http/handler"
	"volumeapi/internal/http/middleware"
	"volumeapi/internal/logger"
	apiotel "volumeapi/internal/otel"
	"volumeapi/internal/reconcile"
	"volumeapi/internal/service"
	"volumeapi/internal/storage"
)

const (
	maxUploadBytes  = 256 << 20
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logger.New(logger.FromDebug(cfg.Debug, cfg.Location()))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := apiotel.Init(ctx, apiotel.ConfigFromEnv(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				log.Error().Err(err).Msg("tracing shutdown failed")
			}
		}()

		b, err := openBackends(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := b.Close(); err != nil {
				log.Error().Err(err).Msg("closing backends failed")
			}
		}()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		queue, err := reconcile.New(reconcile.Config{
			QueueSize:    cfg.Retry.QueueSize,
			MaxAttempts:  uint(cfg.Retry.MaxAttempts),
			InitialDelay: cfg.Retry.InitialDelay(),
			MaxDelay:     cfg.Retry.MaxDelay(),
			DrainTimeout: shutdownTimeout,
		}, logger.WithComponent(log, "reconcile"), reg)
		if err != nil {
			return err
		}
		metrics, err := service.NewMetrics(reg)
		if err != nil {
			return err
		}
		promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
		if err != nil {
			return err
		}

		svc := service.NewVolumeService(service.Config{MaxPageSize: cfg.MaxResultsPerPage}, service.Deps{
			Store:      b.store,
			Index:      b.index,
			Blobs:      b.blobs,
			Stager:     storage.NewStager(cfg.StagingDir),
			Reconciler: queue,
			Metrics:    metrics,
			Logger:     logger.WithComponent(log, "service"),
		})

		app := fiber.New(fiber.Config{
			ErrorHandler:          handlers.ErrorHandler(),
			BodyLimit:             maxUploadBytes,
			DisableStartupMessage: !cfg.Debug,
		})

		app.Use(otelfiber.Middleware())
		// RequestID middleware adds/propagates X-Request-ID and stores it in context
		app.Use(middleware.RequestID())
		app.Use(middleware.Logger(cfg.Location()))
		app.Use(promMiddleware.Handler())

		app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

		// Swagger UI with dynamic host and scheme
		app.Get("/swagger/*", func(c *fiber.Ctx) error {
			scheme := c.Protocol()
			if proto := c.Get("X-Forwarded-Proto"); proto != "" {
				scheme = strings.Split(proto, ",")[0]
			}

			docs.SwaggerInfo.Host = c.Get("Host")
			docs.SwaggerInfo.Schemes = []string{scheme}

			return swagger.HandlerDefault(c)
		})

		handlers.RegisterRoutes(app, svc)

		// The queue outlives the HTTP server so tasks submitted by in-flight requests
		// during shutdown are still drained.
		qctx, stopQueue := context.WithCancel(context.WithoutCancel(ctx))
		defer stopQueue()
		queueDone := make(chan error, 1)
		go func() { queueDone <- queue.Run(qctx) }()

		if err := queue.Submit("sweep", func(ctx context.Context) error {
			_, err := svc.Sweep(ctx)
			return err
		}); err != nil {
			log.Warn().Err(err).Msg("could not schedule startup sweep")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", cfg.ListenAddr()).Msg("listening")
			if err := app.Listen(cfg.ListenAddr()); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return app.ShutdownWithTimeout(shutdownTimeout)
		})

		err = g.Wait()
		stopQueue()
		if qerr := <-queueDone; qerr != nil {
			log.Error().Err(qerr).Msg("reconcile queue stopped with an error")
		}
		log.Info().Msg("shutdown complete")
		return err
	},
}
