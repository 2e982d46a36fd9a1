package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-kino"
	"github.com/goliatone/go-kino/auth"
	"github.com/goliatone/go-kino/catalog"
	"github.com/goliatone/go-kino/config"
	"github.com/goliatone/go-kino/internal/writer"
	"github.com/goliatone/go-kino/store"
)

const schemaHeader = "# Code generated by kino. DO NOT EDIT."

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(context.Background(), logger); err != nil {
		logger.WithError(err).Fatal("kino server failed")
	}
}

func run(ctx context.Context, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Level())
	log := kino.NewLogrusLogger(logger)

	database, err := store.Open(ctx, store.Options{DSN: cfg.DatabaseDSN, Debug: cfg.Debug})
	if err != nil {
		return err
	}
	defer database.Close()

	st := database.Store()
	if cfg.Seed {
		n, err := store.SeedFilms(ctx, st)
		if err != nil {
			return err
		}
		logger.WithField("films", n).Info("catalog seeded")
	}

	authService, err := auth.New(cfg.Auth)
	if err != nil {
		return err
	}

	registry, err := catalog.New(authService, catalog.WithLogger(log)).Registry()
	if err != nil {
		return err
	}

	if cfg.SchemaPath != "" && cfg.SchemaPath != "-" {
		status, err := writer.New(writer.WithHeader(schemaHeader)).
			WriteGenerated(cfg.SchemaPath, []byte(registry.SDL()))
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"path": cfg.SchemaPath, "status": status}).Debug("schema artifact")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := kino.NewPrometheusMetrics("kino", promRegistry)
	if err != nil {
		return err
	}

	engine, err := kino.NewEngine(registry,
		kino.WithLogger(log),
		kino.WithMetrics(metrics),
		kino.WithMaxConcurrency(cfg.MaxConcurrency),
	)
	if err != nil {
		return err
	}

	provider := catalog.NewProvider(authService, st, kino.WithProviderLogger(log))
	handler := kino.NewHandler(engine, provider.Attach,
		kino.WithHandlerLogger(log),
		kino.WithRequestTimeout(cfg.RequestTimeout),
	)

	app := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:      "kino",
			BodyLimit:    kino.DefaultMaxBodySize + 1,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		})
	})
	api := app.Router().Group("/api")
	handler.RegisterRoutes(kino.NewGoRouterAdapter(api))

	app.Router().Get("/healthz", func(c router.Context) error {
		if err := database.DB().PingContext(c.Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	fiberApp := app.WrappedRouter()
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	logger.WithField("addr", cfg.Addr).Info("GraphQL endpoint ready at /api/graphql")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Serve(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}
