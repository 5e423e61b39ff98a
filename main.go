package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-firestore-admin/internal/backend"
	"go-firestore-admin/internal/config"
	categoryPublisher "go-firestore-admin/internal/eventpublisher/category"
	categoryHandler "go-firestore-admin/internal/handler/category"
	productHandler "go-firestore-admin/internal/handler/product"
	"go-firestore-admin/internal/logger"
	"go-firestore-admin/internal/metrics"
	mid "go-firestore-admin/internal/middleware"
	"go-firestore-admin/internal/projection"
	productRepository "go-firestore-admin/internal/repository/product"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {

	cnf := config.LoadConfigOrPanic()
	logger.Init(cnf.Log.Level, cnf.Log.Pretty)
	metrics.Register(prometheus.DefaultRegisterer, cnf.Metrics.Prefix)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	backends, err := backend.Open(ctx, cnf)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backends")
	}
	defer backends.Close()

	productRepo := productRepository.New(backends.DB, backends.Blobs)
	distributionPublisher := categoryPublisher.New(projection.NewView(productRepo))

	e := newServer(productRepo, distributionPublisher)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := distributionPublisher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		log.Info().Str("port", cnf.Server.Port).Msg("starting server")
		if err := e.Start(":" + cnf.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cnf.Server.ShutdownGrace())
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	select {
	case <-sigs:
		// Received a termination signal, continue to shutdown
	case <-gctx.Done():
		// errgroup encountered an error, continue to shutdown
	}

	cancel() // cancel the root context to signal all the consumers

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("shutdown after failure")
			backends.Close()
			os.Exit(1)
		}
		log.Info().Msg("shutdown complete")
	case <-time.After(cnf.Server.ShutdownGrace()):
		log.Warn().Msg("shutdown grace period elapsed")
		backends.Close()
		os.Exit(1)
	case <-sigs:
		// Forcefully terminate the app with a signal
		backends.Close()
		os.Exit(1)
	}
}

func newServer(productRepo productRepository.IRepository, distribution *categoryPublisher.Publisher) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(mid.RequestID)
	e.Use(mid.RequestLogger)
	e.Use(mid.Metrics)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	productHandler.New(productRepo).Register(e.Group("/api/products"))
	categoryHandler.New(distribution).Register(e.Group("/api/categories"))

	return e
}
