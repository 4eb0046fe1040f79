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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/api"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/backoffice"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/db"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/metrics"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/mw"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/notification"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/store"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(&cfg.Database, logger.Component(log, "db"))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	appStore := store.NewGormStore(gormDB, log)

	recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	cache := mw.NewResponseCache(cfg.Server.CacheTTL)
	observers := []schedule.Observer{appStore, recorder, cache}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, webpushOptions, log)
		pool.Start(ctx)
		observers = append(observers, pool)
		log.Info().Int("workers", cfg.WorkerPool.Size).Msg("push notifications enabled")
	} else {
		log.Warn().Msg("VAPID keys not configured, push notifications disabled")
	}

	coordinator := schedule.NewCoordinator(appStore, appStore,
		schedule.WithCommitTimeout(cfg.Schedule.CommitTimeout),
		schedule.WithObservers(observers...),
		schedule.WithLogger(logger.Component(log, "coordinator")),
	)

	var fallback schedule.CommandHandler
	if cfg.BackOffice.URL != "" {
		fallback = backoffice.NewClient(cfg.BackOffice, log)
	} else {
		log.Warn().Msg("back office URL not configured, actions other than moves are unavailable")
	}
	dispatcher := schedule.NewDispatcher(appStore, fallback)

	router := api.NewRouter(api.Deps{
		Store:       appStore,
		Coordinator: coordinator,
		Dispatcher:  dispatcher,
		Metrics:     recorder,
		Gatherer:    prometheus.DefaultGatherer,
		Cache:       cache,
		WebPush:     webpushOptions,
		Server:      cfg.Server,
		Location:    cfg.Schedule.Location,
		Log:         log,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server Shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server gracefully stopped")
	return nil
}
