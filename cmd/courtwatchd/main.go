package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"court-watch-backend/config"
	"court-watch-backend/internal/api"
	"court-watch-backend/internal/availability"
	"court-watch-backend/internal/db"
	"court-watch-backend/internal/freshness"
	"court-watch-backend/internal/ledger"
	"court-watch-backend/internal/logger"
	"court-watch-backend/internal/match"
	"court-watch-backend/internal/notification"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/reconcile"
	"court-watch-backend/internal/scheduler"
	"court-watch-backend/internal/store"
	"court-watch-backend/internal/task"
	"court-watch-backend/internal/watch"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync()
	logg.Infow("configuration loaded", "path", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, cfg.Log.Level == "debug", logg)
	if err != nil {
		logg.Fatalw("failed to initialize database", "error", err)
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers := provider.NewRegistry(provider.NewPlaytomic(cfg.Provider.Playtomic, logg.Named("playtomic")))
	fresh := freshness.New(appStore, cfg.Freshness.MaxAge, logg.Named("freshness"))
	reconciler := reconcile.New(appStore, logg.Named("reconcile"))
	syncer := availability.NewSyncer(appStore, fresh, providers, reconciler, logg.Named("availability"))
	matcher := match.New(appStore, providers, logg.Named("match"))
	dedup := ledger.New(appStore, logg.Named("ledger"))

	var webpushOptions *webpush.Options
	if cfg.Notify.Push.PublicKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Notify.Push.PublicKey,
			VAPIDPrivateKey: cfg.Notify.Push.PrivateKey,
			Subscriber:      cfg.Notify.Push.Subject,
			TTL:             cfg.Notify.Push.TTL,
		}
	}

	notifier, closeNotifier := buildNotifier(cfg, appStore, webpushOptions, logg)
	defer closeNotifier()

	alerts := notification.NewWorkerPool(cfg.Notify.Workers, notifier, dedup, logg.Named("notify"))
	alerts.Start(ctx)

	orchestrator := task.NewOrchestrator(appStore, syncer, matcher, cfg.Tasks, cfg.Provider.Sport, logg.Named("task"))
	orchestrator.Start(ctx)

	schedulerSvc := scheduler.NewService(cfg.Scheduler, cfg.Provider.Sport, cfg.Notify.MaxSlots,
		appStore, syncer, matcher, dedup, alerts, logg.Named("scheduler"))
	schedulerDone := make(chan struct{})
	go func() {
		schedulerSvc.Run(ctx)
		close(schedulerDone)
	}()

	tz, _ := time.LoadLocation(cfg.Scheduler.Timezone)
	router := api.NewRouter(cfg.Server, api.Deps{
		Store:     appStore,
		Searches:  watch.NewService(appStore, tz, logg.Named("watch")),
		Tasks:     orchestrator,
		Providers: providers,
		Refresher: reconciler,
		Freshness: fresh,
		WebPush:   webpushOptions,
		Log:       logg.Named("api"),
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logg.Infow("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalw("HTTP server ListenAndServe", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logg.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Errorw("HTTP server Shutdown", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logg.Warn("scheduler tick still running at shutdown deadline")
	}
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		logg.Warnw("search workers still running at shutdown deadline", "error", err)
	}
	if err := alerts.Wait(shutdownCtx); err != nil {
		logg.Warnw("alert workers still running at shutdown deadline", "error", err)
	}

	logg.Info("server gracefully stopped")
}

// buildNotifier returns the alert channel selected by notify.mode and a
// function releasing its resources.
func buildNotifier(cfg *config.Config, st store.Store, push *webpush.Options, logg *zap.SugaredLogger) (notification.Notifier, func()) {
	switch cfg.Notify.Mode {
	case "webpush":
		return notification.NewWebPushNotifier(st, push, logg.Named("webpush")), func() {}
	case "amqp":
		pub, err := notification.NewAMQPPublisher(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Exchange)
		if err != nil {
			logg.Fatalw("failed to connect to the alert broker", "error", err)
		}
		n := notification.NewAMQPNotifier(pub, cfg.Notify.AMQP, logg.Named("amqp"))
		return n, func() {
			if err := n.Close(); err != nil {
				logg.Warnw("failed to close the alert broker connection", "error", err)
			}
		}
	default:
		return notification.NewLogNotifier(logg.Named("alerts")), func() {}
	}
}
