package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/creditledger/internal/api"
	"github.com/punchamoorthee/creditledger/internal/config"
	"github.com/punchamoorthee/creditledger/internal/logger"
	"github.com/punchamoorthee/creditledger/internal/notify"
	"github.com/punchamoorthee/creditledger/internal/service"
	"github.com/punchamoorthee/creditledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.Env); err != nil {
		log.Fatal(err)
	}
	defer logger.Log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Log.Fatal("invalid timezone", logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBSource)
	if err != nil {
		logger.Log.Fatal("unable to connect to database", logger.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Log.Fatal("migration failed", logger.Error(err))
	}

	var notifier notify.Notifier = notify.LogNotifier{CountryCode: cfg.NotifyCountryCode}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL, cfg.NotifyTimeout, cfg.NotifyCountryCode)
	}

	// Initialize Layers
	handler := api.NewHandler(
		service.NewLedgerService(db, loc),
		service.NewSaleService(db, notifier, loc),
		service.NewCatalogService(db),
	)
	router := api.NewRouter(handler, api.RouterConfig{
		APIToken:    cfg.APIToken,
		CORSOrigins: cfg.CORSOrigins,
	})
	if cfg.APIToken == "" {
		logger.Log.Warn("API_TOKEN is empty, /api routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Log.Info("server starting",
			logger.String("port", cfg.Port),
			logger.String("driver", cfg.DBDriver),
			logger.String("env", cfg.Env),
			logger.String("timezone", loc.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("graceful shutdown failed", logger.Error(err))
	}
}
