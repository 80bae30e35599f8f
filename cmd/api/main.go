package main

import (
	"net/http"
	"time"

	"medicine-history/internal/adapters/storage/postgres"
	"medicine-history/internal/platform/bus"
	"medicine-history/internal/platform/config"
	"medicine-history/internal/platform/logger"
	"medicine-history/internal/router"

	"go.uber.org/zap"
)

func main() {
	log := logger.NewFromEnv()
	defer func() { _ = log.Sync() }()

	cfg := config.Load(log)

	opts := router.Options{
		Logger:  log,
		Signals: bus.New(),
	}
	if cfg.DBDSN != "" {
		db, err := postgres.Open(cfg.DBDSN)
		if err != nil {
			log.Fatal("cannot open database", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		opts.DB = db
		log.Info("using postgres store")
	} else {
		log.Info("using in-memory store")
	}

	app := router.New(opts)

	if err := app.Scheduler.Start(cfg.ReminderCron); err != nil {
		log.Fatal("cannot start reminder scheduler", zap.Error(err))
	}
	defer app.Scheduler.Stop()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
