package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reconboard/internal/config"
	"reconboard/internal/db"
	httpapi "reconboard/internal/http"
	"reconboard/internal/logger"
	"reconboard/internal/mockdata"
	"reconboard/internal/repository"
	"reconboard/internal/service"
	"reconboard/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Env: "production"}).Fatal().Err(err).Msg("config error")
	}
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})

	ctx := context.Background()
	var runs service.RunRecorder
	if cfg.Persistence() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database error")
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migration error")
		}
		runs = repository.NewRunRepository(pool)
	} else {
		log.Info().Msg("DATABASE_URL not set, run history disabled")
	}

	svc := service.New(session.NewStore(), mockdata.New(), runs, log)
	handler := httpapi.NewHandler(svc, log, cfg.MaxUploadMB<<20, cfg.DemoCount)
	router := httpapi.NewRouter(handler, httpapi.RouterOptions{Logger: log, Timeout: cfg.RequestTimeout})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Env).Msg("reconciliation backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		if closeErr := server.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("force close failed")
		}
	}
}
