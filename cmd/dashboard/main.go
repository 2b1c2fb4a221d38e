package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/japaniel/wifireview/pkg/config"
	"github.com/japaniel/wifireview/pkg/dashboard"
	"github.com/japaniel/wifireview/pkg/db"
	"github.com/japaniel/wifireview/pkg/logging"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "Path to YAML config file")
		envPath = flag.String("env", ".env", "Path to .env file (ignored when missing)")
		dsn     = flag.String("db", "", "Database DSN (defaults to the config value)")
		listen  = flag.String("listen", "", "HTTP listen address (defaults to the config value)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	logger, err := logging.Init(cfg.Log.Level)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}

	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	// Creating the tables lets the dashboard start before the first batch run.
	if err := db.InitDB(context.Background(), conn.Executor()); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	handler, err := dashboard.NewServer(conn.Executor())
	if err != nil {
		logger.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}
	handler.Logger = logger

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "addr", cfg.Server.Listen, "db", cfg.Database.DSN)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("dashboard stopped")
}
