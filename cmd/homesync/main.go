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

	"github.com/docopt/docopt-go"

	"github.com/dukerupert/homesync/internal/config"
	"github.com/dukerupert/homesync/internal/dashboard"
	"github.com/dukerupert/homesync/internal/database"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/logging"
	"github.com/dukerupert/homesync/internal/middleware"
	"github.com/dukerupert/homesync/internal/server"
	"github.com/dukerupert/homesync/internal/weather"
)

const version = "0.1.0"

const usage = `Household dashboard sync server.

Configuration is read from the optional YAML file, then HOMESYNC_*
environment variables override it.

Usage:
    homesync [serve] [--config=<path>]
    homesync hash-pin <pin>
    homesync -h | --help
    homesync --version

Options:
    -h --help          Show this screen.
    --version          Show version.
    --config=<path>    YAML configuration file.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if hashPIN, _ := opts.Bool("hash-pin"); hashPIN {
		pin, _ := opts.String("<pin>")
		hash, err := middleware.HashPIN(pin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	configPath, _ := opts.String("--config")
	if err := serve(configPath); err != nil {
		slog.Error("homesync stopped", "error", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Weather.APIKey == "" {
		logger.Warn("no weather API key configured; weather requests will fail")
	}
	weatherClient := weather.NewClient(weather.Config{
		APIKey:   cfg.Weather.APIKey,
		BaseURL:  cfg.Weather.BaseURL,
		Units:    cfg.Weather.Units,
		Lang:     cfg.Weather.Lang,
		CacheTTL: cfg.Weather.CacheTTL,
	})

	store := docstore.NewSQLiteStore(db, logger.With("component", "docstore"))
	dash := dashboard.New(store, weatherClient, cfg.Weather.Location, logger)

	srv := server.New(dash, server.Options{
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		KioskPINHash:       cfg.Kiosk.PINHash,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopBroadcast := srv.StartBroadcast()
	defer stopBroadcast()

	attachCtx, detach := context.WithCancel(ctx)
	defer detach()
	if err := dash.Attach(attachCtx); err != nil {
		return fmt.Errorf("attach dashboard: %w", err)
	}

	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("homesync running", "addr", "http://localhost:"+cfg.Server.Port, "location", cfg.Weather.Location)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	detach()
	dash.Wait()
	return nil
}
