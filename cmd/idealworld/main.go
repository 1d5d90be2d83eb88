// Command idealworld runs the society simulation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/idealworld/internal/api"
	"github.com/talgya/idealworld/internal/config"
	"github.com/talgya/idealworld/internal/llm"
	"github.com/talgya/idealworld/internal/sim"
	"github.com/talgya/idealworld/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	flusher := store.NewFlusher(st, cfg.Flusher.Interval, cfg.Flusher.BulkThreshold)

	// ── Decision service ─────────────────────────────────────────────
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "local" {
		slog.Warn("no API key configured — decision calls will fail and runs will fall back to local narratives")
	}
	provider, err := llm.NewProvider(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		slog.Error("failed to create provider", "error", err)
		os.Exit(1)
	}
	slog.Info("decision service ready",
		"provider", cfg.LLM.Provider,
		"central_model", cfg.LLM.CentralModel,
		"citizen_model", cfg.LLM.CitizenModel,
	)

	// ── Simulation ───────────────────────────────────────────────────
	runner := sim.NewRunner(st, flusher, sim.NewController(), provider, sim.Config{
		CentralModel:       cfg.LLM.CentralModel,
		CitizenModel:       cfg.LLM.CitizenModel,
		MaxConcurrency:     cfg.Simulation.MaxConcurrency,
		MapReduceThreshold: cfg.Simulation.MapReduceThreshold,
		MaxClusterSize:     cfg.Simulation.MaxClusterSize,
		PauseCheckInterval: cfg.Simulation.PauseCheckInterval,
		RetryBaseDelay:     cfg.Simulation.RetryBaseDelay,
	})

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{Store: st, Runner: runner}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Drain buffered rows before the database closes.
	flusher.Stop()
	slog.Info("server stopped")
}
