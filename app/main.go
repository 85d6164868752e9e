package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lysyi3m/opendata-harvest/app/cfg"
	"github.com/lysyi3m/opendata-harvest/app/tasks"
)

func main() {
	os.Exit(run())
}

func run() int {
	c, err := cfg.Load()
	if err != nil {
		if errors.Is(err, cfg.ErrHelp) {
			return 0
		}
		slog.Error("Invalid configuration", "error", err)
		return 2
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting opendata-harvest", "version", c.Version, "mode", c.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := tasks.NewPipeline(c, os.Stdout)
	if err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		return 1
	}

	if err := pipeline.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Interrupted, partial results were saved", "run_id", pipeline.RunID())
		} else {
			slog.Error("Pipeline failed", "run_id", pipeline.RunID(), "error", err)
		}
		return 1
	}

	return 0
}
