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

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/opendata-harvest/app/api"
	"github.com/lysyi3m/opendata-harvest/app/cfg"
	"github.com/lysyi3m/opendata-harvest/app/database"
)

// AppConfig holds the file server configuration, read from flags or environment variables.
type AppConfig struct {
	Port          string `long:"port" env:"PORT" default:"11311" description:"HTTP server port"`
	UploadDir     string `long:"upload-dir" env:"UPLOAD_DIR" default:"./uploads" description:"Directory receiving uploaded files"`
	DBPath        string `long:"db-path" env:"DB_PATH" default:"./uploads/receipts.db" description:"SQLite database holding upload receipts"`
	BaseURL       string `long:"base-url" env:"BASE_URL" description:"Public base URL used in receipt locations (e.g., https://files.example.com)"`
	MaxUploadSize int64  `long:"max-upload-size" env:"MAX_UPLOAD_SIZE" default:"536870912" description:"Largest accepted request body in bytes (0 = unlimited)"`
	APIAccessKey  string `long:"api-key" env:"API_ACCESS_KEY" description:"API key required on upload and download endpoints (optional)"`
	Debug         bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func main() {
	appConfig := loadConfig()
	if appConfig == nil {
		return
	}

	level := slog.LevelInfo
	if appConfig.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting file server", "version", cfg.GetVersion(), "port", appConfig.Port)

	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := os.MkdirAll(appConfig.UploadDir, 0o755); err != nil {
		slog.Error("Failed to create upload directory", "dir", appConfig.UploadDir, "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(database.NewReceiptRepository(db), appConfig.UploadDir, appConfig.BaseURL, appConfig.MaxUploadSize)
	server := api.NewServer(handler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening",
			"upload", fmt.Sprintf("http://localhost:%s/api/upload", appConfig.Port),
			"uploads", fmt.Sprintf("http://localhost:%s/api/uploads", appConfig.Port),
			"health", fmt.Sprintf("http://localhost:%s/health", appConfig.Port))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("File server shutdown complete")
}

func loadConfig() *AppConfig {
	var appConfig AppConfig

	parser := flags.NewParser(&appConfig, flags.Default)

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		os.Exit(2)
	}

	return &appConfig
}
