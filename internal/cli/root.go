package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/DealAppSeo/hyperdag-router/internal/control"
	"github.com/DealAppSeo/hyperdag-router/internal/core/config"
)

var (
	cfgPath  string
	isDebug  bool
	adminURL string
)

var rootCmd = &cobra.Command{
	Use:   "router",
	Short: "Task routing service for LLM providers",
	Long:  `Router scores interchangeable LLM providers against task characteristics and executes tasks with ordered fallback, backoff and response caching.`,
	Run:   runRouter,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", "http://localhost:8080", "base URL of a running router for admin commands")
}

func runRouter(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	// Initialize Service
	app, err := control.NewService(cfg)
	if err != nil {
		slog.Error("Failed to initialize router", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start router", "error", err)
		os.Exit(1)
	}

	slog.Info("Router started", "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
