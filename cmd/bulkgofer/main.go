package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"bulkgofer/internal/config"
	"bulkgofer/internal/server"
)

const shutdownTimeout = 30 * time.Second

var exampleUsage = strings.TrimSpace(`
  bulkgofer --config config.json
  bulkgofer --config config.toml --log-level debug --flush-interval 50
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// overrides holds the command line values that take precedence over the
// config file and the environment, on startup and on every reload
type overrides struct {
	flags         *pflag.FlagSet
	logLevel      string
	flushInterval int
}

// apply copies the flags the user actually set into cfg
func (o *overrides) apply(cfg *config.Config) {
	o.flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = strings.ToLower(o.logLevel)
		case "flush-interval":
			cfg.FlushInterval = o.flushInterval
		}
	})
}

// reloader returns a config watcher callback that reapplies the overrides before reload
func (o *overrides) reloader(reload func(*config.Config)) func(*config.Config) {
	return func(cfg *config.Config) {
		o.apply(cfg)
		reload(cfg)
	}
}

func main() {
	var (
		configPath string
		watch      bool
		flags      overrides
	)

	root := &cobra.Command{
		Use:     "bulkgofer",
		Short:   "Coalesce requests to a remote endpoint into combined array calls",
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			flags.flags = cmd.Flags()
			flags.apply(cfg)

			return run(cfg, configPath, watch, &flags)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVarP(&configPath, "config", "c", "config.json", "path to config file (.json or .toml)")
	root.Flags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.Flags().IntVar(&flags.flushInterval, "flush-interval", 0, "override flush interval in milliseconds")
	root.Flags().BoolVar(&watch, "watch", false, "reload log level and flush interval when the config file changes")

	if err := root.Execute(); err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("bulkgofer failed")
	}
}

func run(cfg *config.Config, configPath string, watch bool, flags *overrides) error {
	if cfg.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %d", cfg.FlushInterval)
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", configPath).
		Str("host", cfg.Host).
		Int("httpPort", cfg.HTTPPort).
		Int("wsPort", cfg.WSPort).
		Int("metricsPort", cfg.MetricsPort).
		Int("groups", len(cfg.Groups)).
		Msg("starting BulkGofer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	for _, groupCfg := range cfg.Groups {
		srv.AddGroup(groupCfg)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if watch {
		watcher := config.NewWatcher(configPath, config.DefaultDebounceDelay, flags.reloader(srv.Reload), logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("config watching disabled")
		} else {
			defer watcher.Stop()
		}
	}

	<-ctx.Done()
	logger.Info().Msg("received shutdown signal")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
