package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonearm/tonearm/internal/audio"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/history"
	"github.com/tonearm/tonearm/internal/mpris"
	"github.com/tonearm/tonearm/internal/playback"
	"github.com/tonearm/tonearm/internal/queue"
	"github.com/tonearm/tonearm/internal/tui"
	"github.com/tonearm/tonearm/pkg/catalog"
)

var (
	flagLogFile   string
	flagLogLevel  string
	flagServerURL string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server-url", "", "Music site base URL (overrides config)")
}

// session wires the full playback engine: catalog client, audio output,
// queue generator, orchestrator, listen recorder, MPRIS and the TUI.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger

	catalog   *catalog.Client
	player    *audio.Player
	generator *queue.Generator
	orch      *playback.Orchestrator
	store     *history.Store
}

// newSession loads configuration and assembles the engine. The audio
// device is opened here; callers must Close the session.
func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if flagServerURL != "" {
		cfg.ServerURL = flagServerURL
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := setupLogger(flagLogFile, cfg.LogLevel)

	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}

	client, err := catalog.NewClient(catalog.Config{
		BaseURL:   cfg.ServerURL,
		AuthToken: cfg.AuthToken,
		Logger:    catalogLogger{logger},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	player := audio.NewPlayer(base, nil, logger)
	if err := player.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}

	generator := queue.NewGenerator(client, nil)
	orch := playback.NewOrchestrator(player, generator, logger)

	var store *history.Store
	if cfg.ListenReporting {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			player.Close()
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err = history.NewStore(filepath.Join(cfg.DataDir, "listens.db"))
		if err != nil {
			player.Close()
			return nil, fmt.Errorf("failed to open listen log: %w", err)
		}
	}

	return &session{
		cfg:       cfg,
		logger:    logger,
		catalog:   client,
		player:    player,
		generator: generator,
		orch:      orch,
		store:     store,
	}, nil
}

// run starts the background services and the TUI, then blocks until the
// TUI exits or a shutdown signal arrives.
func (s *session) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.store != nil {
		recorder := history.NewRecorder(s.store, s.catalog, s.logger)
		sub := s.orch.Subscribe()
		go func() {
			defer s.orch.Unsubscribe(sub)
			_ = recorder.Run(ctx, sub)
		}()
	}

	if s.cfg.MPRIS {
		service := mpris.New(s.orch, s.logger)
		sub := s.orch.Subscribe()
		go func() {
			defer s.orch.Unsubscribe(sub)
			_ = service.Run(ctx, sub)
		}()
	}

	app := tui.New(s.orch)
	sub := s.orch.Subscribe()
	defer s.orch.Unsubscribe(sub)

	// Stop the TUI when a signal lands, so app.Run returns.
	go func() {
		<-ctx.Done()
		app.Stop()
	}()

	if err := app.Run(ctx, sub); err != nil {
		return err
	}
	stop()
	return nil
}

// Close tears the engine down in dependency order.
func (s *session) Close() {
	s.orch.Close()
	if err := s.player.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close audio output")
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close listen log")
		}
	}
}

// catalogLogger adapts zerolog to the catalog client's logger interface.
type catalogLogger struct {
	log zerolog.Logger
}

func (l catalogLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Str("component", "catalog").Msgf(format, args...)
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
