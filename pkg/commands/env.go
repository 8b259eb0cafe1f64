package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/store"
)

var verbose bool

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("path", "", "Location of the journal store.")
	flags.String("backend", "", "Store backend: diskv, sqlite or memory.")
	flags.String("window", "", "Window length, for example 30m or 1h.")
	flags.String("late", "", "Late grace after a window closes, for example 5m.")
	flags.String("early", "", "Early grace before the next window opens, for example 2m.")
	flags.String("log-level", "", "Log level: debug, info, warn or error.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log at debug level.")
}

// env is what a command needs to run against the journal.
type env struct {
	Config *config.Config
	Logger *slog.Logger
	Store  store.Persistence
	App    *app.Service
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			e.Logger.Warn("close store", "error", err)
		}
	}
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)
	p, err := store.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		Config: cfg,
		Logger: logger,
		Store:  p,
		App: &app.Service{
			Persistence: p,
			Grace:       cfg.Grace,
			Logger:      logger,
		},
	}, nil
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	level = strings.TrimSpace(level)
	if verbose {
		lvl = slog.LevelDebug
	} else if level == "" {
		lvl = slog.LevelWarn
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "unknown log level %q, using warn\n", level)
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
