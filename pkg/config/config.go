// Package config loads tock settings from .tock.yaml, TOCK_* environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/timeutil"
)

// ErrInvalidConfiguration is returned when settings cannot drive the scheduler.
var ErrInvalidConfiguration = errors.New("config: invalid configuration")

// Backend names a persistence implementation.
type Backend string

const (
	BackendDiskv  Backend = "diskv"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

const (
	DefaultLateGrace = 5 * time.Minute
	DefaultPath      = "~/.tock.db"
	maxWindow        = 24 * time.Hour
)

// Grace holds the window length and the grace periods around it.
type Grace struct {
	// WindowDuration is the length D of every window.
	WindowDuration time.Duration
	// LateGrace G is how long after a window closes it may still be logged.
	LateGrace time.Duration
	// EarlyGrace is how long before a window opens it may already be logged.
	// Zero disables early logging.
	EarlyGrace time.Duration
}

// DefaultGrace is a 30 minute window with a five minute late grace.
func DefaultGrace() Grace {
	return Grace{WindowDuration: interval.DefaultDuration, LateGrace: DefaultLateGrace}
}

// Validate rejects settings the scheduler cannot honor.
func (g Grace) Validate() error {
	d := g.WindowDuration
	switch {
	case d <= 0:
		return fmt.Errorf("%w: window duration must be positive, got %s", ErrInvalidConfiguration, d)
	case d%time.Second != 0:
		return fmt.Errorf("%w: window duration must be whole seconds, got %s", ErrInvalidConfiguration, d)
	case d > maxWindow:
		return fmt.Errorf("%w: window duration must not exceed %s, got %s", ErrInvalidConfiguration, maxWindow, d)
	case maxWindow%d != 0:
		return fmt.Errorf("%w: window duration must divide the day evenly, got %s", ErrInvalidConfiguration, d)
	case g.LateGrace < 0:
		return fmt.Errorf("%w: late grace must not be negative, got %s", ErrInvalidConfiguration, g.LateGrace)
	case g.LateGrace >= d:
		return fmt.Errorf("%w: late grace %s must be shorter than the window %s", ErrInvalidConfiguration, g.LateGrace, d)
	case g.EarlyGrace < 0:
		return fmt.Errorf("%w: early grace must not be negative, got %s", ErrInvalidConfiguration, g.EarlyGrace)
	case g.EarlyGrace >= d:
		return fmt.Errorf("%w: early grace %s must be shorter than the window %s", ErrInvalidConfiguration, g.EarlyGrace, d)
	}
	return nil
}

// Hours is the time-of-day range [Start, End) in which reminders may fire.
// Start == End means all day; Start > End wraps past midnight.
type Hours struct {
	Start timeutil.TimeOfDay
	End   timeutil.TimeOfDay
}

// AllDay allows reminders at any time.
func AllDay() Hours { return Hours{} }

// Allows reports whether t falls inside the reminder hours.
func (h Hours) Allows(t time.Time) bool {
	if h.Start == h.End {
		return true
	}
	tod := timeutil.Of(t)
	if h.Start < h.End {
		return tod >= h.Start && tod < h.End
	}
	return tod >= h.Start || tod < h.End
}

func (h Hours) String() string {
	if h.Start == h.End {
		return "all day"
	}
	return fmt.Sprintf("%s–%s", h.Start, h.End)
}

// Config is the resolved application configuration.
type Config struct {
	Path     string
	Backend  Backend
	Grace    Grace
	Hours    Hours
	LogLevel string
}

// BasePath returns the expanded persistence location.
func (c *Config) BasePath() string {
	return c.Path
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"path":      "path",
	"backend":   "backend",
	"window":    "window",
	"late":      "grace.late",
	"early":     "grace.early",
	"log-level": "log.level",
}

// Load reads configuration, searching $TOCK_CONFIG_PATH, the working
// directory and $HOME for .tock.yaml. Flags in flags named in flagKeys take
// precedence when set; flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind --%s: %w", name, err)
				}
			}
		}
	}
	v.SetConfigName(".tock") // .yaml is implicit
	v.SetEnvPrefix("TOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("TOCK_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	return FromViper(v)
}

// SetDefaults registers the default for every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("path", DefaultPath)
	v.SetDefault("backend", string(BackendDiskv))
	v.SetDefault("window", "30m")
	v.SetDefault("grace.late", "5m")
	v.SetDefault("grace.early", "0s")
	v.SetDefault("notify.start", "08:00")
	v.SetDefault("notify.end", "22:00")
	v.SetDefault("log.level", "warn")
}

// FromViper resolves and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	path, err := homedir.Expand(v.GetString("path"))
	if err != nil {
		return nil, fmt.Errorf("config: expand path: %w", err)
	}

	backend := Backend(strings.ToLower(strings.TrimSpace(v.GetString("backend"))))
	switch backend {
	case BackendDiskv, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfiguration, backend)
	}

	var grace Grace
	if grace.WindowDuration, err = span(v, "window"); err != nil {
		return nil, err
	}
	if grace.LateGrace, err = span(v, "grace.late"); err != nil {
		return nil, err
	}
	if grace.EarlyGrace, err = span(v, "grace.early"); err != nil {
		return nil, err
	}
	if err := grace.Validate(); err != nil {
		return nil, err
	}

	var hours Hours
	if hours.Start, err = timeutil.ParseTimeOfDay(v.GetString("notify.start")); err != nil {
		return nil, fmt.Errorf("%w: notify.start: %v", ErrInvalidConfiguration, err)
	}
	if hours.End, err = timeutil.ParseTimeOfDay(v.GetString("notify.end")); err != nil {
		return nil, fmt.Errorf("%w: notify.end: %v", ErrInvalidConfiguration, err)
	}

	return &Config{
		Path:     path,
		Backend:  backend,
		Grace:    grace,
		Hours:    hours,
		LogLevel: v.GetString("log.level"),
	}, nil
}

func span(v *viper.Viper, key string) (time.Duration, error) {
	d, _, err := timeutil.ParseSpan(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, key, err)
	}
	return d, nil
}
