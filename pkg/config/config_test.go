package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestGraceValidate(t *testing.T) {
	tests := map[string]struct {
		grace   Grace
		wantErr bool
	}{
		"default":             {grace: DefaultGrace()},
		"zero grace":          {grace: Grace{WindowDuration: time.Hour}},
		"early grace":         {grace: Grace{WindowDuration: time.Hour, EarlyGrace: time.Minute}},
		"zero window":         {grace: Grace{}, wantErr: true},
		"negative window":     {grace: Grace{WindowDuration: -time.Minute}, wantErr: true},
		"fractional window":   {grace: Grace{WindowDuration: time.Minute + time.Millisecond}, wantErr: true},
		"uneven window":       {grace: Grace{WindowDuration: 7 * time.Minute}, wantErr: true},
		"ninety minutes":      {grace: Grace{WindowDuration: 90 * time.Minute}},
		"window over a day":   {grace: Grace{WindowDuration: 25 * time.Hour}, wantErr: true},
		"grace equals window": {grace: Grace{WindowDuration: time.Hour, LateGrace: time.Hour}, wantErr: true},
		"negative grace":      {grace: Grace{WindowDuration: time.Hour, LateGrace: -time.Second}, wantErr: true},
		"early over window":   {grace: Grace{WindowDuration: time.Hour, EarlyGrace: 2 * time.Hour}, wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.grace.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Grace != DefaultGrace() {
		t.Fatalf("unexpected grace %+v", cfg.Grace)
	}
	if cfg.Backend != BackendDiskv {
		t.Fatalf("unexpected backend %q", cfg.Backend)
	}
	if cfg.Hours.Start != 480 || cfg.Hours.End != 1320 {
		t.Fatalf("unexpected hours %+v", cfg.Hours)
	}
	if cfg.Path == DefaultPath {
		t.Fatalf("expected path to be expanded, got %q", cfg.Path)
	}
}

func TestFromViperRejectsGraceLongerThanWindow(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("window", "15m")
	v.Set("grace.late", "20m")
	if _, err := FromViper(v); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestFromViperRejectsUnknownBackend(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("backend", "postgres")
	if _, err := FromViper(v); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	body := "path: " + filepath.Join(dir, "db") + "\nbackend: sqlite\nwindow: 1h\ngrace:\n  late: 10m\nnotify:\n  start: \"09:00\"\n  end: \"17:00\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".tock.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TOCK_CONFIG_PATH", dir)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Fatalf("unexpected backend %q", cfg.Backend)
	}
	if cfg.Grace.WindowDuration != time.Hour || cfg.Grace.LateGrace != 10*time.Minute {
		t.Fatalf("unexpected grace %+v", cfg.Grace)
	}
	if cfg.BasePath() != filepath.Join(dir, "db") {
		t.Fatalf("unexpected path %q", cfg.BasePath())
	}
	if cfg.Hours.String() != "09:00–17:00" {
		t.Fatalf("unexpected hours %s", cfg.Hours)
	}
}

func TestHoursAllows(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 5, 1, h, m, 0, 0, time.UTC) }
	office := Hours{Start: 9 * 60, End: 17 * 60}
	if !office.Allows(day(9, 0)) || office.Allows(day(17, 0)) || office.Allows(day(8, 59)) {
		t.Fatalf("office hours misclassified")
	}
	night := Hours{Start: 22 * 60, End: 6 * 60}
	if !night.Allows(day(23, 0)) || !night.Allows(day(5, 59)) || night.Allows(day(12, 0)) {
		t.Fatalf("overnight hours misclassified")
	}
	if !AllDay().Allows(day(3, 0)) {
		t.Fatalf("all day should allow everything")
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	t.Setenv("TOCK_CONFIG_PATH", t.TempDir())
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.String("window", "", "")
	if err := flags.Parse([]string{"--backend=memory", "--window=15m"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.Grace.WindowDuration != 15*time.Minute {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}
