package options

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/timeutil"
)

const (
	layoutISO      = "2006-1-2"
	layoutISOShort = "1/2"
)

// SinceOptions bounds a query to recent windows.
type SinceOptions struct {
	Since string
}

func AddSinceArg(cmd *cobra.Command, o *SinceOptions, usage string) {
	cmd.Flags().StringVar(&o.Since, "since", "", usage)
}

// GetSince resolves --since against now. It accepts a lookback such as "8h"
// or "1w2d", or a date such as "2026-3-2" or "3/2" meaning local midnight.
// An empty value resolves to the zero time.
func (o *SinceOptions) GetSince(now time.Time) (time.Time, error) {
	v := strings.TrimSpace(o.Since)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(layoutISO, v, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(layoutISOShort, v, now.Location()); err == nil {
		t = t.AddDate(now.Year(), 0, 0)
		// A short date later than today means last year.
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, nil
	}
	d, _, err := timeutil.ParseLookback(v)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
