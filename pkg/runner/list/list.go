// Package list prints stored entries and day summaries.
package list

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/printers"
)

type List struct {
	App *app.Service
	// Since drops entries whose window starts earlier; zero keeps all.
	Since  time.Time
	Tag    string
	ShowID bool
	JSON   bool
	Out    io.Writer
}

func output(w io.Writer) io.Writer {
	if w == nil {
		return color.Output
	}
	return w
}

func (l *List) Do(ctx context.Context) error {
	if l.App == nil {
		return errors.New("can not list, no persistence")
	}
	all, err := l.App.Entries(ctx)
	if err != nil {
		return err
	}
	entries := make([]*entry.Entry, 0, len(all))
	for _, e := range all {
		if !l.Since.IsZero() && e.Window.Start.Before(l.Since) {
			continue
		}
		if l.Tag != "" && !hasTag(e, l.Tag) {
			continue
		}
		entries = append(entries, e)
	}
	if l.JSON {
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(output(l.Out), string(b))
		return err
	}
	pp := printers.PrettyPrint{ShowID: l.ShowID, Out: output(l.Out)}
	pp.TitleWithCount("Entries", len(entries), "entry", "entries")
	pp.Entries(entries...)
	return nil
}

func hasTag(e *entry.Entry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type Summary struct {
	App   *app.Service
	Since time.Time
	Until time.Time
	JSON  bool
	Out   io.Writer
}

func (s *Summary) Do(ctx context.Context) error {
	if s.App == nil {
		return errors.New("can not summarize, no persistence")
	}
	res, err := s.App.Summary(ctx, s.Since, s.Until)
	if err != nil {
		return err
	}
	if s.JSON {
		days := make([]map[string]any, 0, len(res.Days))
		for _, d := range res.Days {
			days = append(days, map[string]any{
				"day":     d.Day.Format("2006-01-02"),
				"logged":  d.Logged,
				"missed":  len(d.Missed),
				"entries": d.Entries,
			})
		}
		b, err := json.MarshalIndent(map[string]any{
			"since":  res.Since,
			"until":  res.Until,
			"logged": res.Logged,
			"missed": res.Missed,
			"days":   days,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(output(s.Out), string(b))
		return err
	}
	pp := printers.PrettyPrint{Out: output(s.Out)}
	pp.Summary(res)
	return nil
}
