// Package status prints the clock state and missed windows.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/printers"
	"tableflip.dev/tock/pkg/reconcile"
)

type Status struct {
	App *app.Service
	// Since bounds missed windows; zero means the earliest entry.
	Since time.Time
	JSON  bool
	Out   io.Writer
}

func (s *Status) out() io.Writer {
	if s.Out == nil {
		return color.Output
	}
	return s.Out
}

func (s *Status) Do(ctx context.Context) error {
	if s.App == nil {
		return errors.New("can not get status, no persistence")
	}
	st, err := s.App.Status(ctx, s.Since)
	if err != nil {
		return err
	}
	if s.JSON {
		return writeJSON(s.out(), map[string]any{
			"state":     st.State,
			"current":   st.Current,
			"target":    st.Target,
			"deadline":  st.Deadline,
			"remaining": st.Remaining.String(),
			"missed":    nonNil(st.Missed),
		})
	}
	pp := printers.PrettyPrint{Out: s.out()}
	pp.Status(st)
	return nil
}

// Missed prints only the missed windows.
type Missed struct {
	App   *app.Service
	Since time.Time
	// Last keeps only the newest Last windows when positive.
	Last int
	JSON bool
	Out  io.Writer
}

func (m *Missed) Do(ctx context.Context) error {
	if m.App == nil {
		return errors.New("can not list missed windows, no persistence")
	}
	missed, err := m.App.MissedWindows(ctx, m.Since)
	if err != nil {
		return err
	}
	missed = reconcile.Last(missed, m.Last)
	out := m.Out
	if out == nil {
		out = color.Output
	}
	if m.JSON {
		return writeJSON(out, map[string]any{
			"missed": nonNil(missed),
			"count":  len(missed),
		})
	}
	pp := printers.PrettyPrint{Out: out}
	pp.Windows("Missed", missed)
	return nil
}

func nonNil(ws []interval.Window) []interval.Window {
	if ws == nil {
		return []interval.Window{}
	}
	return ws
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
