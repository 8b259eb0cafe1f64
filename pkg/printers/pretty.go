package printers

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/timeutil"
	"tableflip.dev/tock/pkg/window"
)

type PrettyPrint struct {
	ShowID bool
	// Out defaults to color.Output.
	Out io.Writer
}

const dayLayout = "Monday, January 2"

var (
	spacing = strings.Repeat(" ", len("ffffffff-ffff-ffff-ffff-ffffffffffff  "))
)

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out == nil {
		return color.Output
	}
	return pp.Out
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int, one, many string) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintln(pp.out(), " "+one)
	default:
		_, _ = c.Fprintln(pp.out(), " "+many)
	}
}

func stateColor(s window.State) *color.Color {
	switch s {
	case window.Open:
		return color.New(color.FgGreen, color.Bold)
	case window.LateGrace:
		return color.New(color.FgYellow, color.Bold)
	case window.TooEarly:
		return color.New(color.FgCyan, color.Bold)
	default:
		return color.New(color.Faint, color.Bold)
	}
}

// State prints one evaluation as a single line.
func (pp *PrettyPrint) State(ev window.Evaluation) {
	f := color.New(color.Faint)
	_, _ = stateColor(ev.State).Fprintf(pp.out(), "%-10s", ev.State)
	_, _ = fmt.Fprintf(pp.out(), " %s", ev.Target)
	_, _ = f.Fprintf(pp.out(), "  %s left\n", timeutil.FormatSpan(ev.Remaining))
}

// Status prints the state table followed by the missed windows.
func (pp *PrettyPrint) Status(st app.Status) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("State"), stateColor(st.State).Sprint(st.State))
	tbl.AddRow(bold.Sprint("Window"), st.Current.String())
	tbl.AddRow(bold.Sprint("Log to"), st.Target.String())
	tbl.AddRow(bold.Sprint("Remaining"), timeutil.FormatSpan(st.Remaining))
	if st.Duplicates > 0 {
		tbl.AddRow(bold.Sprint("Duplicates"), fmt.Sprintf("%d", st.Duplicates))
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(pp.out(), tbl)
	pp.NewLine()
	pp.Windows("Missed", st.Missed)
}

// Windows prints a list of windows grouped under day headings.
func (pp *PrettyPrint) Windows(title string, windows []interval.Window) {
	pp.TitleWithCount(title, len(windows), "window", "windows")
	if len(windows) == 0 {
		pp.none()
		return
	}
	f := color.New(color.Faint)
	var day string
	for _, w := range windows {
		if d := w.Start.Format(dayLayout); d != day {
			day = d
			_, _ = f.Fprintf(pp.out(), "  %s\n", day)
		}
		_, _ = fmt.Fprintf(pp.out(), "    %s\n", w)
	}
	pp.NewLine()
}

// Entries prints entries as a table, one row per entry.
func (pp *PrettyPrint) Entries(entries ...*entry.Entry) {
	if len(entries) == 0 {
		pp.none()
		return
	}
	y := color.New(color.FgHiYellow, color.Italic, color.Faint)
	f := color.New(color.Faint)
	tags := color.New(color.FgCyan)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.Wrap = true
	tbl.MaxColWidth = 60
	for _, e := range entries {
		row := []interface{}{}
		if pp.ShowID {
			row = append(row, y.Sprint(e.ID))
		}
		row = append(row, f.Sprint(e.Window.Start.Format("Jan 2")), e.Window.String(), e.Text)
		if len(e.Tags) > 0 {
			row = append(row, tags.Sprint("#"+strings.Join(e.Tags, " #")))
		} else {
			row = append(row, "")
		}
		tbl.AddRow(row...)
	}
	_, _ = fmt.Fprintln(pp.out(), tbl)
	pp.NewLine()
}

// Entry prints a single entry.
func (pp *PrettyPrint) Entry(e *entry.Entry) {
	if pp.ShowID {
		y := color.New(color.FgHiYellow, color.Italic, color.Faint)
		_, _ = y.Fprint(pp.out(), e.ID)
		_, _ = fmt.Fprint(pp.out(), strings.Repeat(" ", max(1, len(spacing)-len(e.ID))))
	}
	_, _ = fmt.Fprintln(pp.out(), e.String())
}

// Summary prints per-day coverage for a report.
func (pp *PrettyPrint) Summary(res app.SummaryResult) {
	pp.Title(fmt.Sprintf("%s to %s", res.Since.Format("Jan 2 15:04"), res.Until.Format("Jan 2 15:04")))
	if len(res.Days) == 0 {
		pp.none()
		return
	}
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Day"), bold.Sprint("Logged"), bold.Sprint("Missed"), bold.Sprint("Coverage"))
	for _, d := range res.Days {
		missed := fmt.Sprintf("%d", len(d.Missed))
		if len(d.Missed) > 0 {
			missed = red.Sprint(missed)
		}
		tbl.AddRow(d.Day.Format(dayLayout), d.Logged, missed, coverage(d.Logged, d.Windows()))
	}
	tbl.RightAlign(1)
	tbl.RightAlign(2)
	tbl.RightAlign(3)
	_, _ = fmt.Fprintln(pp.out(), tbl)
	pp.NewLine()
	for _, d := range res.Days {
		if len(d.Entries) == 0 {
			continue
		}
		pp.TitleWithCount(d.Day.Format(dayLayout), len(d.Entries), "entry", "entries")
		pp.Entries(d.Entries...)
	}
}

// Transition prints a state change observed by a running watch.
func (pp *PrettyPrint) Transition(at time.Time, ev window.Evaluation) {
	f := color.New(color.Faint)
	_, _ = f.Fprintf(pp.out(), "%s ", at.Format("15:04:05"))
	pp.State(ev)
}

func (pp *PrettyPrint) none() {
	f := color.New(color.Faint, color.Italic)
	_, _ = f.Fprint(pp.out(), " none\n\n")
}

func coverage(logged, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", logged*100/total)
}
