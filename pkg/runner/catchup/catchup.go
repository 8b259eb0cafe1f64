// Package catchup drives an interactive back-fill of missed windows.
package catchup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/catchup"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/printers"
	"tableflip.dev/tock/pkg/runner/log"
)

// Selector shows items with the cursor at cursor and returns the chosen index.
type Selector func(label string, items []string, cursor int) (int, error)

// PromptSelect is a Selector backed by promptui.
func PromptSelect(label string, items []string, cursor int) (int, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "➜  {{ . | bold }}",
		Inactive: "   {{ . }}",
		Selected: "   {{ . | faint }}",
	}
	prompt := promptui.Select{
		HideHelp:  true,
		Label:     label,
		Items:     items,
		Templates: templates,
		Size:      12,
		CursorPos: cursor,
	}
	i, _, err := prompt.Run()
	return i, err
}

const (
	itemDone    = "done"
	itemAll     = "select all"
	itemAbandon = "abandon"
)

type CatchUp struct {
	App   *app.Service
	Since time.Time
	// All selects every missed window without asking.
	All bool
	// Text is the entry text; empty means prompt for it.
	Text   string
	Select Selector
	Prompt log.Prompter
	Out    io.Writer
}

func (c *CatchUp) Do(ctx context.Context) error {
	if c.App == nil {
		return errors.New("can not catch up, no persistence")
	}
	out := c.Out
	if out == nil {
		out = color.Output
	}
	pp := printers.PrettyPrint{Out: out}

	sess := c.App.CatchUp(c.Since)
	candidates, err := sess.Begin(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		pp.Windows("Missed", candidates)
		return nil
	}

	if c.All {
		sess.SelectAll()
	} else {
		ok, err := c.choose(sess, candidates)
		if err != nil {
			sess.Abandon()
			return err
		}
		if !ok {
			sess.Abandon()
			_, _ = color.New(color.Faint).Fprintln(out, "abandoned, nothing written")
			return nil
		}
	}

	selected := sess.Selected()
	if len(selected) == 0 {
		sess.Abandon()
		return catchup.ErrEmptySelection
	}

	text := c.Text
	if strings.TrimSpace(text) == "" {
		prompt := c.Prompt
		if prompt == nil {
			prompt = log.PromptLine
		}
		text, err = prompt(fmt.Sprintf("What did you do in these %d windows", len(selected)))
		if err != nil {
			sess.Abandon()
			return err
		}
	}

	res, err := sess.Commit(ctx, text)
	if len(res.Succeeded) > 0 {
		pp.TitleWithCount("Logged", len(res.Succeeded), "window", "windows")
		pp.Entries(res.Succeeded...)
	}
	if len(res.Failed) > 0 {
		red := color.New(color.FgRed)
		for _, f := range res.Failed {
			_, _ = red.Fprintf(out, "  %s\n", f)
		}
	}
	return err
}

// choose runs the selection loop. It returns false when the user abandons.
func (c *CatchUp) choose(sess *catchup.Session, candidates []interval.Window) (bool, error) {
	sel := c.Select
	if sel == nil {
		sel = PromptSelect
	}
	cursor := 0
	for {
		picked := make(map[interval.Key]bool)
		for _, w := range sess.Selected() {
			picked[w.Key()] = true
		}
		items := make([]string, 0, len(candidates)+3)
		for _, w := range candidates {
			mark := "[ ]"
			if picked[w.Key()] {
				mark = "[x]"
			}
			items = append(items, fmt.Sprintf("%s %s", mark, w.Label()))
		}
		items = append(items, itemDone, itemAll, itemAbandon)

		label := fmt.Sprintf("Select missed windows (%d of %d)", len(picked), len(candidates))
		i, err := sel(label, items, cursor)
		if err != nil {
			return false, err
		}
		cursor = i
		switch {
		case i < len(candidates):
			sess.Toggle(candidates[i])
		case items[i] == itemDone:
			return true, nil
		case items[i] == itemAll:
			sess.SelectAll()
		default:
			return false, nil
		}
	}
}
