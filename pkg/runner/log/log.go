// Package log records, edits and removes entries from the command line.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/printers"
)

// Prompter reads one line of text from the user.
type Prompter func(label string) (string, error)

// PromptLine asks for text on the terminal with promptui.
func PromptLine(label string) (string, error) {
	templates := &promptui.PromptTemplates{
		Prompt:  "{{ . }}: ",
		Valid:   "{{ . | green }}: ",
		Invalid: "{{ . | red }}: ",
		Success: "{{ . | bold }}: ",
	}
	prompt := promptui.Prompt{
		Label:     label,
		Templates: templates,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return entry.ErrEmptyText
			}
			return nil
		},
	}
	return prompt.Run()
}

type Log struct {
	App   *app.Service
	Text  string
	Tags  []string
	Force bool
	// Prompt is used when Text is empty. Nil means PromptLine.
	Prompt Prompter
	Out    io.Writer
}

func out(w io.Writer) io.Writer {
	if w == nil {
		return color.Output
	}
	return w
}

func (l *Log) Do(ctx context.Context) error {
	if l.App == nil {
		return errors.New("can not log, no persistence")
	}
	text := l.Text
	if strings.TrimSpace(text) == "" {
		target, err := l.App.TargetWindow(ctx)
		if err != nil {
			return err
		}
		prompt := l.Prompt
		if prompt == nil {
			prompt = PromptLine
		}
		text, err = prompt(fmt.Sprintf("What did you do %s", target))
		if err != nil {
			return err
		}
	}
	e, err := l.App.Log(ctx, text, l.Tags, l.Force)
	if err != nil {
		return err
	}
	pp := printers.PrettyPrint{Out: out(l.Out)}
	pp.Entry(e)
	return nil
}

type Edit struct {
	App  *app.Service
	ID   string
	Text string
	Tags []string
	// KeepTags leaves the existing tags untouched.
	KeepTags bool
	Prompt   Prompter
	Out      io.Writer
}

func (ed *Edit) Do(ctx context.Context) error {
	if ed.App == nil {
		return errors.New("can not edit, no persistence")
	}
	current, err := ed.App.Get(ctx, ed.ID)
	if err != nil {
		return err
	}
	text := ed.Text
	if strings.TrimSpace(text) == "" {
		prompt := ed.Prompt
		if prompt == nil {
			prompt = PromptLine
		}
		text, err = prompt(fmt.Sprintf("%s [%s]", current.Window, current.Text))
		if err != nil {
			return err
		}
	}
	tags := ed.Tags
	if ed.KeepTags {
		tags = current.Tags
	}
	e, err := ed.App.Edit(ctx, ed.ID, text, tags)
	if err != nil {
		return err
	}
	pp := printers.PrettyPrint{Out: out(ed.Out)}
	pp.Entry(e)
	return nil
}

type Delete struct {
	App *app.Service
	ID  string
	Out io.Writer
}

func (d *Delete) Do(ctx context.Context) error {
	if d.App == nil {
		return errors.New("can not delete, no persistence")
	}
	e, err := d.App.Get(ctx, d.ID)
	if err != nil {
		return err
	}
	if err := d.App.Delete(ctx, d.ID); err != nil {
		return err
	}
	f := color.New(color.Faint)
	_, _ = f.Fprintf(out(d.Out), "deleted %s\n", e)
	return nil
}
