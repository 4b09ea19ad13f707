// Package ui implements the interactive side of migration: the mode menu,
// per-app approval prompts, and the quit-running-app flow.
package ui

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNonInteractive is returned when a prompt is needed but no terminal is
// attached.
var ErrNonInteractive = errors.New("interactive approval requires a terminal (use --auto to approve automatically)")

// ErrAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted by user")

// UI defines the interaction methods the migration flow needs.
type UI interface {
	Confirm(title, description string) (bool, error)
	Select(title string, options []string) (string, error)
	MultiSelect(title string, options []string) ([]string, error)
}

// HuhUI implements UI using charmbracelet/huh.
type HuhUI struct {
	isTerminal func() bool
}

// runFormFunc runs a form; swapped in tests.
var runFormFunc = func(form *huh.Form) error { return form.Run() }

// NewHuhUI creates a HuhUI using the default terminal check.
func NewHuhUI() *HuhUI {
	return &HuhUI{isTerminal: stdioIsTerminal}
}

// stdioIsTerminal reports whether stdin and stdout are both terminals.
func stdioIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Interactive reports whether prompts can be shown at all. Callers that need
// approval should check this before building forms and fall back to an
// explicit error instead of a hung prompt.
func Interactive() bool {
	return stdioIsTerminal()
}

// ensureInteractive returns an error when the UI is invoked without a terminal.
func (ui *HuhUI) ensureInteractive() error {
	checker := ui.isTerminal
	if checker == nil {
		checker = stdioIsTerminal
	}
	if checker() {
		return nil
	}
	return ErrNonInteractive
}

// runForm validates terminal availability and runs the provided form.
// A Ctrl+C abort surfaces as ErrAborted.
func (ui *HuhUI) runForm(form *huh.Form) error {
	if err := ui.ensureInteractive(); err != nil {
		return err
	}
	if err := runFormFunc(form); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

// Confirm renders a yes/no prompt.
func (ui *HuhUI) Confirm(title, description string) (bool, error) {
	var ok bool
	err := ui.runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&ok),
		),
	))
	return ok, err
}

// Select renders a single-choice prompt.
func (ui *HuhUI) Select(title string, options []string) (string, error) {
	var choice string
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}

	err := ui.runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(opts...).
				Value(&choice),
		),
	))
	return choice, err
}

// MultiSelect renders a multi-choice prompt.
func (ui *HuhUI) MultiSelect(title string, options []string) ([]string, error) {
	var selected []string
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}

	err := ui.runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Filterable(false).
				Options(opts...).
				Value(&selected),
		),
	))
	return selected, err
}
