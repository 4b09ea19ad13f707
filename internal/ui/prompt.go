package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mac-tron/brewhaul/internal/match"
	"github.com/mac-tron/brewhaul/internal/scan"
)

// AppQuitter asks a running application to exit.
type AppQuitter interface {
	Quit(ctx context.Context, displayName string) error
}

// Mode is how a migration run approves its candidates.
type Mode int

const (
	ModeCancel Mode = iota
	ModeReview
	ModeSelect
	ModeAll
)

const (
	modeReviewLabel = "Review each app before migrating"
	modeSelectLabel = "Select specific apps to migrate"
	modeAllLabel    = "Migrate all candidates"
	modeCancelLabel = "Cancel"
)

// ChooseMode asks how the run should approve its candidates. Ctrl+C at the
// menu cancels the run.
func ChooseMode(u UI, candidates int) (Mode, error) {
	title := fmt.Sprintf("Found %d apps that can move to Homebrew. How do you want to proceed?", candidates)
	choice, err := u.Select(title, []string{modeReviewLabel, modeSelectLabel, modeAllLabel, modeCancelLabel})
	if errors.Is(err, ErrAborted) {
		return ModeCancel, nil
	}
	if err != nil {
		return ModeCancel, err
	}

	switch choice {
	case modeReviewLabel:
		return ModeReview, nil
	case modeSelectLabel:
		return ModeSelect, nil
	case modeAllLabel:
		return ModeAll, nil
	default:
		return ModeCancel, nil
	}
}

// PickApps asks which candidate apps to migrate. Ctrl+C picks nothing.
func PickApps(u UI, names []string) ([]string, error) {
	picked, err := u.MultiSelect("Select applications to migrate", names)
	if errors.Is(err, ErrAborted) {
		return nil, nil
	}
	return picked, err
}

// Prompter asks the user about each candidate before the migration touches
// it. A running app is offered a quit first; declining either prompt skips
// the app, and aborting (Ctrl+C) skips everything after it.
type Prompter struct {
	ui          UI
	quitter     AppQuitter
	confirmEach bool
	picked      map[string]bool
	aborted     bool
}

// Option adjusts how a Prompter approves candidates.
type Option func(*Prompter)

// WithSelection limits approval to the named apps and drops the per-app
// confirmation for them.
func WithSelection(names []string) Option {
	return func(p *Prompter) {
		p.confirmEach = false
		p.picked = make(map[string]bool, len(names))
		for _, n := range names {
			p.picked[n] = true
		}
	}
}

// WithAutoConfirm approves every candidate without the per-app prompt.
// Running apps still get the quit prompt.
func WithAutoConfirm() Option {
	return func(p *Prompter) {
		p.confirmEach = false
	}
}

// NewPrompter builds a prompter over the given UI that quits running apps
// through the given quitter. By default every candidate is confirmed
// individually.
func NewPrompter(u UI, quitter AppQuitter, opts ...Option) *Prompter {
	p := &Prompter{
		ui:          u,
		quitter:     quitter,
		confirmEach: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Approve prompts for one candidate. The boolean and reason follow the
// planner's approver contract: declined prompts skip the app with a reason,
// only a broken prompt (no terminal) is an error.
func (p *Prompter) Approve(ctx context.Context, app scan.App, candidate match.Candidate) (bool, string, error) {
	if p.aborted {
		return false, "aborted by user", nil
	}
	if p.picked != nil && !p.picked[app.DisplayName] {
		return false, "not selected", nil
	}

	if app.Running {
		ok, reason, err := p.askQuit(ctx, app)
		if !ok {
			return false, reason, err
		}
	}

	if !p.confirmEach {
		return true, "", nil
	}

	ok, err := p.ask(
		fmt.Sprintf("Replace %s with cask %q?", app.DisplayName, candidate.Entry.Token),
		describeCandidate(candidate),
	)
	if err != nil {
		return false, "", err
	}
	if p.aborted {
		return false, "aborted by user", nil
	}
	if !ok {
		return false, "declined", nil
	}
	return true, "", nil
}

// askQuit offers to quit a running app. A declined quit never touches the
// app.
func (p *Prompter) askQuit(ctx context.Context, app scan.App) (bool, string, error) {
	ok, err := p.ask(fmt.Sprintf("%s is running. Quit it and continue?", app.DisplayName), "")
	if err != nil {
		return false, "", err
	}
	if p.aborted {
		return false, "aborted by user", nil
	}
	if !ok {
		return false, "application is running", nil
	}
	if err := p.quitter.Quit(ctx, app.DisplayName); err != nil {
		return false, fmt.Sprintf("could not quit: %v", err), nil
	}
	return true, "", nil
}

// ask runs one confirm prompt. Ctrl+C flips the prompter into aborted mode
// so the rest of the batch is skipped without further prompting.
func (p *Prompter) ask(title, description string) (bool, error) {
	ok, err := p.ui.Confirm(title, description)
	if errors.Is(err, ErrAborted) {
		p.aborted = true
		return false, nil
	}
	return ok, err
}

func describeCandidate(c match.Candidate) string {
	return fmt.Sprintf("match score %.2f (%s)", c.Score, strings.Join(c.MatchedFields, ", "))
}
