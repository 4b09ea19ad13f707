// Package migrate plans and executes app-to-cask migrations. Candidate
// discovery is pure matching against the cask catalog; the destructive part
// runs through an Executor one app at a time, backup first, with rollback on
// any failure before the original bundle is let go.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/match"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/store"
)

// Approver decides whether an approved candidate actually proceeds.
// Implementations may prompt; the planner only sees the decision. A running
// app must be quit here or declined, in which case the reason explains the
// skip.
type Approver interface {
	Approve(ctx context.Context, app scan.App, candidate match.Candidate) (ok bool, reason string, err error)
}

// AutoApprover approves every candidate without prompting, except apps that
// are currently running (quitting them needs an interactive session).
type AutoApprover struct{}

func (AutoApprover) Approve(ctx context.Context, app scan.App, candidate match.Candidate) (bool, string, error) {
	if app.Running {
		return false, "application is running", nil
	}
	return true, "", nil
}

// HistoryWriter persists per-app outcomes after a run.
type HistoryWriter interface {
	InsertMigration(m *store.Migration) (int64, error)
}

// Planner matches apps against the cask catalog and drives the executor.
type Planner struct {
	entries  []index.Entry
	exec     Executor
	approver Approver
	history  HistoryWriter
	progress func(*Record)
	dryRun   bool
}

// Option configures a Planner.
type Option func(*Planner)

// WithApprover replaces the default AutoApprover.
func WithApprover(a Approver) Option {
	return func(p *Planner) { p.approver = a }
}

// WithDryRun stops every app at candidate discovery. The executor is never
// invoked and nothing is persisted.
func WithDryRun(dryRun bool) Option {
	return func(p *Planner) { p.dryRun = dryRun }
}

// WithHistory persists each record's outcome to the migrations table.
func WithHistory(h HistoryWriter) Option {
	return func(p *Planner) { p.history = h }
}

// WithProgress invokes fn after each app settles, whatever its outcome.
func WithProgress(fn func(*Record)) Option {
	return func(p *Planner) { p.progress = fn }
}

// NewPlanner builds a planner over a catalog snapshot. The executor may be
// nil only for dry runs.
func NewPlanner(entries []index.Entry, exec Executor, opts ...Option) *Planner {
	p := &Planner{
		entries:  entries,
		exec:     exec,
		approver: AutoApprover{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run migrates the given apps one at a time. Per-app failures are recorded
// in the report and never halt the batch; Run itself errors only on context
// cancellation, a missing executor, or a history write failure at the end.
func (p *Planner) Run(ctx context.Context, apps []scan.App) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		DryRun:    p.dryRun,
		StartedAt: time.Now(),
	}
	if !p.dryRun && p.exec == nil {
		return report, fmt.Errorf("migration requires an executor")
	}

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}
		rec := p.migrateOne(ctx, app)
		report.Records = append(report.Records, rec)
		if p.progress != nil {
			p.progress(rec)
		}
	}
	report.FinishedAt = time.Now()

	if !p.dryRun && p.history != nil {
		if err := p.persist(report); err != nil {
			return report, fmt.Errorf("migration finished but recording history failed: %w", err)
		}
	}
	return report, nil
}

func (p *Planner) migrateOne(ctx context.Context, app scan.App) *Record {
	rec := &Record{App: app, State: StateDiscovered, StartedAt: time.Now()}

	// Apps brew already manages need no migration, and apps whose origin
	// could not be determined are never safe to replace automatically.
	switch app.Provenance.Verdict {
	case classify.ManagedPackage:
		rec.skip("already managed by Homebrew")
		return rec
	case classify.Unknown:
		rec.skip("provenance unknown")
		return rec
	}

	candidate, ok := match.Best(match.Query{
		Name:     app.DisplayName,
		BundleID: app.BundleID,
		Version:  app.Version,
	}, p.entries)
	if !ok {
		rec.finish(StateNoCandidate)
		return rec
	}
	rec.Candidate = &candidate
	rec.State = StateCandidateFound

	if p.dryRun {
		rec.FinishedAt = time.Now()
		return rec
	}

	approved, reason, err := p.approver.Approve(ctx, app, candidate)
	if err != nil {
		rec.skip(err.Error())
		return rec
	}
	if !approved {
		if reason == "" {
			reason = "declined"
		}
		rec.skip(reason)
		return rec
	}
	rec.State = StateApproved

	p.execute(ctx, rec)
	return rec
}

// execute walks one approved app through the backup-first step sequence.
func (p *Planner) execute(ctx context.Context, rec *Record) {
	app := rec.App
	entry := rec.Candidate.Entry

	backupPath, err := p.exec.Backup(ctx, app)
	if err != nil {
		// Nothing destructive has happened yet.
		rec.fail(StepBackup, err.Error())
		return
	}
	rec.BackupPath = backupPath
	rec.State = StateBackedUp

	if err := p.exec.Install(ctx, app, entry); err != nil {
		p.rollback(ctx, rec, StepInstall, err)
		return
	}
	rec.State = StateInstalled

	if err := p.exec.Verify(ctx, app, entry); err != nil {
		p.rollback(ctx, rec, StepVerify, err)
		return
	}
	rec.State = StateVerified

	if err := p.exec.Remove(ctx, app, rec.BackupPath); err != nil {
		// The verified install stays; only the backup copy's fate is unsettled.
		rec.fail(StepRemove, err.Error())
		return
	}
	rec.State = StateRemoved
	rec.finish(StateCompleted)
}

// rollback puts the original bundle back after a failed install or verify so
// the app ends the run unchanged.
func (p *Planner) rollback(ctx context.Context, rec *Record, step Step, cause error) {
	if rerr := p.exec.Restore(ctx, rec.App, rec.Candidate.Entry, rec.BackupPath); rerr != nil {
		rec.fail(step, fmt.Sprintf("%v; restore failed: %v", cause, rerr))
		return
	}
	rec.Restored = true
	rec.fail(step, cause.Error())
}

func (p *Planner) persist(report *Report) error {
	for _, rec := range report.Records {
		m := &store.Migration{
			RunID:      report.RunID,
			AppName:    rec.App.DisplayName,
			BundleID:   rec.App.BundleID,
			Outcome:    outcomeFor(rec),
			FailedStep: string(rec.FailedStep),
			Reason:     rec.Reason,
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
		}
		if rec.Candidate != nil {
			m.CaskToken = rec.Candidate.Entry.Token
		}
		if rec.State == StateNoCandidate {
			m.Reason = "no matching cask"
		}
		if _, err := p.history.InsertMigration(m); err != nil {
			return fmt.Errorf("failed to record outcome for %s: %w", rec.App.DisplayName, err)
		}
	}
	return nil
}

func outcomeFor(rec *Record) string {
	switch rec.State {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateNoCandidate:
		return "skipped"
	default:
		return "skipped"
	}
}
