package migrate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/match"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/store"
)

// fakeExecutor records the step sequence and fails on cue. Backup paths are
// deterministic so records can be checked against them.
type fakeExecutor struct {
	ops         []string
	failBackup  map[string]error
	failInstall map[string]error
	failVerify  map[string]error
	failRestore map[string]error
	failRemove  map[string]error
}

func (f *fakeExecutor) Backup(ctx context.Context, app scan.App) (string, error) {
	f.ops = append(f.ops, "backup:"+app.DisplayName)
	if err := f.failBackup[app.DisplayName]; err != nil {
		return "", err
	}
	return filepath.Join("/backups", app.DisplayName), nil
}

func (f *fakeExecutor) Install(ctx context.Context, app scan.App, entry index.Entry) error {
	f.ops = append(f.ops, "install:"+entry.Token)
	return f.failInstall[entry.Token]
}

func (f *fakeExecutor) Verify(ctx context.Context, app scan.App, entry index.Entry) error {
	f.ops = append(f.ops, "verify:"+entry.Token)
	return f.failVerify[entry.Token]
}

func (f *fakeExecutor) Restore(ctx context.Context, app scan.App, entry index.Entry, backupPath string) error {
	f.ops = append(f.ops, "restore:"+app.DisplayName)
	return f.failRestore[app.DisplayName]
}

func (f *fakeExecutor) Remove(ctx context.Context, app scan.App, backupPath string) error {
	f.ops = append(f.ops, "remove:"+app.DisplayName)
	return f.failRemove[app.DisplayName]
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		failBackup:  map[string]error{},
		failInstall: map[string]error{},
		failVerify:  map[string]error{},
		failRestore: map[string]error{},
		failRemove:  map[string]error{},
	}
}

type approverFunc func(ctx context.Context, app scan.App, c match.Candidate) (bool, string, error)

func (f approverFunc) Approve(ctx context.Context, app scan.App, c match.Candidate) (bool, string, error) {
	return f(ctx, app, c)
}

var testEntries = []index.Entry{
	{Token: "slack", Name: "Slack", BundleIDs: []string{"com.tinyspeck.slackmacgap"}, AppNames: []string{"Slack.app"}},
	{Token: "rectangle", Name: "Rectangle", AppNames: []string{"Rectangle.app"}},
}

func manualApp(name string) scan.App {
	return scan.App{
		DisplayName: name,
		Path:        filepath.Join("/Applications", name+".app"),
		Provenance: classify.Classification{
			Verdict:    classify.Manual,
			Confidence: classify.High,
		},
	}
}

func TestRunCompletesHappyPath(t *testing.T) {
	exec := newFakeExecutor()
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Len(t, report.RunID, 36)

	rec := report.Records[0]
	assert.Equal(t, StateCompleted, rec.State)
	require.NotNil(t, rec.Candidate)
	assert.Equal(t, "slack", rec.Candidate.Entry.Token)
	assert.Equal(t, filepath.Join("/backups", "Slack"), rec.BackupPath)
	assert.False(t, rec.FinishedAt.IsZero())

	assert.Equal(t, []string{"backup:Slack", "install:slack", "verify:slack", "remove:Slack"}, exec.ops)
	assert.Equal(t, Counts{Total: 1, Completed: 1}, report.Counts())
}

func TestDryRunNeverInvokesExecutor(t *testing.T) {
	exec := newFakeExecutor()
	p := NewPlanner(testEntries, exec, WithDryRun(true))

	report, err := p.Run(context.Background(), []scan.App{
		manualApp("Slack"),
		manualApp("Some Bespoke Tool"),
	})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Empty(t, exec.ops)

	assert.Equal(t, StateCandidateFound, report.Records[0].State)
	assert.Equal(t, StateNoCandidate, report.Records[1].State)
	assert.Equal(t, Counts{Total: 2, Planned: 1, NoCandidate: 1}, report.Counts())
}

func TestProgressFiresPerApp(t *testing.T) {
	exec := newFakeExecutor()
	var seen []string
	p := NewPlanner(testEntries, exec, WithProgress(func(rec *Record) {
		seen = append(seen, rec.App.DisplayName+":"+string(rec.State))
	}))

	_, err := p.Run(context.Background(), []scan.App{
		manualApp("Slack"),
		manualApp("Some Bespoke Tool"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Slack:completed", "Some Bespoke Tool:no_candidate"}, seen)
}

func TestInstallFailureRestoresOriginal(t *testing.T) {
	exec := newFakeExecutor()
	exec.failInstall["slack"] = errors.New("download failed")
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, StepInstall, rec.FailedStep)
	assert.True(t, rec.Restored)
	assert.Contains(t, rec.Reason, "download failed")

	assert.Equal(t, []string{"backup:Slack", "install:slack", "restore:Slack"}, exec.ops)
	assert.NotContains(t, exec.ops, "remove:Slack")
}

func TestVerifyFailureRestoresOriginal(t *testing.T) {
	exec := newFakeExecutor()
	exec.failVerify["slack"] = errors.New("bundle missing")
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, StepVerify, rec.FailedStep)
	assert.True(t, rec.Restored)

	assert.Equal(t, []string{"backup:Slack", "install:slack", "verify:slack", "restore:Slack"}, exec.ops)
}

func TestBackupFailureAbortsApp(t *testing.T) {
	exec := newFakeExecutor()
	exec.failBackup["Slack"] = errors.New("disk full")
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, StepBackup, rec.FailedStep)
	assert.False(t, rec.Restored)
	assert.Empty(t, rec.BackupPath)

	// Nothing destructive may follow a failed backup.
	assert.Equal(t, []string{"backup:Slack"}, exec.ops)
}

func TestRestoreFailureReportsBothErrors(t *testing.T) {
	exec := newFakeExecutor()
	exec.failInstall["slack"] = errors.New("download failed")
	exec.failRestore["Slack"] = errors.New("rename blocked")
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateFailed, rec.State)
	assert.False(t, rec.Restored)
	assert.Contains(t, rec.Reason, "download failed")
	assert.Contains(t, rec.Reason, "rename blocked")
}

func TestRemoveFailureKeepsVerifiedInstall(t *testing.T) {
	exec := newFakeExecutor()
	exec.failRemove["Slack"] = errors.New("backup dir gone")
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, StepRemove, rec.FailedStep)
	assert.NotContains(t, exec.ops, "restore:Slack", "a verified install is never rolled back")
}

func TestFailureDoesNotHaltBatch(t *testing.T) {
	exec := newFakeExecutor()
	exec.failInstall["slack"] = errors.New("download failed")
	p := NewPlanner(testEntries, exec)

	report, err := p.Run(context.Background(), []scan.App{
		manualApp("Slack"),
		manualApp("Rectangle"),
	})
	require.NoError(t, err)

	assert.Equal(t, StateFailed, report.Records[0].State)
	assert.Equal(t, StateCompleted, report.Records[1].State)
	assert.Equal(t, Counts{Total: 2, Completed: 1, Failed: 1}, report.Counts())
}

func TestRunningAppIsSkippedWithoutPrompting(t *testing.T) {
	exec := newFakeExecutor()
	p := NewPlanner(testEntries, exec)

	app := manualApp("Slack")
	app.Running = true
	report, err := p.Run(context.Background(), []scan.App{app})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateSkipped, rec.State)
	assert.Equal(t, "application is running", rec.Reason)
	assert.Empty(t, exec.ops)
}

func TestIneligibleVerdictsAreSkipped(t *testing.T) {
	exec := newFakeExecutor()
	p := NewPlanner(testEntries, exec)

	managed := manualApp("Slack")
	managed.Provenance.Verdict = classify.ManagedPackage
	unknown := manualApp("Rectangle")
	unknown.Provenance.Verdict = classify.Unknown

	report, err := p.Run(context.Background(), []scan.App{managed, unknown})
	require.NoError(t, err)

	assert.Equal(t, StateSkipped, report.Records[0].State)
	assert.Equal(t, "already managed by Homebrew", report.Records[0].Reason)
	assert.Equal(t, StateSkipped, report.Records[1].State)
	assert.Equal(t, "provenance unknown", report.Records[1].Reason)
	assert.Empty(t, exec.ops)
}

func TestApproverDeclineSkips(t *testing.T) {
	exec := newFakeExecutor()
	decline := approverFunc(func(ctx context.Context, app scan.App, c match.Candidate) (bool, string, error) {
		return false, "declined by user", nil
	})
	p := NewPlanner(testEntries, exec, WithApprover(decline))

	report, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, StateSkipped, rec.State)
	assert.Equal(t, "declined by user", rec.Reason)
	assert.Empty(t, exec.ops)
}

func TestApproverErrorSkipsAndContinues(t *testing.T) {
	exec := newFakeExecutor()
	calls := 0
	flaky := approverFunc(func(ctx context.Context, app scan.App, c match.Candidate) (bool, string, error) {
		calls++
		if calls == 1 {
			return false, "", errors.New("stdin closed")
		}
		return true, "", nil
	})
	p := NewPlanner(testEntries, exec, WithApprover(flaky))

	report, err := p.Run(context.Background(), []scan.App{
		manualApp("Slack"),
		manualApp("Rectangle"),
	})
	require.NoError(t, err)

	assert.Equal(t, StateSkipped, report.Records[0].State)
	assert.Equal(t, "stdin closed", report.Records[0].Reason)
	assert.Equal(t, StateCompleted, report.Records[1].State)
}

func TestRunRequiresExecutor(t *testing.T) {
	p := NewPlanner(testEntries, nil)
	_, err := p.Run(context.Background(), []scan.App{manualApp("Slack")})
	assert.ErrorContains(t, err, "executor")
}

func TestRunPersistsHistory(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.CreateSchema())

	exec := newFakeExecutor()
	p := NewPlanner(testEntries, exec, WithHistory(st))

	running := manualApp("Rectangle")
	running.Running = true
	report, err := p.Run(context.Background(), []scan.App{
		manualApp("Slack"),
		manualApp("Some Bespoke Tool"),
		running,
	})
	require.NoError(t, err)

	rows, err := st.ListMigrations(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byApp := make(map[string]*store.Migration, len(rows))
	for _, row := range rows {
		assert.Equal(t, report.RunID, row.RunID)
		byApp[row.AppName] = row
	}
	assert.Equal(t, "completed", byApp["Slack"].Outcome)
	assert.Equal(t, "slack", byApp["Slack"].CaskToken)
	assert.Equal(t, "skipped", byApp["Some Bespoke Tool"].Outcome)
	assert.Equal(t, "no matching cask", byApp["Some Bespoke Tool"].Reason)
	assert.Equal(t, "skipped", byApp["Rectangle"].Outcome)
	assert.Equal(t, "application is running", byApp["Rectangle"].Reason)
}

func TestDryRunPersistsNothing(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.CreateSchema())

	p := NewPlanner(testEntries, nil, WithDryRun(true), WithHistory(st))
	_, err = p.Run(context.Background(), []scan.App{manualApp("Slack")})
	require.NoError(t, err)

	rows, err := st.ListMigrations(10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
