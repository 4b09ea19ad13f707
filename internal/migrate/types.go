package migrate

import (
	"time"

	"github.com/mac-tron/brewhaul/internal/match"
	"github.com/mac-tron/brewhaul/internal/scan"
)

// State of one app within a migration run. An app only ever moves forward
// through these states; Failed and Skipped are terminal wherever they occur.
type State string

const (
	StateDiscovered     State = "discovered"
	StateCandidateFound State = "candidate_found"
	StateNoCandidate    State = "no_candidate"
	StateApproved       State = "approved"
	StateBackedUp       State = "backed_up"
	StateInstalled      State = "installed"
	StateVerified       State = "verified"
	StateRemoved        State = "removed"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateSkipped        State = "skipped"
)

// Terminal reports whether the state ends an app's journey.
func (s State) Terminal() bool {
	switch s {
	case StateCandidateFound, StateNoCandidate, StateCompleted, StateFailed, StateSkipped:
		return true
	}
	return false
}

// Step names the migration step a failure is attributed to.
type Step string

const (
	StepBackup  Step = "backup"
	StepInstall Step = "install"
	StepVerify  Step = "verify"
	StepRestore Step = "restore"
	StepRemove  Step = "remove"
)

// Record is one app's journey through a run.
type Record struct {
	App        scan.App
	Candidate  *match.Candidate
	State      State
	FailedStep Step
	Reason     string
	BackupPath string
	Restored   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Record) fail(step Step, reason string) {
	r.State = StateFailed
	r.FailedStep = step
	r.Reason = reason
	r.FinishedAt = time.Now()
}

func (r *Record) skip(reason string) {
	r.State = StateSkipped
	r.Reason = reason
	r.FinishedAt = time.Now()
}

func (r *Record) finish(state State) {
	r.State = state
	r.FinishedAt = time.Now()
}

// Report is the outcome of one run.
type Report struct {
	RunID      string
	DryRun     bool
	Records    []*Record
	StartedAt  time.Time
	FinishedAt time.Time
}

// Counts summarizes a report's terminal states.
type Counts struct {
	Total       int
	Planned     int
	NoCandidate int
	Completed   int
	Failed      int
	Skipped     int
}

// Counts tallies the report's records.
func (r *Report) Counts() Counts {
	c := Counts{Total: len(r.Records)}
	for _, rec := range r.Records {
		switch rec.State {
		case StateCandidateFound:
			c.Planned++
		case StateNoCandidate:
			c.NoCandidate++
		case StateCompleted:
			c.Completed++
		case StateFailed:
			c.Failed++
		case StateSkipped:
			c.Skipped++
		}
	}
	return c
}
