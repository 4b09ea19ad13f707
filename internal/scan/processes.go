package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	quitChecks = 10
	quitDelay  = 300 * time.Millisecond
)

// Processes answers whether an app has a live process and can ask one to
// exit, via System Events and pkill.
type Processes struct {
	run   runner
	delay time.Duration
}

// NewProcesses returns a process checker backed by the real tools.
func NewProcesses() *Processes {
	return &Processes{run: execRunner{}, delay: quitDelay}
}

// Running reports whether any process carries the app's name.
func (p *Processes) Running(ctx context.Context, displayName string) (bool, error) {
	script := fmt.Sprintf(
		"tell application %q to count processes whose name is %q",
		"System Events", displayName,
	)

	output, err := p.run.run(ctx, "osascript", "-e", script)
	if err != nil {
		return false, fmt.Errorf("failed to check processes for %s: %w", displayName, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return false, fmt.Errorf("unexpected osascript output %q: %w", strings.TrimSpace(string(output)), err)
	}
	return count > 0, nil
}

// Quit asks the app to exit gracefully so it can flush its state, and falls
// back to killing the process by exact name when the polite route fails.
func (p *Processes) Quit(ctx context.Context, displayName string) error {
	script := fmt.Sprintf("tell application %q to quit", displayName)
	if _, err := p.run.run(ctx, "osascript", "-e", script); err == nil {
		if p.waitForExit(ctx, displayName) {
			return nil
		}
	}

	if _, err := p.run.run(ctx, "pkill", "-x", displayName); err != nil {
		// pkill exits non-zero when no process matched, which can mean
		// the graceful quit landed after the last check.
		if running, rerr := p.Running(ctx, displayName); rerr == nil && !running {
			return nil
		}
		return fmt.Errorf("failed to quit %s: %w", displayName, err)
	}
	if p.waitForExit(ctx, displayName) {
		return nil
	}
	return fmt.Errorf("%s is still running after quit", displayName)
}

func (p *Processes) waitForExit(ctx context.Context, displayName string) bool {
	for i := 0; i < quitChecks; i++ {
		running, err := p.Running(ctx, displayName)
		if err == nil && !running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.delay):
		}
	}
	return false
}
