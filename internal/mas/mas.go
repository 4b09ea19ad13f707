// Package mas wraps the mas command line, the Mac App Store CLI.
//
// mas is optional tooling. Callers treat any error here as "validation
// unavailable" and degrade, so nothing in this package retries or panics.
package mas

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// listTTL is how long one `mas list` answer is reused.
const listTTL = 5 * time.Minute

// App is one purchase recorded for the signed-in store account.
type App struct {
	ID      uint64
	Name    string
	Version string
}

type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Client talks to the mas binary on PATH.
type Client struct {
	run runner
	now func() time.Time

	mu        sync.Mutex
	apps      []App
	fetchedAt time.Time
}

// NewClient returns a client backed by the mas binary on PATH.
func NewClient() *Client {
	return &Client{run: execRunner{}, now: time.Now}
}

// Installed returns the store account's installed apps. The answer is
// memoized for a few minutes.
func (c *Client) Installed(ctx context.Context) ([]App, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apps != nil && c.now().Sub(c.fetchedAt) < listTTL {
		return c.apps, nil
	}

	output, err := c.run.run(ctx, "mas", "list")
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("mas list failed: %w (stderr: %s)", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("mas list failed: %w", err)
	}

	c.apps = parseList(string(output))
	c.fetchedAt = c.now()
	return c.apps, nil
}

// Contains reports whether the store listing includes an app with the given
// display name, case-insensitively.
func (c *Client) Contains(ctx context.Context, displayName string) (bool, error) {
	apps, err := c.Installed(ctx)
	if err != nil {
		return false, err
	}

	want := strings.ToLower(strings.TrimSpace(displayName))
	for _, app := range apps {
		if strings.ToLower(app.Name) == want {
			return true, nil
		}
	}
	return false, nil
}

// parseList parses `mas list` lines of the form
//
//	497799835   Xcode  (15.0)
//
// Lines that do not fit are skipped.
func parseList(output string) []App {
	var apps []App
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}

		app := App{ID: id}
		rest := fields[1:]
		if last := rest[len(rest)-1]; len(rest) > 1 && strings.HasPrefix(last, "(") && strings.HasSuffix(last, ")") {
			app.Version = strings.Trim(last, "()")
			rest = rest[:len(rest)-1]
		}
		app.Name = strings.Join(rest, " ")

		apps = append(apps, app)
	}
	return apps
}
