// Package brew wraps the Homebrew command line.
//
// Every call shells out to brew. The installed-cask listing is the one
// answer asked for once per app during a scan, so it is memoized for a few
// minutes; mutations invalidate the memo.
package brew

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// installedCasksTTL is how long one `brew list` answer is reused before the
// command runs again.
const installedCasksTTL = 5 * time.Minute

// runner executes a command and returns its stdout. Swapped out in tests.
type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
	runCombined(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// stderrOf extracts captured stderr from an exec error, if any.
func stderrOf(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return ""
}

// Client talks to the local Homebrew installation.
type Client struct {
	run runner
	now func() time.Time

	mu        sync.Mutex
	casks     map[string]Cask
	fetchedAt time.Time
}

// NewClient returns a client backed by the brew binary on PATH.
func NewClient() *Client {
	return &Client{run: execRunner{}, now: time.Now}
}

// Version returns the first line of `brew --version`, or an error when brew
// is not usable.
func (c *Client) Version(ctx context.Context) (string, error) {
	output, err := c.run.run(ctx, "brew", "--version")
	if err != nil {
		if stderr := stderrOf(err); stderr != "" {
			return "", fmt.Errorf("brew --version failed: %w (stderr: %s)", err, stderr)
		}
		return "", fmt.Errorf("brew --version failed: %w", err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(output)), "\n", 2)
	return lines[0], nil
}

// InstalledCasks returns the installed casks keyed by token. The answer is
// memoized; mutations through this client invalidate it.
func (c *Client) InstalledCasks(ctx context.Context) (map[string]Cask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.casks != nil && c.now().Sub(c.fetchedAt) < installedCasksTTL {
		return c.casks, nil
	}

	output, err := c.run.run(ctx, "brew", "list", "--cask", "--json=v2")
	if err != nil {
		if stderr := stderrOf(err); stderr != "" {
			return nil, fmt.Errorf("brew list failed: %w (stderr: %s)", err, stderr)
		}
		return nil, fmt.Errorf("brew list failed: %w", err)
	}

	casks, err := parseInstalledCasks(output)
	if err != nil {
		return nil, err
	}

	c.casks = casks
	c.fetchedAt = c.now()
	return casks, nil
}

func parseInstalledCasks(output []byte) (map[string]Cask, error) {
	var listOutput brewListOutput
	if err := json.Unmarshal(output, &listOutput); err != nil {
		return nil, fmt.Errorf("failed to parse brew list output: %w", err)
	}

	casks := make(map[string]Cask, len(listOutput.Casks))
	for _, ck := range listOutput.Casks {
		casks[ck.Token] = Cask{Token: ck.Token, Version: ck.Version, Tap: ck.Tap}
	}
	return casks, nil
}

// CaskInstalled reports whether the given token is an installed cask.
func (c *Client) CaskInstalled(ctx context.Context, token string) (bool, error) {
	casks, err := c.InstalledCasks(ctx)
	if err != nil {
		return false, err
	}
	_, ok := casks[token]
	return ok, nil
}

// RecordsApp reports whether any installed cask plausibly accounts for an
// app with the given display name. Cask tokens are lowercase and
// dash-separated, so the name is tried in both dashed and squashed forms.
func (c *Client) RecordsApp(ctx context.Context, displayName string) (bool, error) {
	casks, err := c.InstalledCasks(ctx)
	if err != nil {
		return false, err
	}

	for _, candidate := range tokenCandidates(displayName) {
		if _, ok := casks[candidate]; ok {
			return true, nil
		}
	}
	return false, nil
}

// tokenCandidates derives plausible cask tokens from an app display name:
// "Visual Studio Code" tries visual-studio-code and visualstudiocode.
func tokenCandidates(displayName string) []string {
	name := strings.ToLower(strings.TrimSpace(displayName))
	name = strings.TrimSuffix(name, ".app")
	if name == "" {
		return nil
	}

	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '_'
	})

	dashed := strings.Join(fields, "-")
	squashed := strings.Join(fields, "")
	if dashed == squashed {
		return []string{dashed}
	}
	return []string{dashed, squashed}
}

// SearchCasks returns cask tokens matching the query. A non-zero exit with
// empty stderr means no results, not an error.
func (c *Client) SearchCasks(ctx context.Context, query string) ([]string, error) {
	output, err := c.run.run(ctx, "brew", "search", "--cask", query)
	if err != nil {
		if stderr := stderrOf(err); stderr != "" {
			return nil, fmt.Errorf("brew search failed: %w (stderr: %s)", err, stderr)
		}
		return nil, nil
	}

	var tokens []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		token := strings.TrimSpace(line)
		if token == "" || strings.HasPrefix(token, "==>") {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// InvalidateInstalled drops the memoized cask listing.
func (c *Client) InvalidateInstalled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.casks = nil
}
