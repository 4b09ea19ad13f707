package scan

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// metadata reads per-bundle attributes through Spotlight with an Info.plist
// fallback. Every method returns "" rather than an error for an attribute
// the bundle simply does not carry.
type metadata struct {
	run runner
}

func newMetadata() *metadata {
	return &metadata{run: execRunner{}}
}

// BundleID returns the bundle identifier, or "" when none is recorded.
func (m *metadata) BundleID(ctx context.Context, bundlePath string) (string, error) {
	return m.attribute(ctx, bundlePath, "kMDItemCFBundleIdentifier", "CFBundleIdentifier")
}

// Version returns the short version string, or "" when none is recorded.
func (m *metadata) Version(ctx context.Context, bundlePath string) (string, error) {
	return m.attribute(ctx, bundlePath, "kMDItemVersion", "CFBundleShortVersionString")
}

// attribute asks mdls first; Spotlight has not indexed every bundle, so a
// null answer falls back to reading Info.plist directly.
func (m *metadata) attribute(ctx context.Context, bundlePath, mdlsName, plistKey string) (string, error) {
	output, err := m.run.run(ctx, "mdls", "-name", mdlsName, "-raw", bundlePath)
	if err == nil {
		value := strings.TrimSpace(string(output))
		if value != "" && value != "(null)" {
			return value, nil
		}
	}

	infoPlist := filepath.Join(bundlePath, "Contents", "Info")
	output, err = m.run.run(ctx, "defaults", "read", infoPlist, plistKey)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for %s: %w", plistKey, bundlePath, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// SigningIdentity returns the leaf signing authority of the bundle, or ""
// for an unsigned bundle. codesign reports on stderr, so output is captured
// combined.
func (m *metadata) SigningIdentity(ctx context.Context, bundlePath string) (string, error) {
	output, err := m.run.runCombined(ctx, "codesign", "-dvvv", bundlePath)
	text := string(output)
	if err != nil {
		if strings.Contains(text, "not signed") {
			return "", nil
		}
		return "", fmt.Errorf("codesign failed for %s: %w", bundlePath, err)
	}

	for _, line := range strings.Split(text, "\n") {
		if authority, ok := strings.CutPrefix(strings.TrimSpace(line), "Authority="); ok {
			return authority, nil
		}
	}
	return "", nil
}
