package brew

import (
	"context"
	"fmt"
)

// InstallCask installs a cask. Output is captured so a failure carries the
// brew transcript with it.
func (c *Client) InstallCask(ctx context.Context, token string) error {
	output, err := c.run.runCombined(ctx, "brew", "install", "--cask", token)
	if err != nil {
		return fmt.Errorf("brew install --cask %s failed: %w (output: %s)", token, err, string(output))
	}
	c.InvalidateInstalled()
	return nil
}

// UninstallCask removes an installed cask.
func (c *Client) UninstallCask(ctx context.Context, token string) error {
	output, err := c.run.runCombined(ctx, "brew", "uninstall", "--cask", token)
	if err != nil {
		return fmt.Errorf("brew uninstall --cask %s failed: %w (output: %s)", token, err, string(output))
	}
	c.InvalidateInstalled()
	return nil
}
