package scan

import (
	"regexp"
	"strings"
)

var (
	// Trailing version fragments in bundle names: "MyTool-1.2.3.app",
	// "Helper_2.0.app", "Photoshop 2024.app".
	versionSuffixRE = regexp.MustCompile(`[\s._-]+v?\d+(\.\d+)*$`)

	// Parenthetical suffixes: "VLC (Intel).app".
	parentheticalRE = regexp.MustCompile(`\s*\([^)]*\)$`)
)

// CleanAppName turns a bundle filename into a display name: the .app
// extension, trailing version fragments, and parenthetical suffixes are
// stripped.
//
// Example: "Microsoft Teams (work or school)-24193.app" -> "Microsoft Teams"
func CleanAppName(bundleName string) string {
	name := strings.TrimSuffix(bundleName, ".app")
	name = versionSuffixRE.ReplaceAllString(name, "")
	name = parentheticalRE.ReplaceAllString(name, "")
	name = versionSuffixRE.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
