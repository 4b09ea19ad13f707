package index

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one cask in the managed-package catalog.
type Entry struct {
	Token     string
	Name      string
	AltNames  []string
	Version   string
	Desc      string
	Homepage  string
	BundleIDs []string
	AppNames  []string
}

// Names returns the primary name followed by any alternates.
func (e Entry) Names() []string {
	names := make([]string, 0, len(e.AltNames)+1)
	names = append(names, e.Name)
	names = append(names, e.AltNames...)
	return names
}

// VariantRank orders stable casks ahead of prerelease variants: 0 for
// stable tokens, 1 for beta/nightly/dev/insiders channels, 2 for any other
// pinned variant.
func VariantRank(token string) int {
	if !strings.Contains(token, "@") {
		return 0
	}
	for _, channel := range []string{"@beta", "@nightly", "@dev", "@insiders"} {
		if strings.Contains(token, channel) {
			return 1
		}
	}
	return 2
}

// Wire format of https://formulae.brew.sh/api/cask.json. Artifact values
// are heterogeneous (strings, lists, objects), so the ones we mine are kept
// raw and decoded leniently.

type caskJSON struct {
	Token     string         `json:"token"`
	Name      []string       `json:"name"`
	Desc      string         `json:"desc"`
	Homepage  string         `json:"homepage"`
	Version   string         `json:"version"`
	Artifacts []artifactJSON `json:"artifacts"`
}

type artifactJSON struct {
	App       []json.RawMessage `json:"app,omitempty"`
	Uninstall []uninstallJSON   `json:"uninstall,omitempty"`
}

type uninstallJSON struct {
	Quit json.RawMessage `json:"quit,omitempty"`
}

func parseCatalog(data []byte) ([]Entry, error) {
	var casks []caskJSON
	if err := json.Unmarshal(data, &casks); err != nil {
		return nil, fmt.Errorf("failed to decode cask catalog: %w", err)
	}

	entries := make([]Entry, 0, len(casks))
	for _, ck := range casks {
		if ck.Token == "" {
			continue
		}

		entry := Entry{
			Token:    ck.Token,
			Version:  ck.Version,
			Desc:     ck.Desc,
			Homepage: ck.Homepage,
		}
		if len(ck.Name) > 0 {
			entry.Name = ck.Name[0]
			entry.AltNames = ck.Name[1:]
		} else {
			entry.Name = ck.Token
		}

		for _, artifact := range ck.Artifacts {
			for _, raw := range artifact.App {
				if name, ok := decodeString(raw); ok && strings.HasSuffix(name, ".app") {
					entry.AppNames = append(entry.AppNames, name)
				}
			}
			for _, uninstall := range artifact.Uninstall {
				entry.BundleIDs = append(entry.BundleIDs, decodeStrings(uninstall.Quit)...)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeStrings accepts either a bare string or a list of strings; the quit
// artifact uses both shapes.
func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	if s, ok := decodeString(raw); ok {
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}
