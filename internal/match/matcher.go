// Package match scores installed apps against cask catalog entries.
//
// Matching is pure string work over catalog data already in memory. The
// caller decides what to do with the ranked candidates; nothing here touches
// the network, the database, or the filesystem.
package match

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/mac-tron/brewhaul/internal/index"
)

const (
	// Threshold is the minimum score a candidate needs to surface at all.
	Threshold = 0.5

	// MaxCandidates caps how many candidates are reported per app.
	MaxCandidates = 5

	bundleIDBonus = 0.25
	homepageBonus = 0.15
	versionBonus  = 0.05
)

// Fields that can contribute to a score.
const (
	FieldName     = "name"
	FieldBundleID = "bundle_id"
	FieldHomepage = "homepage"
	FieldVersion  = "version"
)

// devToolKeywords flag casks that install developer tooling rather than a
// regular application. Such entries are noise for app migration unless the
// app itself is named like one.
var devToolKeywords = []string{"sdk", "api", "cli", "command-line", "library", "framework"}

// Query describes one installed app to resolve against the catalog.
type Query struct {
	Name     string
	BundleID string
	Version  string
}

// Candidate pairs a catalog entry with its score and the fields that
// produced it.
type Candidate struct {
	Entry         index.Entry
	Score         float64
	MatchedFields []string
}

// Candidates ranks the given entries against the query. Results are sorted
// by descending score, stable variants ahead of prerelease ones, then
// ascending token, and capped at MaxCandidates. Entries scoring below
// Threshold are dropped.
func Candidates(q Query, entries []index.Entry) []Candidate {
	var candidates []Candidate
	for _, entry := range entries {
		if skipEntry(q, entry) {
			continue
		}
		c := score(q, entry)
		if c.Score < Threshold {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		ri, rj := index.VariantRank(candidates[i].Entry.Token), index.VariantRank(candidates[j].Entry.Token)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].Entry.Token < candidates[j].Entry.Token
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

// Best returns the highest-ranked candidate, if any cleared the threshold.
func Best(q Query, entries []index.Entry) (Candidate, bool) {
	candidates := Candidates(q, entries)
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	return candidates[0], true
}

func score(q Query, entry index.Entry) Candidate {
	c := Candidate{Entry: entry}

	base := nameSimilarity(q.Name, entry)
	if base > 0 {
		c.MatchedFields = append(c.MatchedFields, FieldName)
	}
	c.Score = base

	if q.BundleID != "" && containsFold(entry.BundleIDs, q.BundleID) {
		c.Score += bundleIDBonus
		c.MatchedFields = append(c.MatchedFields, FieldBundleID)
	}
	if vendorDomainMatches(q.BundleID, entry.Homepage) {
		c.Score += homepageBonus
		c.MatchedFields = append(c.MatchedFields, FieldHomepage)
	}
	if q.Version != "" && q.Version == entry.Version {
		c.Score += versionBonus
		c.MatchedFields = append(c.MatchedFields, FieldVersion)
	}

	if c.Score > 1.0 {
		c.Score = 1.0
	}
	return c
}

// nameSimilarity returns the best normalized similarity between the app
// name and the entry's token, names, and app artifact names. A normalized
// exact match is 1.0 outright.
func nameSimilarity(name string, entry index.Entry) float64 {
	target := normalize(name)
	if target == "" {
		return 0
	}

	compared := make([]string, 0, len(entry.AltNames)+len(entry.AppNames)+2)
	compared = append(compared, entry.Token)
	compared = append(compared, entry.Names()...)
	for _, appName := range entry.AppNames {
		compared = append(compared, strings.TrimSuffix(appName, ".app"))
	}

	best := 0.0
	for _, candidate := range compared {
		normalized := normalize(candidate)
		if normalized == "" {
			continue
		}
		if normalized == target {
			return 1.0
		}
		if s := levenshtein.Similarity(target, normalized, nil); s > best {
			best = s
		}
	}
	return best
}

// normalize lowercases and strips separators so "My Old Tool", "my-old-tool"
// and "my_old_tool" all compare equal.
func normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r == '-' || r == '_' || unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// skipEntry drops catalog noise: fonts, and developer tooling the app name
// itself gives no reason to consider.
func skipEntry(q Query, entry index.Entry) bool {
	if strings.HasPrefix(entry.Token, "font-") {
		return true
	}
	if keyword, ok := devToolKeyword(entry.Desc); ok {
		return !strings.Contains(strings.ToLower(q.Name), keyword)
	}
	return false
}

func devToolKeyword(desc string) (string, bool) {
	lower := strings.ToLower(desc)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, keyword := range devToolKeywords {
		for _, word := range words {
			if word == keyword {
				return keyword, true
			}
		}
	}
	return "", false
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

// vendorDomainMatches reports whether the vendor domain implied by a
// reverse-DNS bundle id (com.tinyspeck.slackmacgap implies tinyspeck.com)
// is the domain the entry's homepage lives on.
func vendorDomainMatches(bundleID, homepage string) bool {
	vendor := vendorDomain(bundleID)
	if vendor == "" || homepage == "" {
		return false
	}
	u, err := url.Parse(homepage)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == vendor || strings.HasSuffix(host, "."+vendor)
}

func vendorDomain(bundleID string) string {
	labels := strings.Split(strings.ToLower(bundleID), ".")
	if len(labels) < 2 || labels[0] == "" || labels[1] == "" {
		return ""
	}
	return labels[1] + "." + labels[0]
}
