package index

import "strings"

// Catalog holds the parsed cask index with lookup tables keyed by token,
// name, and quit bundle identifier. Build it once per run and resolve every
// app against the same instance.
type Catalog struct {
	entries    []Entry
	byToken    map[string]int
	byName     map[string][]int
	byBundleID map[string][]int
}

// NewCatalog indexes the given entries.
func NewCatalog(entries []Entry) *Catalog {
	c := &Catalog{
		entries:    entries,
		byToken:    make(map[string]int, len(entries)),
		byName:     make(map[string][]int),
		byBundleID: make(map[string][]int),
	}

	for i, entry := range entries {
		c.byToken[entry.Token] = i
		c.addName(entry.Token, i)
		for _, name := range entry.Names() {
			c.addName(name, i)
		}
		for _, appName := range entry.AppNames {
			c.addName(strings.TrimSuffix(appName, ".app"), i)
		}
		for _, id := range entry.BundleIDs {
			key := strings.ToLower(id)
			c.byBundleID[key] = appendUnique(c.byBundleID[key], i)
		}
	}

	return c
}

func (c *Catalog) addName(name string, i int) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	c.byName[key] = appendUnique(c.byName[key], i)
}

func appendUnique(indexes []int, i int) []int {
	for _, existing := range indexes {
		if existing == i {
			return indexes
		}
	}
	return append(indexes, i)
}

// Len reports how many casks the catalog holds.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns every cask in catalog order.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// ByToken resolves an exact cask token.
func (c *Catalog) ByToken(token string) (Entry, bool) {
	i, ok := c.byToken[token]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// LookupName returns the casks whose token, name, or app artifact matches
// the given name, case-insensitively.
func (c *Catalog) LookupName(name string) []Entry {
	return c.collect(c.byName[strings.ToLower(strings.TrimSpace(name))])
}

// LookupBundleID returns the casks that declare the given quit bundle
// identifier.
func (c *Catalog) LookupBundleID(id string) []Entry {
	return c.collect(c.byBundleID[strings.ToLower(strings.TrimSpace(id))])
}

// LookupNames resolves many names in one pass. Names with no match are
// absent from the result.
func (c *Catalog) LookupNames(names []string) map[string][]Entry {
	found := make(map[string][]Entry, len(names))
	for _, name := range names {
		if entries := c.LookupName(name); len(entries) > 0 {
			found[name] = entries
		}
	}
	return found
}

// LookupBundleIDs resolves many bundle identifiers in one pass.
func (c *Catalog) LookupBundleIDs(ids []string) map[string][]Entry {
	found := make(map[string][]Entry, len(ids))
	for _, id := range ids {
		if entries := c.LookupBundleID(id); len(entries) > 0 {
			found[id] = entries
		}
	}
	return found
}

func (c *Catalog) collect(indexes []int) []Entry {
	if len(indexes) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(indexes))
	for _, i := range indexes {
		entries = append(entries, c.entries[i])
	}
	return entries
}
