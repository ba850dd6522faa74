package extract

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransform strips diacritics so "Nestlé" matches "Nestle".
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName produces the canonical matching form of a name: diacritics
// stripped, then case-folded.
func foldName(s string) string {
	stripped, _, err := transform.String(foldTransform, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// Catalog is the set of known entity names to match against. It is supplied
// by an external source (config, store, or both) and refreshed independently
// of any single extraction call. Names are held longest-first so overlapping
// names ("Go" vs "Google") resolve to the longer match.
type Catalog struct {
	names  []string // display names, longest-folded-form-first
	folded []string // canonical forms aligned with names
}

// NewCatalog builds a catalog from raw names, dropping empties and
// duplicates (compared in folded form; first spelling wins).
func NewCatalog(names []string) *Catalog {
	seen := make(map[string]bool, len(names))
	c := &Catalog{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		f := foldName(n)
		if seen[f] {
			continue
		}
		seen[f] = true
		c.names = append(c.names, n)
		c.folded = append(c.folded, f)
	}

	// Longest folded form first; ties break alphabetically for determinism.
	order := make([]int, len(c.names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		fa, fb := c.folded[order[a]], c.folded[order[b]]
		if len(fa) != len(fb) {
			return len(fa) > len(fb)
		}
		return fa < fb
	})

	reordered := make([]string, len(order))
	folded := make([]string, len(order))
	for i, idx := range order {
		reordered[i] = c.names[idx]
		folded[i] = c.folded[idx]
	}
	c.names = reordered
	c.folded = folded
	return c
}

// Names returns the display names in matching order.
func (c *Catalog) Names() []string {
	return c.names
}

// Len returns the number of distinct entities.
func (c *Catalog) Len() int {
	return len(c.names)
}
