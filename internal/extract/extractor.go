// Package extract finds brand mentions and outbound citations in free-text
// model responses. It is pure text processing: no I/O, no suspension points,
// and finding nothing is a valid result, not an error.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/visibility-cli/internal/model"
)

// sentimentWindow is the number of bytes inspected on each side of a mention
// when classifying its sentiment.
const sentimentWindow = 120

// Result is what extraction found in one response text.
type Result struct {
	Mentions  []model.BrandMention
	Citations []model.Citation
}

// Extractor scans response text against a known-entity catalog.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the mentions and citations contained in text. Mention and
// citation rows carry no IDs; the aggregator assigns them at persist time.
func (e *Extractor) Extract(text string, catalog *Catalog) Result {
	res := Result{
		Mentions:  e.mentions(text, catalog),
		Citations: e.citations(text),
	}
	return res
}

type occurrence struct {
	name string
	at   int
}

type span struct {
	start, end int
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// mentions finds the first occurrence of each catalog entity in text.
// The catalog is ordered longest-first, and every match claims its byte
// range, so a shorter name that only appears inside a longer match ("Go"
// inside "Google") is not reported.
func (e *Extractor) mentions(text string, catalog *Catalog) []model.BrandMention {
	if text == "" || catalog == nil || catalog.Len() == 0 {
		return nil
	}

	doc := foldName(text)

	var claimed []span
	var found []occurrence
	for i, f := range catalog.folded {
		at := firstUnclaimed(doc, f, claimed)
		if at < 0 {
			continue
		}
		claimed = append(claimed, span{start: at, end: at + len(f)})
		found = append(found, occurrence{name: catalog.names[i], at: at})
	}

	if len(found) == 0 {
		return nil
	}

	// Ordinal rank by first appearance, not catalog order.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].at < found[j-1].at; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	out := make([]model.BrandMention, len(found))
	for i, occ := range found {
		pos := i + 1
		out[i] = model.BrandMention{
			Entity:    occ.name,
			Position:  &pos,
			Sentiment: classifySentiment(windowAround(doc, occ.at, sentimentWindow)),
		}
	}
	return out
}

// firstUnclaimed returns the byte offset of the first occurrence of needle in
// doc that sits on word boundaries and does not overlap an already-claimed
// span, or -1.
func firstUnclaimed(doc, needle string, claimed []span) int {
	if needle == "" {
		return -1
	}
	from := 0
	for {
		i := strings.Index(doc[from:], needle)
		if i < 0 {
			return -1
		}
		at := from + i
		cand := span{start: at, end: at + len(needle)}
		if wordBounded(doc, cand) && !anyOverlap(cand, claimed) {
			return at
		}
		from = at + 1
	}
}

func anyOverlap(s span, claimed []span) bool {
	for _, c := range claimed {
		if s.overlaps(c) {
			return true
		}
	}
	return false
}

// wordBounded rejects matches glued to surrounding letters or digits, so
// "Go" does not match inside "Golang".
func wordBounded(doc string, s span) bool {
	if s.start > 0 {
		r, _ := utf8.DecodeLastRuneInString(doc[:s.start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if s.end < len(doc) {
		r, _ := utf8.DecodeRuneInString(doc[s.end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// windowAround slices up to pad bytes on each side of offset at, snapped to
// rune boundaries.
func windowAround(doc string, at, pad int) string {
	lo := at - pad
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(doc[lo]) {
		lo--
	}
	hi := at + pad
	if hi > len(doc) {
		hi = len(doc)
	}
	for hi < len(doc) && !utf8.RuneStart(doc[hi]) {
		hi++
	}
	return doc[lo:hi]
}
