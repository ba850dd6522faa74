package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/visibility-cli/internal/model"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// trailingPunct is stripped from matched URLs; prose punctuation after a link
// is not part of it.
const trailingPunct = ".,;:!?"

// citations extracts outbound URLs from text. Each distinct URL is reported
// once, in order of first appearance. URLs that fail standard parsing or
// carry no hostname are dropped silently.
func (e *Extractor) citations(text string) []model.Citation {
	if text == "" {
		return nil
	}

	var out []model.Citation
	seen := make(map[string]bool)
	for _, loc := range urlRe.FindAllStringIndex(text, -1) {
		raw := strings.TrimRight(text[loc[0]:loc[1]], trailingPunct)

		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		// Hostnames are case-insensitive; lowercase the host in the stored
		// URL so re-parsing it yields the stored domain.
		if host := u.Host; host != strings.ToLower(host) {
			raw = strings.Replace(raw, host, strings.ToLower(host), 1)
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true

		out = append(out, model.Citation{
			URL:        raw,
			Domain:     strings.ToLower(u.Hostname()),
			SourceType: citationSourceType(text, loc[0]),
		})
	}
	return out
}

// citationSourceType distinguishes a markdown-style link target from a bare
// URL in running text.
func citationSourceType(text string, start int) model.SourceType {
	if start >= 2 && text[start-2] == ']' && text[start-1] == '(' {
		return model.SourceTypeReference
	}
	return model.SourceTypeDirect
}
