package extract

import (
	"strings"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Coarse lexicons for windowed sentiment. These score the words surrounding
// one mention, not the whole document.
var positiveWords = map[string]bool{
	"best": true, "great": true, "excellent": true, "leading": true,
	"top": true, "recommended": true, "powerful": true, "popular": true,
	"reliable": true, "robust": true, "intuitive": true, "innovative": true,
	"favorite": true, "outstanding": true, "strong": true, "easy": true,
	"love": true, "loved": true, "impressive": true, "trusted": true,
}

var negativeWords = map[string]bool{
	"worst": true, "bad": true, "poor": true, "avoid": true,
	"expensive": true, "overpriced": true, "clunky": true, "slow": true,
	"buggy": true, "outdated": true, "limited": true, "weak": true,
	"difficult": true, "frustrating": true, "unreliable": true,
	"hate": true, "hated": true, "disappointing": true, "lacking": true,
}

// classifySentiment scores the text window around a mention by counting
// lexicon hits. Ties and empty windows are neutral.
func classifySentiment(window string) model.Sentiment {
	var pos, neg int
	for _, w := range strings.FieldsFunc(window, func(r rune) bool {
		return !isWordRune(r)
	}) {
		w = strings.ToLower(w)
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return model.SentimentPositive
	case neg > pos:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func isWordRune(r rune) bool {
	return r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
