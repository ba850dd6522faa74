package model

import "time"

// Sentiment is the coarse classification assigned to a mention's text window.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ExecutionRecord is the persisted record of one (prompt, model) invocation.
// Exactly one of ResponseText and Error is populated. Records are append-only:
// a re-execution creates a new record, it never mutates an old one.
type ExecutionRecord struct {
	ID           string    `json:"id"`
	PromptID     string    `json:"prompt_id"`
	Model        ModelType `json:"model"`
	ServedBy     string    `json:"served_by,omitempty"`
	ResponseText *string   `json:"response_text,omitempty"`
	Error        *string   `json:"error,omitempty"`
	TokensUsed   int       `json:"tokens_used"`
	CostUSD      float64   `json:"cost_usd"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Succeeded reports whether the record holds a response rather than an error.
func (r ExecutionRecord) Succeeded() bool {
	return r.ResponseText != nil
}

// BrandMention is one extracted entity occurrence within a response. At most
// one per (execution, entity): repeats of the same name collapse to the first
// occurrence.
type BrandMention struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	Entity      string    `json:"entity"`
	// Position is the entity's ordinal rank among all entities found in the
	// same response, by first appearance. Only meaningful within one
	// execution; nil when no ranking applies.
	Position  *int      `json:"position,omitempty"`
	Sentiment Sentiment `json:"sentiment"`
}

// SourceType classifies how a citation appears in the response text.
type SourceType string

const (
	SourceTypeDirect    SourceType = "direct"    // bare URL in running text
	SourceTypeReference SourceType = "reference" // markdown-style link
)

// Citation is one outbound URL referenced by a response. Domain is always
// derived from URL by standard parsing; re-parsing the stored URL reproduces
// the stored domain.
type Citation struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"execution_id"`
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	SourceType  SourceType `json:"source_type"`
}
