package model

import "time"

// VisibilityRollup is a derived aggregate for one entity over a time window.
// It is a cache: every value is reproducible by replaying extraction over the
// underlying execution records, and it is recomputed wholesale rather than
// patched incrementally.
type VisibilityRollup struct {
	Entity          string            `json:"entity"`
	WindowStart     *time.Time        `json:"window_start,omitempty"` // nil = all time
	Executions      int               `json:"executions"`             // successful executions scanned
	Mentions        int               `json:"mentions"`
	MentionRate     float64           `json:"mention_rate"` // mentions / executions
	AvgPosition     *float64          `json:"avg_position,omitempty"`
	SentimentCounts map[Sentiment]int `json:"sentiment_counts"`
	DominantTone    Sentiment         `json:"dominant_tone"`
	ComputedAt      time.Time         `json:"computed_at"`
}
