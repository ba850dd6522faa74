package store

import (
	"context"
	"time"

	"github.com/sells-group/visibility-cli/internal/model"
)

// ExecutionFilter specifies criteria for listing execution records.
type ExecutionFilter struct {
	Model  model.ModelType `json:"model,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the visibility pipeline.
// All writes are append-only inserts; records are never updated in place.
type Store interface {
	// Executions
	InsertExecution(ctx context.Context, rec model.ExecutionRecord) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]model.ExecutionRecord, error)
	// CountExecutions counts successful executions at or after since
	// (nil = all time). Rollup denominators come from here.
	CountExecutions(ctx context.Context, since *time.Time) (int, error)

	// Mentions and citations
	InsertMentions(ctx context.Context, mentions []model.BrandMention) error
	InsertCitations(ctx context.Context, citations []model.Citation) error
	// MentionsForEntity returns every mention of entity whose execution ran
	// at or after since (nil = all time). Rollups are recomputed from this
	// full scan rather than patched incrementally.
	MentionsForEntity(ctx context.Context, entity string, since *time.Time) ([]model.BrandMention, error)

	// Entity catalog
	ListEntities(ctx context.Context) ([]string, error)
	AddEntity(ctx context.Context, name string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
