// Package rollup recomputes per-entity visibility aggregates from stored
// mentions. Rollups are caches, never sources of truth: each recompute scans
// the underlying rows wholesale, so a drifted rollup is always one recompute
// away from correct.
package rollup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Source is the slice of the store the recomputer reads from.
type Source interface {
	CountExecutions(ctx context.Context, since *time.Time) (int, error)
	MentionsForEntity(ctx context.Context, entity string, since *time.Time) ([]model.BrandMention, error)
}

// Recomputer builds VisibilityRollups from persisted mentions.
type Recomputer struct {
	source Source
}

// NewRecomputer creates a Recomputer reading from source.
func NewRecomputer(source Source) *Recomputer {
	return &Recomputer{source: source}
}

// Recompute builds the rollup for one entity over the window starting at
// since (nil = all time). An entity with no mentions still yields a rollup:
// zero mentions over N executions is a real answer, not an error.
func (r *Recomputer) Recompute(ctx context.Context, entity string, since *time.Time) (*model.VisibilityRollup, error) {
	if entity == "" {
		return nil, eris.New("rollup: entity must be non-empty")
	}

	executions, err := r.source.CountExecutions(ctx, since)
	if err != nil {
		return nil, eris.Wrapf(err, "rollup: count executions for %s", entity)
	}

	mentions, err := r.source.MentionsForEntity(ctx, entity, since)
	if err != nil {
		return nil, eris.Wrapf(err, "rollup: load mentions for %s", entity)
	}

	out := &model.VisibilityRollup{
		Entity:      entity,
		WindowStart: since,
		Executions:  executions,
		Mentions:    len(mentions),
		SentimentCounts: map[model.Sentiment]int{
			model.SentimentPositive: 0,
			model.SentimentNeutral:  0,
			model.SentimentNegative: 0,
		},
		ComputedAt: time.Now().UTC(),
	}

	if executions > 0 {
		out.MentionRate = float64(len(mentions)) / float64(executions)
	}

	var posSum, posCount int
	for _, m := range mentions {
		out.SentimentCounts[m.Sentiment]++
		if m.Position != nil {
			posSum += *m.Position
			posCount++
		}
	}
	if posCount > 0 {
		avg := float64(posSum) / float64(posCount)
		out.AvgPosition = &avg
	}
	out.DominantTone = dominantTone(out.SentimentCounts)

	zap.L().Debug("rollup recomputed",
		zap.String("entity", entity),
		zap.Int("executions", executions),
		zap.Int("mentions", len(mentions)),
		zap.Float64("mention_rate", out.MentionRate),
	)
	return out, nil
}

// RecomputeAll builds rollups for every entity in the catalog, in catalog
// order. One entity's failure fails the whole recompute: a partial rollup
// set is worse than a stale one.
func (r *Recomputer) RecomputeAll(ctx context.Context, entities []string, since *time.Time) ([]model.VisibilityRollup, error) {
	rollups := make([]model.VisibilityRollup, 0, len(entities))
	for _, entity := range entities {
		ru, err := r.Recompute(ctx, entity, since)
		if err != nil {
			return nil, err
		}
		rollups = append(rollups, *ru)
	}
	return rollups, nil
}

// dominantTone picks the sentiment with the highest count. Ties resolve to
// neutral; a tone has to win outright to be called dominant.
func dominantTone(counts map[model.Sentiment]int) model.Sentiment {
	best := model.SentimentNeutral
	bestCount := counts[model.SentimentNeutral]
	tied := false
	for _, tone := range []model.Sentiment{model.SentimentPositive, model.SentimentNegative} {
		switch {
		case counts[tone] > bestCount:
			best = tone
			bestCount = counts[tone]
			tied = false
		case counts[tone] == bestCount && tone != best:
			tied = true
		}
	}
	if tied {
		return model.SentimentNeutral
	}
	return best
}
