package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
)

type fakeSource struct {
	executions int
	mentions   map[string][]model.BrandMention
	countErr   error
	mentionErr error
}

func (f *fakeSource) CountExecutions(_ context.Context, _ *time.Time) (int, error) {
	return f.executions, f.countErr
}

func (f *fakeSource) MentionsForEntity(_ context.Context, entity string, _ *time.Time) ([]model.BrandMention, error) {
	if f.mentionErr != nil {
		return nil, f.mentionErr
	}
	return f.mentions[entity], nil
}

func intPtr(n int) *int { return &n }

func TestRecompute_MentionRateAndPositions(t *testing.T) {
	src := &fakeSource{
		executions: 4,
		mentions: map[string][]model.BrandMention{
			"Acme": {
				{ID: "m-1", ExecutionID: "e-1", Entity: "Acme", Position: intPtr(1), Sentiment: model.SentimentPositive},
				{ID: "m-2", ExecutionID: "e-2", Entity: "Acme", Position: intPtr(3), Sentiment: model.SentimentPositive},
				{ID: "m-3", ExecutionID: "e-3", Entity: "Acme", Position: nil, Sentiment: model.SentimentNegative},
			},
		},
	}

	ru, err := NewRecomputer(src).Recompute(context.Background(), "Acme", nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme", ru.Entity)
	assert.Equal(t, 4, ru.Executions)
	assert.Equal(t, 3, ru.Mentions)
	assert.InDelta(t, 0.75, ru.MentionRate, 1e-9)

	// Only positioned mentions contribute to the average.
	require.NotNil(t, ru.AvgPosition)
	assert.InDelta(t, 2.0, *ru.AvgPosition, 1e-9)

	assert.Equal(t, 2, ru.SentimentCounts[model.SentimentPositive])
	assert.Equal(t, 1, ru.SentimentCounts[model.SentimentNegative])
	assert.Equal(t, model.SentimentPositive, ru.DominantTone)
}

func TestRecompute_NoMentionsIsARealAnswer(t *testing.T) {
	src := &fakeSource{executions: 10}

	ru, err := NewRecomputer(src).Recompute(context.Background(), "Globex", nil)
	require.NoError(t, err)

	assert.Equal(t, 10, ru.Executions)
	assert.Zero(t, ru.Mentions)
	assert.Zero(t, ru.MentionRate)
	assert.Nil(t, ru.AvgPosition)
	assert.Equal(t, model.SentimentNeutral, ru.DominantTone)
}

func TestRecompute_ZeroExecutionsNoDivide(t *testing.T) {
	src := &fakeSource{executions: 0}

	ru, err := NewRecomputer(src).Recompute(context.Background(), "Acme", nil)
	require.NoError(t, err)
	assert.Zero(t, ru.MentionRate)
}

func TestRecompute_SentimentTieIsNeutral(t *testing.T) {
	src := &fakeSource{
		executions: 2,
		mentions: map[string][]model.BrandMention{
			"Acme": {
				{ID: "m-1", ExecutionID: "e-1", Entity: "Acme", Sentiment: model.SentimentPositive},
				{ID: "m-2", ExecutionID: "e-2", Entity: "Acme", Sentiment: model.SentimentNegative},
			},
		},
	}

	ru, err := NewRecomputer(src).Recompute(context.Background(), "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNeutral, ru.DominantTone)
}

func TestRecompute_WindowPassedThrough(t *testing.T) {
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{executions: 1}

	ru, err := NewRecomputer(src).Recompute(context.Background(), "Acme", &since)
	require.NoError(t, err)
	require.NotNil(t, ru.WindowStart)
	assert.Equal(t, since, *ru.WindowStart)
}

func TestRecompute_EmptyEntityRejected(t *testing.T) {
	_, err := NewRecomputer(&fakeSource{}).Recompute(context.Background(), "", nil)
	require.Error(t, err)
}

func TestRecomputeAll_FailsFast(t *testing.T) {
	src := &fakeSource{countErr: eris.New("connection reset")}

	_, err := NewRecomputer(src).RecomputeAll(context.Background(), []string{"Acme", "Globex"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count executions")
}

func TestRecomputeAll_PreservesCatalogOrder(t *testing.T) {
	src := &fakeSource{
		executions: 1,
		mentions: map[string][]model.BrandMention{
			"Globex": {{ID: "m-1", ExecutionID: "e-1", Entity: "Globex", Sentiment: model.SentimentNeutral}},
		},
	}

	rollups, err := NewRecomputer(src).RecomputeAll(context.Background(), []string{"Acme", "Globex"}, nil)
	require.NoError(t, err)
	require.Len(t, rollups, 2)
	assert.Equal(t, "Acme", rollups[0].Entity)
	assert.Equal(t, "Globex", rollups[1].Entity)
	assert.Equal(t, 1, rollups[1].Mentions)
}
