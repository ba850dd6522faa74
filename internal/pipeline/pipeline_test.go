package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/config"
	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/executor"
	"github.com/sells-group/visibility-cli/internal/extract"
	"github.com/sells-group/visibility-cli/internal/model"
)

type fakeRunner struct {
	outcomes []model.Outcome
	err      error
	gotReq   executor.Request
}

func (f *fakeRunner) Execute(_ context.Context, req executor.Request, _ []model.ModelType) ([]model.Outcome, error) {
	f.gotReq = req
	return f.outcomes, f.err
}

type fakeSink struct {
	executions []model.ExecutionRecord
	mentions   []model.BrandMention
	citations  []model.Citation
	execErr    error
}

func (f *fakeSink) InsertExecution(_ context.Context, rec model.ExecutionRecord) error {
	if f.execErr != nil {
		return f.execErr
	}
	f.executions = append(f.executions, rec)
	return nil
}

func (f *fakeSink) InsertMentions(_ context.Context, mentions []model.BrandMention) error {
	f.mentions = append(f.mentions, mentions...)
	return nil
}

func (f *fakeSink) InsertCitations(_ context.Context, citations []model.Citation) error {
	f.citations = append(f.citations, citations...)
	return nil
}

func testCalculator() *cost.Calculator {
	return cost.NewCalculator(config.PricingConfig{
		Models: map[string]config.ModelRate{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		},
	})
}

func TestRun_PersistsSuccessAndFailure(t *testing.T) {
	runner := &fakeRunner{
		outcomes: []model.Outcome{
			{
				Model: model.ModelGPT,
				Response: &model.PromptResponse{
					Text:       "Acme leads the market. See https://acme.com/report for details.",
					TokensUsed: 1000,
					ServedBy:   "gpt-4o-mini",
				},
			},
			{
				Model:   model.ModelClaude,
				Failure: &model.FailureSummary{Kind: "provider", Message: "anthropic returned 500", Status: 500, Retryable: true},
			},
		},
	}
	sink := &fakeSink{}
	p := New(runner, extract.NewCatalog([]string{"Acme"}), sink, testCalculator())

	result, err := p.Run(context.Background(), RunRequest{
		User:    "Who leads the market?",
		Targets: []model.ModelType{model.ModelGPT, model.ModelClaude},
	})
	require.NoError(t, err)

	// One record per outcome, success and failure alike.
	require.Len(t, sink.executions, 2)

	success := sink.executions[0]
	assert.True(t, success.Succeeded())
	assert.Equal(t, result.PromptID, success.PromptID)
	assert.Equal(t, "gpt-4o-mini", success.ServedBy)
	assert.Equal(t, 1000, success.TokensUsed)
	assert.Nil(t, success.Error)

	failure := sink.executions[1]
	assert.False(t, failure.Succeeded())
	require.NotNil(t, failure.Error)
	assert.Contains(t, *failure.Error, "anthropic returned 500")
	assert.Nil(t, failure.ResponseText)
	assert.Zero(t, failure.CostUSD)

	// Extraction runs only over the success.
	require.Len(t, result.Extraction, 1)
	assert.Equal(t, model.ModelGPT, result.Extraction[0].Model)
	require.Len(t, sink.mentions, 1)
	assert.Equal(t, "Acme", sink.mentions[0].Entity)
	assert.Equal(t, success.ID, sink.mentions[0].ExecutionID)
	assert.NotEmpty(t, sink.mentions[0].ID)
	require.Len(t, sink.citations, 1)
	assert.Equal(t, "acme.com", sink.citations[0].Domain)
	assert.Equal(t, success.ID, sink.citations[0].ExecutionID)
}

func TestRun_CostAttribution(t *testing.T) {
	runner := &fakeRunner{
		outcomes: []model.Outcome{
			{
				Model: model.ModelGPT,
				Response: &model.PromptResponse{
					Text:       "nothing notable",
					TokensUsed: 2_000_000,
					ServedBy:   "gpt-4o-mini",
				},
			},
		},
	}
	sink := &fakeSink{}
	p := New(runner, extract.NewCatalog(nil), sink, testCalculator())

	result, err := p.Run(context.Background(), RunRequest{User: "q", Targets: []model.ModelType{model.ModelGPT}})
	require.NoError(t, err)

	// 2M tokens at the blended (0.15+0.60)/2 rate.
	assert.InDelta(t, 0.75, result.TotalCost, 1e-9)
	assert.InDelta(t, 0.75, sink.executions[0].CostUSD, 1e-9)
}

func TestRun_ExecuteErrorPropagates(t *testing.T) {
	runner := &fakeRunner{err: eris.New("at least one target model is required")}
	p := New(runner, extract.NewCatalog(nil), &fakeSink{}, testCalculator())

	_, err := p.Run(context.Background(), RunRequest{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: execute")
}

func TestRun_PersistFailureFailsRun(t *testing.T) {
	runner := &fakeRunner{
		outcomes: []model.Outcome{
			{Model: model.ModelGPT, Response: &model.PromptResponse{Text: "ok", ServedBy: "gpt-4o-mini"}},
		},
	}
	sink := &fakeSink{execErr: eris.New("constraint violation")}
	p := New(runner, extract.NewCatalog(nil), sink, testCalculator())

	_, err := p.Run(context.Background(), RunRequest{User: "q", Targets: []model.ModelType{model.ModelGPT}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist execution")
}

func TestRun_RequestFieldsForwarded(t *testing.T) {
	temp := 0.2
	runner := &fakeRunner{outcomes: []model.Outcome{}}
	p := New(runner, extract.NewCatalog(nil), &fakeSink{}, testCalculator())

	_, err := p.Run(context.Background(), RunRequest{
		System:      "be brief",
		User:        "q",
		MaxTokens:   512,
		Temperature: &temp,
		Targets:     []model.ModelType{model.ModelGemini},
	})
	require.NoError(t, err)
	assert.Equal(t, "be brief", runner.gotReq.System)
	assert.Equal(t, "q", runner.gotReq.User)
	assert.Equal(t, 512, runner.gotReq.MaxTokens)
	require.NotNil(t, runner.gotReq.Temperature)
	assert.InDelta(t, 0.2, *runner.gotReq.Temperature, 1e-9)
}
