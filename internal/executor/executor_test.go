package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/provider"
)

// fakeDispatcher scripts per-model behavior for fan-out tests.
type fakeDispatcher struct {
	mu        sync.Mutex
	responses map[model.ModelType]*model.PromptResponse
	errors    map[model.ModelType]error
	delays    map[model.ModelType]time.Duration
	calls     []model.ModelType
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job.Model)
	f.mu.Unlock()

	if d := f.delays[job.Model]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errors[job.Model]; err != nil {
		return nil, err
	}
	if resp := f.responses[job.Model]; resp != nil {
		return resp, nil
	}
	return &model.PromptResponse{Text: "ok", TokensUsed: 1, ServedBy: string(job.Model)}, nil
}

func TestExecute_SettlesAllDespiteFailures(t *testing.T) {
	d := &fakeDispatcher{
		responses: map[model.ModelType]*model.PromptResponse{
			model.ModelGPT:    {Text: "from gpt", TokensUsed: 5, ServedBy: "gpt-4o-mini"},
			model.ModelGemini: {Text: "from gemini", TokensUsed: 7, ServedBy: "gemini-2.0-flash"},
		},
		errors: map[model.ModelType]error{
			model.ModelClaude: &provider.ProviderError{Provider: "anthropic", Status: 500, Message: "upstream blew up"},
		},
	}

	outcomes, err := New(d, time.Second).Execute(context.Background(), Request{User: "q"},
		[]model.ModelType{model.ModelGPT, model.ModelClaude, model.ModelGemini})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].OK())
	assert.Equal(t, "from gpt", outcomes[0].Response.Text)

	require.False(t, outcomes[1].OK())
	assert.Equal(t, "provider", outcomes[1].Failure.Kind)
	assert.Equal(t, 500, outcomes[1].Failure.Status)
	assert.True(t, outcomes[1].Failure.Retryable)

	assert.True(t, outcomes[2].OK())
	assert.Equal(t, "from gemini", outcomes[2].Response.Text)
}

func TestExecute_OutcomesMirrorRequestOrder(t *testing.T) {
	// The first model is slowest; completion order inverts request order.
	d := &fakeDispatcher{
		delays: map[model.ModelType]time.Duration{
			model.ModelGPT:    60 * time.Millisecond,
			model.ModelClaude: 30 * time.Millisecond,
		},
	}

	targets := []model.ModelType{model.ModelGPT, model.ModelClaude, model.ModelGemini}
	outcomes, err := New(d, time.Second).Execute(context.Background(), Request{User: "q"}, targets)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, mt := range targets {
		assert.Equal(t, mt, outcomes[i].Model)
	}
}

func TestExecute_DeduplicatesTargets(t *testing.T) {
	d := &fakeDispatcher{}

	outcomes, err := New(d, time.Second).Execute(context.Background(), Request{User: "q"},
		[]model.ModelType{model.ModelGPT, model.ModelGPT, model.ModelClaude, model.ModelGPT})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, model.ModelGPT, outcomes[0].Model)
	assert.Equal(t, model.ModelClaude, outcomes[1].Model)
	assert.Len(t, d.calls, 2)
}

func TestExecute_EmptyPromptRejected(t *testing.T) {
	_, err := New(&fakeDispatcher{}, time.Second).Execute(context.Background(), Request{},
		[]model.ModelType{model.ModelGPT})
	require.Error(t, err)
}

func TestExecute_EmptyTargetsRejected(t *testing.T) {
	_, err := New(&fakeDispatcher{}, time.Second).Execute(context.Background(), Request{User: "q"}, nil)
	require.Error(t, err)
}

func TestExecute_ConfigurationErrorAbortsBatch(t *testing.T) {
	d := &fakeDispatcher{
		errors: map[model.ModelType]error{
			model.ModelClaude: &provider.ConfigurationError{Provider: "anthropic", Reason: "missing API key"},
		},
	}

	_, err := New(d, time.Second).Execute(context.Background(), Request{User: "q"},
		[]model.ModelType{model.ModelGPT, model.ModelClaude})
	require.Error(t, err)

	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "anthropic", cfgErr.Provider)
}

func TestExecute_UnsupportedModelBecomesOutcome(t *testing.T) {
	d := &fakeDispatcher{
		errors: map[model.ModelType]error{
			model.ModelGemini: &provider.UnsupportedModelError{Model: model.ModelGemini},
		},
	}

	outcomes, err := New(d, time.Second).Execute(context.Background(), Request{User: "q"},
		[]model.ModelType{model.ModelGemini})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].OK())
	assert.Equal(t, "unsupported_model", outcomes[0].Failure.Kind)
}

func TestExecute_TimeoutFailsOnlyTheSlowModel(t *testing.T) {
	d := &fakeDispatcher{
		delays: map[model.ModelType]time.Duration{
			model.ModelClaude: 200 * time.Millisecond,
		},
	}

	outcomes, err := New(d, 50*time.Millisecond).Execute(context.Background(), Request{User: "q"},
		[]model.ModelType{model.ModelGPT, model.ModelClaude})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.True(t, outcomes[0].OK())
	require.False(t, outcomes[1].OK())
	assert.Equal(t, "provider", outcomes[1].Failure.Kind)
	assert.True(t, outcomes[1].Failure.Retryable)
}

func TestExecute_MalformedResponseBecomesOutcome(t *testing.T) {
	d := &fakeDispatcher{
		errors: map[model.ModelType]error{
			model.ModelGPT: &provider.MalformedResponseError{Provider: "openai", Reason: "no choices returned"},
		},
	}

	outcomes, err := New(d, time.Second).Execute(context.Background(), Request{User: "q"},
		[]model.ModelType{model.ModelGPT})
	require.NoError(t, err)
	require.False(t, outcomes[0].OK())
	assert.Equal(t, "malformed_response", outcomes[0].Failure.Kind)
	assert.False(t, outcomes[0].Failure.Retryable)
}
