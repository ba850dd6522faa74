package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/config"
	"github.com/sells-group/visibility-cli/internal/model"
)

// fakeAdapter records the last job it was invoked with.
type fakeAdapter struct {
	mt      model.ModelType
	lastJob model.PromptJob
	resp    *model.PromptResponse
	err     error
}

func (f *fakeAdapter) Model() model.ModelType { return f.mt }

func (f *fakeAdapter) Invoke(_ context.Context, job model.PromptJob) (*model.PromptResponse, error) {
	f.lastJob = job
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &model.PromptResponse{Text: "ok", TokensUsed: 1, ServedBy: string(f.mt)}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Executor: config.ExecutorConfig{
			MaxTokensCeiling: 100,
			DefaultMaxTokens: 10,
		},
	}
}

func TestDispatch_ClampsTokenBudgetToCeiling(t *testing.T) {
	r := NewRegistry(testConfig())
	fake := &fakeAdapter{mt: model.ModelGPT}
	r.Register(fake)

	_, err := r.Dispatch(context.Background(), model.PromptJob{
		Model:     model.ModelGPT,
		User:      "q",
		MaxTokens: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, fake.lastJob.MaxTokens)
}

func TestDispatch_RequestUnderCeilingPassesThrough(t *testing.T) {
	r := NewRegistry(testConfig())
	fake := &fakeAdapter{mt: model.ModelClaude}
	r.Register(fake)

	_, err := r.Dispatch(context.Background(), model.PromptJob{
		Model:     model.ModelClaude,
		User:      "q",
		MaxTokens: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, fake.lastJob.MaxTokens)
}

func TestDispatch_DefaultTokensWhenUnset(t *testing.T) {
	r := NewRegistry(testConfig())
	fake := &fakeAdapter{mt: model.ModelGemini}
	r.Register(fake)

	_, err := r.Dispatch(context.Background(), model.PromptJob{
		Model: model.ModelGemini,
		User:  "q",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, fake.lastJob.MaxTokens)
}

func TestDispatch_UnknownModel(t *testing.T) {
	r := NewRegistry(testConfig())

	_, err := r.Dispatch(context.Background(), model.PromptJob{
		Model: model.ModelType("llama"),
		User:  "q",
	})
	require.Error(t, err)

	var unsupported *UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, model.ModelType("llama"), unsupported.Model)
}

func TestDispatch_MissingKeyIsConfigurationError(t *testing.T) {
	// No API keys in config: every factory must fail with a configuration
	// error rather than letting a doomed call leave the process.
	r := NewRegistry(testConfig())

	for _, mt := range model.KnownModels() {
		_, err := r.Dispatch(context.Background(), model.PromptJob{Model: mt, User: "q"})
		require.Error(t, err, "model %s", mt)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr, "model %s", mt)
		assert.Contains(t, cfgErr.Reason, "missing API key")
	}
}

func TestRegister_OverridesFactory(t *testing.T) {
	r := NewRegistry(testConfig())
	fake := &fakeAdapter{mt: model.ModelGPT}
	r.Register(fake)

	a, err := r.Adapter(context.Background(), model.ModelGPT)
	require.NoError(t, err)
	assert.Same(t, Adapter(fake), a)
}

func TestAdapter_CachedAcrossDispatches(t *testing.T) {
	r := NewRegistry(testConfig())
	fake := &fakeAdapter{mt: model.ModelGPT}
	r.Register(fake)

	a1, err := r.Adapter(context.Background(), model.ModelGPT)
	require.NoError(t, err)
	a2, err := r.Adapter(context.Background(), model.ModelGPT)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
}
