package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Adapter translates one normalized PromptJob into one provider-specific API
// call and the provider's reply back into a normalized PromptResponse.
// Adapters hold no per-call mutable state and are safe for concurrent use.
// They never retry: one Invoke is one outbound call.
type Adapter interface {
	// Model returns the model type this adapter serves.
	Model() model.ModelType
	// Invoke runs the job. An empty response text is a valid success; errors
	// are *ProviderError or *MalformedResponseError.
	Invoke(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error)
}

// validateJob enforces the adapter input contract shared by all providers.
func validateJob(job model.PromptJob) error {
	if job.MaxTokens <= 0 {
		return eris.Errorf("provider: max tokens must be positive, got %d", job.MaxTokens)
	}
	if job.User == "" {
		return eris.New("provider: user prompt must be non-empty")
	}
	return nil
}

// approxTokens estimates token usage for providers that do not report it:
// ceil((prompt+response)/4). A documented heuristic, not a guarantee.
func approxTokens(prompt, response string) int {
	n := len(prompt) + len(response)
	return (n + 3) / 4
}
