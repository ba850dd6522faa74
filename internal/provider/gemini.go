package provider

import (
	"context"
	"errors"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/pkg/gemini"
)

// GeminiAdapter serves ModelGemini via the Google generative-content API.
type GeminiAdapter struct {
	client    gemini.Client
	modelName string
}

// NewGeminiAdapter wraps a Gemini client for a concrete model name.
func NewGeminiAdapter(client gemini.Client, modelName string) *GeminiAdapter {
	return &GeminiAdapter{client: client, modelName: modelName}
}

func (a *GeminiAdapter) Model() model.ModelType {
	return model.ModelGemini
}

func (a *GeminiAdapter) Invoke(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error) {
	if err := validateJob(job); err != nil {
		return nil, err
	}

	resp, err := a.client.GenerateContent(ctx, gemini.GenerateRequest{
		Model:       a.modelName,
		System:      job.System,
		User:        job.User,
		MaxTokens:   int32(job.MaxTokens),
		Temperature: job.Temperature,
	})
	if err != nil {
		var apierr *gemini.APIError
		if errors.As(err, &apierr) {
			return nil, &ProviderError{Provider: "gemini", Status: apierr.StatusCode, Message: apierr.Message, Err: err}
		}
		return nil, &ProviderError{Provider: "gemini", Message: err.Error(), Err: err}
	}

	served := resp.Model
	if served == "" {
		served = a.modelName
	}

	// Gemini omits usage metadata on some responses; fall back to the
	// character-count heuristic.
	tokens := int(resp.Usage.PromptTokens + resp.Usage.CandidateTokens)
	if tokens == 0 {
		tokens = approxTokens(job.System+job.User, resp.Text)
	}

	return &model.PromptResponse{
		Text:       resp.Text,
		TokensUsed: tokens,
		ServedBy:   served,
	}, nil
}
