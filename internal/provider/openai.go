package provider

import (
	"context"
	"errors"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/pkg/openai"
)

// OpenAIAdapter serves ModelGPT via the OpenAI chat completions API.
type OpenAIAdapter struct {
	client    openai.Client
	modelName string
}

// NewOpenAIAdapter wraps an OpenAI client for a concrete model name.
func NewOpenAIAdapter(client openai.Client, modelName string) *OpenAIAdapter {
	return &OpenAIAdapter{client: client, modelName: modelName}
}

func (a *OpenAIAdapter) Model() model.ModelType {
	return model.ModelGPT
}

func (a *OpenAIAdapter) Invoke(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error) {
	if err := validateJob(job); err != nil {
		return nil, err
	}

	resp, err := a.client.ChatCompletion(ctx, openai.ChatRequest{
		Model:       a.modelName,
		System:      job.System,
		User:        job.User,
		MaxTokens:   int64(job.MaxTokens),
		Temperature: job.Temperature,
	})
	if err != nil {
		var apierr *openai.APIError
		if errors.As(err, &apierr) {
			return nil, &ProviderError{Provider: "openai", Status: apierr.StatusCode, Message: apierr.Message, Err: err}
		}
		return nil, &ProviderError{Provider: "openai", Message: err.Error(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Provider: "openai", Reason: "no completion choices"}
	}

	served := resp.Model
	if served == "" {
		served = a.modelName
	}

	tokens := int(resp.Usage.TotalTokens)
	if tokens == 0 {
		tokens = approxTokens(job.System+job.User, resp.Choices[0].Content)
	}

	return &model.PromptResponse{
		Text:       resp.Choices[0].Content,
		TokensUsed: tokens,
		ServedBy:   served,
	}, nil
}
