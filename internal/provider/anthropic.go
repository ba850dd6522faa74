package provider

import (
	"context"
	"errors"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

// AnthropicAdapter serves ModelClaude via the Anthropic messages API.
type AnthropicAdapter struct {
	client    anthropic.Client
	modelName string
}

// NewAnthropicAdapter wraps an Anthropic client for a concrete model name.
func NewAnthropicAdapter(client anthropic.Client, modelName string) *AnthropicAdapter {
	return &AnthropicAdapter{client: client, modelName: modelName}
}

func (a *AnthropicAdapter) Model() model.ModelType {
	return model.ModelClaude
}

func (a *AnthropicAdapter) Invoke(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error) {
	if err := validateJob(job); err != nil {
		return nil, err
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.modelName,
		MaxTokens: int64(job.MaxTokens),
		System:    job.System,
		Messages: []anthropic.Message{
			{Role: "user", Content: job.User},
		},
		Temperature: job.Temperature,
	})
	if err != nil {
		var apierr *anthropic.APIError
		if errors.As(err, &apierr) {
			return nil, &ProviderError{Provider: "anthropic", Status: apierr.StatusCode, Message: apierr.Message, Err: err}
		}
		return nil, &ProviderError{Provider: "anthropic", Message: err.Error(), Err: err}
	}

	if len(resp.Content) == 0 && resp.StopReason == "" {
		return nil, &MalformedResponseError{Provider: "anthropic", Reason: "no content blocks"}
	}

	served := resp.Model
	if served == "" {
		served = a.modelName
	}

	text := resp.Text()
	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	if tokens == 0 {
		tokens = approxTokens(job.System+job.User, text)
	}

	return &model.PromptResponse{
		Text:       text,
		TokensUsed: tokens,
		ServedBy:   served,
	}, nil
}
