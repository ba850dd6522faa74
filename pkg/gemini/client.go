package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// APIError is a non-2xx response from the Gemini API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

// Client defines the Gemini API operations used by the pipeline.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is our own request type for content generation.
type GenerateRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int32
	Temperature *float64
}

// GenerateResponse is our own response type from content generation.
type GenerateResponse struct {
	Text  string
	Model string
	Usage TokenUsage
}

// TokenUsage tracks token consumption. Gemini reports prompt and candidate
// counts separately; either may be zero when the API omits usage metadata.
type TokenUsage struct {
	PromptTokens    int32
	CandidateTokens int32
}

// sdkClient implements Client using google.golang.org/genai.
type sdkClient struct {
	client *genai.Client
}

// NewClient creates a new Gemini client backed by the SDK.
func NewClient(ctx context.Context, apiKey string) (Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		var apierr genai.APIError
		if errors.As(err, &apierr) {
			return nil, &APIError{StatusCode: apierr.Code, Message: apierr.Message}
		}
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := &GenerateResponse{
		Text:  resp.Text(),
		Model: req.Model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			PromptTokens:    resp.UsageMetadata.PromptTokenCount,
			CandidateTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	return out, nil
}
