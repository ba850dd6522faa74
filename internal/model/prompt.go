package model

// ModelType identifies one of the supported LLM targets. The set is closed:
// the dispatcher rejects anything not listed here rather than guessing.
type ModelType string

const (
	ModelGPT    ModelType = "gpt"
	ModelClaude ModelType = "claude"
	ModelGemini ModelType = "gemini"
)

// KnownModels lists every dispatchable model type.
func KnownModels() []ModelType {
	return []ModelType{ModelGPT, ModelClaude, ModelGemini}
}

// IsKnown reports whether m is a dispatchable model type.
func (m ModelType) IsKnown() bool {
	switch m {
	case ModelGPT, ModelClaude, ModelGemini:
		return true
	}
	return false
}

// PromptJob is the normalized input for a single provider call. Built once
// per execution request and never mutated.
type PromptJob struct {
	Model       ModelType `json:"model"`
	System      string    `json:"system,omitempty"`
	User        string    `json:"user"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// PromptResponse is the normalized output of a provider call.
type PromptResponse struct {
	// Text is the generated content. Empty is valid: a provider returning
	// no content is not itself an error.
	Text string `json:"text"`
	// TokensUsed is reported usage where the provider supplies it, otherwise
	// the ceil((prompt+response)/4) approximation. Best effort only.
	TokensUsed int `json:"tokens_used"`
	// ServedBy is the concrete model name the provider reports having used,
	// e.g. "gpt-4o-mini". Distinct from the ModelType alias.
	ServedBy string `json:"served_by"`
}

// Outcome is the per-model result of a fan-out: exactly one of Response or
// Failure is set.
type Outcome struct {
	Model    ModelType       `json:"model"`
	Response *PromptResponse `json:"response,omitempty"`
	Failure  *FailureSummary `json:"failure,omitempty"`
}

// OK reports whether the outcome carries a response.
func (o Outcome) OK() bool {
	return o.Response != nil
}

// FailureSummary is the structured failure reason for a single model's call.
type FailureSummary struct {
	Kind      string `json:"kind"` // "provider", "malformed_response", "unsupported_model"
	Message   string `json:"message"`
	Status    int    `json:"status,omitempty"`
	Retryable bool   `json:"retryable"`
}

// BatchResult is what one fan-out execution returns to the caller: one
// outcome per requested model, in request order, plus extraction summaries
// for the outcomes that succeeded.
type BatchResult struct {
	PromptID   string             `json:"prompt_id"`
	Outcomes   []Outcome          `json:"outcomes"`
	Extraction []ExtractionResult `json:"extraction"`
	TotalCost  float64            `json:"total_cost_usd"`
}

// ExtractionResult pairs one successful outcome with what was found in it.
type ExtractionResult struct {
	Model     ModelType      `json:"model"`
	Mentions  []BrandMention `json:"mentions"`
	Citations []Citation     `json:"citations"`
}
