package provider

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/visibility-cli/internal/config"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/pkg/anthropic"
	"github.com/sells-group/visibility-cli/pkg/gemini"
	"github.com/sells-group/visibility-cli/pkg/openai"
)

// Factory builds an adapter on first dispatch. Construction validates
// credentials, so a missing key surfaces as *ConfigurationError here and not
// somewhere inside a provider call.
type Factory func(ctx context.Context) (Adapter, error)

// Registry maps model types to adapters and enforces the process-wide token
// ceiling. Adapters are constructed lazily and cached for the process
// lifetime; credential rotation requires a restart.
type Registry struct {
	ceiling       int
	defaultTokens int

	mu        sync.Mutex
	adapters  map[model.ModelType]Adapter
	factories map[model.ModelType]Factory
	limiters  map[model.ModelType]*rate.Limiter

	rps   rate.Limit
	burst int
}

// NewRegistry wires adapter factories from configuration.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		ceiling:       cfg.Executor.MaxTokensCeiling,
		defaultTokens: cfg.Executor.DefaultMaxTokens,
		adapters:      make(map[model.ModelType]Adapter),
		factories:     make(map[model.ModelType]Factory),
		limiters:      make(map[model.ModelType]*rate.Limiter),
		rps:           rate.Limit(cfg.Executor.ProviderRPS),
		burst:         cfg.Executor.ProviderBurst,
	}

	r.factories[model.ModelGPT] = func(ctx context.Context) (Adapter, error) {
		if cfg.OpenAI.Key == "" {
			return nil, &ConfigurationError{Provider: "openai", Reason: "missing API key"}
		}
		return NewOpenAIAdapter(openai.NewClient(cfg.OpenAI.Key), cfg.OpenAI.Model), nil
	}
	r.factories[model.ModelClaude] = func(ctx context.Context) (Adapter, error) {
		if cfg.Anthropic.Key == "" {
			return nil, &ConfigurationError{Provider: "anthropic", Reason: "missing API key"}
		}
		return NewAnthropicAdapter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model), nil
	}
	r.factories[model.ModelGemini] = func(ctx context.Context) (Adapter, error) {
		if cfg.Gemini.Key == "" {
			return nil, &ConfigurationError{Provider: "gemini", Reason: "missing API key"}
		}
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, &ConfigurationError{Provider: "gemini", Reason: err.Error()}
		}
		return NewGeminiAdapter(client, cfg.Gemini.Model), nil
	}

	return r
}

// Register installs a pre-built adapter, replacing any factory for its model
// type. Used by tests to inject fakes.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Model()] = a
}

// Ceiling returns the configured process-wide token ceiling.
func (r *Registry) Ceiling() int {
	return r.ceiling
}

// Adapter returns the cached adapter for mt, constructing it on first use.
func (r *Registry) Adapter(ctx context.Context, mt model.ModelType) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[mt]; ok {
		return a, nil
	}

	factory, ok := r.factories[mt]
	if !ok {
		return nil, &UnsupportedModelError{Model: mt}
	}

	a, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	r.adapters[mt] = a

	zap.L().Debug("adapter constructed",
		zap.String("model", string(mt)),
	)
	return a, nil
}

// Dispatch clamps the job's token budget to the ceiling, waits for the
// provider's rate limiter, and invokes the adapter. One dispatch is one
// outbound call; there are no retries at this layer.
func (r *Registry) Dispatch(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error) {
	a, err := r.Adapter(ctx, job.Model)
	if err != nil {
		return nil, err
	}

	if job.MaxTokens <= 0 {
		job.MaxTokens = r.defaultTokens
	}
	if job.MaxTokens > r.ceiling {
		zap.L().Debug("clamping token budget",
			zap.String("model", string(job.Model)),
			zap.Int("requested", job.MaxTokens),
			zap.Int("ceiling", r.ceiling),
		)
		job.MaxTokens = r.ceiling
	}

	if err := r.limiter(job.Model).Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: string(job.Model), Message: "rate limiter wait: " + err.Error(), Err: err}
	}

	return a.Invoke(ctx, job)
}

func (r *Registry) limiter(mt model.ModelType) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[mt]
	if !ok {
		rps := r.rps
		if rps <= 0 {
			rps = rate.Inf
		}
		burst := r.burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(rps, burst)
		r.limiters[mt] = l
	}
	return l
}
