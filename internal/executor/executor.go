// Package executor runs one prompt against a set of models concurrently with
// settle-all semantics: every requested model produces an outcome, success or
// failure, and no model's failure aborts its siblings.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/provider"
)

// Dispatcher resolves a job's model to an adapter and runs it. Implemented by
// provider.Registry; tests supply fakes.
type Dispatcher interface {
	Dispatch(ctx context.Context, job model.PromptJob) (*model.PromptResponse, error)
}

// Request is the model-independent part of a fan-out: the same prompt is sent
// to every target model.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float64
}

// Executor fans one request out to N models.
type Executor struct {
	dispatcher  Dispatcher
	callTimeout time.Duration
}

// New creates an Executor. callTimeout bounds each provider call; a timeout
// fails that model's outcome only.
func New(d Dispatcher, callTimeout time.Duration) *Executor {
	return &Executor{dispatcher: d, callTimeout: callTimeout}
}

// Execute runs req against each model in targets concurrently and waits for
// all calls to settle. The returned slice has exactly one outcome per
// distinct requested model, in request order, regardless of completion order.
//
// Per-model failures become failure outcomes. The only errors Execute itself
// returns are an empty target list and *provider.ConfigurationError, which
// means a provider is unusable for the process lifetime and the request as a
// whole cannot be answered honestly.
func (e *Executor) Execute(ctx context.Context, req Request, targets []model.ModelType) ([]model.Outcome, error) {
	if req.User == "" {
		return nil, eris.New("executor: prompt text must be non-empty")
	}

	targets = dedupe(targets)
	if len(targets) == 0 {
		return nil, eris.New("executor: at least one target model is required")
	}

	outcomes := make([]model.Outcome, len(targets))

	g, gCtx := errgroup.WithContext(ctx)
	for i, mt := range targets {
		g.Go(func() error {
			job := model.PromptJob{
				Model:       mt,
				System:      req.System,
				User:        req.User,
				MaxTokens:   req.MaxTokens,
				Temperature: req.Temperature,
			}

			callCtx := gCtx
			if e.callTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gCtx, e.callTimeout)
				defer cancel()
			}

			started := time.Now()
			resp, err := e.dispatcher.Dispatch(callCtx, job)
			if err != nil {
				var cfgErr *provider.ConfigurationError
				if errors.As(err, &cfgErr) {
					// Capability missing, not a call failure: abort the batch.
					return cfgErr
				}
				zap.L().Warn("model call failed",
					zap.String("model", string(mt)),
					zap.Duration("elapsed", time.Since(started)),
					zap.Error(err),
				)
				outcomes[i] = model.Outcome{Model: mt, Failure: summarize(err)}
				return nil
			}

			zap.L().Debug("model call complete",
				zap.String("model", string(mt)),
				zap.String("served_by", resp.ServedBy),
				zap.Int("tokens", resp.TokensUsed),
				zap.Duration("elapsed", time.Since(started)),
			)
			outcomes[i] = model.Outcome{Model: mt, Response: resp}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// dedupe drops repeated model types, keeping first-request order.
func dedupe(targets []model.ModelType) []model.ModelType {
	seen := make(map[model.ModelType]bool, len(targets))
	out := targets[:0:0]
	for _, mt := range targets {
		if seen[mt] {
			continue
		}
		seen[mt] = true
		out = append(out, mt)
	}
	return out
}

// summarize converts a dispatch error into the structured per-model failure
// reason stored on the outcome.
func summarize(err error) *model.FailureSummary {
	var unsupported *provider.UnsupportedModelError
	if errors.As(err, &unsupported) {
		return &model.FailureSummary{
			Kind:    "unsupported_model",
			Message: unsupported.Error(),
		}
	}

	var malformed *provider.MalformedResponseError
	if errors.As(err, &malformed) {
		return &model.FailureSummary{
			Kind:    "malformed_response",
			Message: malformed.Error(),
		}
	}

	var provErr *provider.ProviderError
	if errors.As(err, &provErr) {
		return &model.FailureSummary{
			Kind:      "provider",
			Message:   provErr.Error(),
			Status:    provErr.Status,
			Retryable: provErr.Retryable(),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &model.FailureSummary{
			Kind:      "provider",
			Message:   "provider call timed out",
			Retryable: true,
		}
	}

	return &model.FailureSummary{
		Kind:    "provider",
		Message: err.Error(),
	}
}
