// Package pipeline orchestrates one visibility run: fan a prompt out to the
// target models, extract mentions and citations from whatever came back, and
// persist every outcome as an append-only execution record.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/executor"
	"github.com/sells-group/visibility-cli/internal/extract"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/resilience"
)

// Runner is the fan-out surface the pipeline drives. Implemented by
// executor.Executor; tests supply fakes.
type Runner interface {
	Execute(ctx context.Context, req executor.Request, targets []model.ModelType) ([]model.Outcome, error)
}

// Sink is the slice of the store the pipeline writes to.
type Sink interface {
	InsertExecution(ctx context.Context, rec model.ExecutionRecord) error
	InsertMentions(ctx context.Context, mentions []model.BrandMention) error
	InsertCitations(ctx context.Context, citations []model.Citation) error
}

// RunRequest is one prompt to execute across a set of models.
type RunRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float64
	Targets     []model.ModelType
}

// Pipeline wires the executor, extractor, cost calculator, and store into a
// single run loop.
type Pipeline struct {
	runner    Runner
	extractor *extract.Extractor
	catalog   *extract.Catalog
	sink      Sink
	calc      *cost.Calculator
	retry     resilience.RetryConfig
}

// New creates a Pipeline. Store writes are retried on transient errors;
// provider calls are not, failures there become recorded outcomes instead.
func New(runner Runner, catalog *extract.Catalog, sink Sink, calc *cost.Calculator) *Pipeline {
	return &Pipeline{
		runner:    runner,
		extractor: extract.New(),
		catalog:   catalog,
		sink:      sink,
		calc:      calc,
		retry:     resilience.DefaultRetryConfig(),
	}
}

// Run executes req and persists the results. The returned BatchResult mirrors
// the outcomes in request order; persistence failures fail the run, provider
// failures do not.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*model.BatchResult, error) {
	promptID := uuid.New().String()

	outcomes, err := p.runner.Execute(ctx, executor.Request{
		System:      req.System,
		User:        req.User,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, req.Targets)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: execute")
	}

	result := &model.BatchResult{
		PromptID: promptID,
		Outcomes: outcomes,
	}

	for _, oc := range outcomes {
		rec := p.record(promptID, oc)
		if err := p.persist(ctx, "insert_execution", func(ctx context.Context) error {
			return p.sink.InsertExecution(ctx, rec)
		}); err != nil {
			return nil, eris.Wrapf(err, "pipeline: persist execution for %s", oc.Model)
		}

		if !oc.OK() {
			continue
		}

		result.TotalCost += rec.CostUSD
		p.calc.LogCost(oc.Response.ServedBy, promptID, oc.Response.TokensUsed)

		ext := p.extractor.Extract(oc.Response.Text, p.catalog)
		mentions := claimMentions(ext.Mentions, rec.ID)
		citations := claimCitations(ext.Citations, rec.ID)

		if err := p.persist(ctx, "insert_mentions", func(ctx context.Context) error {
			return p.sink.InsertMentions(ctx, mentions)
		}); err != nil {
			return nil, eris.Wrapf(err, "pipeline: persist mentions for %s", oc.Model)
		}
		if err := p.persist(ctx, "insert_citations", func(ctx context.Context) error {
			return p.sink.InsertCitations(ctx, citations)
		}); err != nil {
			return nil, eris.Wrapf(err, "pipeline: persist citations for %s", oc.Model)
		}

		result.Extraction = append(result.Extraction, model.ExtractionResult{
			Model:     oc.Model,
			Mentions:  mentions,
			Citations: citations,
		})
	}

	zap.L().Info("run complete",
		zap.String("prompt_id", promptID),
		zap.Int("models", len(outcomes)),
		zap.Int("extracted", len(result.Extraction)),
		zap.Float64("total_cost_usd", result.TotalCost),
	)
	return result, nil
}

// record builds the execution record for one outcome. Exactly one of response
// text and error is set, matching the store's check constraint.
func (p *Pipeline) record(promptID string, oc model.Outcome) model.ExecutionRecord {
	rec := model.ExecutionRecord{
		ID:         uuid.New().String(),
		PromptID:   promptID,
		Model:      oc.Model,
		ExecutedAt: time.Now().UTC(),
	}

	if oc.OK() {
		text := oc.Response.Text
		rec.ResponseText = &text
		rec.ServedBy = oc.Response.ServedBy
		rec.TokensUsed = oc.Response.TokensUsed
		rec.CostUSD = p.calc.Estimate(oc.Response.ServedBy, oc.Response.TokensUsed)
		return rec
	}

	msg := fmt.Sprintf("%s: %s", oc.Failure.Kind, oc.Failure.Message)
	rec.Error = &msg
	return rec
}

func (p *Pipeline) persist(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger("store", op)
	return resilience.Do(ctx, cfg, fn)
}

// claimMentions stamps extracted mentions with IDs and their owning execution.
func claimMentions(mentions []model.BrandMention, executionID string) []model.BrandMention {
	out := make([]model.BrandMention, len(mentions))
	for i, m := range mentions {
		m.ID = uuid.New().String()
		m.ExecutionID = executionID
		out[i] = m
	}
	return out
}

func claimCitations(citations []model.Citation, executionID string) []model.Citation {
	out := make([]model.Citation, len(citations))
	for i, c := range citations {
		c.ID = uuid.New().String()
		c.ExecutionID = executionID
		out[i] = c
	}
	return out
}
