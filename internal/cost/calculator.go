package cost

import (
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/config"
)

// Calculator estimates USD spend for provider calls from configured
// per-million-token rates.
type Calculator struct {
	rates map[string]config.ModelRate
}

// NewCalculator creates a Calculator from pricing config.
func NewCalculator(pricing config.PricingConfig) *Calculator {
	return &Calculator{rates: pricing.Models}
}

// Estimate computes the cost of a call that consumed tokens total tokens on
// the given concrete model. Adapters report a single combined count, so the
// split between input and output is unknown; the blended (input+output)/2
// rate keeps the estimate honest either way. Unknown models cost 0.
func (c *Calculator) Estimate(servedBy string, tokens int) float64 {
	rate, ok := c.rates[servedBy]
	if !ok {
		return 0
	}
	blended := (rate.Input + rate.Output) / 2
	return (float64(tokens) / 1e6) * blended
}

// LogCost logs token usage and estimated cost with structured fields.
func (c *Calculator) LogCost(servedBy, promptID string, tokens int) {
	zap.L().Info("cost attribution",
		zap.String("model", servedBy),
		zap.String("prompt_id", promptID),
		zap.Int("tokens", tokens),
		zap.Float64("estimated_cost_usd", c.Estimate(servedBy, tokens)),
	)
}
