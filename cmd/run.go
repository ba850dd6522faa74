package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/pipeline"
)

var (
	runPrompt      string
	runSystem      string
	runModels      []string
	runMaxTokens   int
	runTemperature float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one prompt across the target models",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		targets, err := parseTargets(runModels)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := pipeline.RunRequest{
			System:    runSystem,
			User:      runPrompt,
			MaxTokens: runMaxTokens,
			Targets:   targets,
		}
		if cmd.Flags().Changed("temperature") {
			req.Temperature = &runTemperature
		}

		result, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		succeeded := 0
		for _, oc := range result.Outcomes {
			if oc.OK() {
				succeeded++
			}
		}
		zap.L().Info("run finished",
			zap.String("prompt_id", result.PromptID),
			zap.Int("succeeded", succeeded),
			zap.Int("failed", len(result.Outcomes)-succeeded),
			zap.Float64("total_cost_usd", result.TotalCost),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// parseTargets maps model aliases from the command line to known model types.
func parseTargets(names []string) ([]model.ModelType, error) {
	if len(names) == 0 {
		return model.KnownModels(), nil
	}
	targets := make([]model.ModelType, 0, len(names))
	for _, n := range names {
		mt := model.ModelType(n)
		if !mt.IsKnown() {
			return nil, eris.Errorf("unknown model %q (known: gpt, claude, gemini)", n)
		}
		targets = append(targets, mt)
	}
	return targets, nil
}

func init() {
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "prompt text (required)")
	runCmd.Flags().StringVar(&runSystem, "system", "", "system instruction")
	runCmd.Flags().StringSliceVar(&runModels, "models", nil, "target models (default: all)")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "per-call token budget (default from config)")
	runCmd.Flags().Float64Var(&runTemperature, "temperature", 0, "sampling temperature")
	_ = runCmd.MarkFlagRequired("prompt")
	rootCmd.AddCommand(runCmd)
}
