package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/store"
)

var (
	executionsModel  string
	executionsLimit  int
	executionsOffset int
)

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List stored execution records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := store.ExecutionFilter{
			Limit:  executionsLimit,
			Offset: executionsOffset,
		}
		if executionsModel != "" {
			mt := model.ModelType(executionsModel)
			if !mt.IsKnown() {
				return eris.Errorf("unknown model %q (known: gpt, claude, gemini)", executionsModel)
			}
			filter.Model = mt
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListExecutions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list executions")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

func init() {
	executionsCmd.Flags().StringVar(&executionsModel, "model", "", "filter by model type")
	executionsCmd.Flags().IntVar(&executionsLimit, "limit", 50, "max records to return")
	executionsCmd.Flags().IntVar(&executionsOffset, "offset", 0, "records to skip")
	rootCmd.AddCommand(executionsCmd)
}
