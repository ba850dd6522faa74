package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/visibility-cli/internal/rollup"
)

var (
	rollupEntity string
	rollupWindow string
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute visibility rollups from stored mentions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		since, err := parseWindow(rollupWindow)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := loadCatalog(ctx, st)
		if err != nil {
			return err
		}

		entities := catalog.Names()
		if rollupEntity != "" {
			entities = []string{rollupEntity}
		}
		if len(entities) == 0 {
			return eris.New("no entities to roll up; seed the catalog first")
		}

		rollups, err := rollup.NewRecomputer(st).RecomputeAll(ctx, entities, since)
		if err != nil {
			return eris.Wrap(err, "recompute rollups")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rollups)
	},
}

func init() {
	rollupCmd.Flags().StringVar(&rollupEntity, "entity", "", "recompute a single entity (default: full catalog)")
	rollupCmd.Flags().StringVar(&rollupWindow, "window", "", "rollup window as a duration, e.g. 24h (default: all time)")
	rootCmd.AddCommand(rollupCmd)
}
