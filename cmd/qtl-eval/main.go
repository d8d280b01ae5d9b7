// Package main provides the qtl-eval command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regeno/qtl-eval/internal/config"
	"github.com/regeno/qtl-eval/internal/qtl"
	"github.com/regeno/qtl-eval/internal/store"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "qtl-eval",
	Short: "Correlate predicted regulatory variant effects against measured QTLs",
	Long: `qtl-eval runs a three-stage validation pipeline: resolve QTL variants to
validated ref/alt alleles, score them with the external effect-prediction
oracle, and correlate the tissue-matched aggregate scores against the
experimentally measured effect sizes.`,
	Version: fmt.Sprintf("%s (%s) built %s", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if db, _ := cmd.Flags().GetString("db"); db != "" {
			cfg.DB = db
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "DuckDB database path (overrides config)")

	rootCmd.AddCommand(newPrepareCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// selectDatasets resolves the --datasets flag to descriptors, defaulting to
// every bundled dataset.
func selectDatasets(names []string) ([]qtl.Dataset, error) {
	if len(names) == 0 {
		return qtl.Datasets(), nil
	}
	out := make([]qtl.Dataset, 0, len(names))
	for _, name := range names {
		ds, err := qtl.LookupDataset(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DB, err)
	}
	return s, nil
}
