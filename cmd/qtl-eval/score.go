package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regeno/qtl-eval/internal/httpx"
	"github.com/regeno/qtl-eval/internal/score"
)

func newScoreCmd() *cobra.Command {
	var (
		datasets []string
		limit    int
		force    bool
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score resolved variants with the effect-prediction oracle",
		Long: `Invoke the external effect-prediction oracle for each resolved variant,
filter the returned tracks to the dataset's source tissue, and persist the
signed aggregate score per variant. Variants with no tissue-matched track
are excluded, not scored as zero.`,
		Example: `  qtl-eval score
  qtl-eval score --datasets hQTLs --limit 20
  qtl-eval score --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, datasets, limit, force, workers)
		},
	}

	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to process (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only score the first N variants (testing)")
	cmd.Flags().BoolVar(&force, "force", false, "Recompute even if output already exists")
	cmd.Flags().IntVar(&workers, "workers", 0, "Oracle call fan-out (default from config)")

	return cmd
}

func runScore(cmd *cobra.Command, names []string, limit int, force bool, workers int) error {
	selected, err := selectDatasets(names)
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := zap.L()

	if cfg.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url not configured")
	}

	hc := httpx.New(httpx.Options{})
	hc.SetLogger(logger)
	oracle, err := score.NewHTTPOracle(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, hc)
	if err != nil {
		return err
	}

	if workers == 0 {
		workers = cfg.Oracle.Workers
	}

	for _, ds := range selected {
		exists, err := db.HasScored(ds.Name)
		if err != nil {
			return err
		}
		if exists && !force {
			fmt.Printf("%s: scored variants exist, use --force to recompute\n", ds.Name)
			continue
		}

		resolved, err := db.LoadResolved(ds, limit)
		if err != nil {
			return err
		}
		if len(resolved) == 0 {
			fmt.Printf("%s: no resolved variants, run 'qtl-eval prepare' first\n", ds.Name)
			continue
		}

		scorer := score.NewScorer(oracle, ds.TissueCURIE)
		scorer.SetWorkers(workers)
		scorer.SetLogger(logger)

		scored, report, err := scorer.ScoreAll(cmd.Context(), resolved)
		if err != nil && !errors.Is(err, score.ErrOracleOutage) {
			return err
		}

		if err := db.ReplaceScored(ds.Name, scored); err != nil {
			return err
		}

		fmt.Printf("%s: scored %d/%d variants, %d oracle failures, %d without tissue-matched tracks\n",
			ds.Name, report.Scored, report.Total, report.OracleFailures, report.NoTissueTrack)

		if errors.Is(err, score.ErrOracleOutage) {
			return fmt.Errorf("%s: %w (partial results saved)", ds.Name, err)
		}
	}

	return nil
}
