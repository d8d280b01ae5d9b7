package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regeno/qtl-eval/internal/evaluate"
	"github.com/regeno/qtl-eval/internal/output"
	"github.com/regeno/qtl-eval/internal/qtl"
)

func newEvaluateCmd() *cobra.Command {
	var datasets []string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Correlate aggregate scores against measured effect sizes",
		Long: `Pair each scored variant's aggregate score with its measured beta, apply
the dataset's documented sign convention correction, and compute Spearman
and Pearson correlations with two-tailed significance. One metrics artifact
is written per dataset.`,
		Example: `  qtl-eval evaluate
  qtl-eval evaluate --datasets caQTLs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(datasets)
		},
	}

	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to evaluate (default: all)")

	return cmd
}

func runEvaluate(names []string) error {
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
	ev := evaluate.NewEvaluator()
	ev.SetLogger(logger)

	if err := os.MkdirAll(cfg.Data.ReportDir, 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	var results []qtl.CorrelationResult
	failures := 0
	for _, ds := range selected {
		scored, err := db.LoadScored(ds)
		if err != nil {
			return err
		}
		if len(scored) == 0 {
			fmt.Printf("%s: no scored variants, run 'qtl-eval score' first\n", ds.Name)
			continue
		}

		sum, err := ev.Evaluate(ds, scored)
		if err != nil {
			// Insufficient data fails this dataset only.
			if errors.Is(err, evaluate.ErrInsufficientData) {
				fmt.Fprintf(os.Stderr, "%s: %v\n", ds.Name, err)
				failures++
				continue
			}
			return err
		}

		if err := db.SaveResult(sum.Result); err != nil {
			return err
		}

		path := filepath.Join(cfg.Data.ReportDir, ds.Name+"_metrics.txt")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create metrics file: %w", err)
		}
		if err := output.WriteMetrics(f, sum); err != nil {
			f.Close()
			return fmt.Errorf("write metrics: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Printf("%s: n=%d spearman_rho=%.4f (p=%.2e) pearson_r=%.4f (p=%.2e) -> %s\n",
			ds.Name, sum.Result.N, sum.Result.SpearmanRho, sum.Result.SpearmanP,
			sum.Result.PearsonR, sum.Result.PearsonP, path)

		results = append(results, sum.Result)
	}

	if len(results) > 1 {
		sw := output.NewSummaryWriter(os.Stdout)
		if err := sw.WriteHeader(); err != nil {
			return err
		}
		for _, r := range results {
			if err := sw.Write(r); err != nil {
				return err
			}
		}
		if err := sw.Flush(); err != nil {
			return err
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d dataset(s) had insufficient data", failures)
	}
	return nil
}
