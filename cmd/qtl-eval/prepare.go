package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/regeno/qtl-eval/internal/httpx"
	"github.com/regeno/qtl-eval/internal/qtl"
	"github.com/regeno/qtl-eval/internal/resolve"
)

func newPrepareCmd() *cobra.Command {
	var (
		datasets []string
		limit    int
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Resolve QTL variants to validated ref/alt alleles",
		Long: `Load the raw QTL summary tables, resolve each variant's reference SNP
identifier to validated ref/alt alleles via the variant annotation service,
and persist the resolved variants. Unresolved records are counted and
reported, never silently dropped.`,
		Example: `  qtl-eval prepare
  qtl-eval prepare --datasets caQTLs --limit 50
  qtl-eval prepare --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrepare(cmd, datasets, limit, force)
		},
	}

	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to process (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only process the first N variants (testing)")
	cmd.Flags().BoolVar(&force, "force", false, "Recompute even if output already exists")

	return cmd
}

func runPrepare(cmd *cobra.Command, names []string, limit int, force bool) error {
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

	hc := httpx.New(httpx.Options{
		Limiter: rate.NewLimiter(rate.Every(time.Duration(cfg.Lookup.ThrottleMS)*time.Millisecond), 1),
	})
	hc.SetLogger(logger)
	client := resolve.NewVariantInfoClient(cfg.Lookup.BaseURL, cfg.Lookup.Assembly, hc)

	resolver := resolve.NewResolver(client)
	resolver.SetBatchSize(cfg.Lookup.BatchSize)
	resolver.SetLogger(logger)

	for _, ds := range selected {
		exists, err := db.HasResolved(ds.Name)
		if err != nil {
			return err
		}
		if exists && !force {
			fmt.Printf("%s: resolved variants exist, use --force to recompute\n", ds.Name)
			continue
		}

		rawPath := filepath.Join(cfg.Data.RawDir, ds.RawFile)
		records, err := qtl.LoadRecords(ds, rawPath, limit)
		if err != nil {
			return err
		}
		logger.Info("loaded raw records",
			zap.String("dataset", ds.Name),
			zap.Int("records", len(records)))

		resolved, report, err := resolver.Resolve(cmd.Context(), records)
		if err != nil && !errors.Is(err, resolve.ErrLookupOutage) {
			return err
		}

		// Persist whatever resolved, outage or not.
		if err := db.ReplaceResolved(ds.Name, resolved); err != nil {
			return err
		}

		fmt.Printf("%s: resolved %d/%d variants (%.1f%%), %d unresolved\n",
			ds.Name, report.Resolved, report.Total, report.Rate()*100, report.Unresolved)

		if errors.Is(err, resolve.ErrLookupOutage) {
			return fmt.Errorf("%s: %w (partial results saved)", ds.Name, err)
		}
	}

	return nil
}
