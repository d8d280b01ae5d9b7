// Package output renders the evaluation report artifacts.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/regeno/qtl-eval/internal/evaluate"
	"github.com/regeno/qtl-eval/internal/qtl"
)

// WriteMetrics writes the per-dataset metrics text artifact, the pipeline's
// primary output contract.
func WriteMetrics(w io.Writer, sum *evaluate.Summary) error {
	bw := bufio.NewWriter(w)
	r := sum.Result

	fmt.Fprintf(bw, "%s Evaluation\n", r.Dataset)
	fmt.Fprintln(bw, strings.Repeat("=", 60))
	fmt.Fprintf(bw, "n_variants: %d\n", r.N)
	fmt.Fprintf(bw, "spearman_rho: %.4f\n", r.SpearmanRho)
	fmt.Fprintf(bw, "spearman_p: %.2e\n", r.SpearmanP)
	fmt.Fprintf(bw, "pearson_r: %.4f\n", r.PearsonR)
	fmt.Fprintf(bw, "pearson_p: %.2e\n", r.PearsonP)
	fmt.Fprintf(bw, "sign_agreement: %.4f\n", r.SignAgreement)
	if sum.DroppedPairs > 0 {
		fmt.Fprintf(bw, "dropped_pairs: %d\n", sum.DroppedPairs)
	}
	if sum.BetaInverted {
		fmt.Fprintf(bw, "\nNote: betas negated per the dataset's documented sign convention\n")
	}
	fmt.Fprintf(bw, "\nNote: correlating aggregate quantile score with beta (directional effects)\n")

	s := sum.ScoreStats
	fmt.Fprintf(bw, "\nScore stats:\n")
	fmt.Fprintf(bw, "  mean: %.4f\n", s.Mean)
	fmt.Fprintf(bw, "  std: %.4f\n", s.Std)
	fmt.Fprintf(bw, "  range: [%.4f, %.4f]\n", s.Min, s.Max)
	fmt.Fprintf(bw, "  abs_mean: %.4f\n", s.AbsMean)

	return bw.Flush()
}

// SummaryWriter writes one tab-delimited row per dataset, for eyeballing
// all datasets side by side.
type SummaryWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewSummaryWriter creates a tab-delimited summary writer.
func NewSummaryWriter(w io.Writer) *SummaryWriter {
	return &SummaryWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Dataset",
			"N",
			"Spearman_rho",
			"Spearman_p",
			"Pearson_r",
			"Pearson_p",
			"Sign_agreement",
		},
	}
}

// WriteHeader writes the header line.
func (sw *SummaryWriter) WriteHeader() error {
	_, err := sw.w.WriteString(strings.Join(sw.columns, "\t") + "\n")
	return err
}

// Write writes a single dataset's result row.
func (sw *SummaryWriter) Write(r qtl.CorrelationResult) error {
	_, err := fmt.Fprintf(sw.w, "%s\t%d\t%.4f\t%.2e\t%.4f\t%.2e\t%.4f\n",
		r.Dataset, r.N, r.SpearmanRho, r.SpearmanP, r.PearsonR, r.PearsonP, r.SignAgreement)
	return err
}

// Flush flushes buffered output.
func (sw *SummaryWriter) Flush() error {
	return sw.w.Flush()
}
