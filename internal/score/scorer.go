// Package score invokes the external effect-prediction oracle for resolved
// variants and aggregates tissue-matched track scores to one signed scalar
// per variant.
package score

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/regeno/qtl-eval/internal/qtl"
)

// ErrOracleOutage is returned when every oracle call failed. Variants scored
// before the outage are still returned alongside it.
var ErrOracleOutage = errors.New("scoring oracle unreachable")

// Failure records one excluded variant and why.
type Failure struct {
	VariantID string
	Reason    string
}

// Report accounts for every input variant.
type Report struct {
	Total          int
	Scored         int
	OracleFailures int
	NoTissueTrack  int
	Failures       []Failure
}

// Scorer scores resolved variants against a declared source tissue.
type Scorer struct {
	oracle  Oracle
	tissue  string
	workers int
	logger  *zap.Logger
}

// NewScorer creates a scorer. tissueCURIE is the dataset's source tissue
// ontology code; only tracks matching it exactly contribute to the
// aggregate.
func NewScorer(oracle Oracle, tissueCURIE string) *Scorer {
	return &Scorer{
		oracle:  oracle,
		tissue:  tissueCURIE,
		workers: 1,
		logger:  zap.NewNop(),
	}
}

// SetWorkers sets the oracle call fan-out. The default of 1 keeps calls
// strictly sequential; higher values only change throughput, never
// semantics.
func (s *Scorer) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// SetLogger sets the logger for progress and failure messages.
func (s *Scorer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// ScoreAll scores all variants and returns the scored subset in input order.
// One oracle call is issued per variant, covering its deduplicated scorer
// category set. Variants whose call fails, or for which no track matches the
// source tissue, are excluded and recorded; only a total oracle outage turns
// into an error, with partial results preserved.
func (s *Scorer) ScoreAll(ctx context.Context, variants []qtl.ResolvedVariant) ([]qtl.ScoredVariant, *Report, error) {
	report := &Report{Total: len(variants)}

	results := s.scoreParallel(ctx, variants)

	var scored []qtl.ScoredVariant
	for _, res := range results {
		if res.Err != nil {
			if ctx.Err() != nil {
				return scored, report, ctx.Err()
			}
			report.OracleFailures++
			report.Failures = append(report.Failures, Failure{
				VariantID: res.Variant.VariantID,
				Reason:    res.Err.Error(),
			})
			s.logger.Warn("oracle call failed, variant excluded",
				zap.String("variant", res.Variant.VariantID),
				zap.Error(res.Err))
			continue
		}

		sv, ok := s.aggregate(res.Variant, res.Tracks)
		if !ok {
			// Zero tissue-matched tracks: exclude, never score as zero.
			report.NoTissueTrack++
			report.Failures = append(report.Failures, Failure{
				VariantID: res.Variant.VariantID,
				Reason:    fmt.Sprintf("no track matched tissue %s", s.tissue),
			})
			continue
		}
		scored = append(scored, sv)
		report.Scored++
	}

	s.logger.Info("effect scoring finished",
		zap.Int("total", report.Total),
		zap.Int("scored", report.Scored),
		zap.Int("oracle_failures", report.OracleFailures),
		zap.Int("no_tissue_track", report.NoTissueTrack))

	if report.Total > 0 && report.OracleFailures == report.Total {
		return scored, report, ErrOracleOutage
	}
	return scored, report, nil
}

// aggregate filters tracks to the source tissue and computes the signed mean.
func (s *Scorer) aggregate(v qtl.ResolvedVariant, tracks []Track) (qtl.ScoredVariant, bool) {
	perTrack := make(map[string]float64, len(tracks))
	var tissueScores []float64
	for _, t := range tracks {
		perTrack[t.TrackID] = t.QuantileScore
		if t.OntologyCURIE == s.tissue {
			tissueScores = append(tissueScores, t.QuantileScore)
		}
	}
	if len(tissueScores) == 0 {
		return qtl.ScoredVariant{}, false
	}

	return qtl.ScoredVariant{
		ResolvedVariant: v,
		TrackScores:     perTrack,
		TissueScores:    tissueScores,
		AggregateScore:  qtl.MeanScore(tissueScores),
	}, true
}

// requestFor builds the single oracle request covering a variant's
// deduplicated scorer categories.
func (s *Scorer) requestFor(v qtl.ResolvedVariant) Request {
	return Request{
		Chrom:          v.Chrom,
		Pos:            v.Pos,
		Ref:            v.Ref,
		Alt:            v.Alt,
		SequenceLength: SequenceLength,
		Scorers:        qtl.ScorerCategories(v.Modalities),
	}
}
