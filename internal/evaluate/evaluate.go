// Package evaluate correlates aggregate oracle scores against measured QTL
// effect sizes, one result per dataset.
package evaluate

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/regeno/qtl-eval/internal/qtl"
	"github.com/regeno/qtl-eval/internal/stats"
)

// ErrInsufficientData marks a dataset with fewer than 2 valid pairs.
// It is fatal for that dataset's evaluation only.
var ErrInsufficientData = stats.ErrInsufficientData

// Summary carries the correlation result plus the accounting a reader needs
// to trust it.
type Summary struct {
	Result qtl.CorrelationResult
	// DroppedPairs counts scored variants excluded because either side of
	// the pair was undefined. n never shrinks silently.
	DroppedPairs int
	// BetaInverted records whether the dataset's sign convention correction
	// was applied.
	BetaInverted bool
	ScoreStats   ScoreStats
}

// ScoreStats summarizes the aggregate score distribution for the report.
type ScoreStats struct {
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
	AbsMean float64
}

// Evaluator computes per-dataset correlation results.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{logger: zap.NewNop()}
}

// SetLogger sets the logger for accounting messages.
func (e *Evaluator) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Evaluate pairs each scored variant's aggregate score with its beta and
// computes the dataset's correlation result. Pairs with an undefined side
// are excluded and counted. When the dataset descriptor flags an inverted
// source convention, every beta is negated first; applying the flag twice
// would round-trip to the original values, so the correction is safe to
// reason about as a pure negation.
func (e *Evaluator) Evaluate(ds qtl.Dataset, scored []qtl.ScoredVariant) (*Summary, error) {
	var scores, betas []float64
	dropped := 0
	for _, v := range scored {
		if math.IsNaN(v.AggregateScore) || math.IsNaN(v.Beta) {
			dropped++
			continue
		}
		beta := v.Beta
		if ds.InvertBeta {
			beta = -beta
		}
		scores = append(scores, v.AggregateScore)
		betas = append(betas, beta)
	}

	if dropped > 0 {
		e.logger.Warn("excluded pairs with undefined values",
			zap.String("dataset", ds.Name),
			zap.Int("dropped", dropped))
	}

	rho, rhoP, err := stats.Spearman(scores, betas)
	if err != nil {
		if errors.Is(err, stats.ErrInsufficientData) {
			return nil, fmt.Errorf("dataset %s has %d valid pairs: %w", ds.Name, len(scores), err)
		}
		return nil, fmt.Errorf("spearman for %s: %w", ds.Name, err)
	}
	r, rp, err := stats.Pearson(scores, betas)
	if err != nil {
		return nil, fmt.Errorf("pearson for %s: %w", ds.Name, err)
	}

	sum := &Summary{
		Result: qtl.CorrelationResult{
			Dataset:       ds.Name,
			N:             len(scores),
			SpearmanRho:   rho,
			SpearmanP:     rhoP,
			PearsonR:      r,
			PearsonP:      rp,
			SignAgreement: stats.SignAgreement(scores, betas),
		},
		DroppedPairs: dropped,
		BetaInverted: ds.InvertBeta,
		ScoreStats:   summarize(scores),
	}

	e.logger.Info("dataset evaluated",
		zap.String("dataset", ds.Name),
		zap.Int("n", sum.Result.N),
		zap.Float64("spearman_rho", rho),
		zap.Float64("pearson_r", r),
		zap.Float64("sign_agreement", sum.Result.SignAgreement))

	return sum, nil
}

func summarize(scores []float64) ScoreStats {
	if len(scores) == 0 {
		return ScoreStats{}
	}
	s := ScoreStats{Min: scores[0], Max: scores[0]}
	var sum, absSum float64
	for _, v := range scores {
		sum += v
		absSum += math.Abs(v)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	n := float64(len(scores))
	s.Mean = sum / n
	s.AbsMean = absSum / n

	var sq float64
	for _, v := range scores {
		d := v - s.Mean
		sq += d * d
	}
	if len(scores) > 1 {
		s.Std = math.Sqrt(sq / (n - 1))
	}
	return s
}
