// Package stats computes the association statistics reported by the
// evaluator: Spearman and Pearson correlations with two-tailed significance,
// and sign agreement. All statistics are sign-sensitive; nothing here takes
// an absolute value.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when fewer than 2 pairs are available;
// correlation is undefined, not zero.
var ErrInsufficientData = errors.New("fewer than 2 paired observations")

// Pearson returns the linear correlation coefficient of (x, y) and its
// two-tailed p-value from the t distribution with n-2 degrees of freedom.
func Pearson(x, y []float64) (r, p float64, err error) {
	if err := checkPairs(x, y); err != nil {
		return 0, 0, err
	}
	r = stat.Correlation(x, y, nil)
	return r, pValue(r, len(x)), nil
}

// Spearman returns the rank correlation coefficient of (x, y) and its
// two-tailed p-value from the t approximation. Ties receive average ranks.
func Spearman(x, y []float64) (rho, p float64, err error) {
	if err := checkPairs(x, y); err != nil {
		return 0, 0, err
	}
	rho = stat.Correlation(Ranks(x), Ranks(y), nil)
	return rho, pValue(rho, len(x)), nil
}

// SignAgreement returns the fraction of pairs where sign(x) == sign(y).
// Zero counts as its own sign.
func SignAgreement(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	agree := 0
	for i := range x {
		if sign(x[i]) == sign(y[i]) {
			agree++
		}
	}
	return float64(agree) / float64(len(x))
}

// Ranks returns 1-based ranks with ties assigned their average rank.
func Ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		// Positions i..j hold a tie group; average their 1-based ranks.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// pValue computes the two-tailed significance of a correlation coefficient
// over n pairs using the t statistic r*sqrt((n-2)/(1-r^2)).
func pValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	if math.IsNaN(r) {
		return math.NaN()
	}
	denom := 1 - r*r
	if denom <= 0 {
		// |r| == 1: the t statistic diverges.
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/denom)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.CDF(-math.Abs(t))
}

func checkPairs(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("mismatched pair lengths %d and %d", len(x), len(y))
	}
	if len(x) < 2 {
		return ErrInsufficientData
	}
	return nil
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
