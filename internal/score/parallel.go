package score

import (
	"context"
	"sync"

	"github.com/regeno/qtl-eval/internal/qtl"
)

// result holds the oracle output for one variant.
type result struct {
	Seq     int
	Variant qtl.ResolvedVariant
	Tracks  []Track
	Err     error
}

// scoreParallel fans oracle calls out over s.workers goroutines and returns
// results in input order. Per-variant independence makes the fan-out safe;
// ordering the collection keeps downstream accounting deterministic.
// Failures travel as values in the result slice, never dropped.
func (s *Scorer) scoreParallel(ctx context.Context, variants []qtl.ResolvedVariant) []result {
	items := make(chan int)
	results := make(chan result, len(variants))

	var wg sync.WaitGroup
	wg.Add(s.workers)
	for range s.workers {
		go func() {
			defer wg.Done()
			for i := range items {
				tracks, err := s.oracle.ScoreVariant(ctx, s.requestFor(variants[i]))
				results <- result{Seq: i, Variant: variants[i], Tracks: tracks, Err: err}
			}
		}()
	}

	go func() {
		defer close(items)
		for i := range variants {
			select {
			case items <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]result, 0, len(variants))
	for r := range results {
		ordered = append(ordered, r)
	}

	// Restore input order; workers finish out of order.
	bySeq := make([]result, len(variants))
	present := make([]bool, len(variants))
	for _, r := range ordered {
		bySeq[r.Seq] = r
		present[r.Seq] = true
	}
	out := make([]result, 0, len(ordered))
	for i, ok := range present {
		if ok {
			out = append(out, bySeq[i])
		}
	}
	return out
}
