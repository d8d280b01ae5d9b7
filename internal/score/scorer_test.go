package score

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regeno/qtl-eval/internal/qtl"
)

// fakeOracle serves canned tracks and records every request it sees.
type fakeOracle struct {
	mu       sync.Mutex
	tracks   map[string][]Track // keyed by variant position string
	failIDs  map[string]bool
	failAll  bool
	requests []Request
}

func (f *fakeOracle) ScoreVariant(ctx context.Context, req Request) ([]Track, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	key := fmt.Sprintf("%s:%d", req.Chrom, req.Pos)
	if f.failAll || f.failIDs[key] {
		return nil, fmt.Errorf("oracle unavailable")
	}
	return f.tracks[key], nil
}

func resolvedVariant(id string, pos int64, mods ...qtl.Modality) qtl.ResolvedVariant {
	return qtl.ResolvedVariant{
		Record: qtl.Record{
			VariantID:  id,
			Chrom:      "1",
			Pos:        pos,
			Beta:       0.5,
			Modalities: mods,
			Dataset:    qtl.KindHQTL,
		},
		Ref:      "C",
		Alt:      "T",
		Assembly: qtl.Assembly,
	}
}

func TestScoreAll_AggregatesTissueMatchedTracks(t *testing.T) {
	oracle := &fakeOracle{tracks: map[string][]Track{
		"1:100": {
			{TrackID: "t1", OntologyCURIE: qtl.TissueBCell, QuantileScore: 0.2},
			{TrackID: "t2", OntologyCURIE: qtl.TissueBCell, QuantileScore: -0.1},
			{TrackID: "t3", OntologyCURIE: qtl.TissueBCell, QuantileScore: 0.5},
			{TrackID: "t4", OntologyCURIE: qtl.TissueCD4TCell, QuantileScore: 9.9},
		},
	}}
	s := NewScorer(oracle, qtl.TissueBCell)

	scored, report, err := s.ScoreAll(context.Background(), []qtl.ResolvedVariant{
		resolvedVariant("v1", 100, qtl.ModalityH3K27ac),
	})
	require.NoError(t, err)
	require.Len(t, scored, 1)

	// Mean of the three B-cell tracks only; the CD4 track is filtered out.
	assert.InDelta(t, 0.2, scored[0].AggregateScore, 1e-12)
	assert.Equal(t, []float64{0.2, -0.1, 0.5}, scored[0].TissueScores)
	assert.Len(t, scored[0].TrackScores, 4)
	assert.Equal(t, 1, report.Scored)
}

func TestScoreAll_OneCallPerVariantAfterDedup(t *testing.T) {
	oracle := &fakeOracle{tracks: map[string][]Track{
		"1:100": {{TrackID: "t1", OntologyCURIE: qtl.TissueBCell, QuantileScore: 0.3}},
	}}
	s := NewScorer(oracle, qtl.TissueBCell)

	// Two modalities, one scorer category: exactly one oracle call.
	_, _, err := s.ScoreAll(context.Background(), []qtl.ResolvedVariant{
		resolvedVariant("v1", 100, qtl.ModalityH3K27ac, qtl.ModalityH3K4me1),
	})
	require.NoError(t, err)

	require.Len(t, oracle.requests, 1)
	assert.Equal(t, []qtl.ScorerCategory{qtl.ScorerChIPHistone}, oracle.requests[0].Scorers)
	assert.Equal(t, int64(SequenceLength), oracle.requests[0].SequenceLength)
}

func TestScoreAll_NoTissueMatchExcludesVariant(t *testing.T) {
	oracle := &fakeOracle{tracks: map[string][]Track{
		"1:100": {{TrackID: "t1", OntologyCURIE: qtl.TissueCD4TCell, QuantileScore: 0.7}},
	}}
	s := NewScorer(oracle, qtl.TissueBCell)

	scored, report, err := s.ScoreAll(context.Background(), []qtl.ResolvedVariant{
		resolvedVariant("v1", 100, qtl.ModalityH3K27ac),
	})
	require.NoError(t, err)

	// Excluded entirely, never scored as zero.
	assert.Empty(t, scored)
	assert.Equal(t, 1, report.NoTissueTrack)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "v1", report.Failures[0].VariantID)
}

func TestScoreAll_FailureRecordedRunContinues(t *testing.T) {
	oracle := &fakeOracle{
		tracks: map[string][]Track{
			"1:200": {{TrackID: "t1", OntologyCURIE: qtl.TissueBCell, QuantileScore: 0.4}},
		},
		failIDs: map[string]bool{"1:100": true},
	}
	s := NewScorer(oracle, qtl.TissueBCell)

	scored, report, err := s.ScoreAll(context.Background(), []qtl.ResolvedVariant{
		resolvedVariant("v1", 100, qtl.ModalityH3K27ac),
		resolvedVariant("v2", 200, qtl.ModalityH3K27ac),
	})
	require.NoError(t, err)

	require.Len(t, scored, 1)
	assert.Equal(t, "v2", scored[0].VariantID)
	assert.Equal(t, 1, report.OracleFailures)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "v1", report.Failures[0].VariantID)
}

func TestScoreAll_TotalOutage(t *testing.T) {
	oracle := &fakeOracle{failAll: true}
	s := NewScorer(oracle, qtl.TissueBCell)

	scored, report, err := s.ScoreAll(context.Background(), []qtl.ResolvedVariant{
		resolvedVariant("v1", 100, qtl.ModalityH3K27ac),
		resolvedVariant("v2", 200, qtl.ModalityH3K27ac),
	})
	assert.ErrorIs(t, err, ErrOracleOutage)
	assert.Empty(t, scored)
	assert.Equal(t, 2, report.OracleFailures)
}

func TestScoreAll_ParallelPreservesInputOrder(t *testing.T) {
	tracks := make(map[string][]Track)
	var variants []qtl.ResolvedVariant
	for i := 0; i < 20; i++ {
		pos := int64(i + 1)
		tracks[fmt.Sprintf("1:%d", pos)] = []Track{
			{TrackID: "t", OntologyCURIE: qtl.TissueBCell, QuantileScore: float64(i)},
		}
		variants = append(variants, resolvedVariant(fmt.Sprintf("v%02d", i), pos, qtl.ModalityH3K27ac))
	}

	oracle := &fakeOracle{tracks: tracks}
	s := NewScorer(oracle, qtl.TissueBCell)
	s.SetWorkers(4)

	scored, report, err := s.ScoreAll(context.Background(), variants)
	require.NoError(t, err)
	require.Len(t, scored, 20)
	assert.Equal(t, 20, report.Scored)

	for i, v := range scored {
		assert.Equal(t, fmt.Sprintf("v%02d", i), v.VariantID)
		assert.InDelta(t, float64(i), v.AggregateScore, 1e-12)
	}
}

func TestScoreAll_SignedScoresPreserved(t *testing.T) {
	oracle := &fakeOracle{tracks: map[string][]Track{
		"1:100": {
			{TrackID: "t1", OntologyCURIE: qtl.TissueBCell, QuantileScore: -0.6},
			{TrackID: "t2", OntologyCURIE: qtl.TissueBCell, QuantileScore: -0.2},
		},
	}}
	s := NewScorer(oracle, qtl.TissueBCell)

	scored, _, err := s.ScoreAll(context.Background(), []qtl.ResolvedVariant{
		resolvedVariant("v1", 100, qtl.ModalityH3K27ac),
	})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.InDelta(t, -0.4, scored[0].AggregateScore, 1e-12)
}
