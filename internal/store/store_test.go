package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regeno/qtl-eval/internal/qtl"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDataset() qtl.Dataset {
	return qtl.Dataset{Name: "hQTLs", Kind: qtl.KindHQTL, TissueCURIE: qtl.TissueBCell}
}

func TestResolvedRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ds := testDataset()

	in := []qtl.ResolvedVariant{
		{
			Record: qtl.Record{
				VariantID:  "hQTL_0",
				Chrom:      "12",
				Pos:        9283487,
				RSID:       "rs61916194",
				Beta:       -0.42,
				Modalities: []qtl.Modality{qtl.ModalityH3K27ac, qtl.ModalityH3K4me1},
				Dataset:    qtl.KindHQTL,
			},
			Ref: "C", Alt: "T", Assembly: qtl.Assembly,
		},
		{
			Record: qtl.Record{VariantID: "hQTL_1", Chrom: "3", Pos: 5000, Beta: 0.7,
				Modalities: []qtl.Modality{qtl.ModalityH3K27ac}, Dataset: qtl.KindHQTL},
			Ref: "G", Alt: "A", Assembly: qtl.Assembly,
		},
	}

	require.NoError(t, s.ReplaceResolved(ds.Name, in))

	has, err := s.HasResolved(ds.Name)
	require.NoError(t, err)
	assert.True(t, has)

	out, err := s.LoadResolved(ds, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])

	limited, err := s.LoadResolved(ds, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReplaceResolved_Overwrites(t *testing.T) {
	s := openTestStore(t)
	ds := testDataset()

	v := qtl.ResolvedVariant{
		Record: qtl.Record{VariantID: "hQTL_0", Chrom: "1", Pos: 10, Beta: 0.1,
			Modalities: []qtl.Modality{qtl.ModalityH3K27ac}, Dataset: qtl.KindHQTL},
		Ref: "A", Alt: "G", Assembly: qtl.Assembly,
	}
	require.NoError(t, s.ReplaceResolved(ds.Name, []qtl.ResolvedVariant{v, {
		Record: qtl.Record{VariantID: "hQTL_1", Chrom: "1", Pos: 20, Beta: 0.2,
			Modalities: []qtl.Modality{qtl.ModalityH3K27ac}, Dataset: qtl.KindHQTL},
		Ref: "C", Alt: "T", Assembly: qtl.Assembly,
	}}))
	require.NoError(t, s.ReplaceResolved(ds.Name, []qtl.ResolvedVariant{v}))

	out, err := s.LoadResolved(ds, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestScoredRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ds := testDataset()

	in := []qtl.ScoredVariant{
		{
			ResolvedVariant: qtl.ResolvedVariant{
				Record: qtl.Record{VariantID: "hQTL_0", Chrom: "12", Pos: 9283487,
					RSID: "rs61916194", Beta: -0.42,
					Modalities: []qtl.Modality{qtl.ModalityH3K27ac}, Dataset: qtl.KindHQTL},
				Ref: "C", Alt: "T", Assembly: qtl.Assembly,
			},
			TrackScores:    map[string]float64{"GM12878_H3K27ac": 0.2, "CD4_H3K27ac": 9.9},
			TissueScores:   []float64{0.2, -0.1, 0.5},
			AggregateScore: 0.2,
		},
	}

	require.NoError(t, s.ReplaceScored(ds.Name, in))

	has, err := s.HasScored(ds.Name)
	require.NoError(t, err)
	assert.True(t, has)

	out, err := s.LoadScored(ds)
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, in[0].ResolvedVariant, got.ResolvedVariant)
	assert.InDelta(t, 0.2, got.AggregateScore, 1e-12)
	// Tissue score order survives the round trip so the mean can be
	// re-derived from the persisted rows.
	assert.Equal(t, []float64{0.2, -0.1, 0.5}, got.TissueScores)
	assert.Equal(t, in[0].TrackScores, got.TrackScores)
	assert.InDelta(t, qtl.MeanScore(got.TissueScores), got.AggregateScore, 1e-12)
}

func TestCorrelationResultRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := qtl.CorrelationResult{
		Dataset:       "caQTLs",
		N:             812,
		SpearmanRho:   0.31,
		SpearmanP:     1.2e-19,
		PearsonR:      0.28,
		PearsonP:      4.7e-16,
		SignAgreement: 0.64,
	}
	require.NoError(t, s.SaveResult(in))

	out, err := s.LoadResult("caQTLs")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Upsert replaces.
	in.N = 813
	require.NoError(t, s.SaveResult(in))
	out, err = s.LoadResult("caQTLs")
	require.NoError(t, err)
	assert.Equal(t, 813, out.N)
}

func TestHasResolved_EmptyDataset(t *testing.T) {
	s := openTestStore(t)
	has, err := s.HasResolved("caQTLs")
	require.NoError(t, err)
	assert.False(t, has)
}
