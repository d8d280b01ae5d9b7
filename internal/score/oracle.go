package score

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/regeno/qtl-eval/internal/httpx"
	"github.com/regeno/qtl-eval/internal/qtl"
)

// SequenceLength is the genomic context window handed to the oracle,
// centered on the variant position.
const SequenceLength = 1_000_000

// Request asks the oracle to score one genomic edit.
type Request struct {
	Chrom          string
	Pos            int64
	Ref            string
	Alt            string
	SequenceLength int64
	Scorers        []qtl.ScorerCategory
}

// Track is one per-experimental-track signed score from the oracle, tagged
// with the tissue the track was assayed in.
type Track struct {
	TrackID       string
	OntologyCURIE string
	QuantileScore float64
}

// Oracle is the external effect-prediction service.
type Oracle interface {
	ScoreVariant(ctx context.Context, req Request) ([]Track, error)
}

// HTTPOracle calls the effect-prediction service over its JSON API.
type HTTPOracle struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
}

// NewHTTPOracle creates an oracle client. The API key is mandatory.
func NewHTTPOracle(baseURL, apiKey string, hc *httpx.Client) (*HTTPOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("oracle API key not set")
	}
	return &HTTPOracle{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
	}, nil
}

type scoreRequest struct {
	Variant struct {
		Chrom string `json:"chromosome"`
		Pos   int64  `json:"position"`
		Ref   string `json:"reference_bases"`
		Alt   string `json:"alternate_bases"`
	} `json:"variant"`
	SequenceLength int64    `json:"sequence_length"`
	Scorers        []string `json:"scorers"`
	Organism       string   `json:"organism"`
}

type scoreResponse struct {
	Tracks []struct {
		TrackID       string  `json:"track_id"`
		OntologyCURIE string  `json:"ontology_curie"`
		QuantileScore float64 `json:"quantile_score"`
	} `json:"tracks"`
}

// ScoreVariant scores one variant and returns the per-track signed scores.
func (o *HTTPOracle) ScoreVariant(ctx context.Context, req Request) ([]Track, error) {
	var body scoreRequest
	body.Variant.Chrom = withChrPrefix(req.Chrom)
	body.Variant.Pos = req.Pos
	body.Variant.Ref = req.Ref
	body.Variant.Alt = req.Alt
	body.SequenceLength = req.SequenceLength
	body.Organism = "HOMO_SAPIENS"
	for _, s := range req.Scorers {
		body.Scorers = append(body.Scorers, string(s))
	}

	header := http.Header{"X-Api-Key": {o.apiKey}}

	var resp scoreResponse
	if err := o.http.PostJSON(ctx, o.baseURL+"/v1/score_variant", body, &resp, header); err != nil {
		return nil, fmt.Errorf("score variant: %w", err)
	}

	tracks := make([]Track, len(resp.Tracks))
	for i, t := range resp.Tracks {
		tracks[i] = Track{
			TrackID:       t.TrackID,
			OntologyCURIE: t.OntologyCURIE,
			QuantileScore: t.QuantileScore,
		}
	}
	return tracks, nil
}

func withChrPrefix(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom
	}
	return "chr" + chrom
}
