package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/regeno/qtl-eval/internal/httpx"
)

// Allele is a validated ref/alt pair with the service's assembly-matched
// coordinates for a reference SNP identifier.
type Allele struct {
	Ref   string
	Alt   string
	Chrom string
	Pos   int64
}

// Client looks up alleles for batches of reference SNP identifiers.
type Client interface {
	LookupBatch(ctx context.Context, rsIDs []string) (map[string]Allele, error)
}

// VariantInfoClient resolves rs identifiers against a myvariant.info-style
// batch variant endpoint.
type VariantInfoClient struct {
	baseURL  string
	assembly string
	http     *httpx.Client
}

// NewVariantInfoClient creates a lookup client. assembly is the service-side
// assembly tag ("hg38" for GRCh38 coordinates).
func NewVariantInfoClient(baseURL, assembly string, hc *httpx.Client) *VariantInfoClient {
	return &VariantInfoClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		assembly: assembly,
		http:     hc,
	}
}

// lookupHit is one entry of the batch response. alt is a RawMessage because
// the service returns a plain string for bi-allelic sites and an array for
// multi-allelic ones.
type lookupHit struct {
	Query    string `json:"query"`
	NotFound bool   `json:"notfound"`
	Chrom    string `json:"chrom"`
	DBSNP    *struct {
		Ref  string          `json:"ref"`
		Alt  json.RawMessage `json:"alt"`
		HG38 *struct {
			Start int64 `json:"start"`
		} `json:"hg38"`
	} `json:"dbsnp"`
}

// LookupBatch issues one batch lookup and returns per-identifier alleles.
// Identifiers the service does not know, or for which the allele fields are
// incomplete, are simply absent from the result map.
func (c *VariantInfoClient) LookupBatch(ctx context.Context, rsIDs []string) (map[string]Allele, error) {
	form := url.Values{
		"ids":      {strings.Join(rsIDs, ",")},
		"assembly": {c.assembly},
		"fields":   {"dbsnp.ref,dbsnp.alt,chrom,dbsnp.hg38.start"},
	}

	body, err := c.http.PostForm(ctx, c.baseURL+"/v1/variant", form)
	if err != nil {
		return nil, fmt.Errorf("variant lookup: %w", err)
	}

	var hits []lookupHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("decode variant lookup response: %w", err)
	}

	out := make(map[string]Allele, len(hits))
	for _, hit := range hits {
		if hit.NotFound || hit.Query == "" || hit.DBSNP == nil {
			continue
		}
		alt, ok := firstAlt(hit.DBSNP.Alt)
		if !ok || hit.DBSNP.Ref == "" {
			continue
		}
		a := Allele{
			Ref:   hit.DBSNP.Ref,
			Alt:   alt,
			Chrom: strings.TrimPrefix(hit.Chrom, "chr"),
		}
		if hit.DBSNP.HG38 != nil {
			a.Pos = hit.DBSNP.HG38.Start
		}
		out[hit.Query] = a
	}
	return out, nil
}

// firstAlt extracts the alternate allele from a response field that is
// either a string or an array of strings. Multi-allelic sites resolve to the
// first listed alternate in the service's order; no frequency-based
// tie-break is attempted, a documented accuracy limitation.
func firstAlt(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], list[0] != ""
	}
	return "", false
}
