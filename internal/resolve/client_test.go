package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/regeno/qtl-eval/internal/httpx"
)

func testHTTPClient() *httpx.Client {
	return httpx.New(httpx.Options{
		MaxAttempts: 1,
		BackoffBase: time.Millisecond,
		Limiter:     rate.NewLimiter(rate.Inf, 1),
	})
}

func TestVariantInfoClient_LookupBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "rs100,rs200,rs300,rs400", r.Form.Get("ids"))
		assert.Equal(t, "hg38", r.Form.Get("assembly"))
		assert.Equal(t, "dbsnp.ref,dbsnp.alt,chrom,dbsnp.hg38.start", r.Form.Get("fields"))

		w.Header().Set("Content-Type", "application/json")
		// rs100: bi-allelic (alt is a string)
		// rs200: multi-allelic (alt is an array, first entry wins)
		// rs300: not found
		// rs400: missing allele fields
		w.Write([]byte(`[
			{"query":"rs100","chrom":"12","dbsnp":{"ref":"C","alt":"T","hg38":{"start":9283487}}},
			{"query":"rs200","chrom":"chr3","dbsnp":{"ref":"G","alt":["A","C"],"hg38":{"start":5000}}},
			{"query":"rs300","notfound":true},
			{"query":"rs400","chrom":"1","dbsnp":{"ref":"","alt":"T"}}
		]`))
	}))
	defer srv.Close()

	c := NewVariantInfoClient(srv.URL, "hg38", testHTTPClient())
	got, err := c.LookupBatch(context.Background(), []string{"rs100", "rs200", "rs300", "rs400"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, Allele{Ref: "C", Alt: "T", Chrom: "12", Pos: 9283487}, got["rs100"])
	// First listed alternate, chr prefix stripped.
	assert.Equal(t, Allele{Ref: "G", Alt: "A", Chrom: "3", Pos: 5000}, got["rs200"])
}

func TestVariantInfoClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewVariantInfoClient(srv.URL, "hg38", testHTTPClient())
	_, err := c.LookupBatch(context.Background(), []string{"rs1"})
	assert.Error(t, err)
}

func TestFirstAlt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"string", `"T"`, "T", true},
		{"array", `["A","G"]`, "A", true},
		{"empty array", `[]`, "", false},
		{"empty string", `""`, "", false},
		{"absent", ``, "", false},
		{"number", `5`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstAlt([]byte(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
