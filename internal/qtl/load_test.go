package qtl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRSID(t *testing.T) {
	tests := []struct {
		snp  string
		want string
	}{
		{"chr12:9436083_rs61916194", "rs61916194"},
		{"chr1:1000", ""},
		{"rs123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractRSID(tt.snp), "snp %q", tt.snp)
	}
}

func TestParsePositionalKey(t *testing.T) {
	chrom, pos, ok := parsePositionalKey("chr12:9436083_rs61916194")
	require.True(t, ok)
	assert.Equal(t, "12", chrom)
	assert.Equal(t, int64(9436083), pos)

	chrom, pos, ok = parsePositionalKey("5:200")
	require.True(t, ok)
	assert.Equal(t, "5", chrom)
	assert.Equal(t, int64(200), pos)

	_, _, ok = parsePositionalKey("no-colon")
	assert.False(t, ok)

	_, _, ok = parsePositionalKey("chr1:notanumber")
	assert.False(t, ok)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRecords_CaQTLs(t *testing.T) {
	csv := "SNP,beta\n" +
		"chr12:9436083_rs61916194,0.42\n" +
		"chr3:100_rs555,-1.1\n" +
		"garbage,0.5\n" + // no position, quarantined
		"chr7:300,0.9\n" // position but no rs id

	ds, err := LookupDataset("caQTLs")
	require.NoError(t, err)

	records, err := LoadRecords(ds, writeTemp(t, "ca.csv", csv), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "caQTL_0", records[0].VariantID)
	assert.Equal(t, "12", records[0].Chrom)
	assert.Equal(t, int64(9436083), records[0].Pos)
	assert.Equal(t, "rs61916194", records[0].RSID)
	assert.InDelta(t, 0.42, records[0].Beta, 1e-12)
	assert.Equal(t, ds.Modalities, records[0].Modalities)

	// No rs id: kept as a record, resolver will count it unresolved.
	assert.Equal(t, "", records[2].RSID)
	assert.Equal(t, "7", records[2].Chrom)
}

func TestLoadRecords_CaQTLs_Limit(t *testing.T) {
	csv := "SNP,beta\nchr1:1_rs1,0.1\nchr1:2_rs2,0.2\nchr1:3_rs3,0.3\n"
	ds, err := LookupDataset("caQTLs")
	require.NoError(t, err)

	records, err := LoadRecords(ds, writeTemp(t, "ca.csv", csv), 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLoadRecords_CaQTLs_MissingColumn(t *testing.T) {
	ds, err := LookupDataset("caQTLs")
	require.NoError(t, err)

	_, err = LoadRecords(ds, writeTemp(t, "ca.csv", "SNP,effect\nchr1:1_rs1,0.1\n"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beta")
}

func TestLoadRecords_HQTLs(t *testing.T) {
	csv := "epiQTL rsID,Chr,Bp (hg19),Ref Allelec,Alt Alleled,log2 (effect size),H3K27ac p-valueb,H3K4me1 p-valueb\n" +
		"rs111,chr2,5000,C,T,0.8,1e-5,.\n" + // H3K27ac only
		"rs222,2,6000,G,A,-0.4,2e-4,3e-6\n" + // both marks
		"rs333,2,7000,A,G,0.1,.,.\n" + // no significant mark, skipped
		"notanrs,2,8000,A,G,0.2,1e-3,.\n" // bad rs id kept with empty RSID

	ds, err := LookupDataset("hQTLs")
	require.NoError(t, err)

	records, err := LoadRecords(ds, writeTemp(t, "h.csv", csv), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "rs111", records[0].RSID)
	assert.Equal(t, "2", records[0].Chrom)
	assert.Equal(t, []Modality{ModalityH3K27ac}, records[0].Modalities)
	assert.InDelta(t, 0.8, records[0].Beta, 1e-12)

	assert.Equal(t, []Modality{ModalityH3K27ac, ModalityH3K4me1}, records[1].Modalities)

	assert.Equal(t, "", records[2].RSID)
}
