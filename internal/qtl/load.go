package qtl

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ExtractRSID pulls the reference SNP identifier out of a positional SNP key
// like "chr12:9436083_rs61916194". Returns "" when the key carries none.
func ExtractRSID(snp string) string {
	if i := strings.Index(snp, "_rs"); i >= 0 {
		return "rs" + snp[i+len("_rs"):]
	}
	return ""
}

// header maps column names to their indices, mirroring how the raw study
// tables are consumed: required columns are looked up once, rows missing a
// required field are rejected at the boundary.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(row))
	for i, col := range row {
		h[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return h, nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// LoadRecords loads a dataset's raw summary table. limit > 0 truncates the
// input for test runs.
func LoadRecords(ds Dataset, path string, limit int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s table: %w", ds.Name, err)
	}
	defer f.Close()

	var records []Record
	switch ds.Kind {
	case KindCaQTL:
		records, err = loadCaQTLs(f, ds)
	case KindHQTL:
		records, err = loadHQTLs(f, ds)
	default:
		return nil, fmt.Errorf("no loader for dataset kind %q", ds.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s table: %w", ds.Name, err)
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// loadCaQTLs reads the chromatin accessibility QTL table. The SNP column
// holds positional keys with an embedded rs identifier; rows whose key
// carries neither an rs id nor a parseable position are quarantined.
func loadCaQTLs(f io.Reader, ds Dataset) ([]Record, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	h, err := readHeader(r, "SNP", "beta")
	if err != nil {
		return nil, err
	}

	var records []Record
	idx := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", idx, err)
		}

		snp := h.get(row, "SNP")
		chrom, pos, ok := parsePositionalKey(snp)
		if !ok {
			idx++
			continue
		}

		beta, err := strconv.ParseFloat(h.get(row, "beta"), 64)
		if err != nil {
			idx++
			continue
		}

		records = append(records, Record{
			VariantID:  fmt.Sprintf("caQTL_%d", idx),
			Chrom:      chrom,
			Pos:        pos,
			RSID:       ExtractRSID(snp),
			Beta:       beta,
			Modalities: ds.Modalities,
			Dataset:    ds.Kind,
		})
		idx++
	}
	return records, nil
}

// hQTL table columns, as published. The trailing letters are footnote
// markers baked into the column names.
const (
	hqtlColRSID    = "epiQTL rsID"
	hqtlColChrom   = "Chr"
	hqtlColPos     = "Bp (hg19)"
	hqtlColBeta    = "log2 (effect size)"
	hqtlColK27Pval = "H3K27ac p-valueb"
	hqtlColK4Pval  = "H3K4me1 p-valueb"
)

// loadHQTLs reads the histone QTL summary table. Each row's modality set is
// decided by which histone-mark p-value columns are populated; rows with
// neither are not QTLs for any requested modality and are skipped.
// Positions are hg19 and get replaced by the resolver's assembly-matched
// coordinates downstream.
func loadHQTLs(f io.Reader, ds Dataset) ([]Record, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	h, err := readHeader(r, hqtlColRSID, hqtlColChrom, hqtlColPos, hqtlColBeta)
	if err != nil {
		return nil, err
	}

	var records []Record
	idx := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", idx, err)
		}

		var mods []Modality
		if hasValue(h.get(row, hqtlColK27Pval)) {
			mods = append(mods, ModalityH3K27ac)
		}
		if hasValue(h.get(row, hqtlColK4Pval)) {
			mods = append(mods, ModalityH3K4me1)
		}
		if len(mods) == 0 {
			idx++
			continue
		}

		beta, err := strconv.ParseFloat(h.get(row, hqtlColBeta), 64)
		if err != nil {
			idx++
			continue
		}

		pos, err := strconv.ParseInt(h.get(row, hqtlColPos), 10, 64)
		if err != nil {
			idx++
			continue
		}

		rsid := h.get(row, hqtlColRSID)
		if !strings.HasPrefix(rsid, "rs") {
			rsid = ""
		}

		records = append(records, Record{
			VariantID:  fmt.Sprintf("hQTL_%d", idx),
			Chrom:      strings.TrimPrefix(h.get(row, hqtlColChrom), "chr"),
			Pos:        pos,
			RSID:       rsid,
			Beta:       beta,
			Modalities: mods,
			Dataset:    ds.Kind,
		})
		idx++
	}
	return records, nil
}

// hasValue reports whether a p-value cell is populated. The source table
// uses "." for absent values.
func hasValue(s string) bool {
	return s != "" && s != "." && !strings.EqualFold(s, "na")
}

// parsePositionalKey parses "chr12:9436083_rs61916194" into chromosome and
// position.
func parsePositionalKey(snp string) (string, int64, bool) {
	i := strings.Index(snp, ":")
	if i < 0 {
		return "", 0, false
	}
	chrom := strings.TrimPrefix(snp[:i], "chr")

	rest := snp[i+1:]
	if j := strings.Index(rest, "_"); j >= 0 {
		rest = rest[:j]
	}
	pos, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return chrom, pos, true
}
