// Package qtl defines the entities flowing through the evaluation pipeline:
// raw QTL records, allele-resolved variants, oracle-scored variants, and
// per-dataset correlation results.
package qtl

import (
	"fmt"
	"sort"
	"strings"
)

// Assembly is the only genome assembly this pipeline operates on.
const Assembly = "GRCh38"

// Modality identifies the molecular assay a QTL was measured in.
type Modality string

const (
	ModalityATAC    Modality = "ATAC"
	ModalityDNase   Modality = "DNase"
	ModalityH3K27ac Modality = "H3K27ac"
	ModalityH3K4me1 Modality = "H3K4me1"
	ModalityRNASeq  Modality = "RNA_SEQ"
)

// ScorerCategory identifies one of the effect-prediction oracle's scorer sets.
// Several modalities can map to the same category (both histone marks are
// served by the histone ChIP scorer), which is what makes call deduplication
// worthwhile.
type ScorerCategory string

const (
	ScorerATAC        ScorerCategory = "ATAC"
	ScorerDNase       ScorerCategory = "DNASE"
	ScorerChIPHistone ScorerCategory = "CHIP_HISTONE"
	ScorerRNASeq      ScorerCategory = "RNA_SEQ"
)

var modalityScorers = map[Modality]ScorerCategory{
	ModalityATAC:    ScorerATAC,
	ModalityDNase:   ScorerDNase,
	ModalityH3K27ac: ScorerChIPHistone,
	ModalityH3K4me1: ScorerChIPHistone,
	ModalityRNASeq:  ScorerRNASeq,
}

// ScorerFor returns the oracle scorer category serving a modality.
func ScorerFor(m Modality) (ScorerCategory, bool) {
	c, ok := modalityScorers[m]
	return c, ok
}

// ScorerCategories maps a modality set to the deduplicated, sorted set of
// oracle scorer categories that covers it. A variant tagged with both H3K27ac
// and H3K4me1 yields a single CHIP_HISTONE entry, so the scorer issues one
// oracle call for it instead of two.
func ScorerCategories(mods []Modality) []ScorerCategory {
	seen := make(map[ScorerCategory]bool)
	var cats []ScorerCategory
	for _, m := range mods {
		c, ok := modalityScorers[m]
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// ParseModalities parses a comma-separated modality list as stored in the
// intermediate tables ("H3K27ac,H3K4me1").
func ParseModalities(s string) []Modality {
	if s == "" {
		return nil
	}
	var mods []Modality
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			mods = append(mods, Modality(f))
		}
	}
	return mods
}

// JoinModalities is the inverse of ParseModalities.
func JoinModalities(mods []Modality) string {
	parts := make([]string, len(mods))
	for i, m := range mods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

// Record is a raw QTL observation as loaded from a source study's summary
// table. Beta is always populated; RSID may be empty when the source row
// carried no reference SNP identifier.
type Record struct {
	VariantID  string
	Chrom      string
	Pos        int64
	RSID       string
	Beta       float64
	Modalities []Modality
	Dataset    Kind
}

// ResolvedVariant is a Record whose alleles were validated against the
// variant annotation service. Only produced when the lookup succeeded.
type ResolvedVariant struct {
	Record
	Ref      string
	Alt      string
	Assembly string
}

// Validate checks the allele invariants: both alleles drawn from the
// nucleotide alphabet and distinct from each other.
func (v *ResolvedVariant) Validate() error {
	if !validAllele(v.Ref) {
		return fmt.Errorf("variant %s: invalid ref allele %q", v.VariantID, v.Ref)
	}
	if !validAllele(v.Alt) {
		return fmt.Errorf("variant %s: invalid alt allele %q", v.VariantID, v.Alt)
	}
	if v.Ref == v.Alt {
		return fmt.Errorf("variant %s: ref and alt alleles are both %q", v.VariantID, v.Ref)
	}
	return nil
}

func validAllele(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		default:
			return false
		}
	}
	return true
}

// ScoredVariant is a ResolvedVariant with oracle scores attached.
// TissueScores holds the signed per-track scores whose tissue ontology code
// matched the dataset's source tissue, in the oracle's track order.
// AggregateScore is their arithmetic mean; a variant with no tissue-matched
// track is never represented as a ScoredVariant.
type ScoredVariant struct {
	ResolvedVariant
	TrackScores    map[string]float64
	TissueScores   []float64
	AggregateScore float64
}

// MeanScore returns the arithmetic mean of a non-empty score slice.
func MeanScore(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// CorrelationResult is the per-dataset evaluation output.
type CorrelationResult struct {
	Dataset       string
	N             int
	SpearmanRho   float64
	SpearmanP     float64
	PearsonR      float64
	PearsonP      float64
	SignAgreement float64
}
