package qtl

import "fmt"

// Kind identifies a QTL subtype.
type Kind string

const (
	KindCaQTL Kind = "caQTL"
	KindHQTL  Kind = "hQTL"
	KindDsQTL Kind = "dsQTL"
)

// Tissue ontology codes (Cell Ontology CURIEs) for the source tissues of the
// bundled datasets.
const (
	TissueCD4TCell = "CL:0000624"
	TissueBCell    = "CL:0000236"
)

// Dataset describes one QTL study: where its raw table lives, which tissue
// its effects were measured in, and how its effect sizes are oriented.
//
// InvertBeta is asserted manually from the source publication's methods
// section, never detected at runtime. When set, every beta is negated before
// correlation so that positive always means "alternate allele increases the
// molecular signal", matching the oracle's convention.
type Dataset struct {
	Name        string
	Kind        Kind
	RawFile     string
	TissueCURIE string
	Modalities  []Modality
	InvertBeta  bool
}

var datasets = []Dataset{
	{
		Name:        "caQTLs",
		Kind:        KindCaQTL,
		RawFile:     "caQTLs_GSE86886/ATAC-QTLs.csv",
		TissueCURIE: TissueCD4TCell,
		Modalities:  []Modality{ModalityATAC, ModalityDNase, ModalityH3K27ac},
	},
	{
		Name:        "hQTLs",
		Kind:        KindHQTL,
		RawFile:     "hQTLs_GSE116193/Pelikan_et_al_hQTL_summary.csv",
		TissueCURIE: TissueBCell,
		Modalities:  []Modality{ModalityH3K27ac, ModalityH3K4me1},
		// Pelikan et al. report log2 effects relative to the reference
		// allele, the opposite of the oracle's alt-increases-signal
		// orientation.
		InvertBeta: true,
	},
}

// Datasets returns the bundled dataset descriptors.
func Datasets() []Dataset {
	out := make([]Dataset, len(datasets))
	copy(out, datasets)
	return out
}

// LookupDataset returns the descriptor for a dataset name.
func LookupDataset(name string) (Dataset, error) {
	for _, d := range datasets {
		if d.Name == name {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("unknown dataset %q", name)
}
