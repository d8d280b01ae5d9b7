// Package resolve maps QTL records to validated reference/alternate allele
// pairs via an external variant annotation service.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/regeno/qtl-eval/internal/qtl"
)

// DefaultBatchSize is the lookup service's batch limit.
const DefaultBatchSize = 100

// ErrLookupOutage is returned when every attempted batch failed. Whatever
// resolved before the outage is still returned alongside it.
var ErrLookupOutage = errors.New("variant lookup service unreachable")

// Report accounts for every input record: resolution rate is a primary
// output of this stage, not a side note.
type Report struct {
	Total         int
	Resolved      int
	Unresolved    int
	UnresolvedIDs []string
	FailedBatches int
}

// Rate returns the fraction of input records that resolved.
func (r *Report) Rate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Resolved) / float64(r.Total)
}

// Resolver turns QTL records into ResolvedVariants.
type Resolver struct {
	client    Client
	batchSize int
	logger    *zap.Logger
}

// NewResolver creates a resolver using the given lookup client.
func NewResolver(client Client) *Resolver {
	return &Resolver{
		client:    client,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
}

// SetBatchSize overrides the lookup batch size.
func (r *Resolver) SetBatchSize(n int) {
	if n > 0 {
		r.batchSize = n
	}
}

// SetLogger sets the logger for progress and failure messages.
func (r *Resolver) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Resolve looks up alleles for all records and returns the resolved subset
// in input order, plus a full accounting of exclusions.
//
// Records without a reference SNP identifier are unresolved immediately. A
// batch whose lookup fails (after the client's bounded retries) degrades to
// "all records in this batch unresolved" and processing continues. Only when
// every batch fails does Resolve return ErrLookupOutage, with partial
// results preserved.
func (r *Resolver) Resolve(ctx context.Context, records []qtl.Record) ([]qtl.ResolvedVariant, *Report, error) {
	report := &Report{Total: len(records)}

	// Collect the unique rs ids that need a lookup, preserving first-seen
	// order so batches are deterministic.
	var rsIDs []string
	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.RSID == "" {
			continue
		}
		if !seen[rec.RSID] {
			seen[rec.RSID] = true
			rsIDs = append(rsIDs, rec.RSID)
		}
	}

	alleles := make(map[string]Allele, len(rsIDs))
	batches := 0
	failed := 0
	for start := 0; start < len(rsIDs); start += r.batchSize {
		end := min(start+r.batchSize, len(rsIDs))
		batch := rsIDs[start:end]
		batches++

		got, err := r.client.LookupBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, report, ctx.Err()
			}
			failed++
			r.logger.Warn("lookup batch failed, records degrade to unresolved",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}
		for id, a := range got {
			alleles[id] = a
		}
		r.logger.Debug("lookup batch resolved",
			zap.Int("batch_start", start),
			zap.Int("hits", len(got)))
	}
	report.FailedBatches = failed

	var resolved []qtl.ResolvedVariant
	for _, rec := range records {
		a, ok := alleles[rec.RSID]
		if rec.RSID == "" || !ok {
			report.Unresolved++
			report.UnresolvedIDs = append(report.UnresolvedIDs, rec.VariantID)
			continue
		}

		v := qtl.ResolvedVariant{
			Record:   rec,
			Ref:      a.Ref,
			Alt:      a.Alt,
			Assembly: qtl.Assembly,
		}
		// Prefer the service's assembly-matched coordinates over the raw
		// table's (the hQTL table is hg19).
		if a.Chrom != "" {
			v.Chrom = a.Chrom
		}
		if a.Pos > 0 {
			v.Pos = a.Pos
		}

		if err := v.Validate(); err != nil {
			report.Unresolved++
			report.UnresolvedIDs = append(report.UnresolvedIDs, rec.VariantID)
			r.logger.Warn("quarantined lookup result", zap.Error(err))
			continue
		}
		resolved = append(resolved, v)
		report.Resolved++
	}

	r.logger.Info("allele resolution finished",
		zap.Int("total", report.Total),
		zap.Int("resolved", report.Resolved),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("failed_batches", report.FailedBatches),
		zap.String("rate", fmt.Sprintf("%.1f%%", report.Rate()*100)))

	if batches > 0 && failed == batches {
		return resolved, report, ErrLookupOutage
	}
	return resolved, report, nil
}
