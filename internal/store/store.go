// Package store persists each pipeline stage's output to DuckDB so the next
// stage can re-read it (and statistics can be re-derived) without re-fetching
// from the external services.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/regeno/qtl-eval/internal/qtl"
)

// Store manages the DuckDB database holding the pipeline's intermediate and
// final tables.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resolved_variants (
			dataset VARCHAR,
			variant_id VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			rsid VARCHAR,
			ref VARCHAR,
			alt VARCHAR,
			assembly VARCHAR,
			beta DOUBLE,
			modalities VARCHAR,
			PRIMARY KEY (dataset, variant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scored_variants (
			dataset VARCHAR,
			variant_id VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			rsid VARCHAR,
			ref VARCHAR,
			alt VARCHAR,
			assembly VARCHAR,
			beta DOUBLE,
			modalities VARCHAR,
			aggregate_score DOUBLE,
			n_tissue_tracks INTEGER,
			PRIMARY KEY (dataset, variant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scored_tracks (
			dataset VARCHAR,
			variant_id VARCHAR,
			track_seq INTEGER,
			track_id VARCHAR,
			quantile_score DOUBLE,
			tissue_match BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS correlation_results (
			dataset VARCHAR PRIMARY KEY,
			n INTEGER,
			spearman_rho DOUBLE,
			spearman_p DOUBLE,
			pearson_r DOUBLE,
			pearson_p DOUBLE,
			sign_agreement DOUBLE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// HasResolved reports whether a dataset already has resolved variants.
func (s *Store) HasResolved(dataset string) (bool, error) {
	return s.hasRows("resolved_variants", dataset)
}

// HasScored reports whether a dataset already has scored variants.
func (s *Store) HasScored(dataset string) (bool, error) {
	return s.hasRows("scored_variants", dataset)
}

func (s *Store) hasRows(table, dataset string) (bool, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE dataset = ?", table)
	if err := s.db.QueryRow(q, dataset).Scan(&n); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return n > 0, nil
}

// ReplaceResolved replaces a dataset's resolved variants.
func (s *Store) ReplaceResolved(dataset string, variants []qtl.ResolvedVariant) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM resolved_variants WHERE dataset = ?`, dataset); err != nil {
		return fmt.Errorf("clear resolved variants: %w", err)
	}

	ins, err := tx.Prepare(`INSERT INTO resolved_variants VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for _, v := range variants {
		if _, err := ins.Exec(dataset, v.VariantID, v.Chrom, v.Pos, v.RSID,
			v.Ref, v.Alt, v.Assembly, v.Beta, qtl.JoinModalities(v.Modalities)); err != nil {
			return fmt.Errorf("insert resolved variant %s: %w", v.VariantID, err)
		}
	}
	return tx.Commit()
}

// LoadResolved loads a dataset's resolved variants in variant id order.
// limit > 0 truncates for test runs.
func (s *Store) LoadResolved(ds qtl.Dataset, limit int) ([]qtl.ResolvedVariant, error) {
	q := `SELECT variant_id, chrom, pos, rsid, ref, alt, assembly, beta, modalities
		FROM resolved_variants WHERE dataset = ? ORDER BY variant_id`
	rows, err := s.db.Query(q, ds.Name)
	if err != nil {
		return nil, fmt.Errorf("query resolved variants: %w", err)
	}
	defer rows.Close()

	var out []qtl.ResolvedVariant
	for rows.Next() {
		var v qtl.ResolvedVariant
		var mods string
		if err := rows.Scan(&v.VariantID, &v.Chrom, &v.Pos, &v.RSID,
			&v.Ref, &v.Alt, &v.Assembly, &v.Beta, &mods); err != nil {
			return nil, fmt.Errorf("scan resolved variant: %w", err)
		}
		v.Modalities = qtl.ParseModalities(mods)
		v.Dataset = ds.Kind
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolved variant rows: %w", err)
	}
	return out, nil
}

// ReplaceScored replaces a dataset's scored variants and their tracks.
func (s *Store) ReplaceScored(dataset string, variants []qtl.ScoredVariant) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM scored_variants WHERE dataset = ?`, dataset); err != nil {
		return fmt.Errorf("clear scored variants: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM scored_tracks WHERE dataset = ?`, dataset); err != nil {
		return fmt.Errorf("clear scored tracks: %w", err)
	}

	insVar, err := tx.Prepare(`INSERT INTO scored_variants VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare variant insert: %w", err)
	}
	defer insVar.Close()

	insTrack, err := tx.Prepare(`INSERT INTO scored_tracks VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer insTrack.Close()

	for _, v := range variants {
		if _, err := insVar.Exec(dataset, v.VariantID, v.Chrom, v.Pos, v.RSID,
			v.Ref, v.Alt, v.Assembly, v.Beta, qtl.JoinModalities(v.Modalities),
			v.AggregateScore, len(v.TissueScores)); err != nil {
			return fmt.Errorf("insert scored variant %s: %w", v.VariantID, err)
		}

		// Tissue-matched tracks keep their aggregation order via track_seq.
		seq := 0
		for _, score := range v.TissueScores {
			if _, err := insTrack.Exec(dataset, v.VariantID, seq, "", score, true); err != nil {
				return fmt.Errorf("insert tissue track for %s: %w", v.VariantID, err)
			}
			seq++
		}
		for trackID, score := range v.TrackScores {
			if _, err := insTrack.Exec(dataset, v.VariantID, seq, trackID, score, false); err != nil {
				return fmt.Errorf("insert track %s for %s: %w", trackID, v.VariantID, err)
			}
			seq++
		}
	}
	return tx.Commit()
}

// LoadScored loads a dataset's scored variants with their tissue-filtered
// score sequences restored in aggregation order.
func (s *Store) LoadScored(ds qtl.Dataset) ([]qtl.ScoredVariant, error) {
	q := `SELECT variant_id, chrom, pos, rsid, ref, alt, assembly, beta, modalities, aggregate_score
		FROM scored_variants WHERE dataset = ? ORDER BY variant_id`
	rows, err := s.db.Query(q, ds.Name)
	if err != nil {
		return nil, fmt.Errorf("query scored variants: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*qtl.ScoredVariant)
	var order []string
	for rows.Next() {
		var v qtl.ScoredVariant
		var mods string
		if err := rows.Scan(&v.VariantID, &v.Chrom, &v.Pos, &v.RSID,
			&v.Ref, &v.Alt, &v.Assembly, &v.Beta, &mods, &v.AggregateScore); err != nil {
			return nil, fmt.Errorf("scan scored variant: %w", err)
		}
		v.Modalities = qtl.ParseModalities(mods)
		v.Dataset = ds.Kind
		v.TrackScores = make(map[string]float64)
		byID[v.VariantID] = &v
		order = append(order, v.VariantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scored variant rows: %w", err)
	}

	trackRows, err := s.db.Query(`SELECT variant_id, track_id, quantile_score, tissue_match
		FROM scored_tracks WHERE dataset = ? ORDER BY variant_id, track_seq`, ds.Name)
	if err != nil {
		return nil, fmt.Errorf("query scored tracks: %w", err)
	}
	defer trackRows.Close()

	for trackRows.Next() {
		var id, trackID string
		var score float64
		var tissueMatch bool
		if err := trackRows.Scan(&id, &trackID, &score, &tissueMatch); err != nil {
			return nil, fmt.Errorf("scan scored track: %w", err)
		}
		v, ok := byID[id]
		if !ok {
			continue
		}
		if tissueMatch {
			v.TissueScores = append(v.TissueScores, score)
		} else if trackID != "" {
			v.TrackScores[trackID] = score
		}
	}
	if err := trackRows.Err(); err != nil {
		return nil, fmt.Errorf("scored track rows: %w", err)
	}

	out := make([]qtl.ScoredVariant, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// SaveResult upserts a dataset's correlation result.
func (s *Store) SaveResult(r qtl.CorrelationResult) error {
	if _, err := s.db.Exec(`DELETE FROM correlation_results WHERE dataset = ?`, r.Dataset); err != nil {
		return fmt.Errorf("clear correlation result: %w", err)
	}
	_, err := s.db.Exec(`INSERT INTO correlation_results VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Dataset, r.N, r.SpearmanRho, r.SpearmanP, r.PearsonR, r.PearsonP, r.SignAgreement)
	if err != nil {
		return fmt.Errorf("insert correlation result: %w", err)
	}
	return nil
}

// LoadResult loads a dataset's correlation result.
func (s *Store) LoadResult(dataset string) (qtl.CorrelationResult, error) {
	var r qtl.CorrelationResult
	err := s.db.QueryRow(`SELECT dataset, n, spearman_rho, spearman_p, pearson_r, pearson_p, sign_agreement
		FROM correlation_results WHERE dataset = ?`, dataset).
		Scan(&r.Dataset, &r.N, &r.SpearmanRho, &r.SpearmanP, &r.PearsonR, &r.PearsonP, &r.SignAgreement)
	if err != nil {
		return qtl.CorrelationResult{}, fmt.Errorf("load correlation result: %w", err)
	}
	return r, nil
}
