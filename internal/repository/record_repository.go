package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virodata/poxbase/internal/domain"
)

// recordRepository is the pgx-backed store for the five record tables.
type recordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates the record store used by the import pipeline and
// the stats and map endpoints.
func NewRecordRepository(pool *pgxpool.Pool) RecordRepository {
	return &recordRepository{pool: pool}
}

// batchInsert queues one INSERT ... RETURNING id per row inside a transaction
// and collects the assigned keys in input order.
func (r *recordRepository) batchInsert(ctx context.Context, sql string, argRows [][]any) ([]int64, error) {
	if len(argRows) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, args := range argRows {
		batch.Queue(sql, args...)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, 0, len(argRows))
	for range argRows {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			results.Close()
			return nil, fmt.Errorf("insert row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit inserts: %w", err)
	}
	return ids, nil
}

const fullTextColumns = `id, original_id, extractor, community, spatio_temporal_extraction,
	decision, reason, key, publication_year, author, title, processed`

func (r *recordRepository) FullTexts(ctx context.Context) ([]domain.FullText, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+fullTextColumns+" FROM full_texts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query full_texts: %w", err)
	}
	defer rows.Close()

	var out []domain.FullText
	for rows.Next() {
		var ft domain.FullText
		if err := rows.Scan(
			&ft.ID, &ft.OriginalID, &ft.Extractor, &ft.Community, &ft.SpatioTemporalExtraction,
			&ft.Decision, &ft.Reason, &ft.Key, &ft.PublicationYear, &ft.Author, &ft.Title, &ft.Processed,
		); err != nil {
			return nil, fmt.Errorf("scan full_text: %w", err)
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

func (r *recordRepository) InsertFullTexts(ctx context.Context, records []domain.FullText) ([]int64, error) {
	sql := `INSERT INTO full_texts (original_id, extractor, community, spatio_temporal_extraction,
		decision, reason, key, publication_year, author, title, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	argRows := make([][]any, len(records))
	for i, ft := range records {
		argRows[i] = []any{
			ft.OriginalID, ft.Extractor, ft.Community, ft.SpatioTemporalExtraction,
			ft.Decision, ft.Reason, ft.Key, ft.PublicationYear, ft.Author, ft.Title, ft.Processed,
		}
	}
	return r.batchInsert(ctx, sql, argRows)
}

const descriptiveColumns = `id, original_id, full_text_id, dataset_name, sampling_effort,
	data_access, data_resolution, linked_manuscripts, notes`

func (r *recordRepository) Descriptives(ctx context.Context) ([]domain.Descriptive, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+descriptiveColumns+" FROM descriptives ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query descriptives: %w", err)
	}
	defer rows.Close()

	var out []domain.Descriptive
	for rows.Next() {
		var d domain.Descriptive
		if err := rows.Scan(
			&d.ID, &d.OriginalID, &d.FullTextID, &d.DatasetName, &d.SamplingEffort,
			&d.DataAccess, &d.DataResolution, &d.LinkedManuscripts, &d.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan descriptive: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *recordRepository) InsertDescriptives(ctx context.Context, records []domain.Descriptive) ([]int64, error) {
	sql := `INSERT INTO descriptives (original_id, full_text_id, dataset_name, sampling_effort,
		data_access, data_resolution, linked_manuscripts, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	argRows := make([][]any, len(records))
	for i, d := range records {
		argRows[i] = []any{
			d.OriginalID, d.FullTextID, d.DatasetName, d.SamplingEffort,
			d.DataAccess, d.DataResolution, d.LinkedManuscripts, d.Notes,
		}
	}
	return r.batchInsert(ctx, sql, argRows)
}

const hostColumns = `id, original_id, study_id, scientific_name, event_date, locality, country,
	verbatim_locality, coordinate_resolution, location_latitude, location_longitude,
	individual_count, trap_effort, trap_effort_resolution`

func (r *recordRepository) Hosts(ctx context.Context) ([]domain.Host, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+hostColumns+" FROM hosts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	var out []domain.Host
	for rows.Next() {
		var h domain.Host
		if err := rows.Scan(
			&h.ID, &h.OriginalID, &h.StudyID, &h.ScientificName, &h.EventDate, &h.Locality, &h.Country,
			&h.VerbatimLocality, &h.CoordinateResolution, &h.LocationLatitude, &h.LocationLongitude,
			&h.IndividualCount, &h.TrapEffort, &h.TrapEffortResolution,
		); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *recordRepository) InsertHosts(ctx context.Context, records []domain.Host) ([]int64, error) {
	sql := `INSERT INTO hosts (original_id, study_id, scientific_name, event_date, locality, country,
		verbatim_locality, coordinate_resolution, location_latitude, location_longitude,
		individual_count, trap_effort, trap_effort_resolution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	argRows := make([][]any, len(records))
	for i, h := range records {
		argRows[i] = []any{
			h.OriginalID, h.StudyID, h.ScientificName, h.EventDate, h.Locality, h.Country,
			h.VerbatimLocality, h.CoordinateResolution, h.LocationLatitude, h.LocationLongitude,
			h.IndividualCount, h.TrapEffort, h.TrapEffortResolution,
		}
	}
	return r.batchInsert(ctx, sql, argRows)
}

const pathogenColumns = `id, original_id, host_id, family, scientific_name, assay, test_result,
	assay_date, tested, positive, negative, number_inconclusive, note`

func (r *recordRepository) Pathogens(ctx context.Context) ([]domain.Pathogen, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+pathogenColumns+" FROM pathogens ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query pathogens: %w", err)
	}
	defer rows.Close()

	var out []domain.Pathogen
	for rows.Next() {
		var p domain.Pathogen
		if err := rows.Scan(
			&p.ID, &p.OriginalID, &p.HostID, &p.Family, &p.ScientificName, &p.Assay, &p.TestResult,
			&p.AssayDate, &p.Tested, &p.Positive, &p.Negative, &p.NumberInconclusive, &p.Note,
		); err != nil {
			return nil, fmt.Errorf("scan pathogen: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *recordRepository) InsertPathogens(ctx context.Context, records []domain.Pathogen) ([]int64, error) {
	sql := `INSERT INTO pathogens (original_id, host_id, family, scientific_name, assay, test_result,
		assay_date, tested, positive, negative, number_inconclusive, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	argRows := make([][]any, len(records))
	for i, p := range records {
		argRows[i] = []any{
			p.OriginalID, p.HostID, p.Family, p.ScientificName, p.Assay, p.TestResult,
			p.AssayDate, p.Tested, p.Positive, p.Negative, p.NumberInconclusive, p.Note,
		}
	}
	return r.batchInsert(ctx, sql, argRows)
}

const sequenceColumns = `id, original_id, scientific_name, associated_taxa, sequence_type,
	pathogen_id, host_id, study_id, accession_number, method, note, date_sampled, sample_location`

func (r *recordRepository) Sequences(ctx context.Context) ([]domain.Sequence, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+sequenceColumns+" FROM sequences ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query sequences: %w", err)
	}
	defer rows.Close()

	var out []domain.Sequence
	for rows.Next() {
		var s domain.Sequence
		if err := rows.Scan(
			&s.ID, &s.OriginalID, &s.ScientificName, &s.AssociatedTaxa, &s.SequenceType,
			&s.PathogenID, &s.HostID, &s.StudyID, &s.AccessionNumber, &s.Method, &s.Note,
			&s.DateSampled, &s.SampleLocation,
		); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *recordRepository) InsertSequences(ctx context.Context, records []domain.Sequence) ([]int64, error) {
	sql := `INSERT INTO sequences (original_id, scientific_name, associated_taxa, sequence_type,
		pathogen_id, host_id, study_id, accession_number, method, note, date_sampled, sample_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	argRows := make([][]any, len(records))
	for i, s := range records {
		argRows[i] = []any{
			s.OriginalID, s.ScientificName, s.AssociatedTaxa, s.SequenceType,
			s.PathogenID, s.HostID, s.StudyID, s.AccessionNumber, s.Method, s.Note,
			s.DateSampled, s.SampleLocation,
		}
	}
	return r.batchInsert(ctx, sql, argRows)
}

// CountByModel returns per-table record counts keyed by model name.
func (r *recordRepository) CountByModel(ctx context.Context) (map[string]int64, error) {
	tables := []struct {
		model string
		table string
	}{
		{"pathogen", "pathogens"},
		{"host", "hosts"},
		{"sequence", "sequences"},
		{"descriptive", "descriptives"},
		{"fulltext", "full_texts"},
	}

	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}
		counts[t.model] = n
	}
	return counts, nil
}

// HostPoints returns hosts with usable coordinates for map rendering.
func (r *recordRepository) HostPoints(ctx context.Context) ([]domain.HostPoint, error) {
	sql := `SELECT id, location_latitude, location_longitude, scientific_name, country,
		individual_count, event_date
		FROM hosts
		WHERE location_latitude IS NOT NULL AND location_longitude IS NOT NULL
		ORDER BY id`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query host points: %w", err)
	}
	defer rows.Close()

	var out []domain.HostPoint
	for rows.Next() {
		var p domain.HostPoint
		if err := rows.Scan(
			&p.ID, &p.Latitude, &p.Longitude, &p.ScientificName, &p.Country,
			&p.IndividualCount, &p.EventDate,
		); err != nil {
			return nil, fmt.Errorf("scan host point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
