// Package postgres provides the pgx-backed primary store for activities.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activitydash/internal/domain"
)

const activityColumns = "id, start_date, end_date, country, region, activity, objective, thematic, directorate, url"

// Repository provides Postgres-backed persistence for activity records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BulkCreate inserts all records inside a single transaction. Rows that
// collide with the content uniqueness constraint are silently dropped, so
// re-importing an overlapping file is idempotent. Returns the records
// actually created with their store-assigned IDs; any transaction-level
// failure rolls back the whole batch.
func (r *Repository) BulkCreate(ctx context.Context, records []domain.Activity) ([]domain.Activity, error) {
	created := make([]domain.Activity, 0, len(records))
	if len(records) == 0 {
		return created, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO activities (start_date, end_date, country, region, activity, objective, thematic, directorate, url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT DO NOTHING
        RETURNING id`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insert,
			rec.StartDate,
			rec.EndDate,
			rec.Country,
			rec.Region,
			rec.Activity,
			rec.Objective,
			rec.Thematic,
			rec.Directorate,
			rec.URL,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for _, rec := range records {
		var id int64
		scanErr := results.QueryRow().Scan(&id)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			// Conflict with an existing row: suppressed, not an error.
			continue
		}
		if scanErr != nil {
			results.Close()
			return nil, scanErr
		}
		rec.ID = id
		created = append(created, rec)
	}
	if err := results.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByIDs returns the records for the given IDs keyed by ID. Used by the
// query layer to reconcile index-truncated fields against authoritative
// values.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Activity, error) {
	byID := make(map[int64]domain.Activity, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = rec
	}
	return byID, rows.Err()
}

// Get retrieves a single record by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id=$1`, id)
	rec, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update replaces the scalar fields of an existing record.
func (r *Repository) Update(ctx context.Context, rec domain.Activity) (*domain.Activity, error) {
	const stmt = `UPDATE activities
        SET start_date=$2, end_date=$3, country=$4, region=$5, activity=$6, objective=$7, thematic=$8, directorate=$9, url=$10
        WHERE id=$1
        RETURNING ` + activityColumns

	row := r.pool.QueryRow(ctx, stmt,
		rec.ID,
		rec.StartDate,
		rec.EndDate,
		rec.Country,
		rec.Region,
		rec.Activity,
		rec.Objective,
		rec.Thematic,
		rec.Directorate,
		rec.URL,
	)
	updated, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a single record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var rec domain.Activity
	err := row.Scan(
		&rec.ID,
		&rec.StartDate,
		&rec.EndDate,
		&rec.Country,
		&rec.Region,
		&rec.Activity,
		&rec.Objective,
		&rec.Thematic,
		&rec.Directorate,
		&rec.URL,
	)
	return rec, err
}
