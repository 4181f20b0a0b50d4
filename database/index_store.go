// backend/database/index_store.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/rs/zerolog/log"
)

const selectIndexColumns = `
	SELECT id, record_date, fgi_value, sentiment, source_timestamp, created_at, updated_at
	FROM fear_greed_index
`

// FindByDate returns the record for date, or nil if none exists.
func (s *Store) FindByDate(ctx context.Context, date time.Time) (*models.IndexRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	day := utils.FormatDate(date)
	row := s.db.QueryRowContext(ctx, selectIndexColumns+` WHERE record_date = ?`, day)
	rec, err := scanIndexRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record for %s: %w: %w", day, customerrors.ErrStoreFailure, err)
	}
	return rec, nil
}

// FindSince returns all records with record_date >= start, ascending.
func (s *Store) FindSince(ctx context.Context, start time.Time) ([]models.IndexRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryRecords(ctx, selectIndexColumns+`
		WHERE record_date >= ?
		ORDER BY record_date ASC
	`, utils.FormatDate(start))
}

// FindBetween returns records in the half-open range [start, end), ascending.
func (s *Store) FindBetween(ctx context.Context, start, end time.Time) ([]models.IndexRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryRecords(ctx, selectIndexColumns+`
		WHERE record_date >= ? AND record_date < ?
		ORDER BY record_date ASC
	`, utils.FormatDate(start), utils.FormatDate(end))
}

// FindByMonth returns the records of one calendar month, ascending.
func (s *Store) FindByMonth(ctx context.Context, year int, month time.Month) ([]models.IndexRecord, error) {
	start, end := utils.MonthRange(year, month)
	return s.FindBetween(ctx, start, end)
}

// Insert stores a new record keyed by tuple.RecordDate. It never updates:
// if the date is taken, it returns customerrors.ErrDuplicateDate.
func (s *Store) Insert(ctx context.Context, tuple models.IndexTuple) (*models.IndexRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rec := models.IndexRecord{
		RecordDate:      utils.DateOf(tuple.RecordDate),
		Value:           tuple.Value,
		Sentiment:       tuple.Label,
		SourceTimestamp: tuple.SourceTimestamp.UTC().Truncate(time.Millisecond),
		CreatedAt:       s.now().UTC().Truncate(time.Millisecond),
	}
	day := utils.FormatDate(rec.RecordDate)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fear_greed_index (
			record_date, fgi_value, sentiment, source_timestamp, created_at
		) VALUES (?, ?, ?, ?, ?)
	`, day, rec.Value, rec.Sentiment, rec.SourceTimestamp.UnixMilli(), rec.CreatedAt.UnixMilli())
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return nil, fmt.Errorf("insert record for %s: %w", day, customerrors.ErrDuplicateDate)
		}
		return nil, fmt.Errorf("failed to insert record for %s: %w: %w", day, customerrors.ErrStoreFailure, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read id for %s: %w: %w", day, customerrors.ErrStoreFailure, err)
	}
	rec.ID = id
	return &rec, nil
}

// DeleteBefore removes every record with record_date < cutoff in one transaction
// and returns how many rows were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	day := utils.FormatDate(cutoff)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for purge: %w: %w", customerrors.ErrStoreFailure, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM fear_greed_index WHERE record_date < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records before %s: %w: %w", day, customerrors.ErrStoreFailure, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted records: %w: %w", customerrors.ErrStoreFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w: %w", customerrors.ErrStoreFailure, err)
	}

	log.Info().Str("cutoff", day).Int64("deleted", deleted).Msg("Database: purged old index records")
	return deleted, nil
}

// CountRecords returns the total number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fear_greed_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w: %w", customerrors.ErrStoreFailure, err)
	}
	return n, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: %w", customerrors.ErrStoreFailure, errNotInitialized)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]models.IndexRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index records: %w: %w", customerrors.ErrStoreFailure, err)
	}
	defer rows.Close()

	records := []models.IndexRecord{}
	for rows.Next() {
		rec, err := scanIndexRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan index record: %w: %w", customerrors.ErrStoreFailure, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index records: %w: %w", customerrors.ErrStoreFailure, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndexRecord(row rowScanner) (*models.IndexRecord, error) {
	var (
		rec             models.IndexRecord
		recordDate      string
		sourceTimestamp int64
		createdAt       int64
		updatedAt       sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &recordDate, &rec.Value, &rec.Sentiment, &sourceTimestamp, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	date, err := utils.ParseDate(recordDate)
	if err != nil {
		return nil, err
	}
	rec.RecordDate = date
	rec.SourceTimestamp = time.UnixMilli(sourceTimestamp).UTC()
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	if updatedAt.Valid {
		t := time.UnixMilli(updatedAt.Int64).UTC()
		rec.UpdatedAt = &t
	}
	return &rec, nil
}
