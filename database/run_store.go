// backend/database/run_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/rs/zerolog/log"
)

// LogIngestRun inserts or updates the ingest_runs row for run.JobName.
// A nil LastSuccessAt keeps the previously recorded success time.
func (s *Store) LogIngestRun(ctx context.Context, run models.IngestRun) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if run.JobName == "" {
		return fmt.Errorf("job name is required")
	}
	if run.LastAttemptAt.IsZero() {
		run.LastAttemptAt = s.now().UTC()
	}

	var lastSuccess sql.NullInt64
	if run.LastSuccessAt != nil {
		lastSuccess = sql.NullInt64{Int64: run.LastSuccessAt.UTC().UnixMilli(), Valid: true}
	}
	var lastError sql.NullString
	if run.LastError != "" {
		lastError = sql.NullString{String: run.LastError, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.dialect.upsertRun,
		run.JobName,
		run.LastAttemptAt.UTC().UnixMilli(),
		lastSuccess,
		run.LastOutcome,
		lastError,
		run.RecordsAffected,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to log ingest run for %s: %w: %w", run.JobName, customerrors.ErrStoreFailure, err)
	}

	log.Debug().Str("job", run.JobName).Str("outcome", run.LastOutcome).Msg("Database: logged ingest run")
	return nil
}

// GetIngestRuns retrieves all rows from ingest_runs ordered by job name.
func (s *Store) GetIngestRuns(ctx context.Context) ([]models.IngestRun, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_name, last_attempt_at, last_success_at, last_outcome,
		       last_error, records_affected, updated_at
		FROM ingest_runs
		ORDER BY job_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest_runs: %w: %w", customerrors.ErrStoreFailure, err)
	}
	defer rows.Close()

	runs := []models.IngestRun{}
	for rows.Next() {
		var (
			r                    models.IngestRun
			lastAttempt, updated int64
			lastSuccess          sql.NullInt64
			lastError            sql.NullString
		)
		if err := rows.Scan(&r.JobName, &lastAttempt, &lastSuccess, &r.LastOutcome, &lastError, &r.RecordsAffected, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan ingest_runs row: %w: %w", customerrors.ErrStoreFailure, err)
		}
		r.LastAttemptAt = time.UnixMilli(lastAttempt).UTC()
		r.UpdatedAt = time.UnixMilli(updated).UTC()
		if lastSuccess.Valid {
			t := time.UnixMilli(lastSuccess.Int64).UTC()
			r.LastSuccessAt = &t
		}
		if lastError.Valid {
			r.LastError = lastError.String
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingest_runs rows: %w: %w", customerrors.ErrStoreFailure, err)
	}
	return runs, nil
}
