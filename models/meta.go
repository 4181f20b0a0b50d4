// backend/models/meta.go
package models

import "time"

// Job names recorded in the ingest_runs table.
const (
	JobDaily     = "daily"
	JobHistory   = "history"
	JobImport    = "import"
	JobRetention = "retention"
)

// IngestRun tracks the last attempt and last success of a scheduled or manual job.
type IngestRun struct {
	JobName         string     `db:"job_name" json:"job_name"`
	LastAttemptAt   time.Time  `db:"last_attempt_at" json:"last_attempt_at"`
	LastSuccessAt   *time.Time `db:"last_success_at" json:"last_success_at,omitempty"`
	LastOutcome     string     `db:"last_outcome" json:"last_outcome"`
	LastError       string     `db:"last_error" json:"last_error,omitempty"`
	RecordsAffected int64      `db:"records_affected" json:"records_affected"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
