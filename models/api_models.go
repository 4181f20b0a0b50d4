// backend/models/api_models.go
package models

// IngestResponse is returned by POST /api/admin/fetch-now.
type IngestResponse struct {
	Outcome string       `json:"outcome"`
	Date    string       `json:"date"`
	Record  *IndexRecord `json:"record,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// BackfillResponse is returned by POST /api/admin/fetch-history-now.
type BackfillResponse struct {
	Outcome  string `json:"outcome"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Invalid  int    `json:"invalid"`
	Error    string `json:"error,omitempty"`
}

// CleanupResponse is returned by POST /api/admin/cleanup-old-data.
type CleanupResponse struct {
	Cutoff  string `json:"cutoff"`
	Deleted int64  `json:"deleted"`
}
