// backend/models/index.go
package models

import (
	"encoding/json"
	"time"

	"github.com/gewnthar/feargreed/backend/utils"
)

// IndexRecord is one stored Fear & Greed value. RecordDate is unique across the table.
type IndexRecord struct {
	ID              int64      `db:"id" json:"id"`
	RecordDate      time.Time  `db:"record_date" json:"-"`
	Value           int        `db:"fgi_value" json:"fgi_value"`
	Sentiment       string     `db:"sentiment" json:"sentiment"`
	SourceTimestamp time.Time  `db:"source_timestamp" json:"timestamp"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// MarshalJSON renders record_date as a plain YYYY-MM-DD date.
func (r IndexRecord) MarshalJSON() ([]byte, error) {
	type plain IndexRecord
	return json.Marshal(struct {
		plain
		RecordDate string `json:"record_date"`
	}{plain: plain(r), RecordDate: utils.FormatDate(r.RecordDate)})
}

// IndexTuple is the canonical value extracted from a provider payload or a CSV row,
// before it is keyed and persisted.
type IndexTuple struct {
	RecordDate      time.Time
	Value           int
	Label           string
	SourceTimestamp time.Time
}

// IndexCSVRow is the on-disk CSV shape used by import and export.
// Timestamp is optional on import; an empty value means midnight UTC of Date.
type IndexCSVRow struct {
	Date      string `csv:"date"`
	Value     int    `csv:"value"`
	Sentiment string `csv:"sentiment"`
	Timestamp string `csv:"timestamp,omitempty"`
}
