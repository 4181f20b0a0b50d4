// backend/scraper/csv_parser.go
package scraper

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/jszwec/csvutil"
	"github.com/rs/zerolog/log"
)

// ParseIndexCsv reads date,value,sentiment[,timestamp] rows into tuples.
// Rows with an unparseable date or timestamp, or an empty sentiment, are skipped and counted.
func ParseIndexCsv(reader io.Reader) ([]models.IndexTuple, int, error) {
	var rows []models.IndexCSVRow

	// csvutil maps the header line onto the `csv:"..."` tags of IndexCSVRow.
	decoder, err := csvutil.NewDecoder(csv.NewReader(reader))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create CSV decoder for index rows: %w", err)
	}
	if err := decoder.Decode(&rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode index CSV data: %w", err)
	}

	tuples := make([]models.IndexTuple, 0, len(rows))
	invalid := 0
	for i, row := range rows {
		tuple, err := rowToTuple(row)
		if err != nil {
			log.Warn().Int("line", i+2).Err(err).Msg("Scraper: skipping invalid CSV row")
			invalid++
			continue
		}
		tuples = append(tuples, tuple)
	}

	log.Info().Int("rows", len(rows)).Int("invalid", invalid).Msg("Scraper: parsed index CSV")
	return tuples, invalid, nil
}

func rowToTuple(row models.IndexCSVRow) (models.IndexTuple, error) {
	date, err := utils.ParseDate(row.Date)
	if err != nil {
		return models.IndexTuple{}, err
	}
	label := strings.TrimSpace(row.Sentiment)
	if label == "" {
		return models.IndexTuple{}, fmt.Errorf("empty sentiment for %s", row.Date)
	}
	ts := date
	if s := strings.TrimSpace(row.Timestamp); s != "" {
		ts, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return models.IndexTuple{}, fmt.Errorf("invalid timestamp %q for %s: %w", s, row.Date, err)
		}
	}
	return models.IndexTuple{
		RecordDate:      date,
		Value:           row.Value,
		Label:           label,
		SourceTimestamp: ts.UTC(),
	}, nil
}

// WriteIndexCsv writes records with a header line in the same shape ParseIndexCsv reads.
func WriteIndexCsv(w io.Writer, records []models.IndexRecord) error {
	rows := make([]models.IndexCSVRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, models.IndexCSVRow{
			Date:      utils.FormatDate(r.RecordDate),
			Value:     r.Value,
			Sentiment: r.Sentiment,
			Timestamp: r.SourceTimestamp.UTC().Format(time.RFC3339),
		})
	}
	if len(rows) == 0 {
		// csvutil.Marshal writes no header for an empty slice; keep the header so the file re-imports.
		_, err := io.WriteString(w, "date,value,sentiment,timestamp\n")
		return err
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode index CSV: %w", err)
	}
	_, err = w.Write(b)
	return err
}
