// backend/services/query_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/scraper"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// TodayIngester is satisfied by *IngestionService.
type TodayIngester interface {
	IngestToday(ctx context.Context) IngestResult
}

// QueryService answers read requests, fetching today's value on demand.
type QueryService struct {
	store  Store
	ingest TodayIngester
	today  *cache.Cache
	now    func() time.Time
}

func NewQueryService(store Store, ingest TodayIngester) *QueryService {
	return &QueryService{
		store:  store,
		ingest: ingest,
		today:  cache.New(1*time.Hour, 10*time.Minute),
		now:    time.Now,
	}
}

// GetOrCreateToday returns today's record, ingesting it first if missing.
// (nil, nil) means the value is not available yet; an error means the store failed.
func (s *QueryService) GetOrCreateToday(ctx context.Context) (*models.IndexRecord, error) {
	today := utils.TodayUTC(s.now)
	key := utils.FormatDate(today)
	if v, ok := s.today.Get(key); ok {
		return v.(*models.IndexRecord), nil
	}

	rec, err := s.store.FindByDate(ctx, today)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		res := s.ingest.IngestToday(ctx)
		switch res.Outcome {
		case OutcomeStoreError:
			return nil, res.Err
		case OutcomeTransportError, OutcomeIncomplete:
			log.Warn().Err(res.Err).Str("date", key).Str("outcome", string(res.Outcome)).
				Msg("Service: today's index not available")
			return nil, nil
		}
		rec, err = s.store.FindByDate(ctx, today)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
	}

	s.today.Set(key, rec, cache.DefaultExpiration)
	return rec, nil
}

// GetLastNDays returns records dated today-(n-1) onwards, ascending. n <= 0 yields none.
func (s *QueryService) GetLastNDays(ctx context.Context, n int) ([]models.IndexRecord, error) {
	if n <= 0 {
		return []models.IndexRecord{}, nil
	}
	start := utils.TodayUTC(s.now).AddDate(0, 0, -(n - 1))
	return s.store.FindSince(ctx, start)
}

// GetByMonth returns the records of one calendar month, ascending.
func (s *QueryService) GetByMonth(ctx context.Context, year, month int) ([]models.IndexRecord, error) {
	if month < 1 || month > 12 {
		return []models.IndexRecord{}, nil
	}
	return s.store.FindByMonth(ctx, year, time.Month(month))
}

// ExportCSV writes the last n days as CSV.
func (s *QueryService) ExportCSV(ctx context.Context, w io.Writer, n int) error {
	records, err := s.GetLastNDays(ctx, n)
	if err != nil {
		return err
	}
	if err := scraper.WriteIndexCsv(w, records); err != nil {
		return fmt.Errorf("export %d days: %w", n, err)
	}
	return nil
}

// ListRuns returns the recorded job history.
func (s *QueryService) ListRuns(ctx context.Context) ([]models.IngestRun, error) {
	return s.store.GetIngestRuns(ctx)
}
