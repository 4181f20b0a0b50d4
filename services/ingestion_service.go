// backend/services/ingestion_service.go
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/scraper"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Outcome tags the result of an ingestion attempt.
type Outcome string

const (
	OutcomeInserted       Outcome = "inserted"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeIncomplete     Outcome = "incomplete"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeStoreError     Outcome = "store_error"
	OutcomePurged         Outcome = "purged"
)

// Succeeded reports whether the outcome leaves the store in the desired state.
func (o Outcome) Succeeded() bool {
	return o == OutcomeInserted || o == OutcomeAlreadyPresent || o == OutcomePurged
}

// IngestResult is the result of ingesting a single day.
type IngestResult struct {
	Outcome Outcome
	Date    time.Time
	Record  *models.IndexRecord // stored row when Inserted or AlreadyPresent
	Err     error
}

// BackfillResult is the result of ingesting a batch of tuples.
type BackfillResult struct {
	Outcome  Outcome
	Inserted int
	Skipped  int // dates already stored or repeated in the batch
	Invalid  int // source points or CSV rows that could not be used
	Err      error
}

// IngestionService fetches, normalizes and stores index values.
type IngestionService struct {
	store   Store
	source  SourceClient
	timeout time.Duration // bound on a shared daily fetch
	now     func() time.Time
	group   singleflight.Group
}

const defaultIngestTimeout = 30 * time.Second

// NewIngestionService builds the pipeline. timeout bounds the shared daily
// fetch, which is detached from any single caller's cancellation.
func NewIngestionService(store Store, source SourceClient, timeout time.Duration) *IngestionService {
	if timeout <= 0 {
		timeout = defaultIngestTimeout
	}
	return &IngestionService{
		store:   store,
		source:  source,
		timeout: timeout,
		now:     time.Now,
	}
}

// IngestToday stores today's (UTC) value unless a row already exists.
// Concurrent callers for the same date share one fetch.
func (s *IngestionService) IngestToday(ctx context.Context) IngestResult {
	today := utils.TodayUTC(s.now)
	key := utils.FormatDate(today)

	v, _, _ := s.group.Do(key, func() (any, error) {
		// Every waiter shares this result, so one caller going away must not abort it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		res := s.ingestDate(ctx, today)
		var affected int64
		if res.Outcome == OutcomeInserted {
			affected = 1
		}
		s.recordRun(ctx, models.JobDaily, res.Outcome, res.Err, affected)
		return res, nil
	})
	return v.(IngestResult)
}

func (s *IngestionService) ingestDate(ctx context.Context, date time.Time) IngestResult {
	day := utils.FormatDate(date)
	res := IngestResult{Date: date}

	existing, err := s.store.FindByDate(ctx, date)
	if err != nil {
		log.Error().Err(err).Str("date", day).Msg("Service: failed to check for existing record")
		res.Outcome, res.Err = OutcomeStoreError, err
		return res
	}
	if existing != nil {
		log.Debug().Str("date", day).Msg("Service: record already present, skipping fetch")
		res.Outcome, res.Record = OutcomeAlreadyPresent, existing
		return res
	}

	resp, err := s.source.FetchDaily(ctx, date)
	if err != nil {
		res.Outcome, res.Err = classifyFetchError(err), err
		log.Error().Err(err).Str("date", day).Str("outcome", string(res.Outcome)).Msg("Service: failed to fetch daily index")
		return res
	}

	tuple, location, err := scraper.ExtractCurrent(resp)
	if err != nil {
		log.Warn().Err(err).Str("date", day).Msg("Service: daily payload had no usable value")
		res.Outcome, res.Err = OutcomeIncomplete, err
		return res
	}
	// The row is keyed by the requested day, not by the provider's timestamp.
	tuple.RecordDate = date

	rec, err := s.store.Insert(ctx, tuple)
	switch {
	case errors.Is(err, customerrors.ErrDuplicateDate):
		log.Info().Str("date", day).Msg("Service: lost insert race, record already present")
		res.Outcome = OutcomeAlreadyPresent
		if res.Record, err = s.store.FindByDate(ctx, date); err != nil {
			log.Warn().Err(err).Str("date", day).Msg("Service: could not reload record after lost insert race")
		}
		return res
	case err != nil:
		log.Error().Err(err).Str("date", day).Msg("Service: failed to store daily index")
		res.Outcome, res.Err = OutcomeStoreError, err
		return res
	}

	log.Info().Str("date", day).Int("value", rec.Value).Str("sentiment", rec.Sentiment).Str("location", location).
		Msg("Service: stored daily index")
	res.Outcome, res.Record = OutcomeInserted, rec
	return res
}

// IngestHistory fetches the provider's full historical series and stores every date not yet present.
func (s *IngestionService) IngestHistory(ctx context.Context) BackfillResult {
	res := s.ingestHistory(ctx)
	s.recordRun(ctx, models.JobHistory, res.Outcome, res.Err, int64(res.Inserted))
	return res
}

func (s *IngestionService) ingestHistory(ctx context.Context) BackfillResult {
	log.Info().Msg("Service: starting historical backfill")

	resp, err := s.source.FetchHistory(ctx)
	if err != nil {
		outcome := classifyFetchError(err)
		log.Error().Err(err).Str("outcome", string(outcome)).Msg("Service: failed to fetch historical series")
		return BackfillResult{Outcome: outcome, Err: err}
	}
	series, err := scraper.ExtractHistory(resp)
	if err != nil {
		log.Warn().Err(err).Msg("Service: historical payload had no usable series")
		return BackfillResult{Outcome: OutcomeIncomplete, Err: err}
	}

	res := s.IngestTuples(ctx, series.Tuples)
	res.Invalid += series.Skipped
	return res
}

// IngestTuples inserts each tuple whose date has no stored row. Repeated dates
// in the batch keep the first occurrence. A store failure stops the loop; the
// partial counts are returned with the error. The existence check avoids
// insert attempts for stored dates; a unique violation still counts as a skip.
func (s *IngestionService) IngestTuples(ctx context.Context, tuples []models.IndexTuple) BackfillResult {
	var res BackfillResult
	seen := make(map[string]struct{}, len(tuples))

	for _, tuple := range tuples {
		day := utils.FormatDate(tuple.RecordDate)
		if _, dup := seen[day]; dup {
			res.Skipped++
			continue
		}
		seen[day] = struct{}{}

		existing, err := s.store.FindByDate(ctx, tuple.RecordDate)
		if err != nil {
			log.Error().Err(err).Str("date", day).Int("inserted", res.Inserted).Msg("Service: backfill aborted on store failure")
			res.Outcome, res.Err = OutcomeStoreError, err
			return res
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		_, err = s.store.Insert(ctx, tuple)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, customerrors.ErrDuplicateDate):
			res.Skipped++
		default:
			log.Error().Err(err).Str("date", day).Int("inserted", res.Inserted).Msg("Service: backfill aborted on store failure")
			res.Outcome, res.Err = OutcomeStoreError, err
			return res
		}
	}

	res.Outcome = OutcomeAlreadyPresent
	if res.Inserted > 0 {
		res.Outcome = OutcomeInserted
	}
	log.Info().Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("Service: backfill finished")
	return res
}

// ImportCSV loads date,value,sentiment[,timestamp] rows from r.
func (s *IngestionService) ImportCSV(ctx context.Context, r io.Reader) BackfillResult {
	tuples, invalid, err := scraper.ParseIndexCsv(r)
	if err != nil {
		res := BackfillResult{Outcome: OutcomeIncomplete, Err: err}
		s.recordRun(ctx, models.JobImport, res.Outcome, res.Err, 0)
		return res
	}
	res := s.IngestTuples(ctx, tuples)
	res.Invalid += invalid
	s.recordRun(ctx, models.JobImport, res.Outcome, res.Err, int64(res.Inserted))
	return res
}

// BackfillIfEmpty runs IngestHistory only when the store holds no records.
func (s *IngestionService) BackfillIfEmpty(ctx context.Context) (BackfillResult, bool) {
	n, err := s.store.CountRecords(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Service: could not count records before startup backfill")
		return BackfillResult{Outcome: OutcomeStoreError, Err: err}, false
	}
	if n > 0 {
		log.Debug().Int64("records", n).Msg("Service: store not empty, skipping startup backfill")
		return BackfillResult{}, false
	}
	return s.IngestHistory(ctx), true
}

func (s *IngestionService) recordRun(ctx context.Context, job string, outcome Outcome, runErr error, affected int64) {
	recordRun(ctx, s.store, s.now, job, outcome, runErr, affected)
}

func recordRun(ctx context.Context, runs RunLog, now func() time.Time, job string, outcome Outcome, runErr error, affected int64) {
	at := now().UTC()
	run := models.IngestRun{
		JobName:         job,
		LastAttemptAt:   at,
		LastOutcome:     string(outcome),
		RecordsAffected: affected,
	}
	if outcome.Succeeded() {
		run.LastSuccessAt = &at
	}
	if runErr != nil {
		run.LastError = runErr.Error()
	}
	if err := runs.LogIngestRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Str("job", job).Msg("Service: failed to record ingest run")
	}
}

func classifyFetchError(err error) Outcome {
	if errors.Is(err, customerrors.ErrIncompleteSourceData) {
		return OutcomeIncomplete
	}
	return OutcomeTransportError
}
