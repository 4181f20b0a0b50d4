package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
)

var fixedNow = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// memStore is an in-memory Store with the same uniqueness rule as the database.
type memStore struct {
	mu      sync.Mutex
	records map[string]models.IndexRecord
	runs    map[string]models.IngestRun
	nextID  int64
	failAll error // when set every call returns it
	// failInsertAfter makes Insert fail once this many rows were inserted; <0 disables.
	failInsertAfter int
	inserts         int
	insertCalls     int
	// failFindAfter makes FindByDate fail once it was called this many times; <0 disables.
	failFindAfter int
	findCalls     int
}

func newMemStore() *memStore {
	return &memStore{
		records:         map[string]models.IndexRecord{},
		runs:            map[string]models.IngestRun{},
		failInsertAfter: -1,
		failFindAfter:   -1,
	}
}

func (m *memStore) seed(dates ...string) {
	for _, d := range dates {
		date, _ := utils.ParseDate(d)
		if _, err := m.Insert(context.Background(), models.IndexTuple{RecordDate: date, Value: 50, Label: "Neutral", SourceTimestamp: date}); err != nil {
			panic(err)
		}
	}
}

func (m *memStore) storeErr(op string) error {
	return fmt.Errorf("%s: %w: %w", op, customerrors.ErrStoreFailure, m.failAll)
}

func (m *memStore) FindByDate(ctx context.Context, date time.Time) (*models.IndexRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.storeErr("find")
	}
	m.findCalls++
	if m.failFindAfter >= 0 && m.findCalls > m.failFindAfter {
		return nil, fmt.Errorf("find: %w: connection reset", customerrors.ErrStoreFailure)
	}
	rec, ok := m.records[utils.FormatDate(date)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) sorted(keep func(string) bool) []models.IndexRecord {
	out := []models.IndexRecord{}
	for day, rec := range m.records {
		if keep(day) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordDate.Before(out[j].RecordDate) })
	return out
}

func (m *memStore) FindSince(ctx context.Context, start time.Time) ([]models.IndexRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.storeErr("find since")
	}
	from := utils.FormatDate(start)
	return m.sorted(func(day string) bool { return day >= from }), nil
}

func (m *memStore) FindByMonth(ctx context.Context, year int, month time.Month) ([]models.IndexRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.storeErr("find by month")
	}
	start, next := utils.MonthRange(year, month)
	from, to := utils.FormatDate(start), utils.FormatDate(next)
	return m.sorted(func(day string) bool { return day >= from && day < to }), nil
}

func (m *memStore) Insert(ctx context.Context, tuple models.IndexTuple) (*models.IndexRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.failAll != nil {
		return nil, m.storeErr("insert")
	}
	if m.failInsertAfter >= 0 && m.inserts >= m.failInsertAfter {
		return nil, fmt.Errorf("insert: %w: disk full", customerrors.ErrStoreFailure)
	}
	day := utils.FormatDate(tuple.RecordDate)
	if _, exists := m.records[day]; exists {
		return nil, fmt.Errorf("insert %s: %w", day, customerrors.ErrDuplicateDate)
	}
	m.nextID++
	m.inserts++
	rec := models.IndexRecord{
		ID:              m.nextID,
		RecordDate:      utils.DateOf(tuple.RecordDate),
		Value:           tuple.Value,
		Sentiment:       tuple.Label,
		SourceTimestamp: tuple.SourceTimestamp,
		CreatedAt:       fixedNow,
	}
	m.records[day] = rec
	return &rec, nil
}

func (m *memStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, m.storeErr("delete")
	}
	limit := utils.FormatDate(cutoff)
	var n int64
	for day := range m.records {
		if day < limit {
			delete(m.records, day)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountRecords(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, m.storeErr("count")
	}
	return int64(len(m.records)), nil
}

func (m *memStore) LogIngestRun(ctx context.Context, run models.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.runs[run.JobName]; ok && run.LastSuccessAt == nil {
		run.LastSuccessAt = prev.LastSuccessAt
	}
	m.runs[run.JobName] = run
	return nil
}

func (m *memStore) GetIngestRuns(ctx context.Context) ([]models.IngestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.IngestRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })
	return out, nil
}

func (m *memStore) run(job string) (models.IngestRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[job]
	return r, ok
}

// fakeSource serves canned payloads and counts calls.
type fakeSource struct {
	daily      *models.RawSourceResponse
	history    *models.RawSourceResponse
	err        error
	delay      time.Duration
	dailyCalls atomic.Int32
	histCalls  atomic.Int32
	lastDate   atomic.Value
}

func (f *fakeSource) FetchDaily(ctx context.Context, date time.Time) (*models.RawSourceResponse, error) {
	f.dailyCalls.Add(1)
	f.lastDate.Store(utils.FormatDate(date))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.daily, nil
}

func (f *fakeSource) FetchHistory(ctx context.Context) (*models.RawSourceResponse, error) {
	f.histCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func ptr[T any](v T) *T { return &v }

// dailyPayload builds a response whose data block is complete.
func dailyPayload(score float64, rating string, ts time.Time) *models.RawSourceResponse {
	ms := models.EpochMillis(ts.UnixMilli())
	return &models.RawSourceResponse{Data: &models.SourceData{Score: ptr(score), Rating: ptr(rating), Timestamp: &ms}}
}

// historyPayload builds n consecutive daily points starting at start.
func historyPayload(start time.Time, n int) *models.RawSourceResponse {
	points := make([]models.HistoricalPoint, 0, n)
	for i := 0; i < n; i++ {
		x := models.EpochMillis(start.AddDate(0, 0, i).Add(20 * time.Hour).UnixMilli())
		points = append(points, models.HistoricalPoint{X: &x, Y: ptr(float64(30 + i)), Rating: ptr("fear")})
	}
	return &models.RawSourceResponse{FearAndGreedHistorical: &models.HistoricalWrapper{Data: points}}
}

func newTestIngestion(store *memStore, source SourceClient) *IngestionService {
	s := NewIngestionService(store, source, time.Second)
	s.now = clock
	return s
}

func (m *memStore) insertAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

// blockingSource holds FetchDaily until release is closed, or fails if its context ends first.
type blockingSource struct {
	fakeSource
	started chan struct{}
	release chan struct{}
}

func newBlockingSource(daily *models.RawSourceResponse) *blockingSource {
	return &blockingSource{
		fakeSource: fakeSource{daily: daily},
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
}

func (b *blockingSource) FetchDaily(ctx context.Context, date time.Time) (*models.RawSourceResponse, error) {
	b.dailyCalls.Add(1)
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return b.daily, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", customerrors.ErrTransportFailure, ctx.Err())
	}
}
