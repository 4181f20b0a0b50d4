package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gewnthar/feargreed/backend/config"
	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "feargreed.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func day(s string) time.Time {
	d, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func tupleFor(date string, value int) models.IndexTuple {
	d := day(date)
	return models.IndexTuple{
		RecordDate:      d,
		Value:           value,
		Label:           "Neutral",
		SourceTimestamp: d.Add(15 * time.Hour),
	}
}

func mustInsert(t *testing.T, s *Store, dates ...string) {
	t.Helper()
	for i, d := range dates {
		if _, err := s.Insert(context.Background(), tupleFor(d, 40+i)); err != nil {
			t.Fatalf("insert %s: %v", d, err)
		}
	}
}

func recordDates(records []models.IndexRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, utils.FormatDate(r.RecordDate))
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), " "); err == nil {
		t.Fatal("expected error")
	}
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	if _, err := InitDB(context.Background(), config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInsertAndFindByDateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	src := time.Date(2024, 3, 1, 23, 0, 0, int(123*time.Millisecond), time.UTC)
	inserted, err := store.Insert(ctx, models.IndexTuple{
		RecordDate:      day("2024-03-01"),
		Value:           37,
		Label:           "Fear",
		SourceTimestamp: src,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID == 0 {
		t.Fatal("expected store-assigned id")
	}

	got, err := store.FindByDate(ctx, day("2024-03-01"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.ID != inserted.ID || got.Value != 37 || got.Sentiment != "Fear" {
		t.Fatalf("record = %+v", got)
	}
	if !got.SourceTimestamp.Equal(src) {
		t.Fatalf("source timestamp = %v, want %v", got.SourceTimestamp, src)
	}
	if !got.CreatedAt.Equal(store.now()) {
		t.Fatalf("created at = %v, want %v", got.CreatedAt, store.now())
	}
	if got.UpdatedAt != nil {
		t.Fatalf("updated at = %v, want nil on fresh insert", got.UpdatedAt)
	}
}

func TestFindByDateMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.FindByDate(context.Background(), day("2024-03-01"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatalf("record = %+v, want nil", got)
	}
}

func TestInsertDuplicateDateIsRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	mustInsert(t, store, "2024-03-01")

	_, err := store.Insert(ctx, tupleFor("2024-03-01", 99))
	if !errors.Is(err, customerrors.ErrDuplicateDate) {
		t.Fatalf("err = %v, want ErrDuplicateDate", err)
	}
	if errors.Is(err, customerrors.ErrStoreFailure) {
		t.Fatal("duplicate must not be reported as a store failure")
	}

	got, err := store.FindByDate(ctx, day("2024-03-01"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Value != 40 {
		t.Fatalf("value = %d, want first value 40", got.Value)
	}
}

func TestConcurrentInsertsKeepOneRowPerDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		inserted   int
		duplicates int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, err := store.Insert(ctx, tupleFor("2024-03-01", v))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, customerrors.ErrDuplicateDate):
				duplicates++
			default:
				t.Errorf("insert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if inserted != 1 || duplicates != writers-1 {
		t.Fatalf("inserted = %d, duplicates = %d", inserted, duplicates)
	}
	n, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestFindSinceIsAscendingAndInclusive(t *testing.T) {
	store := openTestStore(t)
	mustInsert(t, store, "2024-03-04", "2024-02-28", "2024-03-01", "2024-03-03")

	got, err := store.FindSince(context.Background(), day("2024-03-01"))
	if err != nil {
		t.Fatalf("find since: %v", err)
	}
	want := []string{"2024-03-01", "2024-03-03", "2024-03-04"}
	if !equalStrings(recordDates(got), want) {
		t.Fatalf("dates = %v, want %v", recordDates(got), want)
	}
}

func TestFindSinceEmptyIsNonNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.FindSince(context.Background(), day("2024-03-01"))
	if err != nil {
		t.Fatalf("find since: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("records = %#v, want empty slice", got)
	}
}

func TestFindByMonthReturnsOnlyThatMonth(t *testing.T) {
	store := openTestStore(t)
	mustInsert(t, store, "2024-03-01", "2024-02-29", "2024-01-31", "2024-02-01", "2023-02-15", "2024-02-14")

	got, err := store.FindByMonth(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("find by month: %v", err)
	}
	want := []string{"2024-02-01", "2024-02-14", "2024-02-29"}
	if !equalStrings(recordDates(got), want) {
		t.Fatalf("dates = %v, want %v", recordDates(got), want)
	}
}

func TestDeleteBeforeRemovesOnlyOlderRecords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	mustInsert(t, store, "2019-03-04", "2019-03-05", "2019-03-06", "2024-03-01")

	deleted, err := store.DeleteBefore(ctx, day("2019-03-05"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	got, err := store.FindSince(ctx, day("2000-01-01"))
	if err != nil {
		t.Fatalf("find since: %v", err)
	}
	want := []string{"2019-03-05", "2019-03-06", "2024-03-01"}
	if !equalStrings(recordDates(got), want) {
		t.Fatalf("dates = %v, want %v", recordDates(got), want)
	}

	deleted, err = store.DeleteBefore(ctx, day("2019-03-05"))
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("second delete = %d, want 0", deleted)
	}
}

func TestClosedStoreReportsStoreFailure(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = store.FindByDate(context.Background(), day("2024-03-01"))
	if !errors.Is(err, customerrors.ErrStoreFailure) {
		t.Fatalf("err = %v, want ErrStoreFailure", err)
	}
}

func TestNilStoreReportsStoreFailure(t *testing.T) {
	var store *Store
	if _, err := store.FindSince(context.Background(), day("2024-03-01")); !errors.Is(err, customerrors.ErrStoreFailure) {
		t.Fatalf("err = %v, want ErrStoreFailure", err)
	}
}
