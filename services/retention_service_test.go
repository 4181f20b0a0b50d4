package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
)

func newTestRetention(store *memStore, years int) *RetentionService {
	s := NewRetentionService(store, years)
	s.now = clock
	return s
}

func TestRetentionCutoffDefaultsToFiveYears(t *testing.T) {
	s := newTestRetention(newMemStore(), 0)
	if got := utils.FormatDate(s.Cutoff()); got != "2019-03-05" {
		t.Fatalf("cutoff = %s, want 2019-03-05", got)
	}
}

func TestPurgeExpiredIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.seed("2019-03-04", "2019-03-05", "2019-03-06", "2024-03-01")
	s := newTestRetention(store, 5)

	cutoff, deleted, err := s.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if utils.FormatDate(cutoff) != "2019-03-05" || deleted != 1 {
		t.Fatalf("cutoff = %s deleted = %d", utils.FormatDate(cutoff), deleted)
	}
	if rec, _ := store.FindByDate(context.Background(), cutoff); rec == nil {
		t.Fatal("row on the cutoff date must survive")
	}

	_, deleted, err = s.PurgeExpired(context.Background())
	if err != nil || deleted != 0 {
		t.Fatalf("second purge deleted = %d err = %v", deleted, err)
	}
	run, ok := store.run(models.JobRetention)
	if !ok || run.LastOutcome != string(OutcomePurged) || run.LastSuccessAt == nil {
		t.Fatalf("run = %+v", run)
	}
}

func TestPurgeOlderThanTruncatesCutoffToDate(t *testing.T) {
	store := newMemStore()
	store.seed("2020-01-01", "2020-01-02")
	s := newTestRetention(store, 5)

	deleted, err := s.PurgeOlderThan(context.Background(), time.Date(2020, 1, 2, 18, 0, 0, 0, time.UTC))
	if err != nil || deleted != 1 {
		t.Fatalf("deleted = %d err = %v", deleted, err)
	}
}

func TestPurgeOlderThanStoreFailure(t *testing.T) {
	store := newMemStore()
	store.failAll = errors.New("locked")
	s := newTestRetention(store, 5)

	if _, err := s.PurgeOlderThan(context.Background(), fixedNow); !errors.Is(err, customerrors.ErrStoreFailure) {
		t.Fatalf("err = %v, want store failure", err)
	}
	run, _ := store.run(models.JobRetention)
	if run.LastOutcome != string(OutcomeStoreError) {
		t.Fatalf("run = %+v", run)
	}
}
