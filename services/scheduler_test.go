package services

import (
	"context"
	"testing"
	"time"

	"github.com/gewnthar/feargreed/backend/config"
)

func TestNewSchedulerRejectsBadExpressions(t *testing.T) {
	store := newMemStore()
	ingest := newTestIngestion(store, &fakeSource{})
	retention := newTestRetention(store, 5)

	for _, cfg := range []config.ScheduleConfig{
		{DailyCron: "every day", CleanupCron: "0 0 2 1 * *"},
		{DailyCron: "0 0 1 * * *", CleanupCron: "0 0 2 1 *"},
	} {
		if _, err := NewScheduler(cfg, ingest, retention); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestSchedulerStartupBackfillSeedsEmptyStore(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{history: historyPayload(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 3)}
	ingest := newTestIngestion(store, source)
	cfg := config.Default().Schedule
	cfg.BackfillOnStart = true

	s, err := NewScheduler(cfg, ingest, newTestRetention(store, 5))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := store.CountRecords(context.Background()); n == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("startup backfill did not populate the store")
}
