// backend/services/retention_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/rs/zerolog/log"
)

const defaultRetentionYears = 5

// RetentionService deletes records older than the retention window.
type RetentionService struct {
	store Store
	years int
	now   func() time.Time
}

func NewRetentionService(store Store, years int) *RetentionService {
	if years <= 0 {
		years = defaultRetentionYears
	}
	return &RetentionService{store: store, years: years, now: time.Now}
}

// Cutoff is today (UTC) minus the retention window, computed on every call.
func (s *RetentionService) Cutoff() time.Time {
	return utils.TodayUTC(s.now).AddDate(-s.years, 0, 0)
}

// PurgeOlderThan deletes every record with record_date strictly before cutoff.
func (s *RetentionService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = utils.DateOf(cutoff)
	deleted, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Str("cutoff", utils.FormatDate(cutoff)).Msg("Service: retention sweep failed")
		recordRun(ctx, s.store, s.now, models.JobRetention, OutcomeStoreError, err, 0)
		return 0, fmt.Errorf("purge records before %s: %w", utils.FormatDate(cutoff), err)
	}
	log.Info().Str("cutoff", utils.FormatDate(cutoff)).Int64("deleted", deleted).Msg("Service: retention sweep finished")
	recordRun(ctx, s.store, s.now, models.JobRetention, OutcomePurged, nil, deleted)
	return deleted, nil
}

// PurgeExpired applies the configured window and returns the cutoff used.
func (s *RetentionService) PurgeExpired(ctx context.Context) (time.Time, int64, error) {
	cutoff := s.Cutoff()
	deleted, err := s.PurgeOlderThan(ctx, cutoff)
	return cutoff, deleted, err
}
