// backend/services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gewnthar/feargreed/backend/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const jobTimeout = 5 * time.Minute

// Scheduler runs daily ingestion and the monthly retention sweep.
type Scheduler struct {
	cron      *cron.Cron
	cfg       config.ScheduleConfig
	ingest    *IngestionService
	retention *RetentionService
}

// cronLogger routes robfig/cron's logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("Scheduler: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("Scheduler: " + msg)
}

func NewScheduler(cfg config.ScheduleConfig, ingest *IngestionService, retention *RetentionService) (*Scheduler, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{cron: c, cfg: cfg, ingest: ingest, retention: retention}

	if _, err := c.AddFunc(cfg.DailyCron, s.runDaily); err != nil {
		return nil, fmt.Errorf("invalid daily schedule %q: %w", cfg.DailyCron, err)
	}
	if _, err := c.AddFunc(cfg.CleanupCron, s.runCleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupCron, err)
	}
	return s, nil
}

// Start begins firing jobs. With backfill_on_start it also seeds an empty store in the background.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.BackfillOnStart {
		go func() {
			ctx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if res, ran := s.ingest.BackfillIfEmpty(ctx); ran {
				log.Info().Str("outcome", string(res.Outcome)).Int("inserted", res.Inserted).Msg("Scheduler: startup backfill finished")
			}
		}()
	}
	s.cron.Start()
	log.Info().Str("daily", s.cfg.DailyCron).Str("cleanup", s.cfg.CleanupCron).Msg("Scheduler: started")
}

// Stop prevents new runs and waits for running jobs, up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("Scheduler: stopped")
	case <-ctx.Done():
		log.Warn().Msg("Scheduler: stop timed out with jobs still running")
	}
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	res := s.ingest.IngestToday(ctx)
	log.Info().Str("outcome", string(res.Outcome)).Msg("Scheduler: daily ingestion finished")
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, _, err := s.retention.PurgeExpired(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler: retention sweep failed")
	}
}
