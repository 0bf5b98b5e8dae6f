package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
)

// RunFunc executes one full pipeline pass
type RunFunc func(ctx context.Context) error

// Service triggers recurring pipeline runs on a cron schedule. Overlap
// protection skips a tick while the previous run is still going; the
// browser session cannot serve two runs at once.
type Service struct {
	config *common.SchedulerConfig
	logger arbor.ILogger
	run    RunFunc

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewSchedulerService creates the scheduler around a pipeline run function
func NewSchedulerService(cfg *common.Config, run RunFunc, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		config: &cfg.Scheduler,
		logger: logger,
		run:    run,
		cron:   cron.New(),
	}
}

// Start registers the schedule and begins ticking
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}
	if s.config.Schedule == "" {
		return fmt.Errorf("scheduler is enabled but no schedule is configured")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.tick); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Msg("Scheduler started")
	return nil
}

// Stop halts the ticker; an in-flight run finishes on its own
func (s *Service) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Service) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous pipeline run still in progress, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().Msg("Scheduled pipeline run starting")
	if err := s.run(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled pipeline run failed")
		return
	}
	s.logger.Info().Msg("Scheduled pipeline run finished")
}
