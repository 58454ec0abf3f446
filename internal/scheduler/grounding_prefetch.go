package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/lectern/internal/settingsstore"
)

// PrefetchFunc performs one prefetch run, usually by enqueueing tasks.
type PrefetchFunc func(ctx context.Context) error

// GroundingPrefetchScheduler periodically uploads books that have not been
// grounded yet, so the first question about a new book does not wait for
// the upload.
type GroundingPrefetchScheduler struct {
	config   settingsstore.PrefetchConfig
	prefetch PrefetchFunc

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isPrefetching bool
	lastErr    error
	lastRunAt  *time.Time
	cancelFunc context.CancelFunc
}

// NewGroundingPrefetchScheduler creates a new scheduler instance
func NewGroundingPrefetchScheduler(cfg settingsstore.PrefetchConfig, prefetch PrefetchFunc) *GroundingPrefetchScheduler {
	return &GroundingPrefetchScheduler{
		config:   cfg,
		prefetch: prefetch,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if prefetch is enabled
func (s *GroundingPrefetchScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("[SCHEDULER] Grounding prefetch: disabled")
		return nil
	}

	if s.prefetch == nil {
		log.Printf("[SCHEDULER] Grounding prefetch: no task queue, skipping")
		return nil
	}

	if err := settingsstore.ValidateCronSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.run()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule prefetch job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.GetNextRunTime(s.config.Schedule)
	log.Printf("[SCHEDULER] Grounding prefetch: started with schedule '%s' (%s). Next run: %v",
		s.config.Schedule,
		settingsstore.GetCronDescription(s.config.Schedule),
		nextRun)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *GroundingPrefetchScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	entryID := s.entryID
	s.mu.Unlock()

	// The job takes the lock when it finishes, so wait without holding it.
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(entryID)

	if cancel != nil {
		cancel()
	}
	log.Printf("[SCHEDULER] Grounding prefetch: stopped")
}

// RunNow triggers an immediate prefetch and waits for it
func (s *GroundingPrefetchScheduler) RunNow() error {
	if s.prefetch == nil {
		return fmt.Errorf("prefetch not configured")
	}
	return s.run()
}

// IsRunning returns whether the scheduler is active
func (s *GroundingPrefetchScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastRun returns when the last prefetch finished and its error, if any.
func (s *GroundingPrefetchScheduler) LastRun() (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRunAt, s.lastErr
}

// GetNextRunTime returns when the next prefetch will occur
func (s *GroundingPrefetchScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *GroundingPrefetchScheduler) run() error {
	s.mu.Lock()
	if s.isPrefetching {
		s.mu.Unlock()
		log.Printf("[SCHEDULER] Grounding prefetch: skipped (already running)")
		return nil
	}
	s.isPrefetching = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	err := s.prefetch(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] Grounding prefetch failed: %v", err)
	} else {
		log.Printf("[SCHEDULER] Grounding prefetch queued")
	}

	now := time.Now()
	s.mu.Lock()
	s.isPrefetching = false
	s.lastErr = err
	s.lastRunAt = &now
	s.mu.Unlock()
	return err
}
