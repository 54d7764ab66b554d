package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remakesof/launcher/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// Interval is how often a sweep runs while the service is started
	Interval time.Duration

	// StaleJobTimeout is when an in_progress journal entry is considered
	// abandoned by a launcher that died mid-download
	StaleJobTimeout time.Duration

	// FailedJobMaxAge is the maximum age of failed journal entries
	FailedJobMaxAge time.Duration

	// PartFileMaxAge is the maximum age of unreferenced partial files
	PartFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:        10 * time.Minute,
		StaleJobTimeout: 30 * time.Minute,
		FailedJobMaxAge: 7 * 24 * time.Hour,
		PartFileMaxAge:  7 * 24 * time.Hour,
	}
}

// SweepResult reports what one sweep changed
type SweepResult struct {
	ReleasedJobs     int
	RemovedFailed    int
	RemovedPartFiles int
}

// Service cleans up after interrupted or abandoned downloads
type Service struct {
	config *Config
	jobs   port.DownloadJobRepository
	fs     port.FileSystem
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, jobs port.DownloadJobRepository, fs port.FileSystem, logger *zap.Logger) *Service {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.StaleJobTimeout <= 0 {
		cfg.StaleJobTimeout = defaults.StaleJobTimeout
	}
	if cfg.FailedJobMaxAge <= 0 {
		cfg.FailedJobMaxAge = defaults.FailedJobMaxAge
	}
	if cfg.PartFileMaxAge <= 0 {
		cfg.PartFileMaxAge = defaults.PartFileMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config: cfg,
		jobs:   jobs,
		fs:     fs,
		logger: logger,
	}
}

// Sweep runs every maintenance step once. Each step runs even when an
// earlier one failed; the errors are joined.
func (s *Service) Sweep() (*SweepResult, error) {
	result := &SweepResult{}
	var errs []error

	released, err := s.jobs.ReleaseStaleInProgressJobs(s.config.StaleJobTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("release stale jobs: %w", err))
	} else if released > 0 {
		result.ReleasedJobs = released
		s.logger.Info("released stale download jobs", zap.Int("count", released))
	}

	cleared, err := s.jobs.CleanupOldFailedJobs(s.config.FailedJobMaxAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("cleanup failed jobs: %w", err))
	} else if cleared > 0 {
		result.RemovedFailed = cleared
		s.logger.Info("cleaned up old failed jobs", zap.Int("count", cleared))
	}

	removed, err := s.cleanupPartFiles()
	if err != nil {
		errs = append(errs, fmt.Errorf("cleanup partial files: %w", err))
	} else if removed > 0 {
		result.RemovedPartFiles = removed
		s.logger.Info("removed orphaned partial files", zap.Int("count", removed))
	}

	return result, errors.Join(errs...)
}

// cleanupPartFiles removes old partial files no active job will resume
func (s *Service) cleanupPartFiles() (int, error) {
	active, err := s.jobs.ListActiveJobs()
	if err != nil {
		return 0, err
	}

	keep := make(map[string]bool, len(active))
	for _, job := range active {
		if job.PartPath != "" {
			keep[job.PartPath] = true
		}
	}
	return s.fs.CleanOldPartFiles(s.config.PartFileMaxAge, keep)
}

// Start runs a sweep immediately and then on every interval until ctx is
// cancelled or Stop is called. It blocks.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started", zap.Duration("interval", s.config.Interval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	s.runSweep()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

func (s *Service) runSweep() {
	if _, err := s.Sweep(); err != nil {
		s.logger.Error("maintenance sweep failed", zap.Error(err))
	}
}
