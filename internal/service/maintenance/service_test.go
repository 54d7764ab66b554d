package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/port"
)

// mockJobRepository implements port.DownloadJobRepository for testing
type mockJobRepository struct {
	mu                  sync.Mutex
	active              []*domain.DownloadJob
	releaseStaleCount   int
	cleanupFailedCount  int
	releaseStaleErr     error
	listErr             error
	releaseStaleCalled  int
	cleanupFailedCalled int
}

func (m *mockJobRepository) CreateJob(job *domain.DownloadJob) error { return nil }
func (m *mockJobRepository) GetJob(id int64) (*domain.DownloadJob, error) {
	return nil, nil
}
func (m *mockJobRepository) GetActiveJob(version string) (*domain.DownloadJob, error) {
	return nil, nil
}
func (m *mockJobRepository) ListActiveJobs() ([]*domain.DownloadJob, error) {
	return m.active, m.listErr
}
func (m *mockJobRepository) ClaimJob(id int64, ownerID string) error        { return nil }
func (m *mockJobRepository) UpdateJob(job *domain.DownloadJob) error        { return nil }
func (m *mockJobRepository) UpdateProgress(id, bytes int64, p string) error { return nil }
func (m *mockJobRepository) CompleteJob(id int64) error                     { return nil }
func (m *mockJobRepository) FailJob(id int64, msg string, retry bool) error {
	return nil
}
func (m *mockJobRepository) ReleaseStaleInProgressJobs(staleDuration time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseStaleCalled++
	return m.releaseStaleCount, m.releaseStaleErr
}
func (m *mockJobRepository) GetJournalStats() (*domain.JournalStats, error) {
	return &domain.JournalStats{}, nil
}
func (m *mockJobRepository) CleanupOldFailedJobs(olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupFailedCalled++
	return m.cleanupFailedCount, nil
}

func (m *mockJobRepository) calls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseStaleCalled, m.cleanupFailedCalled
}

// mockFileSystem implements port.FileSystem for testing
type mockFileSystem struct {
	mu          sync.Mutex
	cleanCount  int
	cleanKeep   map[string]bool
	cleanMaxAge time.Duration
}

func (m *mockFileSystem) InstallDir() string                     { return "/games" }
func (m *mockFileSystem) ArchivePath() string                    { return "/games/game.zip" }
func (m *mockFileSystem) PartPath(version string) string         { return "/games/game-" + version + ".zip.part" }
func (m *mockFileSystem) EnsureDir(string) error                 { return nil }
func (m *mockFileSystem) PartialSize(string) (int64, error)      { return 0, nil }
func (m *mockFileSystem) Commit(string, string) error            { return nil }
func (m *mockFileSystem) DeleteFile(string) error                { return nil }
func (m *mockFileSystem) FileExists(string) bool                 { return false }
func (m *mockFileSystem) GetFileSize(string) (int64, error)      { return 0, nil }
func (m *mockFileSystem) GetDiskUsage() (*port.DiskUsage, error) { return &port.DiskUsage{}, nil }
func (m *mockFileSystem) CleanOldPartFiles(olderThan time.Duration, keep map[string]bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanMaxAge = olderThan
	m.cleanKeep = keep
	return m.cleanCount, nil
}

func TestService_New(t *testing.T) {
	s := New(nil, &mockJobRepository{}, &mockFileSystem{}, zap.NewNop())
	if s.config.StaleJobTimeout != 30*time.Minute {
		t.Errorf("StaleJobTimeout = %v, want 30m", s.config.StaleJobTimeout)
	}

	s = New(&Config{Interval: time.Minute}, &mockJobRepository{}, &mockFileSystem{}, nil)
	if s.config.Interval != time.Minute {
		t.Errorf("Interval = %v, want 1m", s.config.Interval)
	}
	if s.config.PartFileMaxAge != DefaultConfig().PartFileMaxAge {
		t.Errorf("zero PartFileMaxAge should fall back to default, got %v", s.config.PartFileMaxAge)
	}
}

func TestService_Sweep(t *testing.T) {
	jobs := &mockJobRepository{
		active: []*domain.DownloadJob{
			{ID: 1, Version: "1.0.0", PartPath: "/games/game-1.0.0.zip.part"},
			{ID: 2, Version: "1.1.0"},
		},
		releaseStaleCount:  2,
		cleanupFailedCount: 1,
	}
	fs := &mockFileSystem{cleanCount: 3}
	s := New(&Config{PartFileMaxAge: time.Hour}, jobs, fs, zap.NewNop())

	result, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if result.ReleasedJobs != 2 || result.RemovedFailed != 1 || result.RemovedPartFiles != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
	if fs.cleanMaxAge != time.Hour {
		t.Errorf("CleanOldPartFiles max age = %v, want 1h", fs.cleanMaxAge)
	}
	if len(fs.cleanKeep) != 1 || !fs.cleanKeep["/games/game-1.0.0.zip.part"] {
		t.Errorf("keep set = %v", fs.cleanKeep)
	}
}

func TestService_SweepContinuesAfterError(t *testing.T) {
	boom := errors.New("database is locked")
	jobs := &mockJobRepository{releaseStaleErr: boom, listErr: boom, cleanupFailedCount: 4}
	s := New(nil, jobs, &mockFileSystem{}, zap.NewNop())

	result, err := s.Sweep()
	if !errors.Is(err, boom) {
		t.Fatalf("Sweep() error = %v, want %v", err, boom)
	}
	if result.RemovedFailed != 4 {
		t.Errorf("failed-job cleanup should still run, got %+v", result)
	}
}

func TestService_StartStop(t *testing.T) {
	jobs := &mockJobRepository{}
	s := New(&Config{Interval: 10 * time.Millisecond}, jobs, &mockFileSystem{}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for {
		if released, _ := jobs.calls(); released >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweep did not run repeatedly")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestService_DoubleStart(t *testing.T) {
	s := New(&Config{Interval: time.Hour}, &mockJobRepository{}, &mockFileSystem{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("service did not start")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail while running")
	}

	cancel()
	<-done
}
