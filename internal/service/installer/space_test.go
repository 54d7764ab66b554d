package installer

import (
	"errors"
	"testing"
	"time"

	"github.com/remakesof/launcher/internal/port"
)

// diskUsageFS implements port.FileSystem, reporting fixed disk usage
type diskUsageFS struct {
	usage *port.DiskUsage
	err   error
}

func (m *diskUsageFS) InstallDir() string                     { return "/games" }
func (m *diskUsageFS) ArchivePath() string                    { return "/games/game.zip" }
func (m *diskUsageFS) PartPath(version string) string         { return "/games/game.zip.part" }
func (m *diskUsageFS) EnsureDir(string) error                 { return nil }
func (m *diskUsageFS) PartialSize(string) (int64, error)      { return 0, nil }
func (m *diskUsageFS) Commit(string, string) error            { return nil }
func (m *diskUsageFS) DeleteFile(string) error                { return nil }
func (m *diskUsageFS) FileExists(string) bool                 { return false }
func (m *diskUsageFS) GetFileSize(string) (int64, error)      { return 0, nil }
func (m *diskUsageFS) GetDiskUsage() (*port.DiskUsage, error) { return m.usage, m.err }
func (m *diskUsageFS) CleanOldPartFiles(time.Duration, map[string]bool) (int, error) {
	return 0, nil
}

func TestSpaceManager_CheckSpace(t *testing.T) {
	const gb = 1 << 30
	usage := &port.DiskUsage{Total: 100 * gb, Used: 70 * gb, Free: 30 * gb, UsedPct: 70}

	tests := []struct {
		name       string
		reserve    int64
		maxPct     float64
		additional int64
		want       bool
	}{
		{"fits", 1 * gb, 0, 10 * gb, true},
		{"eats into reserve", 5 * gb, 0, 26 * gb, false},
		{"exceeds free space", 0, 0, 31 * gb, false},
		{"within usage ceiling", 0, 95, 20 * gb, true},
		{"crosses usage ceiling", 0, 85, 20 * gb, false},
		{"negative treated as zero", 0, 0, -5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSpaceManager(&diskUsageFS{usage: usage}, tt.reserve, tt.maxPct)
			result, err := sm.CheckSpace(tt.additional)
			if err != nil {
				t.Fatalf("CheckSpace() error = %v", err)
			}
			if result.HasSpace != tt.want {
				t.Errorf("HasSpace = %v, want %v (%+v)", result.HasSpace, tt.want, result)
			}
			if result.FreeBytes != 30*gb {
				t.Errorf("FreeBytes = %d", result.FreeBytes)
			}
		})
	}
}

func TestSpaceManager_DiskError(t *testing.T) {
	boom := errors.New("statfs failed")
	sm := NewSpaceManager(&diskUsageFS{err: boom}, 0, 0)
	if _, err := sm.CheckSpace(1); !errors.Is(err, boom) {
		t.Errorf("CheckSpace() error = %v, want %v", err, boom)
	}
}
