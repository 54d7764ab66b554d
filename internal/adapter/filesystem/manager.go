package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/port"
)

const (
	// ArchiveName is the file name of the verified game archive
	ArchiveName = "game.zip"
	// PartExt marks files that are still being downloaded
	PartExt = ".part"
)

// Manager handles install-directory operations
type Manager struct {
	installDir string
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager rooted at installDir
func NewManager(installDir string) (*Manager, error) {
	if installDir == "" {
		return nil, fmt.Errorf("%w: install dir is empty", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(installDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve install dir: %w", err)
	}

	// Ensure install directory exists
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create install dir: %w", domain.ErrFilesystem, err)
	}

	return &Manager{installDir: abs}, nil
}

// InstallDir returns the game installation directory
func (m *Manager) InstallDir() string {
	return m.installDir
}

// ArchivePath returns the final path of the verified game archive
func (m *Manager) ArchivePath() string {
	return filepath.Join(m.installDir, ArchiveName)
}

// PartPath returns the partial-download path for a version
func (m *Manager) PartPath(version string) string {
	return filepath.Join(m.installDir, "game-"+sanitizeVersion(version)+".zip"+PartExt)
}

func sanitizeVersion(version string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, version)
}

// EnsureDir ensures the directory for a file path exists
func (m *Manager) EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create dir: %w", domain.ErrFilesystem, err)
	}
	return nil
}

// PartialSize returns the size of a partial file, 0 if it does not exist
func (m *Manager) PartialSize(partPath string) (int64, error) {
	info, err := os.Stat(partPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrFilesystem, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", domain.ErrFilesystem, partPath)
	}
	return info.Size(), nil
}

// Commit moves a verified partial file to its final path, replacing any
// previous archive
func (m *Manager) Commit(partPath, finalPath string) error {
	if err := m.EnsureDir(finalPath); err != nil {
		return err
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		return fmt.Errorf("%w: failed to rename partial file: %w", domain.ErrFilesystem, err)
	}
	return nil
}

// DeleteFile removes a file
func (m *Manager) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to delete file: %w", domain.ErrFilesystem, err)
	}
	return nil
}

// FileExists checks if a file exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetFileSize returns the size of a file
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CleanOldPartFiles removes partial files older than the specified duration,
// skipping the paths in keep
func (m *Manager) CleanOldPartFiles(olderThan time.Duration, keep map[string]bool) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.installDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != PartExt || keep[path] {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}
