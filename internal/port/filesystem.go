package port

import (
	"time"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// FileSystem defines the interface for install-directory operations
type FileSystem interface {
	// InstallDir returns the game installation directory
	InstallDir() string

	// ArchivePath returns the final path of the verified game archive
	ArchivePath() string

	// PartPath returns the partial-download path for a version
	PartPath(version string) string

	// EnsureDir ensures the parent directory of a file path exists
	EnsureDir(filePath string) error

	// PartialSize returns the size of a partial file, 0 if it does not exist
	PartialSize(partPath string) (int64, error)

	// Commit atomically moves a verified partial file to its final path
	Commit(partPath, finalPath string) error

	// DeleteFile removes a file, ignoring files that do not exist
	DeleteFile(path string) error

	// FileExists checks if a file exists
	FileExists(path string) bool

	// GetFileSize returns the size of a file
	GetFileSize(path string) (int64, error)

	// GetDiskUsage returns disk usage statistics for the install directory
	GetDiskUsage() (*DiskUsage, error)

	// CleanOldPartFiles removes partial files older than the specified
	// duration, skipping the paths in keep.
	// Returns the number of files deleted
	CleanOldPartFiles(olderThan time.Duration, keep map[string]bool) (int, error)
}

// TokenStore persists the session token between launcher runs
type TokenStore interface {
	// SaveToken stores the token, replacing any previous one
	SaveToken(token string) error

	// LoadToken returns the stored token or domain.ErrNotLoggedIn
	LoadToken() (string, error)

	// ClearToken removes the stored token; clearing an absent token is not an error
	ClearToken() error
}
