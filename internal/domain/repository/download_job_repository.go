package repository

import (
	"time"

	"github.com/remakesof/launcher/internal/domain"
)

// DownloadJobRepository defines the interface for the download journal
type DownloadJobRepository interface {
	// CreateJob creates a new download job
	// Returns domain.ErrAlreadyExists if an active job for this version already exists
	CreateJob(job *domain.DownloadJob) error

	// GetJob retrieves a job by ID
	// Returns nil if the job does not exist
	GetJob(id int64) (*domain.DownloadJob, error)

	// GetActiveJob retrieves the pending or in_progress job for a version
	// Returns nil if there is none
	GetActiveJob(version string) (*domain.DownloadJob, error)

	// ListActiveJobs returns all pending and in_progress jobs
	ListActiveJobs() ([]*domain.DownloadJob, error)

	// ClaimJob atomically moves a job to in_progress for ownerID.
	// Returns domain.ErrJobAlreadyClaimed if another owner holds it and
	// domain.ErrJobDeferred while the job's next_retry_at is in the future.
	ClaimJob(id int64, ownerID string) error

	// UpdateJob updates a job's state
	UpdateJob(job *domain.DownloadJob) error

	// UpdateProgress updates download progress (bytes_downloaded, part_path)
	// and renews the claim of an in_progress job
	UpdateProgress(id int64, bytesDownloaded int64, partPath string) error

	// CompleteJob removes a completed job
	CompleteJob(id int64) error

	// FailJob records a failed attempt and marks the job failed when no
	// retries remain
	FailJob(id int64, errMsg string, canRetry bool) error

	// ReleaseStaleInProgressJobs resets jobs stuck in in_progress state.
	// Used when a launcher process died mid-download.
	ReleaseStaleInProgressJobs(staleDuration time.Duration) (int, error)

	// GetJournalStats returns journal statistics
	GetJournalStats() (*domain.JournalStats, error)

	// CleanupOldFailedJobs removes failed jobs older than the specified duration
	CleanupOldFailedJobs(olderThan time.Duration) (int, error)
}
