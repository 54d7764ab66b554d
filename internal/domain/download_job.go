package domain

import "time"

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusFailed     = "failed"
)

// Default retry backoffs between attempts of the same install
var defaultRetryBackoffs = []time.Duration{
	2 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// DownloadJob is the launcher's journal entry for one game archive download.
// It outlives a single transfer so that a restarted launcher can resume the
// partial file it left behind.
type DownloadJob struct {
	ID       int64
	Version  string
	URL      string
	Checksum string
	Size     int64

	// State
	Status  string
	OwnerID string

	// Resume support
	PartPath        string
	BytesDownloaded int64

	// Retry handling
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
	LastError   string

	// Timestamps
	CreatedAt time.Time
	ClaimedAt *time.Time
	UpdatedAt time.Time
}

// CanRetry returns true if the job can be retried
func (j *DownloadJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// RetryWait returns how long until the job may be claimed again, or 0 when
// it is not backing off
func (j *DownloadJob) RetryWait(now time.Time) time.Duration {
	if j.NextRetryAt == nil || !j.NextRetryAt.After(now) {
		return 0
	}
	return j.NextRetryAt.Sub(now)
}

// MarkFailed records a failed attempt. If retries are available the job
// goes back to pending with a backoff, otherwise it is failed for good.
func (j *DownloadJob) MarkFailed(err string) {
	j.RetryCount++
	j.LastError = err
	j.OwnerID = ""
	j.ClaimedAt = nil

	if j.CanRetry() {
		j.Status = JobStatusPending
		nextRetry := time.Now().Add(RetryBackoff(j.RetryCount))
		j.NextRetryAt = &nextRetry
	} else {
		j.Status = JobStatusFailed
		j.NextRetryAt = nil
	}
}

// Fail records an attempt that retrying cannot fix
func (j *DownloadJob) Fail(err string) {
	j.RetryCount++
	j.LastError = err
	j.OwnerID = ""
	j.ClaimedAt = nil
	j.NextRetryAt = nil
	j.Status = JobStatusFailed
}

// Claim marks the job as owned by a launcher process
func (j *DownloadJob) Claim(ownerID string) {
	j.Status = JobStatusInProgress
	j.OwnerID = ownerID
	now := time.Now()
	j.ClaimedAt = &now
	j.NextRetryAt = nil
}

// Release gives up ownership without recording a failure, leaving the job
// pending so the next launcher run can resume it
func (j *DownloadJob) Release() {
	j.Status = JobStatusPending
	j.OwnerID = ""
	j.ClaimedAt = nil
}

// UpdateProgress updates the download progress
func (j *DownloadJob) UpdateProgress(bytesDownloaded int64, partPath string) {
	j.BytesDownloaded = bytesDownloaded
	if partPath != "" {
		j.PartPath = partPath
	}
}

// ResetForRetry resets the job for a fresh attempt from byte zero
func (j *DownloadJob) ResetForRetry() {
	j.Status = JobStatusPending
	j.OwnerID = ""
	j.ClaimedAt = nil
	j.NextRetryAt = nil
	j.BytesDownloaded = 0
}

// RetryBackoff returns the wait before the given attempt number (1-based)
func RetryBackoff(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(defaultRetryBackoffs) {
		idx = len(defaultRetryBackoffs) - 1
	}
	return defaultRetryBackoffs[idx]
}

// JournalStats represents download journal statistics
type JournalStats struct {
	PendingCount     int
	InProgressCount  int
	FailedCount      int
	TotalBytesQueued int64
}
