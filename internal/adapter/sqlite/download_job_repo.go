package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/remakesof/launcher/internal/domain"
)

const jobColumns = `id, version, url, checksum, size, status, owner_id, part_path,
	bytes_downloaded, retry_count, max_retries, next_retry_at, last_error,
	created_at, claimed_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateJob creates a new download job
func (s *Store) CreateJob(job *domain.DownloadJob) error {
	query := `
		INSERT INTO download_jobs (
			version, url, checksum, size, status, part_path, max_retries,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, 'pending', ?, ?, ?, ?)
	`

	ts := now()
	result, err := s.db.Exec(query,
		job.Version, job.URL, job.Checksum, job.Size, nullString(job.PartPath), job.MaxRetries, ts, ts)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	job.ID = id
	job.Status = domain.JobStatusPending
	job.CreatedAt = ts
	job.UpdatedAt = ts
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id int64) (*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = ?`
	return scanJob(s.db.QueryRow(query, id))
}

// GetActiveJob retrieves the pending or in_progress job for a version
func (s *Store) GetActiveJob(version string) (*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM download_jobs
		WHERE version = ? AND status IN ('pending', 'in_progress')`
	return scanJob(s.db.QueryRow(query, version))
}

// ListActiveJobs returns all pending and in_progress jobs
func (s *Store) ListActiveJobs() ([]*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM download_jobs
		WHERE status IN ('pending', 'in_progress')
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimJob atomically moves a job to in_progress for ownerID. A job already
// held by the same owner can be claimed again. A pending job still inside
// its retry backoff is refused with domain.ErrJobDeferred.
func (s *Store) ClaimJob(id int64, ownerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRow(`SELECT `+jobColumns+` FROM download_jobs WHERE id = ?`, id))
	if err != nil {
		return err
	}
	if job == nil || job.Status == domain.JobStatusFailed {
		return domain.ErrJobNotFound
	}

	ts := now()
	switch job.Status {
	case domain.JobStatusInProgress:
		if job.OwnerID != ownerID {
			return domain.ErrJobAlreadyClaimed
		}
	case domain.JobStatusPending:
		if job.RetryWait(ts) > 0 {
			return domain.ErrJobDeferred
		}
	}

	result, err := tx.Exec(`
		UPDATE download_jobs
		SET status = 'in_progress', owner_id = ?, claimed_at = ?,
			next_retry_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?
	`, ownerID, ts, ts, id, job.Status)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrJobAlreadyClaimed
	}

	return tx.Commit()
}

// UpdateJob updates a job's state
func (s *Store) UpdateJob(job *domain.DownloadJob) error {
	query := `
		UPDATE download_jobs
		SET url = ?, checksum = ?, size = ?, status = ?, owner_id = ?,
			part_path = ?, bytes_downloaded = ?, retry_count = ?, max_retries = ?,
			next_retry_at = ?, last_error = ?, claimed_at = ?, updated_at = ?
		WHERE id = ?
	`

	ts := now()
	result, err := s.db.Exec(query,
		job.URL, job.Checksum, job.Size, job.Status, nullString(job.OwnerID),
		nullString(job.PartPath), job.BytesDownloaded, job.RetryCount, job.MaxRetries,
		nullTime(job.NextRetryAt), nullString(job.LastError), nullTime(job.ClaimedAt), ts,
		job.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrJobNotFound
	}
	job.UpdatedAt = ts
	return nil
}

// UpdateProgress updates download progress. For a claimed job it also
// renews claimed_at, so an owner that keeps writing is never released as
// stale.
func (s *Store) UpdateProgress(id int64, bytesDownloaded int64, partPath string) error {
	query := `
		UPDATE download_jobs
		SET bytes_downloaded = ?, part_path = COALESCE(?, part_path),
			claimed_at = CASE WHEN status = 'in_progress' THEN ? ELSE claimed_at END,
			updated_at = ?
		WHERE id = ?
	`

	ts := now()
	_, err := s.db.Exec(query, bytesDownloaded, nullString(partPath), ts, ts, id)
	return err
}

// CompleteJob removes a completed job
func (s *Store) CompleteJob(id int64) error {
	_, err := s.db.Exec("DELETE FROM download_jobs WHERE id = ?", id)
	return err
}

// FailJob records a failed attempt. With canRetry the job returns to
// pending with a backoff until its max_retries budget is spent; otherwise,
// or once the budget is gone, it is marked failed.
func (s *Store) FailJob(id int64, errMsg string, canRetry bool) error {
	job, err := s.GetJob(id)
	if err != nil {
		return err
	}
	if job == nil {
		// Job was already completed, nothing to do
		return nil
	}

	if canRetry {
		job.MarkFailed(errMsg)
	} else {
		job.Fail(errMsg)
	}
	return s.UpdateJob(job)
}

// ReleaseStaleInProgressJobs resets jobs stuck in in_progress state
func (s *Store) ReleaseStaleInProgressJobs(staleDuration time.Duration) (int, error) {
	ts := now()
	cutoff := ts.Add(-staleDuration)

	query := `
		UPDATE download_jobs
		SET status = 'pending', owner_id = NULL, claimed_at = NULL,
			updated_at = ?
		WHERE status = 'in_progress' AND claimed_at < ?
	`

	result, err := s.db.Exec(query, ts, cutoff)
	if err != nil {
		return 0, err
	}

	count, err := result.RowsAffected()
	return int(count), err
}

// GetJournalStats returns journal statistics
func (s *Store) GetJournalStats() (*domain.JournalStats, error) {
	stats := &domain.JournalStats{}

	query := `
		SELECT status, COUNT(*), COALESCE(SUM(size - bytes_downloaded), 0)
		FROM download_jobs
		GROUP BY status
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		var remaining int64

		if err := rows.Scan(&status, &count, &remaining); err != nil {
			return nil, err
		}

		switch status {
		case domain.JobStatusPending:
			stats.PendingCount = count
			stats.TotalBytesQueued += remaining
		case domain.JobStatusInProgress:
			stats.InProgressCount = count
			stats.TotalBytesQueued += remaining
		case domain.JobStatusFailed:
			stats.FailedCount = count
		}
	}

	return stats, rows.Err()
}

// CleanupOldFailedJobs removes failed jobs older than the specified duration
func (s *Store) CleanupOldFailedJobs(olderThan time.Duration) (int, error) {
	cutoff := now().Add(-olderThan)

	result, err := s.db.Exec(
		"DELETE FROM download_jobs WHERE status = 'failed' AND updated_at < ?",
		cutoff)
	if err != nil {
		return 0, err
	}

	count, err := result.RowsAffected()
	return int(count), err
}

// scanJob scans a single job row. A missing row yields nil, nil.
func scanJob(row rowScanner) (*domain.DownloadJob, error) {
	job := &domain.DownloadJob{}
	var ownerID, partPath, lastError sql.NullString
	var nextRetryAt, claimedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.Version, &job.URL, &job.Checksum, &job.Size,
		&job.Status, &ownerID, &partPath, &job.BytesDownloaded,
		&job.RetryCount, &job.MaxRetries, &nextRetryAt, &lastError,
		&job.CreatedAt, &claimedAt, &job.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.OwnerID = ownerID.String
	job.PartPath = partPath.String
	job.LastError = lastError.String
	if nextRetryAt.Valid {
		job.NextRetryAt = &nextRetryAt.Time
	}
	if claimedAt.Valid {
		job.ClaimedAt = &claimedAt.Time
	}

	return job, nil
}
