package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/domain/event"
	"github.com/remakesof/launcher/internal/integrity"
	"github.com/remakesof/launcher/internal/port"
	"github.com/remakesof/launcher/internal/transfer"
	"github.com/remakesof/launcher/internal/util/ratelimiter"
)

// Transferer streams a URL into a file. *transfer.Engine implements it.
type Transferer interface {
	Transfer(ctx context.Context, url, dest string, resumeOffset int64, sink transfer.Sink) (*transfer.Result, error)
}

// Config contains installer configuration
type Config struct {
	// MaxAttempts bounds transfer attempts within one install call
	MaxAttempts int

	// ProgressInterval is how often progress is written to the journal
	ProgressInterval time.Duration

	// Backoff returns the wait before the given retry attempt
	Backoff func(attempt int) time.Duration

	// StaleClaimTimeout is how long a claim may go without a progress write
	// before another launcher may take the job over
	StaleClaimTimeout time.Duration
}

// DefaultConfig returns default installer configuration
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       5,
		ProgressInterval:  2 * time.Second,
		Backoff:           domain.RetryBackoff,
		StaleClaimTimeout: 2 * time.Minute,
	}
}

// Installer fetches, verifies and commits game archives
type Installer struct {
	config  *Config
	api     port.GameAPI
	engine  Transferer
	store   port.Store
	fs      port.FileSystem
	space   port.SpaceManager
	events  event.EventDispatcher
	logger  *zap.Logger
	ownerID string
}

// New creates a new Installer. space and events may be nil.
func New(
	cfg *Config,
	api port.GameAPI,
	engine Transferer,
	store port.Store,
	fs port.FileSystem,
	space port.SpaceManager,
	events event.EventDispatcher,
	logger *zap.Logger,
) *Installer {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	if cfg.Backoff == nil {
		cfg.Backoff = defaults.Backoff
	}
	if cfg.StaleClaimTimeout <= 0 {
		cfg.StaleClaimTimeout = defaults.StaleClaimTimeout
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Installer{
		config:  cfg,
		api:     api,
		engine:  engine,
		store:   store,
		fs:      fs,
		space:   space,
		events:  events,
		logger:  logger,
		ownerID: uuid.NewString(),
	}
}

// OwnerID identifies this launcher process in the download journal
func (in *Installer) OwnerID() string {
	return in.ownerID
}

// CheckForUpdate compares the newest published build with the installed one
func (in *Installer) CheckForUpdate(ctx context.Context) (*domain.UpdateStatus, error) {
	latest, err := in.api.LatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest version: %w", err)
	}
	if err := latest.Validate(); err != nil {
		return nil, err
	}

	installed, err := in.store.GetLatestInstallation()
	if err != nil {
		return nil, fmt.Errorf("failed to load installation: %w", err)
	}

	status := &domain.UpdateStatus{Latest: latest, Installed: installed}
	switch {
	case installed == nil:
		status.UpdateAvailable = true
	case installed.Version != latest.Version:
		status.UpdateAvailable = true
	case !integrity.Equal(installed.Checksum, latest.Checksum):
		status.UpdateAvailable = true
	case !in.fs.FileExists(installed.ArchivePath):
		status.UpdateAvailable = true
	}
	return status, nil
}

// Install downloads and verifies the newest published build
func (in *Installer) Install(ctx context.Context, sink transfer.Sink) (*domain.Installation, error) {
	latest, err := in.api.LatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest version: %w", err)
	}
	return in.InstallVersion(ctx, latest, sink)
}

// InstallVersion downloads v into a partial file, resuming whatever an
// earlier run left behind, verifies it against v.Checksum and moves it to
// the archive path. A file that fails verification is never committed.
func (in *Installer) InstallVersion(ctx context.Context, v *domain.GameVersion, sink transfer.Sink) (*domain.Installation, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = transfer.NopSink{}
	}
	started := time.Now()

	url, err := in.api.DownloadURL(v)
	if err != nil {
		return nil, err
	}
	part := in.fs.PartPath(v.Version)
	if err := in.fs.EnsureDir(part); err != nil {
		return nil, err
	}

	in.releaseStaleClaims()

	job, err := in.prepareJob(v, url, part)
	if err != nil {
		return nil, err
	}

	offset, err := in.resumeOffset(v, part)
	if err != nil {
		return nil, err
	}

	if err := in.checkSpace(v, offset); err != nil {
		return nil, err
	}

	if err := in.waitForRetry(ctx, job); err != nil {
		return nil, err
	}

	if err := in.store.ClaimJob(job.ID, in.ownerID); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			return nil, fmt.Errorf("version %s is being installed by another launcher: %w", v.Version, err)
		}
		return nil, fmt.Errorf("failed to claim download job: %w", err)
	}
	job.Claim(in.ownerID)

	in.events.Dispatch(event.NewInstallStarted(v.Version, url, offset))
	in.logger.Info("installing game",
		zap.String("version", v.Version),
		zap.String("size", humanize.Bytes(uint64(v.FileSize))),
		zap.String("resume_from", humanize.Bytes(uint64(offset))),
	)

	attempts, err := in.download(ctx, job, v, url, part, offset, sink)
	if err != nil {
		return nil, err
	}

	ok, err := in.verify(job, v, part)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A corrupt file is not resumable: start over once from zero.
		if err := in.discardPartial(v.Version, part, "checksum mismatch"); err != nil {
			in.failJob(job, err, false)
			return nil, err
		}
		n, err := in.download(ctx, job, v, url, part, 0, sink)
		attempts += n
		if err != nil {
			return nil, err
		}
		if ok, err = in.verify(job, v, part); err != nil {
			return nil, err
		}
		if !ok {
			if delErr := in.fs.DeleteFile(part); delErr != nil {
				in.logger.Warn("failed to delete corrupt partial file", zap.String("path", part), zap.Error(delErr))
			}
			err := domain.NewPermanentError(domain.ErrChecksumMismatch,
				fmt.Sprintf("version %s failed verification twice", v.Version))
			in.failJob(job, err, false)
			return nil, err
		}
	}

	return in.commit(job, v, part, attempts, started)
}

// releaseStaleClaims hands back jobs whose owner stopped writing progress,
// which is what a killed launcher leaves behind
func (in *Installer) releaseStaleClaims() {
	n, err := in.store.ReleaseStaleInProgressJobs(in.config.StaleClaimTimeout)
	if err != nil {
		in.logger.Warn("failed to release stale download claims", zap.Error(err))
		return
	}
	if n > 0 {
		in.logger.Info("released stale download claims",
			zap.Int("count", n),
			zap.Duration("timeout", in.config.StaleClaimTimeout),
		)
	}
}

// waitForRetry blocks until the journal's backoff for job has passed
func (in *Installer) waitForRetry(ctx context.Context, job *domain.DownloadJob) error {
	wait := job.RetryWait(time.Now())
	if wait <= 0 {
		return nil
	}

	in.logger.Info("waiting before retrying download",
		zap.String("version", job.Version),
		zap.Int("retry", job.RetryCount),
		zap.Duration("wait", wait),
	)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// prepareJob returns the active journal entry for v, creating it when
// needed. An entry recorded for a different build of the same version is
// reset together with its partial file.
func (in *Installer) prepareJob(v *domain.GameVersion, url, part string) (*domain.DownloadJob, error) {
	job, err := in.store.GetActiveJob(v.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load download job: %w", err)
	}

	if job == nil {
		job = &domain.DownloadJob{
			Version:    v.Version,
			URL:        url,
			Checksum:   strings.ToLower(v.Checksum),
			Size:       v.FileSize,
			PartPath:   part,
			MaxRetries: in.config.MaxAttempts,
		}
		if err := in.store.CreateJob(job); err != nil {
			return nil, fmt.Errorf("failed to create download job: %w", err)
		}
		return job, nil
	}

	if integrity.Equal(job.Checksum, v.Checksum) && job.Size == v.FileSize && job.PartPath == part {
		job.URL = url
		return job, nil
	}

	stale := job.PartPath
	if stale == "" {
		stale = part
	}
	if err := in.discardPartial(v.Version, stale, "published build changed"); err != nil {
		return nil, err
	}
	if stale != part {
		if err := in.fs.DeleteFile(part); err != nil {
			return nil, err
		}
	}

	job.URL = url
	job.Checksum = strings.ToLower(v.Checksum)
	job.Size = v.FileSize
	job.PartPath = part
	job.ResetForRetry()
	if err := in.store.UpdateJob(job); err != nil {
		return nil, fmt.Errorf("failed to reset download job: %w", err)
	}
	return job, nil
}

// resumeOffset returns how many bytes of the partial file can be kept
func (in *Installer) resumeOffset(v *domain.GameVersion, part string) (int64, error) {
	size, err := in.fs.PartialSize(part)
	if err != nil {
		return 0, err
	}
	if v.FileSize > 0 && size > v.FileSize {
		if err := in.discardPartial(v.Version, part, "partial file larger than release"); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return size, nil
}

func (in *Installer) checkSpace(v *domain.GameVersion, offset int64) error {
	if in.space == nil || v.FileSize <= 0 {
		return nil
	}

	result, err := in.space.CheckSpace(v.FileSize - offset)
	if err != nil {
		in.logger.Warn("failed to check free space, continuing", zap.Error(err))
		return nil
	}
	if !result.HasSpace {
		return domain.NewPermanentError(domain.ErrInsufficientSpace,
			fmt.Sprintf("need %s, %s free", humanize.Bytes(uint64(result.RequiredBytes)), humanize.Bytes(uint64(result.FreeBytes))))
	}
	return nil
}

// download runs the transfer, resuming after temporary failures until it
// succeeds or MaxAttempts is reached. It returns the number of attempts made.
func (in *Installer) download(ctx context.Context, job *domain.DownloadJob, v *domain.GameVersion, url, part string, offset int64, sink transfer.Sink) (int, error) {
	persist := in.progressPersister(job, part)
	progress := transfer.MultiSink(sink, persist)

	for attempt := 1; ; attempt++ {
		res, err := in.engine.Transfer(ctx, url, part, offset, progress)
		if res != nil && res.Restarted {
			in.events.Dispatch(event.NewDownloadRestarted(v.Version, "server ignored range request", offset))
		}
		if err == nil {
			in.saveProgress(job, res.Size, part)
			return attempt, nil
		}

		onDisk, sizeErr := in.fs.PartialSize(part)
		if sizeErr != nil && res != nil {
			onDisk = res.Size
		}
		in.saveProgress(job, onDisk, part)

		if errors.Is(err, domain.ErrCanceled) {
			in.releaseJob(job)
			return attempt, err
		}

		temporary := isTemporary(err)
		willRetry := temporary && attempt < in.config.MaxAttempts
		in.events.Dispatch(event.NewDownloadAttemptFailed(v.Version, attempt, onDisk, err, willRetry))

		if !willRetry {
			if errors.Is(err, transfer.ErrRangeMismatch) {
				// Resuming from this offset would be refused again.
				if derr := in.discardPartial(v.Version, part, "server returned a different range"); derr != nil {
					in.logger.Warn("failed to discard partial file", zap.String("path", part), zap.Error(derr))
				} else {
					in.saveProgress(job, 0, part)
				}
			}
			in.failJob(job, err, temporary)
			if temporary {
				return attempt, domain.NewRetryableError(err, in.config.Backoff(attempt))
			}
			return attempt, domain.NewPermanentError(err, "download failed")
		}

		wait := in.config.Backoff(attempt)
		in.logger.Warn("download interrupted, resuming",
			zap.String("version", v.Version),
			zap.Int("attempt", attempt),
			zap.String("on_disk", humanize.Bytes(uint64(onDisk))),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				in.releaseJob(job)
				return attempt, fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
			case <-timer.C:
			}
		}
		offset = onDisk
	}
}

// progressPersister writes progress to the journal at most once per
// ProgressInterval so a crash loses little resume information
func (in *Installer) progressPersister(job *domain.DownloadJob, part string) transfer.Sink {
	limiter := ratelimiter.New(in.config.ProgressInterval)
	return transfer.SinkFunc(func(s transfer.Sample) {
		if allowed, _ := limiter.Allow(); !allowed {
			return
		}
		in.saveProgress(job, s.Transferred, part)
	})
}

func (in *Installer) saveProgress(job *domain.DownloadJob, bytes int64, part string) {
	job.UpdateProgress(bytes, part)
	if err := in.store.UpdateProgress(job.ID, bytes, part); err != nil {
		in.logger.Warn("failed to persist download progress", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

func (in *Installer) verify(job *domain.DownloadJob, v *domain.GameVersion, part string) (bool, error) {
	ok, err := integrity.Verify(part, v.Checksum)
	if err != nil {
		in.failJob(job, err, false)
		return false, fmt.Errorf("failed to verify download: %w", err)
	}
	if !ok {
		in.events.Dispatch(event.NewIntegrityCheckFailed(v.Version, part, v.Checksum))
	}
	return ok, nil
}

func (in *Installer) discardPartial(version, part, reason string) error {
	size, _ := in.fs.PartialSize(part)
	if err := in.fs.DeleteFile(part); err != nil {
		return err
	}
	if size > 0 {
		in.events.Dispatch(event.NewDownloadRestarted(version, reason, size))
	}
	return nil
}

func (in *Installer) commit(job *domain.DownloadJob, v *domain.GameVersion, part string, attempts int, started time.Time) (*domain.Installation, error) {
	size, err := in.fs.GetFileSize(part)
	if err != nil {
		in.failJob(job, err, true)
		return nil, fmt.Errorf("%w: %w", domain.ErrFilesystem, err)
	}

	archive := in.fs.ArchivePath()
	if err := in.fs.Commit(part, archive); err != nil {
		in.failJob(job, err, true)
		return nil, err
	}

	inst := &domain.Installation{
		Version:     v.Version,
		ArchivePath: archive,
		Checksum:    strings.ToLower(v.Checksum),
		Size:        size,
		InstalledAt: time.Now(),
	}
	if err := in.store.SaveInstallation(inst); err != nil {
		return nil, fmt.Errorf("failed to record installation: %w", err)
	}
	if err := in.store.CompleteJob(job.ID); err != nil {
		in.logger.Warn("failed to complete download job", zap.Int64("job_id", job.ID), zap.Error(err))
	}

	in.events.Dispatch(event.NewInstallCompleted(v.Version, archive, size, attempts, time.Since(started)))
	return inst, nil
}

func (in *Installer) failJob(job *domain.DownloadJob, err error, canRetry bool) {
	if ferr := in.store.FailJob(job.ID, err.Error(), canRetry); ferr != nil {
		in.logger.Warn("failed to record download failure", zap.Int64("job_id", job.ID), zap.Error(ferr))
	}
}

func (in *Installer) releaseJob(job *domain.DownloadJob) {
	job.Release()
	if err := in.store.UpdateJob(job); err != nil {
		in.logger.Warn("failed to release download job", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}
