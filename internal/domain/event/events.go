package event

import (
	"time"
)

// Event names
const (
	NameInstallStarted        = "install.started"
	NameDownloadAttemptFailed = "download.attempt_failed"
	NameDownloadRestarted     = "download.restarted"
	NameIntegrityCheckFailed  = "integrity.failed"
	NameInstallCompleted      = "install.completed"
)

// DomainEvent is the interface for all installer events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// InstallStarted is raised when the installer begins transferring a version
type InstallStarted struct {
	BaseEvent
	Version      string
	URL          string
	ResumeOffset int64
}

// EventName returns the event name
func (e InstallStarted) EventName() string {
	return NameInstallStarted
}

// NewInstallStarted creates a new InstallStarted event
func NewInstallStarted(version, url string, resumeOffset int64) InstallStarted {
	return InstallStarted{
		BaseEvent:    BaseEvent{Timestamp: time.Now()},
		Version:      version,
		URL:          url,
		ResumeOffset: resumeOffset,
	}
}

// DownloadAttemptFailed is raised when one transfer attempt fails
type DownloadAttemptFailed struct {
	BaseEvent
	Version     string
	Attempt     int
	BytesOnDisk int64
	Error       string
	WillRetry   bool
}

// EventName returns the event name
func (e DownloadAttemptFailed) EventName() string {
	return NameDownloadAttemptFailed
}

// NewDownloadAttemptFailed creates a new DownloadAttemptFailed event
func NewDownloadAttemptFailed(version string, attempt int, bytesOnDisk int64, err error, willRetry bool) DownloadAttemptFailed {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DownloadAttemptFailed{
		BaseEvent:   BaseEvent{Timestamp: time.Now()},
		Version:     version,
		Attempt:     attempt,
		BytesOnDisk: bytesOnDisk,
		Error:       msg,
		WillRetry:   willRetry,
	}
}

// DownloadRestarted is raised when a partial file is discarded and the
// download starts again from byte zero
type DownloadRestarted struct {
	BaseEvent
	Version   string
	Reason    string
	Discarded int64
}

// EventName returns the event name
func (e DownloadRestarted) EventName() string {
	return NameDownloadRestarted
}

// NewDownloadRestarted creates a new DownloadRestarted event
func NewDownloadRestarted(version, reason string, discarded int64) DownloadRestarted {
	return DownloadRestarted{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Version:   version,
		Reason:    reason,
		Discarded: discarded,
	}
}

// IntegrityCheckFailed is raised when a completed file does not match the
// server-declared checksum
type IntegrityCheckFailed struct {
	BaseEvent
	Version  string
	Path     string
	Expected string
}

// EventName returns the event name
func (e IntegrityCheckFailed) EventName() string {
	return NameIntegrityCheckFailed
}

// NewIntegrityCheckFailed creates a new IntegrityCheckFailed event
func NewIntegrityCheckFailed(version, path, expected string) IntegrityCheckFailed {
	return IntegrityCheckFailed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Version:   version,
		Path:      path,
		Expected:  expected,
	}
}

// InstallCompleted is raised when a verified archive has been committed
type InstallCompleted struct {
	BaseEvent
	Version     string
	ArchivePath string
	Size        int64
	Attempts    int
	Duration    time.Duration
}

// EventName returns the event name
func (e InstallCompleted) EventName() string {
	return NameInstallCompleted
}

// NewInstallCompleted creates a new InstallCompleted event
func NewInstallCompleted(version, archivePath string, size int64, attempts int, duration time.Duration) InstallCompleted {
	return InstallCompleted{
		BaseEvent:   BaseEvent{Timestamp: time.Now()},
		Version:     version,
		ArchivePath: archivePath,
		Size:        size,
		Attempts:    attempts,
		Duration:    duration,
	}
}
