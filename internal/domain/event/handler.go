package event

import (
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case InstallStarted:
		h.logger.Info("install started",
			zap.String("version", e.Version),
			zap.String("url", e.URL),
			zap.Int64("resume_offset", e.ResumeOffset),
		)
	case DownloadAttemptFailed:
		h.logger.Warn("download attempt failed",
			zap.String("version", e.Version),
			zap.Int("attempt", e.Attempt),
			zap.String("on_disk", humanize.Bytes(uint64(e.BytesOnDisk))),
			zap.String("error", e.Error),
			zap.Bool("will_retry", e.WillRetry),
		)
	case DownloadRestarted:
		h.logger.Warn("download restarted from zero",
			zap.String("version", e.Version),
			zap.String("reason", e.Reason),
			zap.Int64("discarded_bytes", e.Discarded),
		)
	case IntegrityCheckFailed:
		h.logger.Error("integrity check failed",
			zap.String("version", e.Version),
			zap.String("path", e.Path),
			zap.String("expected", e.Expected),
		)
	case InstallCompleted:
		h.logger.Info("install completed",
			zap.String("version", e.Version),
			zap.String("archive", e.ArchivePath),
			zap.String("size", humanize.Bytes(uint64(e.Size))),
			zap.Int("attempts", e.Attempts),
			zap.Duration("duration", e.Duration),
		)
	default:
		h.logger.Debug("installer event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{"*"} // Handle all events
}

// MetricsHandler counts installer outcomes for the end-of-run summary
type MetricsHandler struct {
	mu sync.Mutex

	installsCompleted int64
	attemptsFailed    int64
	restarts          int64
	integrityFailures int64
	bytesInstalled    int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case InstallCompleted:
		h.installsCompleted++
		h.bytesInstalled += e.Size
	case DownloadAttemptFailed:
		h.attemptsFailed++
	case DownloadRestarted:
		h.restarts++
	case IntegrityCheckFailed:
		h.integrityFailures++
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameInstallCompleted,
		NameDownloadAttemptFailed,
		NameDownloadRestarted,
		NameIntegrityCheckFailed,
	}
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return map[string]int64{
		"installs_completed": h.installsCompleted,
		"attempts_failed":    h.attemptsFailed,
		"restarts":           h.restarts,
		"integrity_failures": h.integrityFailures,
		"bytes_installed":    h.bytesInstalled,
	}
}
