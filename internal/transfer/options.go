package transfer

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the read buffer size used per chunk.
	DefaultChunkSize = 32 << 10 // 32KB
	maxChunkSize     = 4 << 20  // 4MB

	// DefaultRateWindow is how much time a throughput window spans.
	DefaultRateWindow = 500 * time.Millisecond
)

type options struct {
	client         *http.Client
	logger         *zap.Logger
	chunkSize      int
	bytesPerSecond int
	userAgent      string
	window         time.Duration
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*options) error

// WithHTTPClient sets the client used for file requests. The client should
// not transparently decompress bodies or on-disk offsets will not line up
// with the server's byte ranges.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		o.client = c
		return nil
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = l
		return nil
	}
}

// WithChunkSize sets how many bytes are read and written per chunk.
func WithChunkSize(n int) Option {
	return func(o *options) error {
		if n <= 0 || n > maxChunkSize {
			return errors.New("chunk size must be between 1 byte and 4MB")
		}
		o.chunkSize = n
		return nil
	}
}

// WithRateLimit caps throughput in bytes per second. Zero disables the cap.
func WithRateLimit(bytesPerSecond int) Option {
	return func(o *options) error {
		if bytesPerSecond < 0 {
			return errors.New("rate limit cannot be negative")
		}
		o.bytesPerSecond = bytesPerSecond
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) error {
		o.userAgent = ua
		return nil
	}
}

// WithRateWindow sets the throughput sampling window.
func WithRateWindow(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("rate window must be positive")
		}
		o.window = d
		return nil
	}
}

// WithClock replaces time.Now for progress timing.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

func defaultClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true
	return &http.Client{Transport: transport}
}
