package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/remakesof/launcher/internal/domain"
)

// Engine streams HTTP resources to disk. An Engine is safe for concurrent
// use as long as each call targets a different destination.
type Engine struct {
	client    *http.Client
	logger    *zap.Logger
	limiter   *rate.Limiter
	chunkSize int
	userAgent string
	window    time.Duration
	now       func() time.Time
}

// Result describes the destination file after a transfer. On failure the
// Result returned next to the error still describes what is on disk, so the
// caller can resume from Size.
type Result struct {
	URL  string
	Path string
	// StartOffset is the number of bytes kept from before this call. It is
	// zero for fresh and restarted transfers.
	StartOffset int64
	// BytesWritten counts bytes appended by this call.
	BytesWritten int64
	// Size is StartOffset + BytesWritten.
	Size int64
	// Total is the expected final size, 0 when unknown.
	Total int64
	// Restarted is set when a range request was answered with the full
	// body and the partial file was truncated.
	Restarted bool
	// AlreadyComplete is set when the server reported that the requested
	// range starts at the end of the resource.
	AlreadyComplete bool
	StatusCode      int
	Duration        time.Duration
}

// New creates an Engine.
func New(optFns ...Option) (*Engine, error) {
	o := options{
		chunkSize: DefaultChunkSize,
		window:    DefaultRateWindow,
		now:       time.Now,
	}
	for _, fn := range optFns {
		if err := fn(&o); err != nil {
			return nil, err
		}
	}
	if o.client == nil {
		o.client = defaultClient()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	e := &Engine{
		client:    o.client,
		logger:    o.logger,
		chunkSize: o.chunkSize,
		userAgent: o.userAgent,
		window:    o.window,
		now:       o.now,
	}
	if o.bytesPerSecond > 0 {
		// Burst must hold a full chunk or WaitN fails outright.
		burst := max(o.bytesPerSecond, o.chunkSize)
		e.limiter = rate.NewLimiter(rate.Limit(o.bytesPerSecond), burst)
	}
	return e, nil
}

// plan is how a response maps onto the destination file.
type plan struct {
	base      int64
	total     int64
	appendTo  bool
	restarted bool
	complete  bool
}

// Transfer downloads rawURL into dest. With resumeOffset zero the file is
// created or truncated; otherwise dest must already hold exactly
// resumeOffset bytes and the remainder is requested with a Range header.
// The parent directory of dest must exist.
//
// Every chunk written is reported to sink, which may be nil. Cancelling ctx
// stops the transfer between chunks and leaves the bytes written so far in
// place.
func (e *Engine) Transfer(ctx context.Context, rawURL, dest string, resumeOffset int64, sink Sink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	res := &Result{URL: rawURL, Path: dest, StartOffset: resumeOffset, Size: resumeOffset}
	started := e.now()
	defer func() { res.Duration = e.now().Sub(started) }()

	if err := validateTarget(rawURL, dest, resumeOffset); err != nil {
		return res, &Error{Op: "validate", URL: rawURL, Path: dest, Kind: domain.ErrInvalidInput, Err: err}
	}

	if resumeOffset > 0 {
		info, err := os.Stat(dest)
		if err != nil {
			return res, e.fsError("stat", rawURL, dest, err)
		}
		if info.Size() != resumeOffset {
			res.Size = info.Size()
			res.StartOffset = info.Size()
			return res, e.fsError("stat", rawURL, dest,
				fmt.Errorf("%w: file has %d bytes, resume offset is %d", ErrOffsetMismatch, info.Size(), resumeOffset))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return res, &Error{Op: "request", URL: rawURL, Path: dest, Kind: domain.ErrInvalidInput, Err: err}
	}
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	e.logger.Debug("starting transfer",
		zap.String("url", rawURL),
		zap.String("dest", dest),
		zap.Int64("resume_offset", resumeOffset),
	)

	resp, err := e.client.Do(req)
	if err != nil {
		return res, e.streamError(ctx, "request", rawURL, dest, err)
	}
	defer resp.Body.Close()
	res.StatusCode = resp.StatusCode

	p, err := planResponse(resp, rawURL, resumeOffset)
	if err != nil {
		return res, err
	}
	res.Total = p.total

	if p.complete {
		res.AlreadyComplete = true
		meter := NewMeter(resumeOffset, resumeOffset, e.window, e.now)
		sink.OnProgress(meter.Snapshot())
		e.logger.Debug("transfer already complete", zap.String("dest", dest), zap.Int64("size", resumeOffset))
		return res, nil
	}

	if p.restarted {
		e.logger.Warn("server ignored range request, restarting from zero",
			zap.String("url", rawURL),
			zap.Int64("discarded", resumeOffset),
		)
		res.Restarted = true
		res.StartOffset = 0
		res.Size = 0
	}

	var f *os.File
	if p.appendTo {
		f, err = os.OpenFile(dest, os.O_WRONLY|os.O_APPEND, 0)
	} else {
		f, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		if p.restarted {
			// Nothing was truncated; the old prefix is still there.
			res.Restarted = false
			res.StartOffset = resumeOffset
			res.Size = resumeOffset
		}
		return res, e.fsError("open", rawURL, dest, err)
	}
	closed := false
	defer func() {
		if !closed {
			if cerr := f.Close(); cerr != nil {
				e.logger.Warn("failed to close partial file", zap.String("path", dest), zap.Error(cerr))
			}
		}
	}()

	meter := NewMeter(p.base, p.total, e.window, e.now)
	buf := make([]byte, e.chunkSize)
	var streamed int64

	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if e.limiter != nil {
				if err := e.limiter.WaitN(ctx, n); err != nil {
					return res, e.streamError(ctx, "throttle", rawURL, dest, err)
				}
			}
			wn, werr := f.Write(buf[:n])
			streamed += int64(wn)
			res.BytesWritten = streamed
			res.Size = p.base + streamed
			if werr != nil {
				return res, e.fsError("write", rawURL, dest, werr)
			}
			sink.OnProgress(meter.Add(int64(n)))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return res, e.streamError(ctx, "read", rawURL, dest, rerr)
		}
		if err := ctx.Err(); err != nil {
			return res, e.streamError(ctx, "read", rawURL, dest, err)
		}
	}

	if resp.ContentLength >= 0 && streamed != resp.ContentLength {
		return res, &Error{Op: "read", URL: rawURL, Path: dest, Kind: domain.ErrNetwork,
			Err: fmt.Errorf("%w: expected %d bytes, got %d", ErrIncompleteBody, resp.ContentLength, streamed)}
	}

	if err := f.Sync(); err != nil {
		return res, e.fsError("sync", rawURL, dest, err)
	}
	closed = true
	if err := f.Close(); err != nil {
		return res, e.fsError("close", rawURL, dest, err)
	}

	e.logger.Debug("transfer finished",
		zap.String("dest", dest),
		zap.Int64("bytes_written", streamed),
		zap.Int64("size", res.Size),
		zap.Bool("restarted", res.Restarted),
	)
	return res, nil
}

func validateTarget(rawURL, dest string, resumeOffset int64) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	if dest == "" {
		return errors.New("destination path is empty")
	}
	if resumeOffset < 0 {
		return fmt.Errorf("negative resume offset %d", resumeOffset)
	}
	return nil
}

// planResponse decides how the response body lands in the file, or returns
// a remote rejection.
func planResponse(resp *http.Response, rawURL string, resumeOffset int64) (plan, error) {
	fresh := func() plan {
		p := plan{}
		if resp.ContentLength > 0 {
			p.total = resp.ContentLength
		}
		return p
	}

	switch {
	case resumeOffset == 0 && resp.StatusCode == http.StatusPartialContent:
		start, _, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if ok && start != 0 {
			return plan{}, rangeMismatch(rawURL, 0, start)
		}
		p := fresh()
		if ok && total > 0 {
			p.total = total
		}
		return p, nil

	case resumeOffset == 0 && resp.StatusCode >= 200 && resp.StatusCode < 300:
		return fresh(), nil

	case resumeOffset > 0 && resp.StatusCode == http.StatusPartialContent:
		p := plan{base: resumeOffset, appendTo: true}
		start, _, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if ok && start != resumeOffset {
			return plan{}, rangeMismatch(rawURL, resumeOffset, start)
		}
		switch {
		case ok && total > 0:
			p.total = total
		case resp.ContentLength >= 0:
			p.total = resumeOffset + resp.ContentLength
		}
		return p, nil

	case resumeOffset > 0 && resp.StatusCode == http.StatusOK:
		p := fresh()
		p.restarted = true
		return p, nil

	case resumeOffset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		if size, ok := parseUnsatisfiedRange(resp.Header.Get("Content-Range")); ok && size == resumeOffset {
			return plan{base: resumeOffset, total: resumeOffset, complete: true}, nil
		}
	}

	return plan{}, newStatusError(resp, rawURL)
}

func rangeMismatch(rawURL string, want, got int64) error {
	return &Error{Op: "range", URL: rawURL, Kind: domain.ErrRemoteRejected,
		Err: fmt.Errorf("%w: requested offset %d, got %d", ErrRangeMismatch, want, got)}
}

func newStatusError(resp *http.Response, rawURL string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	return &StatusError{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// parseContentRange parses "bytes start-end/total". total is -1 for "*".
func parseContentRange(h string) (start, end, total int64, ok bool) {
	spec, found := strings.CutPrefix(strings.TrimSpace(h), "bytes ")
	if !found {
		return 0, 0, 0, false
	}
	rng, size, found := strings.Cut(spec, "/")
	if !found {
		return 0, 0, 0, false
	}
	first, last, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, 0, false
	}
	var err error
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, false
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, false
	}
	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, false
		}
	}
	return start, end, total, true
}

// parseUnsatisfiedRange parses the "bytes */size" form sent with 416.
func parseUnsatisfiedRange(h string) (int64, bool) {
	size, found := strings.CutPrefix(strings.TrimSpace(h), "bytes */")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (e *Engine) fsError(op, rawURL, dest string, err error) error {
	return &Error{Op: op, URL: rawURL, Path: dest, Kind: domain.ErrFilesystem, Err: err}
}

func (e *Engine) streamError(ctx context.Context, op, rawURL, dest string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Op: op, URL: rawURL, Path: dest, Kind: domain.ErrCanceled, Err: ctxErr}
	}
	return &Error{Op: op, URL: rawURL, Path: dest, Kind: domain.ErrNetwork, Err: err}
}
