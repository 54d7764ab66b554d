package transfer

import "time"

// Sample is a point-in-time progress report.
type Sample struct {
	// Transferred counts bytes in the destination file, including any
	// resumed prefix.
	Transferred int64
	// Total is the expected final size, or 0 when the server did not say.
	Total int64
	// Percent is Transferred/Total*100. It is not clamped, so a server
	// that under-reports its length can push it past 100.
	Percent float64
	// BytesPerSecond is throughput over the most recent window.
	BytesPerSecond float64
	// AverageBytesPerSecond is throughput since the transfer began,
	// excluding the resumed prefix.
	AverageBytesPerSecond float64
	Elapsed               time.Duration
}

// Indeterminate reports whether the total size is unknown.
func (s Sample) Indeterminate() bool {
	return s.Total <= 0
}

// Fraction returns progress in [0, 1], or 0 when indeterminate.
func (s Sample) Fraction() float64 {
	if s.Indeterminate() {
		return 0
	}
	f := float64(s.Transferred) / float64(s.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Meter turns a stream of chunk sizes into Samples. It is not safe for
// concurrent use.
type Meter struct {
	now    func() time.Time
	window time.Duration

	start       time.Time
	base        int64
	transferred int64
	total       int64

	winStart time.Time
	winBytes int64
	rate     float64
}

// NewMeter starts a meter at base bytes already on disk. A non-positive
// window selects DefaultRateWindow; a nil clock selects time.Now.
func NewMeter(base, total int64, window time.Duration, now func() time.Time) *Meter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Meter{
		now:         now,
		window:      window,
		start:       t,
		base:        base,
		transferred: base,
		total:       total,
		winStart:    t,
		winBytes:    base,
	}
}

// Add records n freshly written bytes and returns the resulting Sample.
// Negative n is ignored.
func (m *Meter) Add(n int64) Sample {
	if n > 0 {
		m.transferred += n
	}
	t := m.now()
	if span := t.Sub(m.winStart); span >= m.window {
		m.rate = float64(m.transferred-m.winBytes) / span.Seconds()
		m.winStart = t
		m.winBytes = m.transferred
	}
	return m.sample(t)
}

// Snapshot returns the current Sample without recording bytes.
func (m *Meter) Snapshot() Sample {
	return m.sample(m.now())
}

func (m *Meter) sample(t time.Time) Sample {
	s := Sample{
		Transferred:    m.transferred,
		Total:          m.total,
		BytesPerSecond: m.rate,
		Elapsed:        t.Sub(m.start),
	}
	if m.total > 0 {
		s.Percent = float64(m.transferred) / float64(m.total) * 100
	}
	if s.Elapsed > 0 {
		s.AverageBytesPerSecond = float64(m.transferred-m.base) / s.Elapsed.Seconds()
	}
	return s
}
