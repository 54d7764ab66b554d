package transfer

import (
	"sync/atomic"
)

// Sink receives progress samples. OnProgress runs on the transfer goroutine
// between chunks and must not block.
type Sink interface {
	OnProgress(Sample)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Sample)

// OnProgress calls f(s).
func (f SinkFunc) OnProgress(s Sample) { f(s) }

// NopSink discards samples.
type NopSink struct{}

// OnProgress does nothing.
func (NopSink) OnProgress(Sample) {}

// ChannelSink forwards samples to ch without blocking. Samples are dropped
// while the channel is full.
func ChannelSink(ch chan<- Sample) Sink {
	return SinkFunc(func(s Sample) {
		select {
		case ch <- s:
		default:
		}
	})
}

// LatestSink keeps only the most recent sample, for pollers such as a
// terminal progress bar.
type LatestSink struct {
	latest atomic.Pointer[Sample]
	count  atomic.Int64
}

// OnProgress stores s.
func (l *LatestSink) OnProgress(s Sample) {
	l.latest.Store(&s)
	l.count.Add(1)
}

// Load returns the latest sample and whether any has arrived.
func (l *LatestSink) Load() (Sample, bool) {
	s := l.latest.Load()
	if s == nil {
		return Sample{}, false
	}
	return *s, true
}

// Count returns how many samples have been stored.
func (l *LatestSink) Count() int64 {
	return l.count.Load()
}

type multiSink []Sink

func (m multiSink) OnProgress(s Sample) {
	for _, sink := range m {
		sink.OnProgress(s)
	}
}

// MultiSink fans samples out to every non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
