package capture

import (
	"context"
	"sync"
	"time"
)

// ChanSource is a Source fed by pushing audio units from another goroutine,
// typically an HTTP upload handler. It is safe for concurrent use.
type ChanSource struct {
	units chan *AudioUnit
	done  chan struct{}
	once  sync.Once
}

// NewChanSource creates a ChanSource with the given queue depth.
// A depth of zero makes Push block until the pipeline is ready to capture.
func NewChanSource(depth int) *ChanSource {
	return &ChanSource{
		units: make(chan *AudioUnit, depth),
		done:  make(chan struct{}),
	}
}

// Push enqueues an audio unit for the next Capture call.
// Returns ErrClosed after Close.
func (s *ChanSource) Push(ctx context.Context, u *AudioUnit) error {
	if u.CapturedAt.IsZero() {
		u.CapturedAt = time.Now()
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.units <- u:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Capture blocks until a pushed unit is available or the timeout elapses.
func (s *ChanSource) Capture(ctx context.Context, timeout time.Duration) (*AudioUnit, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case u := <-s.units:
		return u, nil
	case <-s.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the source closed. Blocked Push and Capture calls return
// ErrClosed; already-queued units are discarded.
func (s *ChanSource) Close() {
	s.once.Do(func() { close(s.done) })
}
