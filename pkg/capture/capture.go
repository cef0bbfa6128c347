// Package capture supplies audio units to the call pipeline.
//
// A Source hands out one completed utterance at a time via a blocking
// Capture call. Where the audio comes from is up to the implementation:
// a microphone driver, an HTTP upload queue, or a pre-recorded buffer.
// The pipeline only sees opaque AudioUnit values.
package capture

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrTimeout is returned when no utterance arrived within the capture
	// timeout. Callers are expected to retry.
	ErrTimeout = errors.New("capture: timed out waiting for audio")

	// ErrNoSpeech is returned when audio arrived but contained no
	// recognizable speech. Distinct from a hard I/O failure.
	ErrNoSpeech = errors.New("capture: no recognizable speech")

	// ErrClosed is returned when the source has been closed.
	ErrClosed = errors.New("capture: source closed")
)

// DefaultTimeout bounds a single Capture wait unless overridden.
const DefaultTimeout = 10 * time.Second

// AudioUnit is one completed utterance of captured audio.
type AudioUnit struct {
	// Data is the encoded audio payload.
	Data []byte

	// Format is the audio container/codec name, e.g. "wav" or "mp3".
	Format string

	// CapturedAt is when the utterance was completed.
	CapturedAt time.Time
}

// Source yields captured audio units.
type Source interface {
	// Capture blocks until a completed audio unit is available, the
	// timeout elapses (ErrTimeout), or ctx is cancelled. A timeout of
	// zero means DefaultTimeout.
	Capture(ctx context.Context, timeout time.Duration) (*AudioUnit, error)
}

// CaptureFunc is an adapter to allow ordinary functions as Sources.
type CaptureFunc func(ctx context.Context, timeout time.Duration) (*AudioUnit, error)

// Capture calls the underlying function.
func (f CaptureFunc) Capture(ctx context.Context, timeout time.Duration) (*AudioUnit, error) {
	return f(ctx, timeout)
}
