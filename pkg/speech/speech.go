// Package speech defines the transcription and synthesis adapter
// interfaces used by the call pipeline, along with OpenAI-backed
// implementations.
//
// Adapters do no work beyond invoking their backend and normalizing
// errors: an empty or unusable transcript becomes ErrUnrecognized, and
// every other backend failure is wrapped in a *ServiceError.
package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/voxlinehq/voxline/pkg/capture"
)

// ErrUnrecognized is returned when the backend processed the audio but
// produced no usable transcript. Distinct from a backend failure.
var ErrUnrecognized = errors.New("speech: unrecognized speech")

// ServiceError wraps a backend failure from a transcription or synthesis
// service.
type ServiceError struct {
	// Service names the failing backend, e.g. "openai-stt".
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("speech: %s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Transcriber converts a captured audio unit to text.
type Transcriber interface {
	// Transcribe returns the transcript of the audio unit. The language
	// hint is an ISO-639-1 code; pass "" for auto-detection.
	Transcribe(ctx context.Context, u *capture.AudioUnit, language string) (string, error)
}

// TranscribeFunc is an adapter to allow ordinary functions as Transcribers.
type TranscribeFunc func(ctx context.Context, u *capture.AudioUnit, language string) (string, error)

// Transcribe calls the underlying function.
func (f TranscribeFunc) Transcribe(ctx context.Context, u *capture.AudioUnit, language string) (string, error) {
	return f(ctx, u, language)
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	// Synthesize returns encoded audio bytes for the given text.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// SynthesizeFunc is an adapter to allow ordinary functions as Synthesizers.
type SynthesizeFunc func(ctx context.Context, text, language string) ([]byte, error)

// Synthesize calls the underlying function.
func (f SynthesizeFunc) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	return f(ctx, text, language)
}
