// Package artifact stores the audio artifacts produced and served by the
// call pipeline: the current bot reply, the fixed greeting, and the last
// captured user utterance.
//
// There is exactly one current bot artifact at a time; it is overwritten
// on every turn. Because a polling client may fetch the artifact while a
// turn is replacing it, implementations must make WriteFile atomic: a
// reader observes either the previous complete artifact or the new one,
// never a truncated file.
package artifact

import (
	"context"
	"io"
)

// Well-known artifact names.
const (
	// BotAudio is the synthesized reply for the most recent turn.
	// Overwritten each turn; exchanges keep a path reference to it.
	BotAudio = "bot_response.mp3"

	// GreetingAudio is the pre-rendered session greeting.
	GreetingAudio = "greeting.mp3"

	// UserAudio is the most recently captured user utterance.
	UserAudio = "user_request.wav"
)

// Store is a minimal interface for artifact storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Read opens the named artifact for reading.
	// The caller must close the returned ReadCloser when done.
	// If the artifact does not exist, an error wrapping os.ErrNotExist
	// is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// WriteFile atomically replaces the named artifact with data,
	// creating it if absent. Concurrent readers never observe a
	// partially written artifact.
	WriteFile(ctx context.Context, path string, data []byte) error

	// Delete removes the named artifact.
	// If the artifact does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named artifact exists.
	Exists(ctx context.Context, path string) (bool, error)
}
