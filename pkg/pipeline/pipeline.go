// Package pipeline drives the listen→transcribe→infer→synthesize→record
// sequence for one conversational turn and guards against overlapping
// turns.
//
// The orchestrator is a process-wide singleton with three states: idle,
// listening, and processing. The listening and processing flags are
// written only by the orchestrator and read concurrently by the query
// surface; stale reads are acceptable.
//
// Error policy: every adapter failure is caught at its call site, logged,
// and converted into either a sentinel ledger entry or a clean abort.
// Nothing escapes a turn to its caller; the worst outcome visible to a
// client is a user exchange with no paired agent reply.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxlinehq/voxline/pkg/artifact"
	"github.com/voxlinehq/voxline/pkg/capture"
	"github.com/voxlinehq/voxline/pkg/ledger"
	"github.com/voxlinehq/voxline/pkg/llm"
	"github.com/voxlinehq/voxline/pkg/speech"
)

// Sentinel texts recorded when a pipeline stage produces no usable output.
const (
	// TranscriptionFailed is the user-exchange response recorded when
	// transcription fails or yields nothing.
	TranscriptionFailed = "Transcription failed"

	// ResponseFailed is the agent-exchange response recorded when
	// synthesis of the reply fails.
	ResponseFailed = "Response generation failed"
)

// ErrNoSession is returned by Snapshot when no call session is active.
var ErrNoSession = errors.New("pipeline: no active session")

// Sessions exposes the active call session to the orchestrator.
// *session.Registry satisfies this interface.
type Sessions interface {
	Active() *ledger.CallSession
}

// Options configures an Orchestrator.
type Options struct {
	Sessions    Sessions
	Source      capture.Source
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Responder   llm.Responder
	Ledger      *ledger.Ledger
	Artifacts   artifact.Store

	// CaptureTimeout bounds a single capture wait. Zero means
	// capture.DefaultTimeout.
	CaptureTimeout time.Duration

	// Language is the transcription hint and synthesis language,
	// e.g. "el".
	Language string

	// Logger may be nil for slog.Default.
	Logger *slog.Logger
}

// Orchestrator executes conversational turns for the active session.
type Orchestrator struct {
	sessions    Sessions
	source      capture.Source
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	responder   llm.Responder
	ledger      *ledger.Ledger
	artifacts   artifact.Store

	captureTimeout time.Duration
	language       string
	logger         *slog.Logger

	listening  atomic.Bool
	processing atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = capture.DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		sessions:       opts.Sessions,
		source:         opts.Source,
		transcriber:    opts.Transcriber,
		synthesizer:    opts.Synthesizer,
		responder:      opts.Responder,
		ledger:         opts.Ledger,
		artifacts:      opts.Artifacts,
		captureTimeout: opts.CaptureTimeout,
		language:       opts.Language,
		logger:         opts.Logger,
	}
}

// IsListening reports whether the capture worker is running.
func (o *Orchestrator) IsListening() bool { return o.listening.Load() }

// IsProcessing reports whether a turn is in flight. True for the entire
// duration of the transcribe→infer→synthesize→record sequence and false
// immediately after, on success and failure alike.
func (o *Orchestrator) IsProcessing() bool { return o.processing.Load() }

// Listen transitions idle→listening and starts the supervised capture
// worker. A no-op (logged) when already listening or processing.
func (o *Orchestrator) Listen() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.processing.Load() {
		o.logger.Info("pipeline: listen ignored, turn in flight")
		return
	}
	if !o.listening.CompareAndSwap(false, true) {
		o.logger.Info("pipeline: listen ignored, already listening")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})
	go o.listenLoop(ctx, o.done)
}

// Stop signals the capture worker to exit at its next opportunity. An
// in-flight turn is allowed to finish; Stop does not wait for it.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// Done returns a channel closed when the capture worker has exited.
// Returns nil if the worker was never started.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// listenLoop is the background capture worker. It blocks on the capture
// source, runs one turn per completed audio unit, and exits on
// cancellation or source closure.
func (o *Orchestrator) listenLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer o.listening.Store(false)

	for {
		if ctx.Err() != nil {
			return
		}

		u, err := o.source.Capture(ctx, o.captureTimeout)
		switch {
		case err == nil:
			// The turn runs on a context detached from the worker so
			// that ending the session never preempts in-flight adapter
			// calls; cancellation is honored at the capture boundary.
			o.RunTurn(context.WithoutCancel(ctx), u)

		case errors.Is(err, capture.ErrTimeout):
			o.logger.Debug("pipeline: capture timed out, retrying")

		case errors.Is(err, capture.ErrNoSpeech):
			// Unrecognized speech still produces a ledger entry.
			o.RunTurn(context.WithoutCancel(ctx), nil)

		case errors.Is(err, context.Canceled), errors.Is(err, capture.ErrClosed):
			return

		default:
			o.logger.Error("pipeline: capture failed", "error", err)
		}
	}
}

// RunTurn executes one full conversational turn for the active session.
// Overlapping calls are ignored and logged: at most one turn is in the
// processing state at any instant. RunTurn never returns an error to its
// caller; all failures are absorbed per the pipeline error policy.
func (o *Orchestrator) RunTurn(ctx context.Context, u *capture.AudioUnit) {
	sess := o.sessions.Active()
	if sess == nil {
		o.logger.Warn("pipeline: turn ignored, no active session")
		return
	}

	if !o.processing.CompareAndSwap(false, true) {
		o.logger.Info("pipeline: turn ignored, another turn in flight", "session_id", sess.ID)
		return
	}
	defer o.processing.Store(false)

	o.turn(ctx, sess.ID, u)
}

// turn runs the transcribe→infer→synthesize→record sequence. Each stage
// returns an explicit result; a failed stage logs and aborts the rest.
func (o *Orchestrator) turn(ctx context.Context, sessionID string, u *capture.AudioUnit) {
	transcript, err := o.transcribe(ctx, u)
	if err != nil {
		o.recordFailedTranscription(ctx, sessionID, err)
		return
	}
	o.logger.Info("pipeline: transcript", "session_id", sessionID, "text", transcript)

	if err := o.saveUserAudio(ctx, u); err != nil {
		o.logger.Error("pipeline: save user audio failed", "error", err)
	}

	userEx, err := o.ledger.Append(ctx, sessionID, ledger.SpeakerUser, "", transcript, artifact.UserAudio)
	if err != nil {
		o.logger.Error("pipeline: record user exchange failed", "session_id", sessionID, "error", err)
		return
	}

	if err := o.threadContext(ctx, userEx); err != nil {
		// The opening greeting guarantees a predecessor; absence means a
		// malformed session.
		o.logger.Error("pipeline: context threading failed", "session_id", sessionID, "exchange_id", userEx.ID, "error", err)
		return
	}

	reply, err := o.responder.Respond(ctx, transcript)
	if err != nil {
		o.logger.Error("pipeline: inference failed", "session_id", sessionID, "error", err)
		return
	}
	o.logger.Info("pipeline: reply", "session_id", sessionID, "text", reply)

	response := reply
	if err := o.synthesizeReply(ctx, reply); err != nil {
		o.logger.Error("pipeline: synthesis failed", "session_id", sessionID, "error", err)
		response = ResponseFailed
	}

	if _, err := o.ledger.Append(ctx, sessionID, ledger.SpeakerAgent, transcript, response, artifact.BotAudio); err != nil {
		o.logger.Error("pipeline: record agent exchange failed", "session_id", sessionID, "error", err)
	}
}

// transcribe converts the audio unit to text. A nil unit or an
// unrecognized result yields speech.ErrUnrecognized.
func (o *Orchestrator) transcribe(ctx context.Context, u *capture.AudioUnit) (string, error) {
	if u == nil {
		return "", speech.ErrUnrecognized
	}
	return o.transcriber.Transcribe(ctx, u, o.language)
}

// recordFailedTranscription appends the sentinel user exchange and ends
// the turn. Transcription failure is a deliberate short-circuit: no
// inference or synthesis is attempted.
func (o *Orchestrator) recordFailedTranscription(ctx context.Context, sessionID string, cause error) {
	if errors.Is(cause, speech.ErrUnrecognized) {
		o.logger.Info("pipeline: speech not recognized", "session_id", sessionID)
	} else {
		o.logger.Error("pipeline: transcription failed", "session_id", sessionID, "error", cause)
	}

	e, err := o.ledger.Append(ctx, sessionID, ledger.SpeakerUser, "", TranscriptionFailed, artifact.UserAudio)
	if err != nil {
		o.logger.Error("pipeline: record sentinel exchange failed", "session_id", sessionID, "error", err)
		return
	}
	if err := o.threadContext(ctx, e); err != nil {
		o.logger.Error("pipeline: context threading failed", "session_id", sessionID, "exchange_id", e.ID, "error", err)
	}
}

// threadContext links the freshly appended user exchange to the response
// of its chronological predecessor. Performed exactly once per exchange,
// before any other exchange in the session is created; the single-flight
// turn guard enforces the ordering.
func (o *Orchestrator) threadContext(ctx context.Context, e *ledger.Exchange) error {
	prev, err := o.ledger.ContextOf(ctx, e)
	if err != nil {
		return err
	}
	return o.ledger.SetInput(ctx, e, prev.Response)
}

// synthesizeReply produces the bot audio artifact for the reply text. The
// artifact is replaced atomically so a concurrent reader never serves a
// truncated file.
func (o *Orchestrator) synthesizeReply(ctx context.Context, reply string) error {
	audio, err := o.synthesizer.Synthesize(ctx, reply, o.language)
	if err != nil {
		return err
	}
	return o.artifacts.WriteFile(ctx, artifact.BotAudio, audio)
}

// saveUserAudio persists the captured utterance as the user audio
// artifact. Failure is not fatal to the turn.
func (o *Orchestrator) saveUserAudio(ctx context.Context, u *capture.AudioUnit) error {
	if u == nil || len(u.Data) == 0 {
		return nil
	}
	return o.artifacts.WriteFile(ctx, artifact.UserAudio, u.Data)
}
