// Package httpapi exposes the call orchestrator over a thin HTTP control
// surface: session lifecycle, turn submission, transcript snapshots, and
// audio artifact retrieval.
//
// The surface holds no pipeline logic. Session misuse maps to 409,
// missing artifacts to 404; turn-internal failures are never visible
// here because nothing escapes the orchestrator.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/voxlinehq/voxline/pkg/artifact"
	"github.com/voxlinehq/voxline/pkg/capture"
	"github.com/voxlinehq/voxline/pkg/pipeline"
	"github.com/voxlinehq/voxline/pkg/session"
)

// maxUploadBytes bounds a single audio upload (16 MiB).
const maxUploadBytes = 16 << 20

// Server wires the control surface to the orchestration core.
type Server struct {
	registry  *session.Registry
	orch      *pipeline.Orchestrator
	source    *capture.ChanSource
	artifacts artifact.Store
	logger    *slog.Logger
}

// NewServer creates the control surface. logger may be nil for
// slog.Default.
func NewServer(reg *session.Registry, orch *pipeline.Orchestrator, src *capture.ChanSource, store artifact.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:  reg,
		orch:      orch,
		source:    src,
		artifacts: store,
		logger:    logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session/start", s.handleSessionStart)
	mux.HandleFunc("POST /v1/session/end", s.handleSessionEnd)
	mux.HandleFunc("POST /v1/listen", s.handleListen)
	mux.HandleFunc("POST /v1/turn", s.handleTurn)
	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /v1/audio/bot", s.artifactHandler(artifact.BotAudio))
	mux.HandleFunc("GET /v1/audio/greeting", s.artifactHandler(artifact.GreetingAudio))
	mux.HandleFunc("GET /v1/ws", s.handleWS)
	return mux
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Start(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrAlreadyActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		s.logger.Error("httpapi: start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":     "Call session started.",
		"session_id": sess.ID,
	})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.End(r.Context()); err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			writeError(w, http.StatusConflict, err)
			return
		}
		s.logger.Error("httpapi: end session failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "Call session ended."})
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	if s.registry.Active() == nil {
		writeError(w, http.StatusConflict, session.ErrNoActiveSession)
		return
	}
	s.orch.Listen()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "Listening...",
		"is_listening": s.orch.IsListening(),
	})
}

// handleTurn accepts an uploaded audio unit and queues it for the capture
// worker. The turn itself runs asynchronously; clients poll the snapshot
// for its outcome.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if s.registry.Active() == nil {
		writeError(w, http.StatusConflict, session.ErrNoActiveSession)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: missing audio_file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	unit := &capture.AudioUnit{Data: data, Format: formatFromFilename(header.Filename)}
	if err := s.source.Push(r.Context(), unit); err != nil {
		s.logger.Error("httpapi: queue audio failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "Turn queued."})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrNoSession) {
			writeError(w, http.StatusConflict, err)
			return
		}
		s.logger.Error("httpapi: snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// artifactHandler serves a named audio artifact.
func (s *Server) artifactHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := s.artifacts.Read(r.Context(), name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				writeError(w, http.StatusNotFound, errors.New("httpapi: no audio available"))
				return
			}
			s.logger.Error("httpapi: read artifact failed", "artifact", name, "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Cache-Control", "no-store")
		if _, err := io.Copy(w, rc); err != nil {
			s.logger.Debug("httpapi: artifact copy interrupted", "artifact", name, "error", err)
		}
	}
}

func formatFromFilename(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return "wav"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
