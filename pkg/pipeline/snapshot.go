package pipeline

import (
	"context"

	"github.com/voxlinehq/voxline/pkg/ledger"
)

// Snapshot is the read-only projection of ledger and orchestrator state
// served to polling clients.
type Snapshot struct {
	SessionID    string            `json:"session_id"`
	Exchanges    []ledger.Exchange `json:"exchanges"`
	IsProcessing bool              `json:"is_processing"`
	IsListening  bool              `json:"is_listening"`
}

// Snapshot returns the current session transcript and state flags. Safe
// to call concurrently with an in-flight turn; it reflects whatever the
// ledger currently holds, so a partially completed turn may be visible.
func (o *Orchestrator) Snapshot(ctx context.Context) (*Snapshot, error) {
	sess := o.sessions.Active()
	if sess == nil {
		return nil, ErrNoSession
	}

	snap := &Snapshot{
		SessionID:    sess.ID,
		Exchanges:    []ledger.Exchange{},
		IsProcessing: o.processing.Load(),
		IsListening:  o.listening.Load(),
	}
	for e, err := range o.ledger.ListFor(ctx, sess.ID) {
		if err != nil {
			return nil, err
		}
		snap.Exchanges = append(snap.Exchanges, e)
	}
	return snap, nil
}
