// Package ledger persists call sessions and their exchanges.
//
// The ledger is append-only: an Exchange row is written once per turn
// half and never mutated afterwards, with two narrow exceptions: the
// one-time context patch on a user exchange (SetInput) and the post-hoc
// sentiment label on a session (SetSentiment).
//
// Conversational context is threaded through the rows themselves: each
// non-opening user exchange's Input holds the Response of the exchange
// that chronologically precedes it in the same session. There is no
// separate context table.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sentinel errors.
var (
	// ErrSessionNotFound is returned when a session reference is invalid.
	ErrSessionNotFound = errors.New("ledger: session not found")

	// ErrMissingContext is returned when an exchange has no chronological
	// predecessor in its session. The opening greeting guarantees every
	// later exchange has one, so this indicates a malformed session.
	ErrMissingContext = errors.New("ledger: no preceding exchange")
)

// Speaker identifies who produced an exchange.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// CallSession is one voice call. Sessions are never deleted when a call
// ends; they merely stop being the active session.
type CallSession struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Sentiment string    `json:"sentiment,omitempty"`

	Exchanges []Exchange `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// Exchange is one recorded utterance within a session. IDs increase
// monotonically in creation order, which is the session's total order.
type Exchange struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	Speaker   Speaker   `gorm:"not null" json:"speaker"`
	Input     string    `json:"input"`
	Response  string    `json:"response"`
	AudioPath string    `json:"audio_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger provides access to sessions and exchanges on a relational store.
type Ledger struct {
	db *gorm.DB
}

// Open connects the ledger to a database and migrates the schema.
func Open(dialector gorm.Dialector) (*Ledger, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	if err := db.AutoMigrate(&CallSession{}, &Exchange{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

// CreateSession inserts a new call session with a fresh ID.
func (l *Ledger) CreateSession(ctx context.Context) (*CallSession, error) {
	s := &CallSession{ID: uuid.NewString()}
	if err := l.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, fmt.Errorf("ledger: create session: %w", err)
	}
	return s, nil
}

// Session fetches a session by ID.
func (l *Ledger) Session(ctx context.Context, id string) (*CallSession, error) {
	var s CallSession
	err := l.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: session %s: %w", id, err)
	}
	return &s, nil
}

// DeleteSession removes a session and all its exchanges.
func (l *Ledger) DeleteSession(ctx context.Context, id string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&Exchange{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&CallSession{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// SetSentiment updates the post-hoc sentiment label on a session.
func (l *Ledger) SetSentiment(ctx context.Context, id, sentiment string) error {
	res := l.db.WithContext(ctx).Model(&CallSession{}).
		Where("id = ?", id).
		Update("sentiment", sentiment)
	if res.Error != nil {
		return fmt.Errorf("ledger: set sentiment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Append records a new exchange for the session. The ID and timestamp are
// assigned by the store.
func (l *Ledger) Append(ctx context.Context, sessionID string, speaker Speaker, input, response, audioPath string) (*Exchange, error) {
	if _, err := l.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	e := &Exchange{
		SessionID: sessionID,
		Speaker:   speaker,
		Input:     input,
		Response:  response,
		AudioPath: audioPath,
	}
	if err := l.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, fmt.Errorf("ledger: append: %w", err)
	}
	return e, nil
}

// ContextOf returns the exchange chronologically preceding e in the same
// session, or ErrMissingContext if e is the session's first exchange.
func (l *Ledger) ContextOf(ctx context.Context, e *Exchange) (*Exchange, error) {
	var prev Exchange
	err := l.db.WithContext(ctx).
		Where("session_id = ? AND id < ?", e.SessionID, e.ID).
		Order("id DESC").
		First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMissingContext
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: context of %d: %w", e.ID, err)
	}
	return &prev, nil
}

// SetInput performs the one-time context patch on a freshly appended
// exchange. The single-flight turn guard ensures no other exchange for
// the session is created between Append and SetInput.
func (l *Ledger) SetInput(ctx context.Context, e *Exchange, input string) error {
	err := l.db.WithContext(ctx).Model(e).Update("input", input).Error
	if err != nil {
		return fmt.Errorf("ledger: set input on %d: %w", e.ID, err)
	}
	e.Input = input
	return nil
}

// ListFor returns the session's exchanges in ascending creation order.
// The sequence is lazy and restartable: each range re-runs the query.
func (l *Ledger) ListFor(ctx context.Context, sessionID string) iter.Seq2[Exchange, error] {
	return func(yield func(Exchange, error) bool) {
		rows, err := l.db.WithContext(ctx).
			Model(&Exchange{}).
			Where("session_id = ?", sessionID).
			Order("id ASC").
			Rows()
		if err != nil {
			yield(Exchange{}, fmt.Errorf("ledger: list for %s: %w", sessionID, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var e Exchange
			if err := l.db.ScanRows(rows, &e); err != nil {
				yield(Exchange{}, fmt.Errorf("ledger: scan exchange: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Exchange{}, fmt.Errorf("ledger: list for %s: %w", sessionID, err))
		}
	}
}

// Last returns the most recent exchange in the session, or
// ErrMissingContext when the session has none.
func (l *Ledger) Last(ctx context.Context, sessionID string) (*Exchange, error) {
	var e Exchange
	err := l.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMissingContext
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: last for %s: %w", sessionID, err)
	}
	return &e, nil
}
