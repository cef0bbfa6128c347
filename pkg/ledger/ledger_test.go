package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"

	"github.com/voxlinehq/voxline/pkg/ledger"
)

// newTestLedger opens a fresh in-memory ledger.
func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l
}

func newTestSession(t *testing.T, l *ledger.Ledger) *ledger.CallSession {
	t.Helper()
	s, err := l.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func TestCreateAndFetchSession(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	s := newTestSession(t, l)
	if s.ID == "" {
		t.Fatal("session ID not assigned")
	}
	if s.CreatedAt.IsZero() {
		t.Fatal("session CreatedAt not assigned")
	}

	got, err := l.Session(ctx, s.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("Session ID = %q, want %q", got.ID, s.ID)
	}

	_, err = l.Session(ctx, "no-such-session")
	if !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	var last uint
	for i := 0; i < 5; i++ {
		e, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", "hello", "")
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if e.ID <= last {
			t.Fatalf("exchange ID %d not greater than previous %d", e.ID, last)
		}
		if e.CreatedAt.IsZero() {
			t.Fatal("exchange CreatedAt not assigned")
		}
		last = e.ID
	}
}

func TestAppendInvalidSession(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append(context.Background(), "missing", ledger.SpeakerUser, "", "x", "")
	if !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestContextOf(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	first, err := l.Append(ctx, s.ID, ledger.SpeakerAgent, "Start of Conversation", "greeting", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", "transcript", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	prev, err := l.ContextOf(ctx, second)
	if err != nil {
		t.Fatalf("ContextOf: %v", err)
	}
	if prev.ID != first.ID {
		t.Fatalf("ContextOf ID = %d, want %d", prev.ID, first.ID)
	}
	if prev.Response != "greeting" {
		t.Fatalf("ContextOf Response = %q, want %q", prev.Response, "greeting")
	}

	// The first exchange has no predecessor.
	_, err = l.ContextOf(ctx, first)
	if !errors.Is(err, ledger.ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext, got %v", err)
	}
}

func TestContextOfSkipsOtherSessions(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s1 := newTestSession(t, l)
	s2 := newTestSession(t, l)

	if _, err := l.Append(ctx, s1.ID, ledger.SpeakerAgent, "", "other session", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	e, err := l.Append(ctx, s2.ID, ledger.SpeakerUser, "", "mine", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A lower-ID exchange exists, but in another session.
	_, err = l.ContextOf(ctx, e)
	if !errors.Is(err, ledger.ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext, got %v", err)
	}
}

func TestSetInput(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	e, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", "transcript", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.SetInput(ctx, e, "previous response"); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if e.Input != "previous response" {
		t.Fatalf("in-memory Input = %q, want %q", e.Input, "previous response")
	}

	var stored []ledger.Exchange
	for ex, err := range l.ListFor(ctx, s.ID) {
		if err != nil {
			t.Fatalf("ListFor: %v", err)
		}
		stored = append(stored, ex)
	}
	if len(stored) != 1 {
		t.Fatalf("len(stored) = %d, want 1", len(stored))
	}
	if stored[0].Input != "previous response" {
		t.Fatalf("stored Input = %q, want %q", stored[0].Input, "previous response")
	}
}

func TestListForAscendingAndRestartable(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	want := []string{"one", "two", "three", "four"}
	for _, r := range want {
		if _, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", r, ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	seq := l.ListFor(ctx, s.ID)

	// Range twice over the same sequence: it must restart.
	for round := 0; round < 2; round++ {
		var got []string
		var lastID uint
		for e, err := range seq {
			if err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
			if e.ID <= lastID {
				t.Fatalf("round %d: IDs not strictly ascending: %d after %d", round, e.ID, lastID)
			}
			lastID = e.ID
			got = append(got, e.Response)
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: len = %d, want %d", round, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("round %d: got[%d] = %q, want %q", round, i, got[i], want[i])
			}
		}
	}
}

func TestListForEarlyBreak(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	for i := 0; i < 10; i++ {
		if _, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", "r", ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	n := 0
	for _, err := range l.ListFor(ctx, s.ID) {
		if err != nil {
			t.Fatalf("ListFor: %v", err)
		}
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("iterated %d, want 3", n)
	}
}

func TestSetSentiment(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	if err := l.SetSentiment(ctx, s.ID, "positive"); err != nil {
		t.Fatalf("SetSentiment: %v", err)
	}
	got, err := l.Session(ctx, s.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got.Sentiment != "positive" {
		t.Fatalf("Sentiment = %q, want %q", got.Sentiment, "positive")
	}

	err = l.SetSentiment(ctx, "missing", "negative")
	if !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	for i := 0; i < 3; i++ {
		if _, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", "r", ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := l.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := l.Session(ctx, s.ID); !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	for _, err := range l.ListFor(ctx, s.ID) {
		if err != nil {
			t.Fatalf("ListFor: %v", err)
		}
		t.Fatal("exchange survived session delete")
	}

	if err := l.DeleteSession(ctx, s.ID); !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double delete, got %v", err)
	}
}

func TestLast(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	s := newTestSession(t, l)

	if _, err := l.Last(ctx, s.ID); !errors.Is(err, ledger.ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext on empty session, got %v", err)
	}

	if _, err := l.Append(ctx, s.ID, ledger.SpeakerUser, "", "first", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	want, err := l.Append(ctx, s.ID, ledger.SpeakerAgent, "", "second", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Last(ctx, s.ID)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("Last ID = %d, want %d", got.ID, want.ID)
	}
}
