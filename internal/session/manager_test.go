package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	loaded  *Session
	loadErr error
	saveErr error

	loadCalls int
	saveCalls int
	lastSaved *Session
}

func (f *fakeStore) LoadSession(_ context.Context, userEmail string, _ time.Duration) (*Session, error) {
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loaded, nil
}

func (f *fakeStore) SaveSession(_ context.Context, s *Session) error {
	f.saveCalls++
	f.lastSaved = s
	return f.saveErr
}

func TestAcquire_FreshSession(t *testing.T) {
	st := &fakeStore{}
	m := NewManager(st, DefaultTTL, discardLogger())

	sess, release := m.Acquire(context.Background(), "dev@example.com")
	if sess.UserEmail != "dev@example.com" {
		t.Errorf("expected email set, got %q", sess.UserEmail)
	}
	if sess.Phase != PhaseGathering {
		t.Errorf("expected gathering phase, got %s", sess.Phase)
	}
	release()

	if st.saveCalls != 1 {
		t.Errorf("expected release to save, got %d saves", st.saveCalls)
	}
}

func TestAcquire_ReusesCachedSession(t *testing.T) {
	st := &fakeStore{}
	m := NewManager(st, DefaultTTL, discardLogger())

	sess1, release := m.Acquire(context.Background(), "dev@example.com")
	sess1.Phase = PhaseConfirmation
	release()

	sess2, release := m.Acquire(context.Background(), "Dev@Example.com ")
	defer release()

	if sess1 != sess2 {
		t.Error("expected same session across turns regardless of email case")
	}
	if st.loadCalls != 1 {
		t.Errorf("expected one store load, got %d", st.loadCalls)
	}
}

func TestAcquire_RehydratesFromStore(t *testing.T) {
	stored := NewSession("dev@example.com")
	stored.Phase = PhaseConfirmation
	st := &fakeStore{loaded: stored}
	m := NewManager(st, DefaultTTL, discardLogger())

	sess, release := m.Acquire(context.Background(), "dev@example.com")
	defer release()

	if sess.Phase != PhaseConfirmation {
		t.Errorf("expected stored phase, got %s", sess.Phase)
	}
}

func TestAcquire_StaleSessionEvicted(t *testing.T) {
	st := &fakeStore{}
	m := NewManager(st, time.Hour, discardLogger())

	sess1, release := m.Acquire(context.Background(), "dev@example.com")
	sess1.Phase = PhaseConfirmation
	sess1.LastInteraction = time.Now().UTC().Add(-2 * time.Hour)
	release()

	sess2, release := m.Acquire(context.Background(), "dev@example.com")
	defer release()

	if sess2 == sess1 {
		t.Error("expected stale session replaced")
	}
	if sess2.Phase != PhaseGathering {
		t.Errorf("expected fresh session, got phase %s", sess2.Phase)
	}
}

func TestAcquire_LoadFailureStartsFresh(t *testing.T) {
	st := &fakeStore{loadErr: errors.New("connection refused")}
	m := NewManager(st, DefaultTTL, discardLogger())

	sess, release := m.Acquire(context.Background(), "dev@example.com")
	defer release()

	if sess == nil || sess.Phase != PhaseGathering {
		t.Errorf("expected fresh session on load failure, got %+v", sess)
	}
}

func TestRelease_SaveFailureNonFatal(t *testing.T) {
	st := &fakeStore{saveErr: errors.New("disk full")}
	m := NewManager(st, DefaultTTL, discardLogger())

	sess1, release := m.Acquire(context.Background(), "dev@example.com")
	sess1.Phase = PhaseConfirmation
	release()

	// The in-memory session stays authoritative after a failed flush.
	sess2, release := m.Acquire(context.Background(), "dev@example.com")
	defer release()

	if sess2.Phase != PhaseConfirmation {
		t.Errorf("expected in-memory session preserved, got %s", sess2.Phase)
	}
}

func TestAcquire_TouchesLastInteraction(t *testing.T) {
	st := &fakeStore{}
	m := NewManager(st, DefaultTTL, discardLogger())

	before := time.Now().UTC()
	sess, release := m.Acquire(context.Background(), "dev@example.com")
	release()

	if sess.LastInteraction.Before(before) {
		t.Errorf("expected LastInteraction refreshed, got %v", sess.LastInteraction)
	}
}
