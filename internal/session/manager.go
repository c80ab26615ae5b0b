package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Manager hands out sessions keyed by user email, one turn at a time.
// Acquire locks the per-user slot so a turn's read-modify-write is a
// single critical section; turns for different users run concurrently.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu   sync.Mutex
	sess *Session
}

func NewManager(store Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logger,
		slots:  make(map[string]*slot),
	}
}

// Acquire returns the user's session with its slot locked, plus a release
// function that flushes the session to the store and unlocks. The session
// is rehydrated from the store when not cached, or recreated fresh when
// the snapshot is stale or the load fails.
func (m *Manager) Acquire(ctx context.Context, userEmail string) (*Session, func()) {
	key := strings.ToLower(strings.TrimSpace(userEmail))

	m.mu.Lock()
	sl, ok := m.slots[key]
	if !ok {
		sl = &slot{}
		m.slots[key] = sl
	}
	m.mu.Unlock()

	sl.mu.Lock()

	if sl.sess != nil && time.Since(sl.sess.LastInteraction) > m.ttl {
		m.logger.Info("evicting stale session", "user", key)
		sl.sess = nil
	}

	if sl.sess == nil {
		sl.sess = m.load(ctx, userEmail)
	}
	sl.sess.LastInteraction = time.Now().UTC()

	sess := sl.sess
	release := func() {
		if err := m.store.SaveSession(ctx, sess); err != nil {
			// Non-fatal: the in-memory session stays authoritative.
			m.logger.Warn("session save failed", "user", key, "error", err)
		}
		sl.mu.Unlock()
	}
	return sess, release
}

func (m *Manager) load(ctx context.Context, userEmail string) *Session {
	sess, err := m.store.LoadSession(ctx, userEmail, m.ttl)
	if err != nil {
		m.logger.Warn("session load failed, starting fresh", "user", userEmail, "error", err)
		return NewSession(userEmail)
	}
	if sess == nil {
		return NewSession(userEmail)
	}
	return sess
}
