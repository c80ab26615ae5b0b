package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chronoware/tally/internal/session"
)

// LoadSession returns the user's most recent session snapshot, or
// (nil, nil) when none exists within the staleness window.
func (s *Store) LoadSession(ctx context.Context, userEmail string, maxAge time.Duration) (*session.Session, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT session_data
		FROM conversation_sessions
		WHERE user_email = $1 AND last_interaction > $2
		ORDER BY last_interaction DESC
		LIMIT 1`,
		userEmail, cutoff,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// SaveSession upserts the session snapshot keyed by user email.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_sessions (user_email, session_data, conversation_phase, last_interaction)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_email) DO UPDATE
		SET session_data = EXCLUDED.session_data,
		    conversation_phase = EXCLUDED.conversation_phase,
		    last_interaction = now()`,
		sess.UserEmail, data, string(sess.Phase),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
