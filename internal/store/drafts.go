package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chronoware/tally/internal/timesheet"
)

// SaveDraft stores a pre-confirmation snapshot of a batch. Drafts obey
// the same mandatory-comment rule as submissions.
func (s *Store) SaveDraft(ctx context.Context, userEmail string, entries []timesheet.CompleteEntry) (uuid.UUID, error) {
	for i, entry := range entries {
		if _, ok := timesheet.ValidComments(entry.Comments); !ok {
			return uuid.Nil, fmt.Errorf("draft entry #%d for project %s needs mandatory comments", i+1, entry.ProjectCode)
		}
	}

	var totalHours float64
	seen := make(map[timesheet.System]bool)
	var systems []string
	for _, entry := range entries {
		totalHours += entry.Hours
		if !seen[entry.System] {
			seen[entry.System] = true
			systems = append(systems, string(entry.System))
		}
	}

	data, err := json.Marshal(map[string]any{
		"entries":      entries,
		"total_hours":  totalHours,
		"systems_used": systems,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode draft: %w", err)
	}

	draftID := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO timesheet_drafts (draft_id, user_email, draft_data, total_hours, systems_used)
		VALUES ($1, $2, $3, $4, $5)`,
		draftID, userEmail, data, totalHours, strings.Join(systems, ","),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert draft: %w", err)
	}
	return draftID, nil
}
