package store

import (
	"context"
	"fmt"

	"github.com/chronoware/tally/internal/timesheet"
)

// SubmitEntries persists a batch of fully-valid entries, upserting on the
// identity key (user, date, project code) within each system's table. The
// mandatory-comment rule is enforced once more here: this is the last
// gate before rows are written.
func (s *Store) SubmitEntries(ctx context.Context, userEmail string, entries []timesheet.CompleteEntry) (*timesheet.SubmitResult, error) {
	for i, entry := range entries {
		if _, ok := timesheet.ValidComments(entry.Comments); !ok {
			return nil, fmt.Errorf("entry #%d for project %s is missing mandatory comments", i+1, entry.ProjectCode)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &timesheet.SubmitResult{}
	systems := make(map[timesheet.System]bool)

	for _, entry := range entries {
		table, err := tableFor(entry.System)
		if err != nil {
			return nil, err
		}

		var id int64
		err = tx.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO %s (user_email, entry_date, project_code, task_code, hours, comments, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'submitted')
			ON CONFLICT (user_email, entry_date, project_code) DO UPDATE
			SET task_code = EXCLUDED.task_code,
			    hours = EXCLUDED.hours,
			    comments = EXCLUDED.comments,
			    status = 'submitted',
			    updated_at = now()
			RETURNING id`, table),
			userEmail, entry.Date, entry.ProjectCode, nullable(entry.TaskCode), entry.Hours, entry.Comments,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert %s entry: %w", entry.System, err)
		}

		result.Submitted = append(result.Submitted, timesheet.SubmittedEntry{
			ID:          id,
			System:      entry.System,
			Date:        entry.Date,
			ProjectCode: entry.ProjectCode,
			Hours:       entry.Hours,
			Comments:    entry.Comments,
		})
		result.TotalHours += entry.Hours
		if !systems[entry.System] {
			systems[entry.System] = true
			result.SystemsUsed = append(result.SystemsUsed, entry.System)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result.EntriesSubmitted = len(result.Submitted)
	return result, nil
}

// ListEntries reads back a user's rows from one system's table, newest
// first.
func (s *Store) ListEntries(ctx context.Context, userEmail string, sys timesheet.System) ([]timesheet.StoredEntry, error) {
	table, err := tableFor(sys)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, entry_date::text, project_code, COALESCE(task_code, ''), hours, comments, status
		FROM %s
		WHERE user_email = $1
		ORDER BY entry_date DESC, created_at DESC`, table),
		userEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s entries: %w", sys, err)
	}
	defer rows.Close()

	var entries []timesheet.StoredEntry
	for rows.Next() {
		var e timesheet.StoredEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.ProjectCode, &e.TaskCode, &e.Hours, &e.Comments, &e.Status); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes one of the user's rows from a system table. It
// reports whether a row was actually deleted.
func (s *Store) DeleteEntry(ctx context.Context, userEmail string, sys timesheet.System, id int64) (bool, error) {
	table, err := tableFor(sys)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND user_email = $2`, table),
		id, userEmail,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s entry: %w", sys, err)
	}
	return tag.RowsAffected() > 0, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
