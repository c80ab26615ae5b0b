package store

import (
	"context"
	"fmt"

	"github.com/chronoware/tally/internal/timesheet"
)

// ListProjectCodes returns the active project catalog. With a system it
// returns that system's codes plus the shared "Both" codes; with an empty
// system it returns everything.
func (s *Store) ListProjectCodes(ctx context.Context, system string) ([]timesheet.ProjectCode, error) {
	query := `
		SELECT project_code, project_name, system
		FROM project_codes
		WHERE is_active
		ORDER BY system, project_code`
	args := []any{}
	if system != "" {
		query = `
			SELECT project_code, project_name, system
			FROM project_codes
			WHERE (system = $1 OR system = 'Both') AND is_active
			ORDER BY project_code`
		args = append(args, system)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query project codes: %w", err)
	}
	defer rows.Close()

	var codes []timesheet.ProjectCode
	for rows.Next() {
		var c timesheet.ProjectCode
		if err := rows.Scan(&c.Code, &c.Name, &c.System); err != nil {
			return nil, fmt.Errorf("scan project code row: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project code rows: %w", err)
	}
	return codes, nil
}
