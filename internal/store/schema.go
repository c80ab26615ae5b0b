package store

import (
	"context"
	"fmt"
)

// Table DDL. Hours and comment constraints are duplicated here so the
// database rejects anything the application layer let through.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS oracle_timesheet (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_email TEXT NOT NULL,
		entry_date DATE NOT NULL,
		project_code TEXT NOT NULL,
		task_code TEXT,
		hours NUMERIC(5,2) NOT NULL CHECK (hours > 0 AND hours <= 24),
		comments TEXT NOT NULL CHECK (length(trim(comments)) >= 3),
		status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'submitted', 'approved')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_email, entry_date, project_code)
	)`,
	`CREATE TABLE IF NOT EXISTS mars_timesheet (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_email TEXT NOT NULL,
		entry_date DATE NOT NULL,
		project_code TEXT NOT NULL,
		task_code TEXT,
		hours NUMERIC(5,2) NOT NULL CHECK (hours > 0 AND hours <= 24),
		comments TEXT NOT NULL CHECK (length(trim(comments)) >= 3),
		status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'submitted', 'approved')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_email, entry_date, project_code)
	)`,
	`CREATE TABLE IF NOT EXISTS project_codes (
		id INT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		project_code TEXT NOT NULL,
		project_name TEXT NOT NULL,
		system TEXT NOT NULL CHECK (system IN ('Oracle', 'Mars', 'Both')),
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_sessions (
		user_email TEXT PRIMARY KEY,
		session_data JSONB NOT NULL,
		conversation_phase TEXT NOT NULL,
		last_interaction TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS timesheet_drafts (
		draft_id UUID PRIMARY KEY,
		user_email TEXT NOT NULL,
		draft_data JSONB NOT NULL,
		total_hours NUMERIC(8,2) NOT NULL,
		systems_used TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_oracle_timesheet_user_date ON oracle_timesheet (user_email, entry_date)`,
	`CREATE INDEX IF NOT EXISTS ix_mars_timesheet_user_date ON mars_timesheet (user_email, entry_date)`,
	`CREATE INDEX IF NOT EXISTS ix_timesheet_drafts_user ON timesheet_drafts (user_email)`,
}

// seedProjects is inserted once, when the catalog is empty.
var seedProjects = [][3]string{
	{"ORG-001", "Oracle Core Development", "Oracle"},
	{"ORG-002", "Oracle Database Maintenance", "Oracle"},
	{"ORG-003", "Oracle Integration Services", "Oracle"},
	{"ORG-004", "Oracle Security Implementation", "Oracle"},
	{"ORG-005", "Oracle Performance Optimization", "Oracle"},
	{"MRS-001", "Mars Data Processing", "Mars"},
	{"MRS-002", "Mars Analytics Platform", "Mars"},
	{"MRS-003", "Mars Reporting Services", "Mars"},
	{"MRS-004", "Mars Machine Learning", "Mars"},
	{"MRS-005", "Mars Data Visualization", "Mars"},
	{"CMN-001", "Common Documentation", "Both"},
	{"CMN-002", "Common Training", "Both"},
	{"CMN-003", "Common Testing", "Both"},
	{"CMN-004", "Common Architecture", "Both"},
	{"CMN-005", "Common Security", "Both"},
}

// EnsureSchema creates missing tables and seeds the project catalog.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM project_codes`).Scan(&count); err != nil {
		return fmt.Errorf("count project codes: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range seedProjects {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO project_codes (project_code, project_name, system)
			VALUES ($1, $2, $3)`,
			p[0], p[1], p[2],
		)
		if err != nil {
			return fmt.Errorf("seed project code %s: %w", p[0], err)
		}
	}
	return nil
}
