package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chronoware/tally/internal/timesheet"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// tableFor maps a system to its timesheet table. Each backend keeps its
// own table, mirroring the upstream systems the entries are booked into.
func tableFor(sys timesheet.System) (string, error) {
	switch sys {
	case timesheet.SystemOracle:
		return "oracle_timesheet", nil
	case timesheet.SystemMars:
		return "mars_timesheet", nil
	}
	return "", fmt.Errorf("unknown system %q", sys)
}
