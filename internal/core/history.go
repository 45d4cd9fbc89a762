package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run summarizes one completed clean job. Cell contents are never stored.
type Run struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	Format         Format    `json:"format"`
	Rows           int       `json:"rows"`
	Columns        int       `json:"columns"`
	ChangedCells   int       `json:"changed_cells"`
	ChangedColumns int       `json:"changed_columns"`
	DurationMS     int64     `json:"duration_ms"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryStore persists run summaries.
type HistoryStore interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	// PurgeBefore deletes runs created before cutoff and returns how many.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NopHistory discards everything. Used when no database is configured.
type NopHistory struct{}

func (NopHistory) Record(context.Context, Run) error { return nil }
func (NopHistory) Recent(context.Context, int) ([]Run, error) { return []Run{}, nil }
func (NopHistory) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, nil }

// ----------------------------------------------------------------------------
// PostgreSQL
// ----------------------------------------------------------------------------

// PgHistory stores runs in the clean_runs table.
type PgHistory struct {
	pool *pgxpool.Pool
}

// NewPgHistory wraps pool. The clean_runs table must exist; see RunMigrations.
func NewPgHistory(pool *pgxpool.Pool) *PgHistory {
	return &PgHistory{pool: pool}
}

func (h *PgHistory) Record(ctx context.Context, run Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("record clean run: %w", err)
	}

	_, err = h.pool.Exec(ctx, `
		INSERT INTO clean_runs (
			id, file_name, format, row_count, column_count,
			changed_cells, changed_columns, duration_ms,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, run.FileName, string(run.Format), run.Rows, run.Columns,
		run.ChangedCells, run.ChangedColumns, run.DurationMS,
		run.IPAddress, run.UserAgent, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record clean run: %w", err)
	}
	return nil
}

func (h *PgHistory) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT id::text, file_name, format, row_count, column_count,
		       changed_cells, changed_columns, duration_ms,
		       ip_address, user_agent, created_at
		FROM clean_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query clean runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var r Run
		var format string
		err := row.Scan(
			&r.ID, &r.FileName, &format, &r.Rows, &r.Columns,
			&r.ChangedCells, &r.ChangedColumns, &r.DurationMS,
			&r.IPAddress, &r.UserAgent, &r.CreatedAt,
		)
		r.Format = Format(format)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan clean runs: %w", err)
	}
	return runs, nil
}

func (h *PgHistory) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := h.pool.Exec(ctx, `DELETE FROM clean_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge clean runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
