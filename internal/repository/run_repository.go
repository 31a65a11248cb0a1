package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"reconboard/internal/domain"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// querier is the part of *pgxpool.Pool the repository needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRepository stores one summary row per reconciliation run.
type RunRepository struct {
	db querier
}

func NewRunRepository(db querier) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Record(ctx context.Context, run domain.RunSummary) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO reconciliation_runs (
			id,
			source,
			taobao_orders,
			jd_orders,
			flow_lines,
			record_count,
			review_count,
			total_revenue,
			total_cost,
			gross_margin,
			created_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID,
		string(run.Source),
		run.Stats.Taobao,
		run.Stats.JD,
		run.Stats.Flow,
		run.RecordCount,
		run.ReviewCount,
		run.TotalRevenue,
		run.TotalCost,
		run.GrossMargin,
		run.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert reconciliation run: %w", err)
	}
	return nil
}

// List returns the most recent runs first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	limit = normalizeRunLimit(limit)
	rows, err := r.db.Query(ctx, `
		SELECT
			id::text,
			source,
			taobao_orders,
			jd_orders,
			flow_lines,
			record_count,
			review_count,
			total_revenue,
			total_cost,
			gross_margin,
			created_at
		FROM reconciliation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.RunSummary, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reconciliation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconciliation runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (domain.RunSummary, error) {
	var (
		run    domain.RunSummary
		source string
	)
	if err := row.Scan(
		&run.ID,
		&source,
		&run.Stats.Taobao,
		&run.Stats.JD,
		&run.Stats.Flow,
		&run.RecordCount,
		&run.ReviewCount,
		&run.TotalRevenue,
		&run.TotalCost,
		&run.GrossMargin,
		&run.CreatedAt,
	); err != nil {
		return domain.RunSummary{}, err
	}
	run.Source = domain.DataSource(source)
	return run, nil
}

func normalizeRunLimit(limit int) int {
	if limit <= 0 {
		return defaultRunLimit
	}
	if limit > maxRunLimit {
		return maxRunLimit
	}
	return limit
}
