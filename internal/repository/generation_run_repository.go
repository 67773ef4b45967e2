package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// GenerationRunRepository persists the versioned history of generation and rebalance runs.
type GenerationRunRepository struct {
	db *sqlx.DB
}

// NewGenerationRunRepository constructs the repository.
func NewGenerationRunRepository(db *sqlx.DB) *GenerationRunRepository {
	return &GenerationRunRepository{db: db}
}

func (r *GenerationRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for the period.
func (r *GenerationRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.GenerationRun) error {
	if run == nil {
		return fmt.Errorf("generation run payload is nil")
	}
	if run.SchoolYear == "" || run.Term == "" {
		return fmt.Errorf("school_year and term are required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Kind == "" {
		run.Kind = models.GenerationRunGenerate
	}
	if len(run.Report) == 0 {
		run.Report = types.JSONText(`{}`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM generation_runs WHERE school_year = $1 AND term = $2`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.SchoolYear, run.Term); err != nil {
		return fmt.Errorf("compute next generation run version: %w", err)
	}

	const insertQuery = `
INSERT INTO generation_runs (id, school_year, term, version, kind, report, created_at)
VALUES (:id, :school_year, :term, :version, :kind, :report, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert generation run: %w", err)
	}
	return nil
}

// ListByPeriod returns the most recent runs of the period, newest first.
func (r *GenerationRunRepository) ListByPeriod(ctx context.Context, period models.Period, limit int) ([]models.GenerationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, school_year, term, version, kind, report, created_at
FROM generation_runs WHERE school_year = $1 AND term = $2 ORDER BY version DESC LIMIT $3`
	var runs []models.GenerationRun
	if err := r.db.SelectContext(ctx, &runs, query, period.SchoolYear, period.Term, limit); err != nil {
		return nil, fmt.Errorf("list generation runs: %w", err)
	}
	return runs, nil
}
