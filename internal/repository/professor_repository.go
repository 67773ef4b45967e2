package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// ProfessorRepository reads professors and their qualification sets.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository constructs the repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// ListByPeriod returns the professors available in the period ordered by id.
func (r *ProfessorRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.Professor, error) {
	const query = `SELECT id, school_year, term, name, subject_ids, created_at, updated_at
FROM professors WHERE school_year = $1 AND term = $2 ORDER BY id`
	var professors []models.Professor
	if err := r.db.SelectContext(ctx, &professors, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	return professors, nil
}
