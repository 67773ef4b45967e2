package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// SubjectRepository reads subjects and their weekly targets.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByPeriod returns the subjects of the period ordered by id.
func (r *SubjectRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.Subject, error) {
	const query = `SELECT id, school_year, term, code, name, grade_level, strand, weekly_hours, created_at, updated_at
FROM subjects WHERE school_year = $1 AND term = $2 ORDER BY id`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
