package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// SectionRepository reads sections and their explicit subject requirements.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListByPeriod returns the sections of the period ordered by id.
func (r *SectionRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.Section, error) {
	const query = `SELECT id, school_year, term, name, grade_level, strand, subject_ids, created_at, updated_at
FROM sections WHERE school_year = $1 AND term = $2 ORDER BY id`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ListSubjects returns explicit section-subject requirements for the period.
func (r *SectionRepository) ListSubjects(ctx context.Context, period models.Period) ([]models.SectionSubject, error) {
	const query = `SELECT id, school_year, term, section_id, subject_id, professor_id, required_minutes, created_at
FROM section_subjects WHERE school_year = $1 AND term = $2 ORDER BY section_id, subject_id`
	var items []models.SectionSubject
	if err := r.db.SelectContext(ctx, &items, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list section subjects: %w", err)
	}
	return items, nil
}
