package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

const assignmentColumns = `id, school_year, term, subject_id, professor_id, section_id, room_id, day_of_week,
start_time, end_time, status, origin, schedule_type, label, created_at, updated_at`

// AssignmentRepository persists timetable records in the schedules table.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByPeriod returns every record of the period. Pass the run transaction to see its own writes.
func (r *AssignmentRepository) ListByPeriod(ctx context.Context, exec sqlx.ExtContext, period models.Period) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
FROM schedules WHERE school_year = $1 AND term = $2 ORDER BY section_id, id`
	var assignments []models.Assignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Insert stores a new record, assigning an id and timestamps when absent.
func (r *AssignmentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	if assignment == nil {
		return fmt.Errorf("assignment payload is nil")
	}
	if assignment.SectionID == "" || !assignment.Day.Valid() {
		return fmt.Errorf("section_id and day_of_week are required")
	}
	if assignment.StartTime >= assignment.EndTime {
		return fmt.Errorf("start_time must be before end_time")
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusPending
	}
	if assignment.Origin == "" {
		assignment.Origin = models.AssignmentOriginAuto
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `
INSERT INTO schedules (id, school_year, term, subject_id, professor_id, section_id, room_id, day_of_week,
	start_time, end_time, status, origin, schedule_type, label, created_at, updated_at)
VALUES (:id, :school_year, :term, :subject_id, :professor_id, :section_id, :room_id, :day_of_week,
	:start_time, :end_time, :status, :origin, :schedule_type, :label, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// UpdateProfessor changes the professor of a generated record. Manual records are never touched.
func (r *AssignmentRepository) UpdateProfessor(ctx context.Context, exec sqlx.ExtContext, id, professorID string) error {
	const query = `UPDATE schedules SET professor_id = $1, updated_at = $2 WHERE id = $3 AND origin = 'auto'`
	result, err := r.exec(exec).ExecContext(ctx, query, professorID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update assignment professor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assignment professor rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a record.
func (r *AssignmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM schedules WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assignment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
