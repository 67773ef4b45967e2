package models

import (
	"time"

	"github.com/lib/pq"
)

// Section is a group of students sharing a grade level and strand.
type Section struct {
	ID         string         `db:"id" json:"id"`
	SchoolYear string         `db:"school_year" json:"school_year"`
	Term       string         `db:"term" json:"term"`
	Name       string         `db:"name" json:"name"`
	GradeLevel string         `db:"grade_level" json:"grade_level"`
	Strand     string         `db:"strand" json:"strand"`
	SubjectIDs pq.StringArray `db:"subject_ids" json:"subject_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// SectionSubject is an explicit weekly requirement for a section/subject pair.
type SectionSubject struct {
	ID              string    `db:"id" json:"id"`
	SchoolYear      string    `db:"school_year" json:"school_year"`
	Term            string    `db:"term" json:"term"`
	SectionID       string    `db:"section_id" json:"section_id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	ProfessorID     *string   `db:"professor_id" json:"professor_id,omitempty"`
	RequiredMinutes int       `db:"required_minutes" json:"required_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
