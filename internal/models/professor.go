package models

import (
	"time"

	"github.com/lib/pq"
)

// Professor is an instructor available in a planning period.
type Professor struct {
	ID         string         `db:"id" json:"id"`
	SchoolYear string         `db:"school_year" json:"school_year"`
	Term       string         `db:"term" json:"term"`
	Name       string         `db:"name" json:"name"`
	SubjectIDs pq.StringArray `db:"subject_ids" json:"subject_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Qualified reports whether the professor may teach the subject.
func (p Professor) Qualified(subjectID string) bool {
	for _, id := range p.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}
