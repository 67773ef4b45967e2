package models

import (
	"math"
	"time"
)

// Subject represents an academic subject offered to a grade level and strand.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	SchoolYear  string    `db:"school_year" json:"school_year"`
	Term        string    `db:"term" json:"term"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	GradeLevel  string    `db:"grade_level" json:"grade_level"`
	Strand      string    `db:"strand" json:"strand"`
	WeeklyHours float64   `db:"weekly_hours" json:"weekly_hours"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyMinutes converts the hour target to minutes, capped when capMinutes > 0.
func (s Subject) WeeklyMinutes(capMinutes int) int {
	minutes := int(math.Round(s.WeeklyHours * 60))
	if minutes < 0 {
		minutes = 0
	}
	if capMinutes > 0 && minutes > capMinutes {
		return capMinutes
	}
	return minutes
}

// Matches reports grade-level and strand equality with a section.
func (s Subject) Matches(section Section) bool {
	return s.GradeLevel == section.GradeLevel && s.Strand == section.Strand
}
