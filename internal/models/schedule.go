package models

import "time"

// AssignmentStatus tracks whether a record is a regular class or a fixed block.
type AssignmentStatus string

const (
	AssignmentStatusPending AssignmentStatus = "pending"
	AssignmentStatusFixed   AssignmentStatus = "fixed"
)

// AssignmentOrigin distinguishes generated records from hand-entered ones.
type AssignmentOrigin string

const (
	AssignmentOriginAuto   AssignmentOrigin = "auto"
	AssignmentOriginManual AssignmentOrigin = "manual"
)

// ScheduleType reports whether the section meets in a bound room.
type ScheduleType string

const (
	ScheduleTypeOnsite ScheduleType = "Onsite"
	ScheduleTypeOnline ScheduleType = "Online"
)

// Assignment is one concrete scheduling record stored in the schedules table.
// Fixed blocks carry a label and no subject or professor.
type Assignment struct {
	ID           string           `db:"id" json:"id"`
	SchoolYear   string           `db:"school_year" json:"school_year"`
	Term         string           `db:"term" json:"term"`
	SubjectID    *string          `db:"subject_id" json:"subject_id,omitempty"`
	ProfessorID  *string          `db:"professor_id" json:"professor_id,omitempty"`
	SectionID    string           `db:"section_id" json:"section_id"`
	RoomID       *string          `db:"room_id" json:"room_id"`
	Day          Weekday          `db:"day_of_week" json:"day_of_week"`
	StartTime    Clock            `db:"start_time" json:"start_time"`
	EndTime      Clock            `db:"end_time" json:"end_time"`
	Status       AssignmentStatus `db:"status" json:"status"`
	Origin       AssignmentOrigin `db:"origin" json:"origin"`
	ScheduleType ScheduleType     `db:"schedule_type" json:"schedule_type"`
	Label        *string          `db:"label" json:"label,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// Period returns the scope of the record.
func (a Assignment) Period() Period {
	return Period{SchoolYear: a.SchoolYear, Term: a.Term}
}

// Range returns the record's time range.
func (a Assignment) Range() TimeRange {
	return TimeRange{Start: a.StartTime, End: a.EndTime}
}

// Minutes returns the record's duration.
func (a Assignment) Minutes() int {
	return a.Range().Minutes()
}

// Subject returns the subject id or an empty string for fixed blocks.
func (a Assignment) Subject() string {
	return deref(a.SubjectID)
}

// Professor returns the professor id or an empty string for fixed blocks.
func (a Assignment) Professor() string {
	return deref(a.ProfessorID)
}

// Room returns the room id or an empty string for online records.
func (a Assignment) Room() string {
	return deref(a.RoomID)
}

// IsFixed reports whether the record is a professor-less fixed block.
func (a Assignment) IsFixed() bool {
	return a.Status == AssignmentStatusFixed
}

// Movable reports whether the balancer may change the professor.
func (a Assignment) Movable() bool {
	return a.Origin == AssignmentOriginAuto && !a.IsFixed() && a.ProfessorID != nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
