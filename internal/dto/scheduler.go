package dto

import (
	"time"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// Seed modes for the pending worklist.
const (
	SeedModeDerive   = "derive"
	SeedModeExplicit = "explicit"
)

// Tie-break strategies.
const (
	TieBreakDeterministic = "deterministic"
	TieBreakWeighted      = "weighted"
)

// FixedBlockRequest describes a non-academic block inserted once per section per day.
type FixedBlockRequest struct {
	Label     string `json:"label" validate:"required,max=64"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
}

// GenerateTimetableRequest configures a generation run for one period.
// Zero values fall back to the scheduler configuration.
type GenerateTimetableRequest struct {
	SchoolYear              string              `json:"schoolYear" validate:"required"`
	Term                    string              `json:"term" validate:"required"`
	Days                    []string            `json:"days" validate:"omitempty,max=7,dive,required"`
	StartTime               string              `json:"startTime" validate:"omitempty,clock"`
	EndTime                 string              `json:"endTime" validate:"omitempty,clock"`
	SlotMinutes             int                 `json:"slotMinutes"`
	LunchStart              string              `json:"lunchStart" validate:"omitempty,clock"`
	LunchEnd                string              `json:"lunchEnd" validate:"omitempty,clock"`
	MaxSectionPerDay        int                 `json:"maxSectionPerDay" validate:"min=0"`
	MaxProfessorPerDay      int                 `json:"maxProfessorPerDay" validate:"min=0"`
	SubjectWeeklyCapMinutes int                 `json:"subjectWeeklyCapMinutes" validate:"min=0"`
	ProfessorWeeklyCap      int                 `json:"professorWeeklyCap" validate:"min=0"`
	SeedMode                string              `json:"seedMode" validate:"omitempty,oneof=derive explicit"`
	InsertFixedBlocks       bool                `json:"insertFixedBlocks"`
	FixedBlocks             []FixedBlockRequest `json:"fixedBlocks" validate:"omitempty,dive"`
	ReplaceExisting         bool                `json:"replaceExisting"`
	RunBalancer             bool                `json:"runBalancer"`
	TieBreak                string              `json:"tieBreak" validate:"omitempty,oneof=deterministic weighted"`
	Seed                    int64               `json:"seed"`
}

// Period returns the request scope.
func (r GenerateTimetableRequest) Period() models.Period {
	return models.Period{SchoolYear: r.SchoolYear, Term: r.Term}
}

// RebalanceRequest runs the balancer over a period's stored assignments.
type RebalanceRequest struct {
	SchoolYear  string  `json:"schoolYear" validate:"required"`
	Term        string  `json:"term" validate:"required"`
	MaxHours    float64 `json:"maxHours" validate:"min=0"`
	MaxSubjects int     `json:"maxSubjects" validate:"min=0"`
	TargetHours float64 `json:"targetHours" validate:"min=0"`
}

// Period returns the request scope.
func (r RebalanceRequest) Period() models.Period {
	return models.Period{SchoolYear: r.SchoolYear, Term: r.Term}
}

// PeriodQuery selects a period on read endpoints.
type PeriodQuery struct {
	SchoolYear string `form:"schoolYear" json:"schoolYear"`
	Term       string `form:"term" json:"term"`
}

// Period returns the query scope.
func (q PeriodQuery) Period() models.Period {
	return models.Period{SchoolYear: q.SchoolYear, Term: q.Term}
}

// ConflictEvent records a candidate rejected because an existing record overlaps it.
type ConflictEvent struct {
	Type          string         `json:"type"`
	SectionID     string         `json:"sectionId"`
	SubjectID     string         `json:"subjectId,omitempty"`
	ProfessorID   string         `json:"professorId,omitempty"`
	RoomID        string         `json:"roomId,omitempty"`
	ConflictingID string         `json:"conflictingId,omitempty"`
	Day           models.Weekday `json:"day"`
	StartTime     models.Clock   `json:"startTime"`
	EndTime       models.Clock   `json:"endTime"`
}

// UnassignablePairing reports a unit that was skipped or only partially scheduled.
type UnassignablePairing struct {
	SectionID        string `json:"sectionId"`
	SubjectID        string `json:"subjectId"`
	ProfessorID      string `json:"professorId,omitempty"`
	Reason           string `json:"reason"`
	RequiredMinutes  int    `json:"requiredMinutes"`
	RemainingMinutes int    `json:"remainingMinutes"`
}

// GenerationReport summarises a committed generation run.
type GenerationReport struct {
	RunID               string                `json:"runId"`
	SchoolYear          string                `json:"schoolYear"`
	Term                string                `json:"term"`
	Inserted            int                   `json:"inserted"`
	Skipped             int                   `json:"skipped"`
	Deleted             int                   `json:"deleted"`
	FixedBlocksInserted int                   `json:"fixedBlocksInserted"`
	ConflictCount       int                   `json:"conflictCount"`
	Conflicts           []ConflictEvent       `json:"conflicts"`
	Unassignable        []UnassignablePairing `json:"unassignable"`
	Rebalance           *RebalanceReport      `json:"rebalance,omitempty"`
	DurationMs          int64                 `json:"durationMs"`
	GeneratedAt         time.Time             `json:"generatedAt"`
}

// ProfessorWorkload is one professor's weekly load.
type ProfessorWorkload struct {
	ProfessorID     string                `json:"professorId"`
	Name            string                `json:"name"`
	AssignmentCount int                   `json:"assignmentCount"`
	SubjectCount    int                   `json:"subjectCount"`
	TotalMinutes    int                   `json:"totalMinutes"`
	TotalHours      float64               `json:"totalHours"`
	Status          models.WorkloadStatus `json:"status"`
}

// WorkloadReport aggregates per-professor load for a period.
type WorkloadReport struct {
	SchoolYear  string              `json:"schoolYear"`
	Term        string              `json:"term"`
	Professors  []ProfessorWorkload `json:"professors"`
	Overloaded  int                 `json:"overloaded"`
	Underloaded int                 `json:"underloaded"`
	Balanced    int                 `json:"balanced"`
	MeanMinutes float64             `json:"meanMinutes"`
	Variance    float64             `json:"variance"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// ReassignmentAction records one professor change made by the balancer.
type ReassignmentAction struct {
	AssignmentID    string         `json:"assignmentId"`
	SectionID       string         `json:"sectionId"`
	SubjectID       string         `json:"subjectId"`
	FromProfessorID string         `json:"fromProfessorId"`
	ToProfessorID   string         `json:"toProfessorId"`
	Day             models.Weekday `json:"day"`
	StartTime       models.Clock   `json:"startTime"`
	EndTime         models.Clock   `json:"endTime"`
	Minutes         int            `json:"minutes"`
}

// RebalanceReport captures the balancer's before/after snapshots and actions.
type RebalanceReport struct {
	RunID      string               `json:"runId,omitempty"`
	SchoolYear string               `json:"schoolYear"`
	Term       string               `json:"term"`
	Before     WorkloadReport       `json:"before"`
	After      WorkloadReport       `json:"after"`
	Actions    []ReassignmentAction `json:"actions"`
}

// Generation job states.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// GenerationJob tracks an asynchronous generation request.
type GenerationJob struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	SchoolYear string            `json:"schoolYear"`
	Term       string            `json:"term"`
	Report     *GenerationReport `json:"report,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// InvariantViolation is reported by the verifier for a stored timetable.
type InvariantViolation struct {
	Rule          string         `json:"rule"`
	AssignmentID  string         `json:"assignmentId"`
	ConflictingID string         `json:"conflictingId,omitempty"`
	Subject       string         `json:"subject,omitempty"`
	Day           models.Weekday `json:"day,omitempty"`
	Message       string         `json:"message"`
}
