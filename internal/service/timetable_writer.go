package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

type assignmentStore interface {
	ListByPeriod(ctx context.Context, exec sqlx.ExtContext, period models.Period) ([]models.Assignment, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	UpdateProfessor(ctx context.Context, exec sqlx.ExtContext, id, professorID string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// assignmentDraft is what the selector decided; the writer turns it into a record.
type assignmentDraft struct {
	SubjectID   string
	ProfessorID string
	SectionID   string
	RoomID      string
	Day         models.Weekday
	Range       models.TimeRange
	Status      models.AssignmentStatus
	Label       string
}

// assignmentWriter persists drafts inside the run transaction and feeds them back into the run state.
type assignmentWriter struct {
	store  assignmentStore
	exec   sqlx.ExtContext
	state  *RunState
	period models.Period
}

// Write stores the draft. Store failures are fatal to the run and are not retried.
func (w *assignmentWriter) Write(ctx context.Context, draft assignmentDraft) (string, error) {
	scheduleType := models.ScheduleTypeOnline
	if draft.RoomID != "" {
		scheduleType = models.ScheduleTypeOnsite
	}
	status := draft.Status
	if status == "" {
		status = models.AssignmentStatusPending
	}

	record := &models.Assignment{
		SchoolYear:   w.period.SchoolYear,
		Term:         w.period.Term,
		SubjectID:    models.StringPtr(draft.SubjectID),
		ProfessorID:  models.StringPtr(draft.ProfessorID),
		SectionID:    draft.SectionID,
		RoomID:       models.StringPtr(draft.RoomID),
		Day:          draft.Day,
		StartTime:    draft.Range.Start,
		EndTime:      draft.Range.End,
		Status:       status,
		Origin:       models.AssignmentOriginAuto,
		ScheduleType: scheduleType,
		Label:        models.StringPtr(draft.Label),
	}
	if err := w.store.Insert(ctx, w.exec, record); err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	w.state.Record(record)
	return record.ID, nil
}
