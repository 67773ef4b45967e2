package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// generationRun is one pass of fixed-block insertion and subject scheduling over a period.
type generationRun struct {
	settings  generationSettings
	entities  *entitySet
	state     *RunState
	writer    *assignmentWriter
	selector  *slotSelector
	conflicts *conflictRecorder
	report    *dto.GenerationReport
	logger    *zap.Logger
}

func newGenerationRun(settings generationSettings, entities *entitySet, state *RunState, writer *assignmentWriter, logger *zap.Logger) *generationRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := newConflictRecorder(settings.MaxConflictEvents)
	return &generationRun{
		settings:  settings,
		entities:  entities,
		state:     state,
		writer:    writer,
		selector:  newSlotSelector(settings, state, recorder),
		conflicts: recorder,
		report: &dto.GenerationReport{
			SchoolYear:   settings.Period.SchoolYear,
			Term:         settings.Period.Term,
			Unassignable: []dto.UnassignablePairing{},
		},
		logger: logger,
	}
}

// Execute inserts fixed blocks when requested, then schedules every pending unit.
// Any returned error means the transaction must be rolled back.
func (r *generationRun) Execute(ctx context.Context) error {
	if r.settings.InsertFixedBlocks {
		if err := r.insertFixedBlocks(ctx); err != nil {
			return err
		}
	}

	units, skipped := buildWorklist(r.entities, r.settings, r.state)
	for _, item := range skipped {
		r.addUnassignable(item)
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.scheduleUnit(ctx, unit); err != nil {
			return err
		}
	}

	r.report.ConflictCount = r.conflicts.Count()
	r.report.Conflicts = r.conflicts.Events()
	return nil
}

// insertFixedBlocks places each block once per section per active day. Existing blocks with
// the same label and time are left alone; blocks that would overlap a record are reported.
func (r *generationRun) insertFixedBlocks(ctx context.Context) error {
	index := r.state.Index()
	for _, section := range r.entities.sections {
		room := r.entities.RoomFor(section.ID)
		for _, day := range r.settings.Days {
			for _, block := range r.settings.FixedBlocks {
				if r.state.HasFixedBlock(section.ID, day, block.Label, block.Range) {
					continue
				}
				req := slotRequest{SectionID: section.ID, RoomID: room}
				if hit := index.FirstConflict(ScopeSection, section.ID, day, block.Range, nil); hit != nil {
					r.conflicts.Add(ConflictFixedBlock, req, day, block.Range, hit)
					continue
				}
				if room != "" {
					if hit := index.FirstConflict(ScopeRoom, room, day, block.Range, nil); hit != nil {
						r.conflicts.Add(ConflictFixedBlock, req, day, block.Range, hit)
						continue
					}
				}
				if _, err := r.writer.Write(ctx, assignmentDraft{
					SectionID: section.ID,
					RoomID:    room,
					Day:       day,
					Range:     block.Range,
					Status:    models.AssignmentStatusFixed,
					Label:     block.Label,
				}); err != nil {
					return err
				}
				r.report.FixedBlocksInserted++
			}
		}
	}
	return nil
}

func (r *generationRun) scheduleUnit(ctx context.Context, unit pendingUnit) error {
	weeklyCap := r.settings.ProfessorWeeklyCap
	professorID, reason := chooseProfessor(unit, r.entities, r.state, weeklyCap)
	if reason != "" {
		r.skip(unit, "", reason, unit.RemainingMinutes)
		return nil
	}

	req := slotRequest{
		SectionID:   unit.Section.ID,
		SubjectID:   unit.Subject.ID,
		ProfessorID: professorID,
		RoomID:      r.entities.RoomFor(unit.Section.ID),
		Remaining:   unit.RemainingMinutes,
	}
	for req.Remaining > 0 {
		if r.state.ProfessorCount(professorID) >= weeklyCap {
			r.skip(unit, professorID, ReasonProfWeeklyCapReached, req.Remaining)
			return nil
		}

		candidate, ok := r.selector.Best(req)
		if !ok {
			reason := ReasonNoAvailableSlot
			if req.Remaining < r.settings.SlotMinutes {
				reason = ReasonSubjectWeeklyCapReached
			}
			r.skip(unit, professorID, reason, req.Remaining)
			return nil
		}

		if _, err := r.writer.Write(ctx, assignmentDraft{
			SubjectID:   unit.Subject.ID,
			ProfessorID: professorID,
			SectionID:   unit.Section.ID,
			RoomID:      req.RoomID,
			Day:         candidate.Day,
			Range:       candidate.Slot,
		}); err != nil {
			return err
		}
		r.report.Inserted++
		req.Remaining -= candidate.Slot.Minutes()
	}
	return nil
}

func (r *generationRun) skip(unit pendingUnit, professorID, reason string, remaining int) {
	r.addUnassignable(dto.UnassignablePairing{
		SectionID:        unit.Section.ID,
		SubjectID:        unit.Subject.ID,
		ProfessorID:      professorID,
		Reason:           reason,
		RequiredMinutes:  unit.RequiredMinutes,
		RemainingMinutes: remaining,
	})
}

func (r *generationRun) addUnassignable(item dto.UnassignablePairing) {
	r.report.Skipped++
	r.report.Unassignable = append(r.report.Unassignable, item)
	r.logger.Debug("unit not fully scheduled",
		zap.String("section_id", item.SectionID),
		zap.String("subject_id", item.SubjectID),
		zap.String("reason", item.Reason),
		zap.Int("remaining_minutes", item.RemainingMinutes),
	)
}
