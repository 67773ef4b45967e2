package service

import (
	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// Scoring weights.
const (
	scoreDayBalance        = 40.0
	scoreEarlinessMax      = 10.0
	scoreSameSubjectAdj    = -60.0
	scoreProfessorAdjacent = 15.0
	scoreProfessorGap      = -25.0
	scoreSectionDayLoad    = -8.0
	scoreProfessorDayLoad  = -5.0
)

// Conflict event types.
const (
	ConflictProfessor  = "professor_conflict"
	ConflictRoom       = "room_conflict"
	ConflictSection    = "section_conflict"
	ConflictFixedBlock = "fixed_block_conflict"
)

type slotCandidate struct {
	Day   models.Weekday
	Slot  models.TimeRange
	Score float64
}

// slotRequest describes the unit a slot is being searched for.
type slotRequest struct {
	SectionID   string
	SubjectID   string
	ProfessorID string
	RoomID      string
	Remaining   int
}

type slotSelector struct {
	settings  generationSettings
	state     *RunState
	tieBreak  TieBreaker
	conflicts *conflictRecorder
}

func newSlotSelector(settings generationSettings, state *RunState, recorder *conflictRecorder) *slotSelector {
	return &slotSelector{
		settings:  settings,
		state:     state,
		tieBreak:  newTieBreaker(settings),
		conflicts: recorder,
	}
}

// Best enumerates every (day, slot) in order, drops infeasible ones and returns the
// chosen candidate. ok is false when nothing survives filtering.
func (s *slotSelector) Best(req slotRequest) (slotCandidate, bool) {
	minDayLoad := -1
	for _, day := range s.settings.Days {
		load := s.state.SectionDayLoad(req.SectionID, day)
		if minDayLoad < 0 || load < minDayLoad {
			minDayLoad = load
		}
	}

	var candidates []slotCandidate
	for _, day := range s.settings.Days {
		sectionLoad := s.state.SectionDayLoad(req.SectionID, day)
		profLoad := s.state.ProfessorDayLoad(req.ProfessorID, day)
		if s.settings.MaxSectionPerDay > 0 && sectionLoad >= s.settings.MaxSectionPerDay {
			continue
		}
		if s.settings.MaxProfessorPerDay > 0 && profLoad >= s.settings.MaxProfessorPerDay {
			continue
		}
		for _, slot := range s.settings.Slots {
			if !s.feasible(req, day, slot) {
				continue
			}
			candidates = append(candidates, slotCandidate{
				Day:   day,
				Slot:  slot,
				Score: s.score(req, day, slot, sectionLoad, profLoad, sectionLoad == minDayLoad),
			})
		}
	}
	if len(candidates) == 0 {
		return slotCandidate{}, false
	}
	return candidates[s.tieBreak.Choose(candidates)], true
}

func (s *slotSelector) feasible(req slotRequest, day models.Weekday, slot models.TimeRange) bool {
	if s.settings.Lunch != nil && slot.Overlaps(*s.settings.Lunch) {
		return false
	}
	if slot.Minutes() > req.Remaining {
		return false
	}
	if s.state.HasDuplicate(req.SectionID, req.SubjectID, day, slot) {
		return false
	}

	index := s.state.Index()
	if hit := index.FirstConflict(ScopeProfessor, req.ProfessorID, day, slot, nil); hit != nil {
		s.conflicts.Add(ConflictProfessor, req, day, slot, hit)
		return false
	}
	if req.RoomID != "" {
		if hit := index.FirstConflict(ScopeRoom, req.RoomID, day, slot, nil); hit != nil {
			s.conflicts.Add(ConflictRoom, req, day, slot, hit)
			return false
		}
	}
	if hit := index.FirstConflict(ScopeSection, req.SectionID, day, slot, nil); hit != nil {
		s.conflicts.Add(ConflictSection, req, day, slot, hit)
		return false
	}
	return true
}

func (s *slotSelector) score(req slotRequest, day models.Weekday, slot models.TimeRange, sectionLoad, profLoad int, lightestDay bool) float64 {
	var score float64
	if lightestDay {
		score += scoreDayBalance
	}

	window := s.settings.Window
	if span := float64(window.End - window.Start); span > 0 {
		score += scoreEarlinessMax * float64(window.End-slot.Start) / span
	}

	index := s.state.Index()
	for _, other := range index.Day(ScopeSection, req.SectionID, day) {
		if other.Subject() == req.SubjectID && other.Range().Touches(slot) {
			score += scoreSameSubjectAdj
			break
		}
	}

	gap := models.Clock(s.settings.SlotMinutes)
	touches := false
	for _, other := range index.Day(ScopeProfessor, req.ProfessorID, day) {
		if other.Range().Touches(slot) {
			touches = true
		}
		if other.EndTime+gap == slot.Start || slot.End+gap == other.StartTime {
			score += scoreProfessorGap
		}
	}
	if touches {
		score += scoreProfessorAdjacent
	}

	score += scoreSectionDayLoad * float64(sectionLoad)
	score += scoreProfessorDayLoad * float64(profLoad)
	return score
}

type conflictEventKey struct {
	kind          string
	sectionID     string
	subjectID     string
	conflictingID string
	day           models.Weekday
	start         models.Clock
}

// conflictRecorder collects distinct conflict events up to a limit; Count keeps counting past it.
type conflictRecorder struct {
	limit  int
	count  int
	events []dto.ConflictEvent
	seen   map[conflictEventKey]bool
}

func newConflictRecorder(limit int) *conflictRecorder {
	return &conflictRecorder{limit: limit, seen: make(map[conflictEventKey]bool)}
}

func (r *conflictRecorder) Add(kind string, req slotRequest, day models.Weekday, slot models.TimeRange, hit *models.Assignment) {
	key := conflictEventKey{kind, req.SectionID, req.SubjectID, hit.ID, day, slot.Start}
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.count++
	if r.limit > 0 && len(r.events) >= r.limit {
		return
	}
	r.events = append(r.events, dto.ConflictEvent{
		Type:          kind,
		SectionID:     req.SectionID,
		SubjectID:     req.SubjectID,
		ProfessorID:   req.ProfessorID,
		RoomID:        req.RoomID,
		ConflictingID: hit.ID,
		Day:           day,
		StartTime:     slot.Start,
		EndTime:       slot.End,
	})
}

func (r *conflictRecorder) Count() int {
	return r.count
}

func (r *conflictRecorder) Events() []dto.ConflictEvent {
	if r.events == nil {
		return []dto.ConflictEvent{}
	}
	return r.events
}
