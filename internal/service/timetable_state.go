package service

import (
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

type dayKey struct {
	id  string
	day models.Weekday
}

type pairKey struct {
	sectionID string
	subjectID string
}

type signature struct {
	sectionID string
	subjectID string
	day       models.Weekday
	start     models.Clock
	end       models.Clock
}

type fixedSignature struct {
	sectionID string
	day       models.Weekday
	label     string
	start     models.Clock
	end       models.Clock
}

// RunState carries the mutable state of one generation or rebalance run: the period's
// records, their conflict index and the load counters derived from them. It is never
// shared between runs.
type RunState struct {
	index       *ConflictIndex
	assignments []*models.Assignment

	profCount      map[string]int
	profMinutes    map[string]int
	profSubjects   map[string]map[string]int
	sectionDay     map[dayKey]int
	profDay        map[dayKey]int
	subjectMinutes map[pairKey]int
	signatures     map[signature]struct{}
	fixed          map[fixedSignature]struct{}
}

// NewRunState seeds the state with the period's existing records.
func NewRunState(existing []models.Assignment) *RunState {
	state := &RunState{
		index:          NewConflictIndex(nil),
		profCount:      make(map[string]int),
		profMinutes:    make(map[string]int),
		profSubjects:   make(map[string]map[string]int),
		sectionDay:     make(map[dayKey]int),
		profDay:        make(map[dayKey]int),
		subjectMinutes: make(map[pairKey]int),
		signatures:     make(map[signature]struct{}),
		fixed:          make(map[fixedSignature]struct{}),
	}
	for i := range existing {
		record := existing[i]
		state.Record(&record)
	}
	return state
}

// Record makes a written record visible to every later conflict check and counter.
func (s *RunState) Record(a *models.Assignment) {
	s.assignments = append(s.assignments, a)
	s.index.Add(a)

	if a.IsFixed() {
		label := ""
		if a.Label != nil {
			label = *a.Label
		}
		s.fixed[fixedSignature{a.SectionID, a.Day, label, a.StartTime, a.EndTime}] = struct{}{}
		return
	}

	minutes := a.Minutes()
	s.sectionDay[dayKey{a.SectionID, a.Day}]++
	if subject := a.Subject(); subject != "" {
		s.subjectMinutes[pairKey{a.SectionID, subject}] += minutes
		s.signatures[signature{a.SectionID, subject, a.Day, a.StartTime, a.EndTime}] = struct{}{}
	}
	if prof := a.Professor(); prof != "" {
		s.addProfessorLoad(prof, a, 1)
	}
}

// Reassign moves a record to another professor, keeping counters and index in step.
func (s *RunState) Reassign(a *models.Assignment, professorID string) {
	previous := a.Professor()
	if previous != "" {
		s.addProfessorLoad(previous, a, -1)
	}
	a.ProfessorID = models.StringPtr(professorID)
	s.index.MoveProfessor(a, previous)
	if professorID != "" {
		s.addProfessorLoad(professorID, a, 1)
	}
}

func (s *RunState) addProfessorLoad(prof string, a *models.Assignment, sign int) {
	s.profCount[prof] += sign
	s.profMinutes[prof] += sign * a.Minutes()
	s.profDay[dayKey{prof, a.Day}] += sign

	subject := a.Subject()
	if subject == "" {
		return
	}
	subjects := s.profSubjects[prof]
	if subjects == nil {
		subjects = make(map[string]int)
		s.profSubjects[prof] = subjects
	}
	subjects[subject] += sign
	if subjects[subject] <= 0 {
		delete(subjects, subject)
	}
}

// Index exposes the conflict index.
func (s *RunState) Index() *ConflictIndex {
	return s.index
}

// Assignments returns every record known to the run in insertion order.
func (s *RunState) Assignments() []*models.Assignment {
	return s.assignments
}

// ProfessorCount is the professor's number of records in the period.
func (s *RunState) ProfessorCount(id string) int {
	return s.profCount[id]
}

// ProfessorMinutes is the professor's weekly minutes in the period.
func (s *RunState) ProfessorMinutes(id string) int {
	return s.profMinutes[id]
}

// ProfessorSubjects is the number of distinct subjects the professor teaches.
func (s *RunState) ProfessorSubjects(id string) int {
	return len(s.profSubjects[id])
}

// SectionDayLoad counts the section's academic records on the day.
func (s *RunState) SectionDayLoad(sectionID string, day models.Weekday) int {
	return s.sectionDay[dayKey{sectionID, day}]
}

// ProfessorDayLoad counts the professor's records on the day.
func (s *RunState) ProfessorDayLoad(professorID string, day models.Weekday) int {
	return s.profDay[dayKey{professorID, day}]
}

// SubjectMinutes is the time already scheduled for a (section, subject) pair.
func (s *RunState) SubjectMinutes(sectionID, subjectID string) int {
	return s.subjectMinutes[pairKey{sectionID, subjectID}]
}

// HasDuplicate reports an identical (section, subject, day, start, end) record.
func (s *RunState) HasDuplicate(sectionID, subjectID string, day models.Weekday, r models.TimeRange) bool {
	_, ok := s.signatures[signature{sectionID, subjectID, day, r.Start, r.End}]
	return ok
}

// HasFixedBlock reports an existing fixed block with the same label and time.
func (s *RunState) HasFixedBlock(sectionID string, day models.Weekday, label string, r models.TimeRange) bool {
	_, ok := s.fixed[fixedSignature{sectionID, day, label, r.Start, r.End}]
	return ok
}
