package service

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

// Skip reasons reported for units that could not be fully scheduled.
const (
	ReasonGradeStrandMismatch     = "grade_strand_mismatch"
	ReasonUnknownSubject          = "unknown_subject"
	ReasonUnknownSection          = "unknown_section"
	ReasonNoEligibleProfessor     = "no_eligible_professor"
	ReasonProfWeeklyCapReached    = "prof_weekly_cap_reached"
	ReasonSubjectWeeklyCapReached = "subject_weekly_cap_reached"
	ReasonNoAvailableSlot         = "no_available_slot"
)

type professorLister interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.Professor, error)
}

type roomLister interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.Room, error)
	ListBindings(ctx context.Context, period models.Period) ([]models.RoomBinding, error)
}

type sectionLister interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.Section, error)
	ListSubjects(ctx context.Context, period models.Period) ([]models.SectionSubject, error)
}

type subjectLister interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.Subject, error)
}

// entitySet is the read-only view of a period used by one run.
type entitySet struct {
	professors      []models.Professor
	professorByID   map[string]models.Professor
	sections        []models.Section
	sectionByID     map[string]models.Section
	subjectByID     map[string]models.Subject
	roomByID        map[string]models.Room
	sectionRoom     map[string]string
	eligible        map[string][]string
	sectionSubjects []models.SectionSubject
}

// RoomFor returns the section's bound room, if any.
func (e *entitySet) RoomFor(sectionID string) string {
	return e.sectionRoom[sectionID]
}

type entityLoader struct {
	professors professorLister
	rooms      roomLister
	sections   sectionLister
	subjects   subjectLister
	metrics    *MetricsService
}

func (l *entityLoader) Load(ctx context.Context, period models.Period, withSectionSubjects bool) (*entitySet, error) {
	var (
		professors      []models.Professor
		rooms           []models.Room
		bindings        []models.RoomBinding
		sections        []models.Section
		subjects        []models.Subject
		sectionSubjects []models.SectionSubject
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		professors, err = l.professors.ListByPeriod(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		rooms, err = l.rooms.ListByPeriod(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		bindings, err = l.rooms.ListBindings(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		sections, err = l.sections.ListByPeriod(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		subjects, err = l.subjects.ListByPeriod(gctx, period)
		return err
	})
	if withSectionSubjects {
		g.Go(func() (err error) {
			sectionSubjects, err = l.sections.ListSubjects(gctx, period)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entities")
	}
	l.metrics.ObserveDBQuery("timetable_snapshot", time.Since(start))

	return buildEntitySet(period, professors, rooms, bindings, sections, subjects, sectionSubjects), nil
}

// buildEntitySet indexes the loaded rows. Rows from another period are dropped.
func buildEntitySet(
	period models.Period,
	professors []models.Professor,
	rooms []models.Room,
	bindings []models.RoomBinding,
	sections []models.Section,
	subjects []models.Subject,
	sectionSubjects []models.SectionSubject,
) *entitySet {
	set := &entitySet{
		professorByID: make(map[string]models.Professor, len(professors)),
		sectionByID:   make(map[string]models.Section, len(sections)),
		subjectByID:   make(map[string]models.Subject, len(subjects)),
		roomByID:      make(map[string]models.Room, len(rooms)),
		sectionRoom:   make(map[string]string),
		eligible:      make(map[string][]string),
	}

	for _, p := range professors {
		if inPeriod(period, p.SchoolYear, p.Term) {
			set.professors = append(set.professors, p)
			set.professorByID[p.ID] = p
		}
	}
	sort.Slice(set.professors, func(i, j int) bool { return set.professors[i].ID < set.professors[j].ID })

	for _, r := range rooms {
		if inPeriod(period, r.SchoolYear, r.Term) {
			set.roomByID[r.ID] = r
		}
	}

	for _, s := range sections {
		if inPeriod(period, s.SchoolYear, s.Term) {
			set.sections = append(set.sections, s)
			set.sectionByID[s.ID] = s
		}
	}
	sort.Slice(set.sections, func(i, j int) bool { return set.sections[i].ID < set.sections[j].ID })

	for _, s := range subjects {
		if inPeriod(period, s.SchoolYear, s.Term) {
			set.subjectByID[s.ID] = s
		}
	}

	latest := make(map[string]models.RoomBinding)
	for _, b := range bindings {
		if !inPeriod(period, b.SchoolYear, b.Term) {
			continue
		}
		if _, ok := set.roomByID[b.RoomID]; !ok {
			continue
		}
		current, ok := latest[b.SectionID]
		if !ok || b.CreatedAt.After(current.CreatedAt) || (b.CreatedAt.Equal(current.CreatedAt) && b.ID > current.ID) {
			latest[b.SectionID] = b
		}
	}
	for sectionID, b := range latest {
		set.sectionRoom[sectionID] = b.RoomID
	}

	for _, p := range set.professors {
		for _, subjectID := range p.SubjectIDs {
			set.eligible[subjectID] = append(set.eligible[subjectID], p.ID)
		}
	}

	for _, ss := range sectionSubjects {
		if inPeriod(period, ss.SchoolYear, ss.Term) {
			set.sectionSubjects = append(set.sectionSubjects, ss)
		}
	}
	sort.SliceStable(set.sectionSubjects, func(i, j int) bool {
		a, b := set.sectionSubjects[i], set.sectionSubjects[j]
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		return a.SubjectID < b.SubjectID
	})
	return set
}

func inPeriod(period models.Period, schoolYear, term string) bool {
	return period.SchoolYear == schoolYear && period.Term == term
}

// pendingUnit is a (section, subject) pairing with weekly minutes still to schedule.
// The professor is chosen when the unit is processed so that loads written by
// earlier units are taken into account.
type pendingUnit struct {
	Section          models.Section
	Subject          models.Subject
	PreferredProf    string
	RequiredMinutes  int
	RemainingMinutes int
}

// buildWorklist expands the period into pending units in section then subject order.
func buildWorklist(entities *entitySet, settings generationSettings, state *RunState) ([]pendingUnit, []dto.UnassignablePairing) {
	var (
		units   []pendingUnit
		skipped []dto.UnassignablePairing
	)
	seen := make(map[pairKey]bool)

	add := func(section models.Section, subjectID, preferred string, explicitMinutes int) {
		key := pairKey{section.ID, subjectID}
		if seen[key] {
			return
		}
		seen[key] = true

		subject, ok := entities.subjectByID[subjectID]
		if !ok {
			skipped = append(skipped, dto.UnassignablePairing{SectionID: section.ID, SubjectID: subjectID, Reason: ReasonUnknownSubject})
			return
		}
		required := subject.WeeklyMinutes(settings.SubjectCapMinutes)
		if explicitMinutes > 0 {
			required = explicitMinutes
			if settings.SubjectCapMinutes > 0 && required > settings.SubjectCapMinutes {
				required = settings.SubjectCapMinutes
			}
		}
		if !subject.Matches(section) {
			skipped = append(skipped, dto.UnassignablePairing{
				SectionID:        section.ID,
				SubjectID:        subjectID,
				Reason:           ReasonGradeStrandMismatch,
				RequiredMinutes:  required,
				RemainingMinutes: required,
			})
			return
		}
		remaining := required - state.SubjectMinutes(section.ID, subjectID)
		if remaining <= 0 {
			return
		}
		units = append(units, pendingUnit{
			Section:          section,
			Subject:          subject,
			PreferredProf:    preferred,
			RequiredMinutes:  required,
			RemainingMinutes: remaining,
		})
	}

	if settings.SeedMode == dto.SeedModeExplicit {
		for _, ss := range entities.sectionSubjects {
			section, ok := entities.sectionByID[ss.SectionID]
			if !ok {
				skipped = append(skipped, dto.UnassignablePairing{SectionID: ss.SectionID, SubjectID: ss.SubjectID, Reason: ReasonUnknownSection})
				continue
			}
			preferred := ""
			if ss.ProfessorID != nil {
				preferred = *ss.ProfessorID
			}
			add(section, ss.SubjectID, preferred, ss.RequiredMinutes)
		}
		return units, skipped
	}

	for _, section := range entities.sections {
		for _, subjectID := range section.SubjectIDs {
			add(section, subjectID, "", 0)
		}
	}
	return units, skipped
}

// chooseProfessor picks who teaches a unit: the preferred professor when set and qualified,
// otherwise the least-loaded qualified professor under the weekly cap (ties by id). It
// returns a skip reason when nobody can take the unit.
func chooseProfessor(unit pendingUnit, entities *entitySet, state *RunState, weeklyCap int) (string, string) {
	if unit.PreferredProf != "" {
		if prof, ok := entities.professorByID[unit.PreferredProf]; ok && prof.Qualified(unit.Subject.ID) {
			if state.ProfessorCount(unit.PreferredProf) >= weeklyCap {
				return "", ReasonProfWeeklyCapReached
			}
			return unit.PreferredProf, ""
		}
	}

	candidates := entities.eligible[unit.Subject.ID]
	if len(candidates) == 0 {
		return "", ReasonNoEligibleProfessor
	}

	best := ""
	for _, id := range candidates {
		count := state.ProfessorCount(id)
		if count >= weeklyCap {
			continue
		}
		if best == "" || count < state.ProfessorCount(best) {
			best = id
		}
	}
	if best == "" {
		return "", ReasonProfWeeklyCapReached
	}
	return best, ""
}
