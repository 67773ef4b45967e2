package service

import (
	"fmt"
	"sort"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// Verifier rules.
const (
	RuleProfessorOverlap = "professor_overlap"
	RuleRoomOverlap      = "room_overlap"
	RuleSectionOverlap   = "section_overlap"
	RuleProfessorCap     = "professor_weekly_cap"
	RuleSubjectMinutes   = "subject_weekly_minutes"
	RuleGradeStrand      = "grade_strand_mismatch"
)

// VerifyLimits are the caps checked by VerifyAssignments.
type VerifyLimits struct {
	WeeklyCap         int
	SubjectCapMinutes int
}

// VerifyAssignments re-checks a stored timetable. Each overlapping pair is reported once.
func VerifyAssignments(assignments []models.Assignment, entities *entitySet, limits VerifyLimits) []dto.InvariantViolation {
	violations := []dto.InvariantViolation{}

	sorted := make([]models.Assignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Day != sorted[j].Day {
			return sorted[i].Day < sorted[j].Day
		}
		if sorted[i].StartTime != sorted[j].StartTime {
			return sorted[i].StartTime < sorted[j].StartTime
		}
		return sorted[i].ID < sorted[j].ID
	})

	overlaps := func(rule string, key func(models.Assignment) string) {
		open := make(map[string][]models.Assignment)
		for _, a := range sorted {
			k := key(a)
			if k == "" {
				continue
			}
			bucket := fmt.Sprintf("%d|%s", a.Day, k)
			for _, prev := range open[bucket] {
				if prev.Range().Overlaps(a.Range()) {
					violations = append(violations, dto.InvariantViolation{
						Rule:          rule,
						AssignmentID:  a.ID,
						ConflictingID: prev.ID,
						Subject:       k,
						Day:           a.Day,
						Message:       fmt.Sprintf("%s overlaps %s on %s", a.Range(), prev.Range(), a.Day),
					})
				}
			}
			open[bucket] = append(open[bucket], a)
		}
	}
	overlaps(RuleProfessorOverlap, models.Assignment.Professor)
	overlaps(RuleRoomOverlap, models.Assignment.Room)
	overlaps(RuleSectionOverlap, func(a models.Assignment) string { return a.SectionID })

	counts := make(map[string]int)
	minutes := make(map[pairKey]int)
	for _, a := range sorted {
		if a.IsFixed() {
			continue
		}
		if p := a.Professor(); p != "" {
			counts[p]++
		}
		minutes[pairKey{a.SectionID, a.Subject()}] += a.Minutes()
	}

	if limits.WeeklyCap > 0 {
		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if counts[id] > limits.WeeklyCap {
				violations = append(violations, dto.InvariantViolation{
					Rule:    RuleProfessorCap,
					Subject: id,
					Message: fmt.Sprintf("professor holds %d assignments, cap is %d", counts[id], limits.WeeklyCap),
				})
			}
		}
	}

	if entities == nil {
		return violations
	}

	keys := make([]pairKey, 0, len(minutes))
	for k := range minutes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sectionID != keys[j].sectionID {
			return keys[i].sectionID < keys[j].sectionID
		}
		return keys[i].subjectID < keys[j].subjectID
	})
	for _, k := range keys {
		subject, ok := entities.subjectByID[k.subjectID]
		if !ok {
			continue
		}
		allowed := subject.WeeklyMinutes(limits.SubjectCapMinutes)
		if limits.SubjectCapMinutes > allowed {
			// explicit requirements may exceed the subject's hours up to the cap
			allowed = limits.SubjectCapMinutes
		}
		if allowed > 0 && minutes[k] > allowed {
			violations = append(violations, dto.InvariantViolation{
				Rule:    RuleSubjectMinutes,
				Subject: k.sectionID + "/" + k.subjectID,
				Message: fmt.Sprintf("%d minutes scheduled, at most %d allowed", minutes[k], allowed),
			})
		}
	}

	for _, a := range sorted {
		if a.IsFixed() || a.SubjectID == nil {
			continue
		}
		subject, okSubject := entities.subjectByID[a.Subject()]
		section, okSection := entities.sectionByID[a.SectionID]
		if okSubject && okSection && !subject.Matches(section) {
			violations = append(violations, dto.InvariantViolation{
				Rule:         RuleGradeStrand,
				AssignmentID: a.ID,
				Subject:      a.Subject(),
				Day:          a.Day,
				Message:      fmt.Sprintf("subject %s/%s does not match section %s/%s", subject.GradeLevel, subject.Strand, section.GradeLevel, section.Strand),
			})
		}
	}
	return violations
}
