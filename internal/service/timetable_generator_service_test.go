package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

// newCampusRepo builds two STEM sections sharing room r1, and an ABM section with no room
// whose list includes a STEM-only subject.
func newCampusRepo() *timetableRepoStub {
	bound := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return &timetableRepoStub{
		professors: []models.Professor{
			newProfessor("p1", "math"),
			newProfessor("p2", "math", "sci"),
			newProfessor("p3", "sci", "eng"),
		},
		rooms: []models.Room{newRoom("r1"), newRoom("r2")},
		bindings: []models.RoomBinding{
			newBinding("b1", "s1", "r2", bound),
			newBinding("b2", "s1", "r1", bound.Add(time.Hour)),
			newBinding("b3", "s2", "r1", bound),
		},
		sections: []models.Section{
			newSection("s1", "11", "STEM", "math", "sci"),
			newSection("s2", "11", "STEM", "math", "sci"),
			newSection("s3", "12", "ABM", "eng", "math"),
		},
		subjects: []models.Subject{
			newSubject("math", "11", "STEM", 3),
			newSubject("sci", "11", "STEM", 2),
			newSubject("eng", "12", "ABM", 2),
		},
	}
}

func generateRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term}
}

func TestTimetableGeneratorServiceGenerateSatisfiesInvariants(t *testing.T) {
	repo := newCampusRepo()
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 12, report.Inserted)
	assert.Equal(t, 12, len(repo.snapshot()))
	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Unassignable, 1)
	assert.Equal(t, ReasonGradeStrandMismatch, report.Unassignable[0].Reason)
	assert.Equal(t, "s3", report.Unassignable[0].SectionID)
	assert.Equal(t, "math", report.Unassignable[0].SubjectID)
	assert.Equal(t, 1, report.Skipped)

	records := repo.snapshot()
	entities := buildEntitySet(testPeriod, repo.professors, repo.rooms, repo.bindings, repo.sections, repo.subjects, nil)
	violations := VerifyAssignments(records, entities, VerifyLimits{WeeklyCap: 8})
	assert.Empty(t, violations)

	minutes := map[string]int{}
	for _, a := range records {
		minutes[a.SectionID+"/"+a.Subject()] += a.Minutes()
		assert.Equal(t, models.AssignmentOriginAuto, a.Origin)
		assert.Equal(t, models.AssignmentStatusPending, a.Status)
		lunch := models.TimeRange{Start: mustClock(t, "12:00"), End: mustClock(t, "13:00")}
		assert.False(t, a.Range().Overlaps(lunch))
	}
	assert.Equal(t, 180, minutes["s1/math"])
	assert.Equal(t, 120, minutes["s1/sci"])
	assert.Equal(t, 180, minutes["s2/math"])
	assert.Equal(t, 120, minutes["s2/sci"])
	assert.Equal(t, 120, minutes["s3/eng"])
}

func TestTimetableGeneratorServiceUsesLatestRoomBinding(t *testing.T) {
	repo := newCampusRepo()
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	for _, a := range repo.snapshot() {
		switch a.SectionID {
		case "s1", "s2":
			require.NotNil(t, a.RoomID)
			assert.Equal(t, "r1", *a.RoomID)
			assert.Equal(t, models.ScheduleTypeOnsite, a.ScheduleType)
		}
	}
}

func TestTimetableGeneratorServiceOnlineSectionHasNoRoom(t *testing.T) {
	repo := newCampusRepo()
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	online := 0
	for _, a := range repo.snapshot() {
		if a.SectionID != "s3" {
			continue
		}
		online++
		assert.Nil(t, a.RoomID)
		assert.Equal(t, models.ScheduleTypeOnline, a.ScheduleType)
	}
	assert.Equal(t, 2, online)
	for _, event := range report.Conflicts {
		if event.SectionID == "s3" {
			assert.NotEqual(t, ConflictRoom, event.Type)
		}
	}
}

func TestTimetableGeneratorServiceSkipsProfessorAtWeeklyCap(t *testing.T) {
	repo := &timetableRepoStub{
		professors: []models.Professor{newProfessor("p1", "math")},
		sections: []models.Section{
			newSection("s1", "11", "STEM", "math"),
		},
		subjects: []models.Subject{newSubject("math", "11", "STEM", 2)},
	}
	days := []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday}
	for i := 0; i < 8; i++ {
		start := []string{"07:30", "08:30"}[i%2]
		end := []string{"08:30", "09:30"}[i%2]
		record := classRecord(fmt.Sprintf("m%d", i), "p1", "other", "hist", "", days[i/2], start, end)
		record.Origin = models.AssignmentOriginManual
		repo.assignments = append(repo.assignments, record)
	}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Inserted)
	require.Len(t, report.Unassignable, 1)
	assert.Equal(t, ReasonProfWeeklyCapReached, report.Unassignable[0].Reason)
	assert.Equal(t, 120, report.Unassignable[0].RemainingMinutes)
	assert.Len(t, repo.snapshot(), 8)
}

func TestTimetableGeneratorServiceStopsAtCapMidUnit(t *testing.T) {
	repo := &timetableRepoStub{
		professors: []models.Professor{newProfessor("p1", "math")},
		sections:   []models.Section{newSection("s1", "11", "STEM", "math")},
		subjects:   []models.Subject{newSubject("math", "11", "STEM", 4)},
	}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.ProfessorWeeklyCap = 3
	report, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Inserted)
	require.Len(t, report.Unassignable, 1)
	assert.Equal(t, ReasonProfWeeklyCapReached, report.Unassignable[0].Reason)
	assert.Equal(t, "p1", report.Unassignable[0].ProfessorID)
	assert.Equal(t, 60, report.Unassignable[0].RemainingMinutes)
}

func TestTimetableGeneratorServiceReportsNoEligibleProfessor(t *testing.T) {
	repo := &timetableRepoStub{
		professors: []models.Professor{newProfessor("p1", "eng")},
		sections:   []models.Section{newSection("s1", "11", "STEM", "math", "ghost")},
		subjects:   []models.Subject{newSubject("math", "11", "STEM", 1)},
	}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, item := range report.Unassignable {
		reasons[item.SubjectID] = item.Reason
	}
	assert.Equal(t, ReasonNoEligibleProfessor, reasons["math"])
	assert.Equal(t, ReasonUnknownSubject, reasons["ghost"])
}

func TestTimetableGeneratorServiceReportsNoAvailableSlot(t *testing.T) {
	repo := &timetableRepoStub{
		professors: []models.Professor{newProfessor("p1", "math")},
		sections:   []models.Section{newSection("s1", "11", "STEM", "math")},
		subjects:   []models.Subject{newSubject("math", "11", "STEM", 3)},
	}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.Days = []string{"Monday"}
	req.StartTime = "08:00"
	req.EndTime = "10:00"
	req.LunchStart = "11:00"
	req.LunchEnd = "11:30"
	req.MaxSectionPerDay = 1
	report, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	require.Len(t, report.Unassignable, 1)
	assert.Equal(t, ReasonNoAvailableSlot, report.Unassignable[0].Reason)
	assert.Equal(t, 120, report.Unassignable[0].RemainingMinutes)
}

func TestTimetableGeneratorServiceFixedBlocksAreIdempotent(t *testing.T) {
	repo := newCampusRepo()
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.InsertFixedBlocks = true
	req.FixedBlocks = []dto.FixedBlockRequest{{Label: "Flag Ceremony", StartTime: "07:30", EndTime: "08:00"}}

	// s2 shares room r1 with s1, so its blocks collide with s1's in the room.
	first, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 10, first.FixedBlocksInserted)
	assert.Equal(t, 5, countConflicts(first.Conflicts, ConflictFixedBlock))

	second, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FixedBlocksInserted)
	assert.Equal(t, 0, second.Inserted)
	require.NoError(t, mock.ExpectationsWereMet())

	fixed := 0
	for _, a := range repo.snapshot() {
		if !a.IsFixed() {
			continue
		}
		fixed++
		assert.Nil(t, a.ProfessorID)
		assert.Nil(t, a.SubjectID)
		require.NotNil(t, a.Label)
		assert.Equal(t, "Flag Ceremony", *a.Label)
		assert.NotEqual(t, "s2", a.SectionID)
		if a.SectionID == "s3" {
			assert.Nil(t, a.RoomID)
		}
	}
	assert.Equal(t, 10, fixed)

	entities := buildEntitySet(testPeriod, repo.professors, repo.rooms, repo.bindings, repo.sections, repo.subjects, nil)
	assert.Empty(t, VerifyAssignments(repo.snapshot(), entities, VerifyLimits{WeeklyCap: 8}))
}

func TestTimetableGeneratorServiceFixedBlockConflictIsReported(t *testing.T) {
	repo := newCampusRepo()
	repo.assignments = []models.Assignment{
		classRecord("m1", "p1", "s1", "math", "r1", models.Monday, "07:30", "08:30"),
	}
	repo.assignments[0].Origin = models.AssignmentOriginManual
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.Days = []string{"Monday"}
	req.InsertFixedBlocks = true
	req.FixedBlocks = []dto.FixedBlockRequest{{Label: "Flag Ceremony", StartTime: "07:30", EndTime: "08:00"}}

	report, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	// s1 is taken by the manual class; s2 shares its room.
	assert.Equal(t, 1, report.FixedBlocksInserted)
	assert.Equal(t, 2, countConflicts(report.Conflicts, ConflictFixedBlock))
}

func countConflicts(events []dto.ConflictEvent, kind string) int {
	n := 0
	for _, event := range events {
		if event.Type == kind {
			n++
		}
	}
	return n
}

func TestTimetableGeneratorServiceReplaceExisting(t *testing.T) {
	repo := newCampusRepo()
	manual := classRecord("m1", "p3", "s3", "eng", "", models.Friday, "15:00", "16:00")
	manual.Origin = models.AssignmentOriginManual
	repo.assignments = []models.Assignment{manual}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	first, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Equal(t, 11, first.Inserted)

	req := generateRequest()
	req.ReplaceExisting = true
	second, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 11, second.Deleted)
	assert.Equal(t, 11, second.Inserted)

	records := repo.snapshot()
	assert.Len(t, records, 12)
	assert.Contains(t, records, manual)
}

func TestTimetableGeneratorServiceRollsBackOnPersistenceError(t *testing.T) {
	repo := newCampusRepo()
	repo.failInsert = 3
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectRollback()

	report, err := svc.Generate(context.Background(), generateRequest())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
	assert.Empty(t, repo.runs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableGeneratorServiceRejectsLockedPeriod(t *testing.T) {
	repo := newCampusRepo()
	tx, mock := newTxProviderMock(t)
	locker := NewLocalPeriodLocker()
	release, err := locker.Acquire(context.Background(), testPeriod)
	require.NoError(t, err)

	svc := NewTimetableGeneratorService(repo.repositories(), tx, locker, nil, nil, nil, nil,
		TimetableGeneratorConfig{Scheduler: testSchedulerConfig(), Workload: testWorkloadConfig()})

	_, err = svc.Generate(context.Background(), generateRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPeriodLocked))
	require.NoError(t, mock.ExpectationsWereMet())

	release()
	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
}

func TestTimetableGeneratorServiceValidatesRequest(t *testing.T) {
	svc, mock := newGeneratorFixture(t, newCampusRepo())

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Term: "1st"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req := generateRequest()
	req.StartTime = "9am"
	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = generateRequest()
	req.StartTime = "16:00"
	req.EndTime = "08:00"
	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidConfiguration))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableGeneratorServiceExplicitSeedMode(t *testing.T) {
	repo := newCampusRepo()
	preferred := "p2"
	repo.sectionSubjects = []models.SectionSubject{
		{ID: "ss1", SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, SectionID: "s1", SubjectID: "math", ProfessorID: &preferred, RequiredMinutes: 120},
		{ID: "ss2", SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, SectionID: "s9", SubjectID: "math", RequiredMinutes: 60},
	}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.SeedMode = dto.SeedModeExplicit
	report, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Inserted)
	for _, a := range repo.snapshot() {
		assert.Equal(t, "s1", a.SectionID)
		assert.Equal(t, "p2", a.Professor())
	}
	require.Len(t, report.Unassignable, 1)
	assert.Equal(t, ReasonUnknownSection, report.Unassignable[0].Reason)
}

func TestTimetableGeneratorServiceExplicitSeedModeIgnoresUnqualifiedPreference(t *testing.T) {
	repo := newCampusRepo()
	preferred := "p3"
	repo.sectionSubjects = []models.SectionSubject{
		{ID: "ss1", SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, SectionID: "s1", SubjectID: "math", ProfessorID: &preferred, RequiredMinutes: 120},
	}
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.SeedMode = dto.SeedModeExplicit
	report, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Inserted)
	assert.Empty(t, report.Unassignable)
	for _, a := range repo.snapshot() {
		assert.Equal(t, "math", a.Subject())
		assert.NotEqual(t, "p3", a.Professor())
		assert.Contains(t, []string{"p1", "p2"}, a.Professor())
	}
}

func TestTimetableGeneratorServiceWeightedTieBreakIsReproducible(t *testing.T) {
	run := func() []string {
		repo := newCampusRepo()
		svc, mock := newGeneratorFixture(t, repo)
		mock.ExpectBegin()
		mock.ExpectCommit()

		req := generateRequest()
		req.TieBreak = dto.TieBreakWeighted
		req.Seed = 42
		_, err := svc.Generate(context.Background(), req)
		require.NoError(t, err)

		var out []string
		for _, a := range repo.snapshot() {
			out = append(out, fmt.Sprintf("%s/%s/%s/%s", a.SectionID, a.Subject(), a.Day, a.Range()))
		}
		return out
	}

	first := run()
	assert.Len(t, first, 12)
	assert.Equal(t, first, run())
}

func TestTimetableGeneratorServiceGenerateWithBalancer(t *testing.T) {
	repo := newCampusRepo()
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := generateRequest()
	req.RunBalancer = true
	report, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, report.Rebalance)
	assert.Equal(t, report.RunID, report.Rebalance.RunID)
	assert.Empty(t, report.Rebalance.Actions)
	assert.Len(t, report.Rebalance.Before.Professors, 3)
}

func TestTimetableGeneratorServiceWorkloadRunsAndVerify(t *testing.T) {
	repo := newCampusRepo()
	svc, mock := newGeneratorFixture(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	query := dto.PeriodQuery{SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term}
	workload, err := svc.Workload(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, workload.Professors, 3)
	total := 0
	for _, p := range workload.Professors {
		total += p.AssignmentCount
	}
	assert.Equal(t, 12, total)

	runs, err := svc.ListRuns(context.Background(), query, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.GenerationRunGenerate, runs[0].Kind)
	assert.Contains(t, string(runs[0].Report), `"inserted":12`)

	violations, err := svc.Verify(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, violations)

	_, err = svc.Workload(context.Background(), dto.PeriodQuery{SchoolYear: "2024-2025"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestVerifyAssignmentsReportsViolations(t *testing.T) {
	repo := newCampusRepo()
	entities := buildEntitySet(testPeriod, repo.professors, repo.rooms, repo.bindings, repo.sections, repo.subjects, nil)
	records := []models.Assignment{
		classRecord("a1", "p1", "s1", "math", "r1", models.Monday, "08:00", "09:00"),
		classRecord("a2", "p1", "s2", "math", "r1", models.Monday, "08:30", "09:30"),
		classRecord("a3", "p2", "s3", "sci", "", models.Tuesday, "08:00", "09:00"),
	}

	violations := VerifyAssignments(records, entities, VerifyLimits{WeeklyCap: 1})
	rules := map[string]int{}
	for _, v := range violations {
		rules[v.Rule]++
	}
	assert.Equal(t, 1, rules[RuleProfessorOverlap])
	assert.Equal(t, 1, rules[RuleRoomOverlap])
	assert.Equal(t, 0, rules[RuleSectionOverlap])
	assert.Equal(t, 1, rules[RuleProfessorCap])
	assert.Equal(t, 1, rules[RuleGradeStrand])
}
