package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
)

var testPeriod = models.Period{SchoolYear: "2024-2025", Term: "1st"}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// timetableRepoStub serves every read and write interface of the generator from memory.
type timetableRepoStub struct {
	mu              sync.Mutex
	professors      []models.Professor
	rooms           []models.Room
	bindings        []models.RoomBinding
	sections        []models.Section
	subjects        []models.Subject
	sectionSubjects []models.SectionSubject
	assignments     []models.Assignment
	runs            []models.GenerationRun

	seq        int
	failInsert int
	inserts    int
	updates    int
}

func (s *timetableRepoStub) ListByPeriod(ctx context.Context, exec sqlx.ExtContext, period models.Period) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, len(s.assignments))
	copy(out, s.assignments)
	return out, nil
}

func (s *timetableRepoStub) Insert(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failInsert > 0 && s.inserts >= s.failInsert {
		return errors.New("insert failed")
	}
	s.seq++
	assignment.ID = fmt.Sprintf("a-%03d", s.seq)
	assignment.CreatedAt = time.Now().UTC()
	assignment.UpdatedAt = assignment.CreatedAt
	s.assignments = append(s.assignments, *assignment)
	return nil
}

func (s *timetableRepoStub) UpdateProfessor(ctx context.Context, exec sqlx.ExtContext, id, professorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assignments {
		if s.assignments[i].ID == id {
			s.assignments[i].ProfessorID = &professorID
			s.updates++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *timetableRepoStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assignments {
		if s.assignments[i].ID == id {
			s.assignments = append(s.assignments[:i], s.assignments[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *timetableRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.GenerationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = fmt.Sprintf("run-%d", len(s.runs)+1)
	run.Version = len(s.runs) + 1
	s.runs = append(s.runs, *run)
	return nil
}

func (s *timetableRepoStub) snapshot() []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, len(s.assignments))
	copy(out, s.assignments)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type professorListerStub struct{ repo *timetableRepoStub }

func (p professorListerStub) ListByPeriod(ctx context.Context, period models.Period) ([]models.Professor, error) {
	return p.repo.professors, nil
}

type roomListerStub struct{ repo *timetableRepoStub }

func (r roomListerStub) ListByPeriod(ctx context.Context, period models.Period) ([]models.Room, error) {
	return r.repo.rooms, nil
}

func (r roomListerStub) ListBindings(ctx context.Context, period models.Period) ([]models.RoomBinding, error) {
	return r.repo.bindings, nil
}

type sectionListerStub struct{ repo *timetableRepoStub }

func (s sectionListerStub) ListByPeriod(ctx context.Context, period models.Period) ([]models.Section, error) {
	return s.repo.sections, nil
}

func (s sectionListerStub) ListSubjects(ctx context.Context, period models.Period) ([]models.SectionSubject, error) {
	return s.repo.sectionSubjects, nil
}

type subjectListerStub struct{ repo *timetableRepoStub }

func (s subjectListerStub) ListByPeriod(ctx context.Context, period models.Period) ([]models.Subject, error) {
	return s.repo.subjects, nil
}

type runListerStub struct{ repo *timetableRepoStub }

func (r runListerStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.GenerationRun) error {
	return r.repo.CreateVersioned(ctx, exec, run)
}

func (r runListerStub) ListByPeriod(ctx context.Context, period models.Period, limit int) ([]models.GenerationRun, error) {
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	out := make([]models.GenerationRun, 0, len(r.repo.runs))
	for i := len(r.repo.runs) - 1; i >= 0; i-- {
		out = append(out, r.repo.runs[i])
	}
	return out, nil
}

func (s *timetableRepoStub) repositories() TimetableRepositories {
	return TimetableRepositories{
		Professors:  professorListerStub{repo: s},
		Rooms:       roomListerStub{repo: s},
		Sections:    sectionListerStub{repo: s},
		Subjects:    subjectListerStub{repo: s},
		Assignments: s,
		Runs:        runListerStub{repo: s},
	}
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:                 true,
		Days:                    []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		StartTime:               "07:30",
		EndTime:                 "16:30",
		SlotMinutes:             60,
		LunchStart:              "12:00",
		LunchEnd:                "13:00",
		ProfessorWeeklyCap:      8,
		SubjectWeeklyCapMinutes: 0,
		MaxConflictEvents:       100,
	}
}

func testWorkloadConfig() config.WorkloadConfig {
	return config.WorkloadConfig{MaxHours: 18, MaxSubjects: 8, TargetHours: 12, RequireQualification: true}
}

func newGeneratorFixture(t *testing.T, repo *timetableRepoStub) (*TimetableGeneratorService, sqlmock.Sqlmock) {
	tx, mock := newTxProviderMock(t)
	svc := NewTimetableGeneratorService(
		repo.repositories(),
		tx,
		NewLocalPeriodLocker(),
		nil,
		nil,
		nil,
		nil,
		TimetableGeneratorConfig{Scheduler: testSchedulerConfig(), Workload: testWorkloadConfig()},
	)
	return svc, mock
}

func newProfessor(id string, subjects ...string) models.Professor {
	return models.Professor{ID: id, SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, Name: "Prof " + id, SubjectIDs: pq.StringArray(subjects)}
}

func newSection(id, grade, strand string, subjects ...string) models.Section {
	return models.Section{ID: id, SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, Name: id, GradeLevel: grade, Strand: strand, SubjectIDs: pq.StringArray(subjects)}
}

func newSubject(id, grade, strand string, hours float64) models.Subject {
	return models.Subject{ID: id, SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, Code: id, Name: id, GradeLevel: grade, Strand: strand, WeeklyHours: hours}
}

func newRoom(id string) models.Room {
	return models.Room{ID: id, SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, Name: id, Capacity: 40, Type: models.RoomTypeLecture}
}

func newBinding(id, sectionID, roomID string, at time.Time) models.RoomBinding {
	return models.RoomBinding{ID: id, SchoolYear: testPeriod.SchoolYear, Term: testPeriod.Term, SectionID: sectionID, RoomID: roomID, CreatedAt: at}
}

func classRecord(id, prof, sectionID, subjectID, roomID string, day models.Weekday, start, end string) models.Assignment {
	s, _ := models.ParseClock(start)
	e, _ := models.ParseClock(end)
	return models.Assignment{
		ID:          id,
		SchoolYear:  testPeriod.SchoolYear,
		Term:        testPeriod.Term,
		SubjectID:   models.StringPtr(subjectID),
		ProfessorID: models.StringPtr(prof),
		SectionID:   sectionID,
		RoomID:      models.StringPtr(roomID),
		Day:         day,
		StartTime:   s,
		EndTime:     e,
		Status:      models.AssignmentStatusPending,
		Origin:      models.AssignmentOriginAuto,
	}
}

func mustClock(t *testing.T, raw string) models.Clock {
	t.Helper()
	c, err := models.ParseClock(raw)
	require.NoError(t, err)
	return c
}
