package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

type timetableGeneratorMock struct {
	captured      dto.GenerateTimetableRequest
	capturedQuery dto.PeriodQuery
	limit         int
	err           error
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationReport, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerationReport{RunID: "run-1", SchoolYear: req.SchoolYear, Term: req.Term, Inserted: 3}, nil
}

func (m *timetableGeneratorMock) Rebalance(ctx context.Context, req dto.RebalanceRequest) (*dto.RebalanceReport, error) {
	return &dto.RebalanceReport{RunID: "run-2", SchoolYear: req.SchoolYear, Term: req.Term}, nil
}

func (m *timetableGeneratorMock) Workload(ctx context.Context, query dto.PeriodQuery) (*dto.WorkloadReport, error) {
	m.capturedQuery = query
	return &dto.WorkloadReport{SchoolYear: query.SchoolYear, Term: query.Term, Overloaded: 1}, nil
}

func (m *timetableGeneratorMock) ListRuns(ctx context.Context, query dto.PeriodQuery, limit int) ([]models.GenerationRun, error) {
	m.capturedQuery = query
	m.limit = limit
	return []models.GenerationRun{{ID: "run-1", Version: 1, Kind: models.GenerationRunGenerate}}, nil
}

func (m *timetableGeneratorMock) Verify(ctx context.Context, query dto.PeriodQuery) ([]dto.InvariantViolation, error) {
	return []dto.InvariantViolation{}, nil
}

type timetableJobsMock struct {
	jobs map[string]dto.GenerationJob
}

func (m *timetableJobsMock) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJob, error) {
	job := dto.GenerationJob{ID: "job-1", Status: dto.JobStatusQueued, SchoolYear: req.SchoolYear, Term: req.Term}
	m.jobs[job.ID] = job
	return &job, nil
}

func (m *timetableJobsMock) Get(ctx context.Context, id string) (*dto.GenerationJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return &job, nil
}

func newTimetableRouter(gen *timetableGeneratorMock, jobs timetableJobs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{generator: gen, jobs: jobs}
	router := gin.New()
	group := router.Group("/timetables")
	group.POST("/generate", h.Generate)
	group.POST("/generate/async", h.GenerateAsync)
	group.GET("/jobs/:id", h.Job)
	group.POST("/rebalance", h.Rebalance)
	group.GET("/workload", h.Workload)
	group.GET("/runs", h.Runs)
	group.GET("/verify", h.Verify)
	return router
}

func doJSON(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerate(t *testing.T) {
	gen := &timetableGeneratorMock{}
	router := newTimetableRouter(gen, nil)

	w := doJSON(router, http.MethodPost, "/timetables/generate", []byte(`{"schoolYear":"2024-2025","term":"1st","days":["Mon","Tue"],"insertFixedBlocks":true,"fixedBlocks":[{"label":"Flag Ceremony","startTime":"07:30","endTime":"08:00"}]}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-2025", gen.captured.SchoolYear)
	assert.Equal(t, []string{"Mon", "Tue"}, gen.captured.Days)
	require.Len(t, gen.captured.FixedBlocks, 1)

	var envelope struct {
		Data dto.GenerationReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope.Data.RunID)
	assert.Equal(t, 3, envelope.Data.Inserted)
}

func TestTimetableHandlerGenerateErrors(t *testing.T) {
	router := newTimetableRouter(&timetableGeneratorMock{}, nil)
	w := doJSON(router, http.MethodPost, "/timetables/generate", []byte(`{"schoolYear":`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	locked := &timetableGeneratorMock{err: appErrors.Clone(appErrors.ErrPeriodLocked, "busy")}
	router = newTimetableRouter(locked, nil)
	w = doJSON(router, http.MethodPost, "/timetables/generate", []byte(`{"schoolYear":"2024-2025","term":"1st"}`))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PERIOD_LOCKED")
}

func TestTimetableHandlerAsyncFlow(t *testing.T) {
	jobs := &timetableJobsMock{jobs: map[string]dto.GenerationJob{}}
	router := newTimetableRouter(&timetableGeneratorMock{}, jobs)

	w := doJSON(router, http.MethodPost, "/timetables/generate/async", []byte(`{"schoolYear":"2024-2025","term":"1st"}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"job-1"`)

	w = doJSON(router, http.MethodGet, "/timetables/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.JobStatusQueued)

	w = doJSON(router, http.MethodGet, "/timetables/jobs/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerAsyncDisabled(t *testing.T) {
	router := newTimetableRouter(&timetableGeneratorMock{}, nil)
	w := doJSON(router, http.MethodPost, "/timetables/generate/async", []byte(`{"schoolYear":"2024-2025","term":"1st"}`))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTimetableHandlerQueries(t *testing.T) {
	gen := &timetableGeneratorMock{}
	router := newTimetableRouter(gen, nil)

	w := doJSON(router, http.MethodGet, "/timetables/workload?schoolYear=2024-2025&term=2nd", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2nd", gen.capturedQuery.Term)

	w = doJSON(router, http.MethodGet, "/timetables/runs?schoolYear=2024-2025&term=2nd&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gen.limit)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(router, http.MethodGet, "/timetables/runs?schoolYear=2024-2025&term=2nd&limit=x", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/timetables/verify?schoolYear=2024-2025&term=2nd", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	w = doJSON(router, http.MethodPost, "/timetables/rebalance", []byte(`{"schoolYear":"2024-2025","term":"2nd","maxHours":18}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runId":"run-2"`)
}
