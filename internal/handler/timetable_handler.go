package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	internalmiddleware "github.com/xxiimcha/spcc-backend-sub000/internal/middleware"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	"github.com/xxiimcha/spcc-backend-sub000/internal/service"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/response"
)

const maxFixedBlocks = 16

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationReport, error)
	Rebalance(ctx context.Context, req dto.RebalanceRequest) (*dto.RebalanceReport, error)
	Workload(ctx context.Context, query dto.PeriodQuery) (*dto.WorkloadReport, error)
	ListRuns(ctx context.Context, query dto.PeriodQuery, limit int) ([]models.GenerationRun, error)
	Verify(ctx context.Context, query dto.PeriodQuery) ([]dto.InvariantViolation, error)
}

type timetableJobs interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJob, error)
	Get(ctx context.Context, id string) (*dto.GenerationJob, error)
}

// TimetableHandler exposes timetable generation endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	jobs      timetableJobs
}

// NewTimetableHandler constructs the handler. jobs may be nil when async generation is disabled.
func NewTimetableHandler(generator *service.TimetableGeneratorService, jobs *service.TimetableJobService) *TimetableHandler {
	h := &TimetableHandler{generator: generator}
	if jobs != nil {
		h.jobs = jobs
	}
	return h
}

// Generate godoc
// @Summary Generate the timetable of a period
// @Description Runs fixed-block insertion, subject scheduling and the optional workload balancer in one transaction.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	report, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, internalmiddleware.ExtractMeta(c))
}

// GenerateAsync godoc
// @Summary Queue a timetable generation
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/generate/async [post]
func (h *TimetableHandler) GenerateAsync(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.New("ASYNC_DISABLED", http.StatusServiceUnavailable, "async generation is disabled"))
		return
	}
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Job godoc
// @Summary Get an async generation job
// @Tags Timetable
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "generation job not found"))
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// Rebalance godoc
// @Summary Rebalance professor workload for a period
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.RebalanceRequest true "Rebalance payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/rebalance [post]
func (h *TimetableHandler) Rebalance(c *gin.Context) {
	var req dto.RebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rebalance payload"))
		return
	}
	report, err := h.generator.Rebalance(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, internalmiddleware.ExtractMeta(c))
}

// Workload godoc
// @Summary Professor workload report
// @Tags Timetable
// @Produce json
// @Param schoolYear query string true "School year"
// @Param term query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /timetables/workload [get]
func (h *TimetableHandler) Workload(c *gin.Context) {
	var query dto.PeriodQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workload query"))
		return
	}
	report, err := h.generator.Workload(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Runs godoc
// @Summary List generation runs for a period
// @Tags Timetable
// @Produce json
// @Param schoolYear query string true "School year"
// @Param term query string true "Term"
// @Param limit query int false "Maximum runs, default 20"
// @Success 200 {object} response.Envelope
// @Router /timetables/runs [get]
func (h *TimetableHandler) Runs(c *gin.Context) {
	var query dto.PeriodQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid runs query"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	runs, err := h.generator.ListRuns(c.Request.Context(), query, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"count": len(runs)})
}

// Verify godoc
// @Summary Re-check the stored timetable of a period
// @Tags Timetable
// @Produce json
// @Param schoolYear query string true "School year"
// @Param term query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /timetables/verify [get]
func (h *TimetableHandler) Verify(c *gin.Context) {
	var query dto.PeriodQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verify query"))
		return
	}
	violations, err := h.generator.Verify(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, violations, map[string]interface{}{"valid": len(violations) == 0})
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return req, false
	}
	if len(req.FixedBlocks) > maxFixedBlocks {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "fixedBlocks exceeds supported limit"))
		return req, false
	}
	return req, true
}
