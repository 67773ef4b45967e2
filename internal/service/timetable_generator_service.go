package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/logger"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type generationRunStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.GenerationRun) error
	ListByPeriod(ctx context.Context, period models.Period, limit int) ([]models.GenerationRun, error)
}

// TimetableRepositories groups the data-access collaborators of the generator.
type TimetableRepositories struct {
	Professors  professorLister
	Rooms       roomLister
	Sections    sectionLister
	Subjects    subjectLister
	Assignments assignmentStore
	Runs        generationRunStore
}

// TimetableGeneratorConfig carries defaults applied to incoming requests.
type TimetableGeneratorConfig struct {
	Scheduler config.SchedulerConfig
	Workload  config.WorkloadConfig
	CacheTTL  time.Duration
}

// TimetableGeneratorService runs generation and rebalance for a period inside one transaction.
type TimetableGeneratorService struct {
	loader      *entityLoader
	assignments assignmentStore
	runs        generationRunStore
	tx          txProvider
	locker      PeriodLocker
	balancer    *WorkloadBalancer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableGeneratorConfig
}

// NewTimetableGeneratorService wires the generator.
func NewTimetableGeneratorService(
	repos TimetableRepositories,
	tx txProvider,
	locker PeriodLocker,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalPeriodLocker()
	}
	return &TimetableGeneratorService{
		loader: &entityLoader{
			professors: repos.Professors,
			rooms:      repos.Rooms,
			sections:   repos.Sections,
			subjects:   repos.Subjects,
			metrics:    metrics,
		},
		assignments: repos.Assignments,
		runs:        repos.Runs,
		tx:          tx,
		locker:      locker,
		balancer:    NewWorkloadBalancer(repos.Assignments, metrics, logger),
		cache:       cache,
		metrics:     metrics,
		validator:   RegisterTimetableValidations(validate),
		logger:      logger,
		cfg:         cfg,
	}
}

// Validate checks a generation request without running it.
func (s *TimetableGeneratorService) Validate(req dto.GenerateTimetableRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	_, err := resolveSettings(req, s.cfg.Scheduler)
	return err
}

// Generate builds the period's timetable. The run either commits as a whole, including the
// optional rebalance and the run record, or rolls back and returns an error.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (report *dto.GenerationReport, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	settings, err := resolveSettings(req, s.cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	log := logger.ForPeriod(ctx, s.logger, settings.Period.SchoolYear, settings.Period.Term)
	started := time.Now()
	defer func() {
		s.metrics.ObserveRun(string(models.GenerationRunGenerate), outcome(err), time.Since(started))
	}()

	release, err := s.locker.Acquire(ctx, settings.Period)
	if err != nil {
		return nil, err
	}
	defer release()

	entities, err := s.loader.Load(ctx, settings.Period, settings.SeedMode == dto.SeedModeExplicit)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.assignments.ListByPeriod(ctx, tx, settings.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}
	deleted := 0
	if settings.ReplaceExisting {
		existing, deleted, err = s.clearGenerated(ctx, tx, existing)
		if err != nil {
			return nil, err
		}
	}

	state := NewRunState(existing)
	run := newGenerationRun(settings, entities, state, &assignmentWriter{
		store:  s.assignments,
		exec:   tx,
		state:  state,
		period: settings.Period,
	}, log)
	if err = run.Execute(ctx); err != nil {
		return nil, err
	}
	report = run.report
	report.Deleted = deleted

	if settings.RunBalancer {
		thresholds := ThresholdsFromConfig(s.cfg.Workload, s.cfg.Scheduler)
		thresholds.WeeklyCap = settings.ProfessorWeeklyCap
		rebalance, rebalanceErr := s.balancer.Rebalance(ctx, tx, settings.Period, entities.professors, state, thresholds)
		if rebalanceErr != nil {
			err = rebalanceErr
			return nil, err
		}
		report.Rebalance = rebalance
	}

	report.DurationMs = time.Since(started).Milliseconds()
	report.GeneratedAt = time.Now().UTC()
	if err = s.recordRun(ctx, tx, settings.Period, models.GenerationRunGenerate, report, &report.RunID); err != nil {
		return nil, err
	}
	if report.Rebalance != nil {
		report.Rebalance.RunID = report.RunID
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to commit timetable transaction")
		return nil, err
	}

	reasons := make([]string, 0, len(report.Unassignable))
	for _, item := range report.Unassignable {
		reasons = append(reasons, item.Reason)
	}
	s.metrics.ObserveGeneration(report.Inserted, report.ConflictCount, reasons)
	_ = s.cache.Invalidate(ctx, PeriodCachePattern(settings.Period))

	log.Info("timetable generated",
		logger.RunID(report.RunID),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("fixed_blocks", report.FixedBlocksInserted),
		zap.Int("conflicts", report.ConflictCount),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

// Rebalance runs the balancer alone over the period's stored assignments.
func (s *TimetableGeneratorService) Rebalance(ctx context.Context, req dto.RebalanceRequest) (report *dto.RebalanceReport, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rebalance payload")
	}
	period := req.Period()
	thresholds := s.thresholds(req.MaxHours, req.MaxSubjects, req.TargetHours)

	log := logger.ForPeriod(ctx, s.logger, period.SchoolYear, period.Term)
	started := time.Now()
	defer func() {
		s.metrics.ObserveRun(string(models.GenerationRunRebalance), outcome(err), time.Since(started))
	}()

	release, err := s.locker.Acquire(ctx, period)
	if err != nil {
		return nil, err
	}
	defer release()

	entities, err := s.loader.Load(ctx, period, false)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.assignments.ListByPeriod(ctx, tx, period)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
		return nil, err
	}

	state := NewRunState(existing)
	report, err = s.balancer.Rebalance(ctx, tx, period, entities.professors, state, thresholds)
	if err != nil {
		return nil, err
	}
	if err = s.recordRun(ctx, tx, period, models.GenerationRunRebalance, report, &report.RunID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to commit rebalance transaction")
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, PeriodCachePattern(period))
	log.Info("workload rebalanced",
		logger.RunID(report.RunID),
		zap.Int("reassignments", len(report.Actions)),
		zap.Float64("variance_before", report.Before.Variance),
		zap.Float64("variance_after", report.After.Variance),
	)
	return report, nil
}

// Workload analyzes the stored timetable of a period. Reports are cached until the next run.
func (s *TimetableGeneratorService) Workload(ctx context.Context, query dto.PeriodQuery) (*dto.WorkloadReport, error) {
	period := query.Period()
	if err := period.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	key := WorkloadCacheKey(period)
	var cached dto.WorkloadReport
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	entities, state, err := s.snapshot(ctx, period)
	if err != nil {
		return nil, err
	}
	report := AnalyzeWorkload(period, entities.professors, state, s.thresholds(0, 0, 0))
	_ = s.cache.Set(ctx, key, report, s.cfg.CacheTTL)
	return &report, nil
}

// ListRuns returns the period's run history, newest first.
func (s *TimetableGeneratorService) ListRuns(ctx context.Context, query dto.PeriodQuery, limit int) ([]models.GenerationRun, error) {
	period := query.Period()
	if err := period.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	runs, err := s.runs.ListByPeriod(ctx, period, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list generation runs")
	}
	return runs, nil
}

// Verify re-checks the stored timetable of a period and returns every violation found.
func (s *TimetableGeneratorService) Verify(ctx context.Context, query dto.PeriodQuery) ([]dto.InvariantViolation, error) {
	period := query.Period()
	if err := period.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	entities, state, err := s.snapshot(ctx, period)
	if err != nil {
		return nil, err
	}
	records := make([]models.Assignment, 0, len(state.Assignments()))
	for _, a := range state.Assignments() {
		records = append(records, *a)
	}
	return VerifyAssignments(records, entities, VerifyLimits{
		WeeklyCap:         firstPositive(s.cfg.Scheduler.ProfessorWeeklyCap, defaultProfessorWeeklyCap),
		SubjectCapMinutes: s.cfg.Scheduler.SubjectWeeklyCapMinutes,
	}), nil
}

func (s *TimetableGeneratorService) snapshot(ctx context.Context, period models.Period) (*entitySet, *RunState, error) {
	entities, err := s.loader.Load(ctx, period, false)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.assignments.ListByPeriod(ctx, nil, period)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	return entities, NewRunState(existing), nil
}

func (s *TimetableGeneratorService) thresholds(maxHours float64, maxSubjects int, targetHours float64) WorkloadThresholds {
	thresholds := ThresholdsFromConfig(s.cfg.Workload, s.cfg.Scheduler)
	if maxHours > 0 {
		thresholds.MaxHours = maxHours
	}
	if maxSubjects > 0 {
		thresholds.MaxSubjects = maxSubjects
	}
	if targetHours > 0 {
		thresholds.TargetHours = targetHours
	}
	return thresholds
}

func (s *TimetableGeneratorService) begin(ctx context.Context) (*sqlx.Tx, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	return tx, nil
}

// clearGenerated deletes generated class records so the run starts from manual entries and fixed blocks.
func (s *TimetableGeneratorService) clearGenerated(ctx context.Context, exec sqlx.ExtContext, existing []models.Assignment) ([]models.Assignment, int, error) {
	kept := existing[:0]
	deleted := 0
	for _, a := range existing {
		if a.Origin != models.AssignmentOriginAuto || a.IsFixed() {
			kept = append(kept, a)
			continue
		}
		if err := s.assignments.Delete(ctx, exec, a.ID); err != nil {
			return nil, 0, appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to clear generated assignments")
		}
		deleted++
	}
	return kept, deleted, nil
}

func (s *TimetableGeneratorService) recordRun(ctx context.Context, exec sqlx.ExtContext, period models.Period, kind models.GenerationRunKind, payload interface{}, runID *string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run report")
	}
	run := &models.GenerationRun{
		SchoolYear: period.SchoolYear,
		Term:       period.Term,
		Kind:       kind,
		Report:     types.JSONText(raw),
	}
	if err := s.runs.CreateVersioned(ctx, exec, run); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to record generation run")
	}
	*runID = run.ID
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
