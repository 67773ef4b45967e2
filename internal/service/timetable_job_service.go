package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/jobs"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/logger"
)

const generationJobType = "timetable.generate"

type timetableGenerator interface {
	Validate(req dto.GenerateTimetableRequest) error
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationReport, error)
}

// TimetableJobConfig governs the async worker pool.
type TimetableJobConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	TTL        time.Duration
}

// TimetableJobService runs generation requests on a background queue and tracks their status.
type TimetableJobService struct {
	generator timetableGenerator
	queue     *jobs.Queue
	store     *jobStore
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	ttl       time.Duration
}

// NewTimetableJobService wires the job service. Start must be called before Submit.
func NewTimetableJobService(generator timetableGenerator, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg TimetableJobConfig) *TimetableJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	svc := &TimetableJobService{
		generator: generator,
		store:     newJobStore(cfg.TTL),
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		ttl:       cfg.TTL,
	}
	svc.queue = jobs.NewQueue("timetable-generation", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp:   svc.giveUp,
	})
	return svc
}

// Start launches the workers.
func (s *TimetableJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for running jobs to finish.
func (s *TimetableJobService) Stop() {
	s.queue.Stop()
}

// Submit validates the request and queues it.
func (s *TimetableJobService) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJob, error) {
	if err := s.generator.Validate(req); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := dto.GenerationJob{
		ID:         uuid.NewString(),
		Status:     dto.JobStatusQueued,
		SchoolYear: req.SchoolYear,
		Term:       req.Term,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.save(ctx, job)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: generationJobType, Payload: req}); err != nil {
		s.store.Delete(job.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue generation job")
	}
	s.metrics.SetJobsQueued(s.queue.Len())
	logger.ForPeriod(ctx, s.logger, req.SchoolYear, req.Term).Info("generation job queued", logger.JobID(job.ID))
	return &job, nil
}

// Get returns a job's status from memory, falling back to the shared cache.
func (s *TimetableJobService) Get(ctx context.Context, id string) (*dto.GenerationJob, error) {
	if job, ok := s.store.Get(id); ok {
		return &job, nil
	}
	var cached dto.GenerationJob
	if hit, _ := s.cache.Get(ctx, JobCacheKey(id), &cached); hit {
		return &cached, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
}

func (s *TimetableJobService) handle(ctx context.Context, j jobs.Job) error {
	s.metrics.SetJobsQueued(s.queue.Len())
	req, ok := j.Payload.(dto.GenerateTimetableRequest)
	if !ok {
		return jobs.Permanent(errors.New("unexpected job payload"))
	}

	s.update(ctx, j.ID, func(job *dto.GenerationJob) {
		job.Status = dto.JobStatusRunning
	})

	report, err := s.generator.Generate(ctx, req)
	if err != nil {
		if isClientError(err) {
			return jobs.Permanent(err)
		}
		return err
	}

	s.update(ctx, j.ID, func(job *dto.GenerationJob) {
		job.Status = dto.JobStatusSucceeded
		job.Report = report
		job.Error = ""
	})
	return nil
}

func (s *TimetableJobService) giveUp(j jobs.Job, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.update(ctx, j.ID, func(job *dto.GenerationJob) {
		job.Status = dto.JobStatusFailed
		job.Error = err.Error()
	})
}

func (s *TimetableJobService) update(ctx context.Context, id string, mutate func(*dto.GenerationJob)) {
	job, ok := s.store.Get(id)
	if !ok {
		s.logger.Warn("generation job expired before update", logger.JobID(id))
		return
	}
	mutate(&job)
	job.UpdatedAt = time.Now().UTC()
	s.save(ctx, job)
}

func (s *TimetableJobService) save(ctx context.Context, job dto.GenerationJob) {
	s.store.Save(job)
	_ = s.cache.Set(ctx, JobCacheKey(job.ID), job, s.ttl)
}

// isClientError reports errors that a retry cannot fix.
func isClientError(err error) bool {
	for _, kind := range []*appErrors.Error{appErrors.ErrValidation, appErrors.ErrInvalidConfiguration, appErrors.ErrNotFound} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

type jobStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]dto.GenerationJob
}

func newJobStore(ttl time.Duration) *jobStore {
	return &jobStore{
		ttl:   ttl,
		items: make(map[string]dto.GenerationJob),
	}
}

func (s *jobStore) Save(job dto.GenerationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[job.ID] = job
}

func (s *jobStore) Get(id string) (dto.GenerationJob, bool) {
	s.mu.RLock()
	job, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.GenerationJob{}, false
	}
	if time.Since(job.CreatedAt) > s.ttl {
		s.Delete(id)
		return dto.GenerationJob{}, false
	}
	return job, true
}

func (s *jobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
