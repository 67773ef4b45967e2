package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/handler"
	"github.com/xxiimcha/spcc-backend-sub000/internal/repository"
	"github.com/xxiimcha/spcc-backend-sub000/internal/service"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/cache"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/database"
)

// Container holds the connections and services shared by the API server and the CLI.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *sqlx.DB
	Redis     *redis.Client
	Metrics   *service.MetricsService
	Cache     *service.CacheService
	Generator *service.TimetableGeneratorService
	Jobs      *service.TimetableJobService
}

// Options toggles optional parts of the container.
type Options struct {
	Migrate bool
	Jobs    bool
}

// New opens Postgres, optionally Redis, and wires the timetable services. Redis failures
// degrade to in-process locking without caching.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if opts.Migrate || cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, cfg.Database.MigrationsDir, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	c := &Container{Config: cfg, Logger: logger, DB: db, Metrics: service.NewMetricsService()}

	var locker service.PeriodLocker
	var cacheRepo service.CacheRepository
	if cache.Enabled(cfg.Redis) {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, falling back to local period locks", zap.Error(err))
		} else {
			c.Redis = client
			locker = service.NewRedisPeriodLocker(repository.NewPeriodLockRepository(client), cfg.Scheduler.LockTTL, logger)
			cacheRepo = repository.NewCacheRepository(client, logger)
		}
	}
	if locker == nil {
		locker = service.NewLocalPeriodLocker()
	}

	c.Cache = service.NewCacheService(cacheRepo, c.Metrics, cfg.Cache.TTL, logger, cfg.Cache.Enabled)

	assignments := repository.NewAssignmentRepository(db)
	c.Generator = service.NewTimetableGeneratorService(
		service.TimetableRepositories{
			Professors:  repository.NewProfessorRepository(db),
			Rooms:       repository.NewRoomRepository(db),
			Sections:    repository.NewSectionRepository(db),
			Subjects:    repository.NewSubjectRepository(db),
			Assignments: assignments,
			Runs:        repository.NewGenerationRunRepository(db),
		},
		db,
		locker,
		c.Cache,
		c.Metrics,
		validator.New(),
		logger,
		service.TimetableGeneratorConfig{
			Scheduler: cfg.Scheduler,
			Workload:  cfg.Workload,
			CacheTTL:  cfg.Cache.TTL,
		},
	)

	if opts.Jobs && cfg.Scheduler.Enabled {
		c.Jobs = service.NewTimetableJobService(c.Generator, c.Cache, c.Metrics, logger, service.TimetableJobConfig{
			Workers:    cfg.Scheduler.JobWorkers,
			MaxRetries: cfg.Scheduler.JobRetries,
			RetryDelay: 2 * time.Second,
			TTL:        cfg.Scheduler.JobTTL,
		})
	}

	return c, nil
}

// HealthChecks returns the dependencies probed by the readiness endpoint.
func (c *Container) HealthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"postgres": c.DB}
	if c.Redis != nil {
		checks["redis"] = redisPinger{client: c.Redis}
	}
	return checks
}

// Close releases connections. The job queue must be stopped first.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
