package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
	Workload  WorkloadConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	AutoMigrate   bool
	MigrationsDir string
}

// RedisConfig is optional; an empty host disables Redis-backed locks and caching.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs cached workload reports and job statuses.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// FixedBlockConfig is a default fixed block inserted when a request does not list any.
type FixedBlockConfig struct {
	Label     string
	StartTime string
	EndTime   string
}

// SchedulerConfig holds generation defaults applied when a request leaves a field empty.
type SchedulerConfig struct {
	Enabled                 bool
	Days                    []string
	StartTime               string
	EndTime                 string
	SlotMinutes             int
	LunchStart              string
	LunchEnd                string
	ProfessorWeeklyCap      int
	SubjectWeeklyCapMinutes int
	MaxConflictEvents       int
	FixedBlocks             []FixedBlockConfig
	LockTTL                 time.Duration
	JobWorkers              int
	JobRetries              int
	JobTTL                  time.Duration
}

// WorkloadConfig holds analyzer thresholds.
type WorkloadConfig struct {
	MaxHours             float64
	MaxSubjects          int
	TargetHours          float64
	RequireQualification bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:                 v.GetBool("ENABLE_SCHEDULER"),
		Days:                    splitAndTrim(v.GetString("SCHEDULER_DAYS")),
		StartTime:               v.GetString("SCHEDULER_START_TIME"),
		EndTime:                 v.GetString("SCHEDULER_END_TIME"),
		SlotMinutes:             v.GetInt("SCHEDULER_SLOT_MINUTES"),
		LunchStart:              v.GetString("SCHEDULER_LUNCH_START"),
		LunchEnd:                v.GetString("SCHEDULER_LUNCH_END"),
		ProfessorWeeklyCap:      v.GetInt("SCHEDULER_PROFESSOR_WEEKLY_CAP"),
		SubjectWeeklyCapMinutes: v.GetInt("SCHEDULER_SUBJECT_WEEKLY_CAP_MINUTES"),
		MaxConflictEvents:       v.GetInt("SCHEDULER_MAX_CONFLICT_EVENTS"),
		FixedBlocks:             parseFixedBlocks(v.GetString("SCHEDULER_FIXED_BLOCKS")),
		LockTTL:                 parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 5*time.Minute),
		JobWorkers:              v.GetInt("SCHEDULER_JOB_WORKERS"),
		JobRetries:              v.GetInt("SCHEDULER_JOB_RETRIES"),
		JobTTL:                  parseDuration(v.GetString("SCHEDULER_JOB_TTL"), time.Hour),
	}

	cfg.Workload = WorkloadConfig{
		MaxHours:             v.GetFloat64("WORKLOAD_MAX_HOURS"),
		MaxSubjects:          v.GetInt("WORKLOAD_MAX_SUBJECTS"),
		TargetHours:          v.GetFloat64("WORKLOAD_TARGET_HOURS"),
		RequireQualification: v.GetBool("WORKLOAD_REQUIRE_QUALIFICATION"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "spcc_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_MIGRATIONS_DIR", "")

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_DAYS", "Monday,Tuesday,Wednesday,Thursday,Friday")
	v.SetDefault("SCHEDULER_START_TIME", "07:30")
	v.SetDefault("SCHEDULER_END_TIME", "16:30")
	v.SetDefault("SCHEDULER_SLOT_MINUTES", 60)
	v.SetDefault("SCHEDULER_LUNCH_START", "12:00")
	v.SetDefault("SCHEDULER_LUNCH_END", "13:00")
	v.SetDefault("SCHEDULER_PROFESSOR_WEEKLY_CAP", 8)
	v.SetDefault("SCHEDULER_SUBJECT_WEEKLY_CAP_MINUTES", 240)
	v.SetDefault("SCHEDULER_MAX_CONFLICT_EVENTS", 500)
	v.SetDefault("SCHEDULER_FIXED_BLOCKS", "Homeroom@07:00-07:30,Recess@10:00-10:15")
	v.SetDefault("SCHEDULER_LOCK_TTL", "5m")
	v.SetDefault("SCHEDULER_JOB_WORKERS", 2)
	v.SetDefault("SCHEDULER_JOB_RETRIES", 3)
	v.SetDefault("SCHEDULER_JOB_TTL", "1h")

	v.SetDefault("WORKLOAD_MAX_HOURS", 24)
	v.SetDefault("WORKLOAD_MAX_SUBJECTS", 8)
	v.SetDefault("WORKLOAD_TARGET_HOURS", 18)
	v.SetDefault("WORKLOAD_REQUIRE_QUALIFICATION", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseFixedBlocks reads "Label@HH:MM-HH:MM" entries; malformed entries are skipped.
func parseFixedBlocks(raw string) []FixedBlockConfig {
	var blocks []FixedBlockConfig
	for _, item := range splitAndTrim(raw) {
		label, window, ok := strings.Cut(item, "@")
		if !ok {
			continue
		}
		start, end, ok := strings.Cut(window, "-")
		if !ok || strings.TrimSpace(label) == "" {
			continue
		}
		blocks = append(blocks, FixedBlockConfig{
			Label:     strings.TrimSpace(label),
			StartTime: strings.TrimSpace(start),
			EndTime:   strings.TrimSpace(end),
		})
	}
	return blocks
}
