package logger

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/middleware/requestid"
)

// Field keys shared by the API, the job workers and the CLI so log queries can join on them.
const (
	FieldRequestID  = "request_id"
	FieldPeriod     = "period"
	FieldSchoolYear = "school_year"
	FieldTerm       = "term"
	FieldRunID      = "run_id"
	FieldJobID      = "job_id"
)

const serviceName = "timetable"

// New builds the process logger. Every entry carries the service name and environment.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]interface{}{"service": serviceName, "env": cfg.Env}

	return zapCfg.Build()
}

// WithContext decorates l with the request id carried by ctx, if any.
func WithContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		return l.With(zap.String(FieldRequestID, reqID))
	}
	return l
}

// ForPeriod scopes a run's logger to one school year and term.
func ForPeriod(ctx context.Context, l *zap.Logger, schoolYear, term string) *zap.Logger {
	return WithContext(ctx, l).With(
		zap.String(FieldPeriod, schoolYear+":"+term),
		zap.String(FieldSchoolYear, schoolYear),
		zap.String(FieldTerm, term),
	)
}

// RunID tags an entry with a generation run.
func RunID(id string) zap.Field {
	return zap.String(FieldRunID, id)
}

// JobID tags an entry with an async generation job.
func JobID(id string) zap.Field {
	return zap.String(FieldJobID, id)
}

// GinMiddleware logs one entry per request. Server errors are logged at error level.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		reqID := requestid.Value(c)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if reqID != "" {
			fields = append(fields, zap.String(FieldRequestID, reqID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			l.Error("http_request", fields...)
			return
		}
		l.Info("http_request", fields...)
	}
}
