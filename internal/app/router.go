package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/xxiimcha/spcc-backend-sub000/api/swagger"
	"github.com/xxiimcha/spcc-backend-sub000/internal/handler"
	internalmiddleware "github.com/xxiimcha/spcc-backend-sub000/internal/middleware"
	"github.com/xxiimcha/spcc-backend-sub000/internal/service"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/logger"
	corsmiddleware "github.com/xxiimcha/spcc-backend-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/xxiimcha/spcc-backend-sub000/pkg/middleware/requestid"
)

// NewRouter builds the HTTP engine with the shared middleware chain.
func NewRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, timetable *handler.TimetableHandler, health *handler.MetricsHandler) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	timetables := api.Group("/timetables")
	timetables.POST("/generate", timetable.Generate)
	timetables.POST("/generate/async", timetable.GenerateAsync)
	timetables.GET("/jobs/:id", timetable.Job)
	timetables.POST("/rebalance", timetable.Rebalance)
	timetables.GET("/workload", timetable.Workload)
	timetables.GET("/runs", timetable.Runs)
	timetables.GET("/verify", timetable.Verify)

	return r
}
