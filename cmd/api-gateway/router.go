package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-archive-api/internal/handler"
	"github.com/noah-isme/sma-archive-api/internal/middleware"
	"github.com/noah-isme/sma-archive-api/internal/models"
	"github.com/noah-isme/sma-archive-api/internal/repository"
	"github.com/noah-isme/sma-archive-api/internal/service"
	"github.com/noah-isme/sma-archive-api/pkg/config"
	"github.com/noah-isme/sma-archive-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-archive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-archive-api/pkg/middleware/requestid"
)

type application struct {
	metrics  *service.MetricsService
	auth     *service.AuthService
	archives *handler.ArchiveHandler
	restores *handler.RestoreHandler
	health   *handler.MetricsHandler
}

func newApplication(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *application {
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Archives.CacheTTL, logr, cacheRepo.Available())

	archiveRepo := repository.NewArchiveRepository(db)
	markRepo := repository.NewMarkRepository(db)
	remarkRepo := repository.NewRemarkRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	archiveSvc := service.NewArchiveService(archiveRepo, markRepo, remarkRepo, studentRepo, cacheSvc, metrics, auditRepo, logr, service.ArchiveServiceConfig{
		Terms:            cfg.Archives.Terms,
		ListLimit:        cfg.Archives.ListLimit,
		CountConcurrency: cfg.Archives.CountConcurrency,
		CompareMax:       cfg.Archives.CompareMax,
	})
	restoreSvc := service.NewRestoreService(db, archiveRepo, markRepo, remarkRepo, cacheSvc, metrics, auditRepo, logr, cfg.Archives.Terms)

	return &application{
		metrics:  metrics,
		auth:     service.NewAuthService(cfg.Auth.Secret),
		archives: handler.NewArchiveHandler(archiveSvc),
		restores: handler.NewRestoreHandler(restoreSvc),
		health:   handler.NewMetricsHandler(metrics, db),
	}
}

func newRouter(cfg *config.Config, logr *zap.Logger, app *application) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics, "/metrics"))

	r.GET("/health", app.health.Health)
	r.GET("/ready", app.health.Ready)
	r.GET("/metrics", app.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	guard := func(h gin.HandlerFunc) []gin.HandlerFunc { return []gin.HandlerFunc{h} }
	if cfg.Auth.Enabled {
		api.Use(middleware.JWT(app.auth))
		requireEditor := middleware.RequireRoles(models.RoleAdmin, models.RoleHeadTeacher)
		guard = func(h gin.HandlerFunc) []gin.HandlerFunc { return []gin.HandlerFunc{requireEditor, h} }
	} else {
		api.Use(middleware.OptionalJWT(app.auth))
	}

	api.GET("/archives", app.archives.List)
	api.GET("/archives/compare", app.archives.Compare)
	api.GET("/archives/:id/analytics", app.archives.Analytics)
	api.POST("/archives", guard(app.archives.Create)...)
	api.DELETE("/archives", guard(app.archives.Delete)...)
	api.DELETE("/archives/:id", guard(app.archives.Delete)...)
	api.POST("/restore-archive", guard(app.restores.Restore)...)
	api.POST("/restore-archive/preview", app.restores.Preview)

	return r
}
