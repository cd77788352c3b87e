package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/handler"
	"github.com/noah-isme/edu-tenant-core/internal/middleware"
	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/config"
	"github.com/noah-isme/edu-tenant-core/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-tenant-core/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-tenant-core/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, svc *services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(svc.metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Snapshot)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	settingsHandler := handler.NewSettingsHandler(svc.settings, svc.policies)
	identifierHandler := handler.NewIdentifierHandler(svc.identifiers)
	calendarHandler := handler.NewCalendarHandler(svc.calendar)
	exportHandler := handler.NewExportHandler(svc.export, cfg.Calendar.ExportEnabled)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(svc.tokens))

	settings := api.Group("/settings")
	settings.GET("", settingsHandler.List)
	settings.GET("/:key", settingsHandler.Resolve)
	settings.PUT("/:key", middleware.RequirePermission(models.PermissionManageSettings), settingsHandler.Save)
	settings.PATCH("/:key", middleware.RequirePermission(models.PermissionManageSettings), settingsHandler.Patch)

	policies := api.Group("/policies")
	policies.GET("/authentication", settingsHandler.AuthenticationPolicy)
	policies.GET("/sign-in/:role", settingsHandler.RoleSignIn)
	policies.GET("/features/:feature", settingsHandler.Feature)

	api.POST("/identifiers/:type", middleware.RequireTenant(), middleware.RequirePermission(models.PermissionIssueIDs), identifierHandler.Generate)

	calendar := api.Group("/calendar", middleware.RequireTenant())
	manage := middleware.RequirePermission(models.PermissionManageCalendar)
	calendar.GET("/export", exportHandler.Calendar)

	sessions := calendar.Group("/sessions")
	sessions.GET("", calendarHandler.ListSessions)
	sessions.GET("/current", calendarHandler.CurrentSession)
	sessions.GET("/:id", calendarHandler.GetSession)
	sessions.GET("/:id/terms", calendarHandler.ListTerms)
	sessions.POST("", manage, calendarHandler.CreateSession)
	sessions.POST("/bulk-delete", manage, calendarHandler.BulkDeleteSessions)
	sessions.PUT("/:id", manage, calendarHandler.UpdateSession)
	sessions.DELETE("/:id", manage, calendarHandler.DeleteSession)
	sessions.DELETE("/:id/force", manage, calendarHandler.ForceDeleteSession)
	sessions.POST("/:id/activate", manage, calendarHandler.ActivateSession)
	sessions.POST("/:id/close", manage, calendarHandler.CloseSession)
	sessions.POST("/:id/reopen", manage, calendarHandler.ReopenSession)
	sessions.POST("/:id/archive", manage, calendarHandler.ArchiveSession)
	sessions.POST("/:id/restore", manage, calendarHandler.RestoreSession)
	sessions.POST("/:id/terms", manage, calendarHandler.CreateTerm)

	terms := calendar.Group("/terms")
	terms.GET("/current", calendarHandler.CurrentTerm)
	terms.GET("/:id", calendarHandler.GetTerm)
	terms.POST("/bulk-delete", manage, calendarHandler.BulkDeleteTerms)
	terms.PUT("/:id", manage, calendarHandler.UpdateTerm)
	terms.DELETE("/:id", manage, calendarHandler.DeleteTerm)
	terms.DELETE("/:id/force", manage, calendarHandler.ForceDeleteTerm)
	terms.POST("/:id/activate", manage, calendarHandler.ActivateTerm)
	terms.POST("/:id/close", manage, calendarHandler.CloseTerm)
	terms.POST("/:id/reopen", manage, calendarHandler.ReopenTerm)
	terms.POST("/:id/archive", manage, calendarHandler.ArchiveTerm)
	terms.POST("/:id/restore", manage, calendarHandler.RestoreTerm)

	return r
}
