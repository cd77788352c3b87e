package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-tenant-core/api/swagger"
	"github.com/noah-isme/edu-tenant-core/internal/repository"
	"github.com/noah-isme/edu-tenant-core/internal/repository/memory"
	"github.com/noah-isme/edu-tenant-core/internal/service"
	"github.com/noah-isme/edu-tenant-core/pkg/cache"
	"github.com/noah-isme/edu-tenant-core/pkg/config"
	"github.com/noah-isme/edu-tenant-core/pkg/database"
	"github.com/noah-isme/edu-tenant-core/pkg/jobs"
	"github.com/noah-isme/edu-tenant-core/pkg/logger"
)

// @title Edu Tenant Core API
// @version 1.0.0
// @description Tenant settings, policies, identifiers and academic calendar
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const driverMemory = "memory"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, cleanup, err := buildServices(cfg, logr)
	if err != nil {
		logr.Fatal("failed to build services", zap.Error(err))
	}
	defer cleanup()

	if err := seedDefaults(context.Background(), cfg, svc.settings, logr); err != nil {
		logr.Fatal("failed to seed settings defaults", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type services struct {
	metrics     *service.MetricsService
	settings    *service.SettingsService
	policies    *service.PolicyService
	identifiers *service.IdentifierService
	calendar    *service.CalendarService
	export      *service.ExportService
	tokens      *service.TokenService
}

// buildServices wires the storage selected by DB_DRIVER. The returned cleanup
// flushes pending audit events, then closes database and cache connections.
func buildServices(cfg *config.Config, logr *zap.Logger) (*services, func(), error) {
	svc := &services{
		metrics: service.NewMetricsService(),
		tokens:  service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return nil, cleanup, err
	}
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), svc.metrics, cfg.Settings.CacheTTL, logr, cfg.Settings.CacheEnabled && redisClient != nil)

	calendarCfg := service.CalendarServiceConfig{MinReasonLength: cfg.Calendar.MinReasonLength}
	auditSink := func(sink service.AuditSink) service.AuditSink {
		if cfg.Audit.Workers <= 0 {
			return sink
		}
		async := service.NewAsyncAuditSink(sink, jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			BufferSize: cfg.Audit.BufferSize,
			MaxRetries: cfg.Audit.MaxRetries,
			Logger:     logr,
		})
		async.Start(context.Background())
		closers = append(closers, async.Stop)
		return async
	}

	switch cfg.Database.Driver {
	case driverMemory:
		store := memory.NewStore()
		audit := auditSink(memory.NewAuditRepository(store))
		svc.settings = service.NewSettingsService(memory.NewSettingsRepository(store), cacheSvc, audit, svc.metrics, logr)
		svc.identifiers = service.NewIdentifierService(svc.settings, memory.NewSequenceRepository(store), svc.metrics, logr)
		svc.calendar = service.NewCalendarService(store, memory.NewSessionRepository(store), memory.NewTermRepository(store), audit, svc.metrics, nil, logr, calendarCfg)
		logr.Warn("using in-memory storage; data is lost on restart")
	default:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		wirePostgres(svc, db, cfg, cacheSvc, auditSink(repository.NewAuditRepository(db)), calendarCfg, logr)
	}

	svc.policies = service.NewPolicyService(svc.settings, logr)
	svc.export = service.NewExportService(svc.calendar, logr)
	return svc, cleanup, nil
}

func wirePostgres(svc *services, db *sqlx.DB, cfg *config.Config, cacheSvc *service.CacheService, audit service.AuditSink, calendarCfg service.CalendarServiceConfig, logr *zap.Logger) {
	tx := database.NewTxRunner(db, cfg.Calendar.TxTimeout)
	svc.settings = service.NewSettingsService(repository.NewSettingsRepository(db), cacheSvc, audit, svc.metrics, logr)
	svc.identifiers = service.NewIdentifierService(svc.settings, repository.NewSequenceRepository(db), svc.metrics, logr)
	svc.calendar = service.NewCalendarService(tx, repository.NewSessionRepository(db), repository.NewTermRepository(db), audit, svc.metrics, nil, logr, calendarCfg)
}

func seedDefaults(ctx context.Context, cfg *config.Config, settings *service.SettingsService, logr *zap.Logger) error {
	if cfg.Settings.DefaultsFile == "" {
		return nil
	}
	defaults, err := service.LoadSettingsDefaults(cfg.Settings.DefaultsFile)
	if err != nil {
		return err
	}
	inserted, err := settings.SeedDefaults(ctx, defaults)
	if err != nil {
		return err
	}
	logr.Info("settings defaults seeded", zap.String("file", cfg.Settings.DefaultsFile), zap.Int("inserted", inserted))
	return nil
}
