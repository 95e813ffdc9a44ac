package app

import (
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/repository"
	"github.com/noah-isme/sis-academics/internal/service"
	"github.com/noah-isme/sis-academics/pkg/config"
)

// Container holds the services of one tenant process.
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *zap.Logger

	Metrics    *service.MetricsService
	Audit      *service.AuditService
	Tokens     *service.TokenService
	Calendar   *service.CalendarService
	Enrollment *service.EnrollmentService
	Students   *service.StudentService
	Promotions *service.PromotionService
	Rosters    *service.RosterService
}

// NewContainer wires repositories and services. redisClient may be nil when caching is off.
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	metrics := service.NewMetricsService()

	tx := repository.NewTransactor(db)
	years := repository.NewAcademicYearRepository(db)
	terms := repository.NewTermRepository(db)
	scales := repository.NewGradeScaleRepository(db)
	levels := repository.NewGradeLevelRepository(db)
	classes := repository.NewClassRepository(db)
	students := repository.NewStudentRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)

	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Database.Schema, logger)
	cache := service.NewCacheService(cacheRepo, metrics, cfg.Academics.CacheTTL, logger, cfg.Redis.Enabled && redisClient != nil)
	audit := service.NewAuditService(repository.NewAuditRepository(db), cfg.Audit, metrics, logger)

	calendar := service.NewCalendarService(tx, years, terms, scales, students, cache, audit, logger)
	enrollment := service.NewEnrollmentService(tx, enrollments, students, classes, years, calendar, audit, validate, logger)

	return &Container{
		Config:     cfg,
		DB:         db,
		Logger:     logger,
		Metrics:    metrics,
		Audit:      audit,
		Tokens:     service.NewTokenService(cfg.JWT.Secret),
		Calendar:   calendar,
		Enrollment: enrollment,
		Students:   service.NewStudentService(tx, students, enrollments, calendar, audit, validate, logger),
		Promotions: service.NewPromotionService(tx, years, classes, levels, students, enrollments, cache, metrics, audit, validate, logger),
		Rosters:    service.NewRosterService(enrollment, cfg.Export.TitlePrefix, logger),
	}
}
