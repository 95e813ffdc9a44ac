package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sis-academics/internal/handler"
	"github.com/noah-isme/sis-academics/internal/middleware"
	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/pkg/config"
	"github.com/noah-isme/sis-academics/pkg/logger"
	corsmiddleware "github.com/noah-isme/sis-academics/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sis-academics/pkg/middleware/requestid"
)

// NewRouter mounts every HTTP route. Reads need a valid token; writes need an admin role.
func NewRouter(c *Container) *gin.Engine {
	if c.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(c.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	var pinger handler.Pinger
	if c.DB != nil {
		pinger = c.DB
	}
	metricsHandler := handler.NewMetricsHandler(c.Metrics, pinger)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if c.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	calendarHandler := handler.NewCalendarHandler(c.Calendar)
	promotionHandler := handler.NewPromotionHandler(c.Promotions)
	enrollmentHandler := handler.NewEnrollmentHandler(c.Enrollment)
	classHandler := handler.NewClassHandler(c.Enrollment, c.Rosters)
	studentHandler := handler.NewStudentHandler(c.Students, c.Enrollment)

	api := r.Group(c.Config.APIPrefix)
	api.Use(middleware.JWT(c.Tokens))
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api.GET("/academic-years", calendarHandler.ListYears)
	api.GET("/academic-years/current", calendarHandler.CurrentYear)
	api.PUT("/academic-years/:id/current", admin, calendarHandler.SetCurrentYear)
	api.GET("/academic-years/:id/terms", calendarHandler.ListTerms)
	api.GET("/academic-years/:id/terms/current", calendarHandler.CurrentTerm)
	api.PUT("/terms/:id/current", admin, calendarHandler.SetCurrentTerm)
	api.GET("/grade-scales", calendarHandler.ListGradeScales)
	api.GET("/grade-scales/default", calendarHandler.DefaultGradeScale)
	api.PUT("/grade-scales/:id/default", admin, calendarHandler.SetDefaultGradeScale)

	promotions := api.Group("/promotions", admin)
	promotions.POST("/preview", promotionHandler.Preview)
	promotions.POST("/execute", promotionHandler.Execute)
	promotions.GET("/suggest-target", promotionHandler.SuggestTarget)

	api.GET("/enrollments", enrollmentHandler.List)
	api.POST("/enrollments", admin, enrollmentHandler.Create)
	api.DELETE("/enrollments/:id", admin, enrollmentHandler.Delete)
	api.GET("/enrollments/:id/history", enrollmentHandler.History)

	api.POST("/classes/:id/enrollments/bulk", admin, classHandler.BulkEnroll)
	api.GET("/classes/:id/students", classHandler.Students)
	api.GET("/classes/:id/roster", classHandler.Roster)

	api.GET("/students/:id", studentHandler.Get)
	api.PUT("/students/:id/status", admin, studentHandler.ChangeStatus)
	api.GET("/students/:id/enrollments", studentHandler.Enrollments)

	return r
}
