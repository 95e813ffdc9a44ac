package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/pkg/response"
)

type calendarService interface {
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	CurrentYear(ctx context.Context) (*models.AcademicYear, error)
	SetCurrentYear(ctx context.Context, actorID, id string) (*models.AcademicYear, error)
	ListTerms(ctx context.Context, academicYearID string) ([]models.Term, error)
	CurrentTerm(ctx context.Context, academicYearID string) (*models.Term, error)
	SetCurrentTerm(ctx context.Context, actorID, id string) (*models.Term, error)
	ListGradeScales(ctx context.Context) ([]models.GradeScale, error)
	DefaultGradeScale(ctx context.Context, levelType models.LevelType) (*models.GradeScale, error)
	SetDefaultGradeScale(ctx context.Context, actorID, id string) (*models.GradeScale, error)
}

// CalendarHandler exposes academic years, terms and grade scales.
type CalendarHandler struct {
	calendar calendarService
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(calendar calendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// ListYears godoc
// @Summary List academic years
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.AcademicYear}
// @Router /academic-years [get]
func (h *CalendarHandler) ListYears(c *gin.Context) {
	years, err := h.calendar.ListYears(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// CurrentYear godoc
// @Summary Current academic year
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope{data=models.AcademicYear}
// @Failure 404 {object} response.Envelope
// @Router /academic-years/current [get]
func (h *CalendarHandler) CurrentYear(c *gin.Context) {
	year, err := h.calendar.CurrentYear(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// SetCurrentYear godoc
// @Summary Mark an academic year current
// @Description Clears the flag on every other year in the same transaction.
// @Tags Calendar
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope{data=models.AcademicYear}
// @Router /academic-years/{id}/current [put]
func (h *CalendarHandler) SetCurrentYear(c *gin.Context) {
	year, err := h.calendar.SetCurrentYear(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// ListTerms godoc
// @Summary Terms of an academic year
// @Tags Calendar
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope{data=[]models.Term}
// @Router /academic-years/{id}/terms [get]
func (h *CalendarHandler) ListTerms(c *gin.Context) {
	terms, err := h.calendar.ListTerms(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil)
}

// CurrentTerm godoc
// @Summary Current term of an academic year
// @Tags Calendar
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope{data=models.Term}
// @Router /academic-years/{id}/terms/current [get]
func (h *CalendarHandler) CurrentTerm(c *gin.Context) {
	term, err := h.calendar.CurrentTerm(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// SetCurrentTerm godoc
// @Summary Mark a term current within its year
// @Tags Calendar
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope{data=models.Term}
// @Router /terms/{id}/current [put]
func (h *CalendarHandler) SetCurrentTerm(c *gin.Context) {
	term, err := h.calendar.SetCurrentTerm(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// ListGradeScales godoc
// @Summary List grade scales
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.GradeScale}
// @Router /grade-scales [get]
func (h *CalendarHandler) ListGradeScales(c *gin.Context) {
	scales, err := h.calendar.ListGradeScales(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scales, nil)
}

// DefaultGradeScale godoc
// @Summary Default grade scale of a level type
// @Tags Calendar
// @Produce json
// @Param level_type query string true "primary, jhs or shs"
// @Success 200 {object} response.Envelope{data=models.GradeScale}
// @Router /grade-scales/default [get]
func (h *CalendarHandler) DefaultGradeScale(c *gin.Context) {
	scale, err := h.calendar.DefaultGradeScale(c.Request.Context(), models.LevelType(c.Query("level_type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale, nil)
}

// SetDefaultGradeScale godoc
// @Summary Make a grade scale the default of its level type
// @Tags Calendar
// @Produce json
// @Param id path string true "Grade scale ID"
// @Success 200 {object} response.Envelope{data=models.GradeScale}
// @Router /grade-scales/{id}/default [put]
func (h *CalendarHandler) SetDefaultGradeScale(c *gin.Context) {
	scale, err := h.calendar.SetDefaultGradeScale(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale, nil)
}
