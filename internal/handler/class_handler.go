package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/pkg/response"
)

type classEnrollmentService interface {
	BulkEnroll(ctx context.Context, actorID, classID string, req dto.BulkEnrollmentRequest) (*dto.BulkEnrollmentResult, error)
	ClassStudents(ctx context.Context, classID, yearID string) (*dto.ClassStudentsResponse, error)
}

type rosterService interface {
	Roster(ctx context.Context, classID string, req dto.RosterRequest) (*dto.RosterFile, error)
}

// ClassHandler exposes class cohort endpoints.
type ClassHandler struct {
	enrollments classEnrollmentService
	rosters     rosterService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(enrollments classEnrollmentService, rosters rosterService) *ClassHandler {
	return &ClassHandler{enrollments: enrollments, rosters: rosters}
}

// Students godoc
// @Summary Active students of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param academic_year_id query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope{data=dto.ClassStudentsResponse}
// @Router /classes/{id}/students [get]
func (h *ClassHandler) Students(c *gin.Context) {
	listing, err := h.enrollments.ClassStudents(c.Request.Context(), c.Param("id"), c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, nil)
}

// BulkEnroll godoc
// @Summary Enroll many students into a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.BulkEnrollmentRequest true "Students"
// @Success 200 {object} response.Envelope{data=dto.BulkEnrollmentResult}
// @Router /classes/{id}/enrollments/bulk [post]
func (h *ClassHandler) BulkEnroll(c *gin.Context) {
	var req dto.BulkEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.enrollments.BulkEnroll(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Roster godoc
// @Summary Download a class roster
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param academic_year_id query string false "Academic year, defaults to the current one"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	var req dto.RosterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	file, err := h.rosters.Roster(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
