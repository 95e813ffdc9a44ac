package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/pkg/response"
)

type studentService interface {
	Get(ctx context.Context, id string) (*models.Student, error)
	ChangeStatus(ctx context.Context, actorID, id string, req dto.ChangeStudentStatusRequest) (*models.Student, error)
}

type studentEnrollmentLister interface {
	StudentEnrollments(ctx context.Context, studentID string) ([]dto.EnrollmentView, error)
}

// StudentHandler exposes student lifecycle endpoints.
type StudentHandler struct {
	students    studentService
	enrollments studentEnrollmentLister
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, enrollments studentEnrollmentLister) *StudentHandler {
	return &StudentHandler{students: students, enrollments: enrollments}
}

// Get godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=models.Student}
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ChangeStatus godoc
// @Summary Change a student's status
// @Description Withdraw, transfer out, suspend or reinstate. Graduation only happens through promotions.
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.ChangeStudentStatusRequest true "Status change"
// @Success 200 {object} response.Envelope{data=models.Student}
// @Failure 412 {object} response.Envelope
// @Router /students/{id}/status [put]
func (h *StudentHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStudentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.students.ChangeStatus(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Enrollments godoc
// @Summary Enrollments of a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=[]dto.EnrollmentView}
// @Router /students/{id}/enrollments [get]
func (h *StudentHandler) Enrollments(c *gin.Context) {
	rows, err := h.enrollments.StudentEnrollments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
