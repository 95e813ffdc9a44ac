package dto

import (
	"time"

	"github.com/noah-isme/sis-academics/internal/models"
)

// CreateEnrollmentRequest places one student in a class for a year.
type CreateEnrollmentRequest struct {
	StudentID      string `json:"student_id" validate:"required"`
	ClassID        string `json:"class_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	Notes          string `json:"notes" validate:"max=500"`
}

// BulkEnrollmentRequest enrolls many students into one class.
type BulkEnrollmentRequest struct {
	AcademicYearID string   `json:"academic_year_id" validate:"required"`
	StudentIDs     []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// BulkEnrollmentResult counts what the bulk call created and left alone.
type BulkEnrollmentResult struct {
	ClassID         string           `json:"class_id"`
	AcademicYearID  string           `json:"academic_year_id"`
	Created         int              `json:"created"`
	AlreadyEnrolled int              `json:"already_enrolled"`
	Errors          []PromotionError `json:"errors"`
	Message         string           `json:"message"`
}

// EnrollmentView is the API shape of an enrollment row.
type EnrollmentView struct {
	ID               string               `json:"id"`
	StudentID        string               `json:"student_id"`
	StudentNumber    string               `json:"student_number"`
	StudentName      string               `json:"student_name"`
	StudentStatus    models.StudentStatus `json:"student_status"`
	ClassID          string               `json:"class_id"`
	ClassName        string               `json:"class_name"`
	AcademicYearID   string               `json:"academic_year_id"`
	AcademicYearName string               `json:"academic_year_name"`
	IsActive         bool                 `json:"is_active"`
	PromotedFromID   *string              `json:"promoted_from_id,omitempty"`
	Notes            string               `json:"notes,omitempty"`
	EnrolledAt       time.Time            `json:"enrolled_at"`
}

// NewEnrollmentView flattens a joined enrollment row.
func NewEnrollmentView(d models.EnrollmentDetail) EnrollmentView {
	return EnrollmentView{
		ID:               d.ID,
		StudentID:        d.StudentID,
		StudentNumber:    d.StudentNumber,
		StudentName:      d.StudentName(),
		StudentStatus:    d.StudentStatus,
		ClassID:          d.ClassID,
		ClassName:        d.ClassName(),
		AcademicYearID:   d.AcademicYearID,
		AcademicYearName: d.AcademicYearName,
		IsActive:         d.IsActive,
		PromotedFromID:   d.PromotedFromID,
		Notes:            d.Notes,
		EnrolledAt:       d.EnrolledAt,
	}
}

// ClassStudent is one row of a class listing.
type ClassStudent struct {
	StudentID     string               `json:"student_id"`
	StudentNumber string               `json:"student_number"`
	StudentName   string               `json:"student_name"`
	Status        models.StudentStatus `json:"status"`
	EnrollmentID  string               `json:"enrollment_id"`
	EnrolledAt    time.Time            `json:"enrolled_at"`
}

// ClassStudentsResponse lists the active cohort of a class for a year.
type ClassStudentsResponse struct {
	Class        ClassSummary          `json:"class"`
	AcademicYear YearSummary           `json:"academic_year"`
	Occupancy    models.ClassOccupancy `json:"occupancy"`
	Students     []ClassStudent        `json:"students"`
}
