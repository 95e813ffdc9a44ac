package dto

import "github.com/noah-isme/sis-academics/internal/models"

// ChangeStudentStatusRequest moves a student through the non-graduation lifecycle.
type ChangeStudentStatusRequest struct {
	Status models.StudentStatus `json:"status" validate:"required,oneof=active withdrawn transferred suspended"`
	Reason string               `json:"reason" validate:"max=500"`
	// EffectiveDate is "2006-01-02"; empty means today.
	EffectiveDate string `json:"effective_date" validate:"omitempty,datetime=2006-01-02"`
}

// RosterRequest selects the class cohort to export.
type RosterRequest struct {
	AcademicYearID string `form:"academic_year_id"`
	Format         string `form:"format"`
}

// RosterFile is a rendered roster ready to be returned as an attachment.
type RosterFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
