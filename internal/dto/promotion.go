package dto

import "github.com/noah-isme/sis-academics/internal/models"

// PromotionSetupRequest selects the cohort and the action applied to it.
type PromotionSetupRequest struct {
	Type                 models.PromotionType `json:"type" validate:"required,oneof=promote transfer demote repeat graduate"`
	SourceAcademicYearID string               `json:"source_academic_year_id" validate:"required"`
	SourceClassID        string               `json:"source_class_id" validate:"required"`
	TargetAcademicYearID string               `json:"target_academic_year_id,omitempty"`
	TargetClassID        string               `json:"target_class_id,omitempty"`
}

// PromotionExecuteRequest carries the confirmed subset of the previewed cohort.
type PromotionExecuteRequest struct {
	PromotionSetupRequest
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// ClassSummary is the class shape shown on promotion screens.
type ClassSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	GradeLevelID   string  `json:"grade_level_id"`
	GradeLevelName string  `json:"grade_level_name"`
	Section        string  `json:"section"`
	ProgrammeCode  *string `json:"programme_code,omitempty"`
	IsFinalLevel   bool    `json:"is_final_level"`
}

// NewClassSummary flattens a class detail.
func NewClassSummary(c models.ClassDetail) ClassSummary {
	return ClassSummary{
		ID:             c.ID,
		Name:           c.DisplayName(),
		GradeLevelID:   c.GradeLevelID,
		GradeLevelName: c.GradeLevelName,
		Section:        c.Section,
		ProgrammeCode:  c.ProgrammeCode,
		IsFinalLevel:   c.IsFinalLevel,
	}
}

// YearSummary is the academic year shape shown on promotion screens.
type YearSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
}

func NewYearSummary(y models.AcademicYear) YearSummary {
	return YearSummary{ID: y.ID, Name: y.Name, IsCurrent: y.IsCurrent}
}

// PromotionPreviewRow describes one student of the source cohort.
type PromotionPreviewRow struct {
	StudentID        string               `json:"student_id"`
	StudentNumber    string               `json:"student_number"`
	StudentName      string               `json:"student_name"`
	Status           models.StudentStatus `json:"status"`
	EnrollmentID     string               `json:"enrollment_id"`
	AlreadyProcessed bool                 `json:"already_processed"`
	CanAct           bool                 `json:"can_act"`
}

// PromotionPreview is the read-only outcome forecast for a setup.
type PromotionPreview struct {
	Type                 models.PromotionType  `json:"type"`
	SourceClass          ClassSummary          `json:"source_class"`
	SourceAcademicYear   YearSummary           `json:"source_academic_year"`
	TargetClass          *ClassSummary         `json:"target_class,omitempty"`
	TargetAcademicYear   *YearSummary          `json:"target_academic_year,omitempty"`
	IsFinalLevel         bool                  `json:"is_final_level"`
	Students             []PromotionPreviewRow `json:"students"`
	PromotableCount      int                   `json:"promotable_count"`
	AlreadyEnrolledCount int                   `json:"already_enrolled_count"`
	TotalCount           int                   `json:"total_count"`
}

// PromotionSkip records a student left untouched and why.
type PromotionSkip struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// PromotionError records a per-student failure; the rest of the batch still runs.
type PromotionError struct {
	StudentID string `json:"student_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// PromotionResult summarises one execute call.
type PromotionResult struct {
	Type           models.PromotionType `json:"type"`
	Processed      int                  `json:"processed"`
	PromotedCount  int                  `json:"promoted_count"`
	GraduatedCount int                  `json:"graduated_count"`
	SkippedCount   int                  `json:"skipped_count"`
	ErrorCount     int                  `json:"error_count"`
	Skipped        []PromotionSkip      `json:"skipped"`
	Errors         []PromotionError     `json:"errors"`
	Messages       []string             `json:"messages"`
}

// TargetSuggestion is an advisory next class for a source class.
type TargetSuggestion struct {
	SourceClassID    string        `json:"source_class_id"`
	Found            bool          `json:"found"`
	NextGradeLevelID *string       `json:"next_grade_level_id,omitempty"`
	Class            *ClassSummary `json:"class,omitempty"`
	Message          string        `json:"message,omitempty"`
}
