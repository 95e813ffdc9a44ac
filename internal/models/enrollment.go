package models

import "time"

// Enrollment places a student in a class for an academic year. Rows are never deleted;
// deactivation keeps history and promotions link back via PromotedFromID.
type Enrollment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	PromotedFromID *string   `db:"promoted_from_id" json:"promoted_from_id,omitempty"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	EnrolledAt     time.Time `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student, class and year info.
type EnrollmentDetail struct {
	Enrollment
	StudentNumber    string        `db:"student_number" json:"student_number"`
	StudentFirstName string        `db:"student_first_name" json:"-"`
	StudentLastName  string        `db:"student_last_name" json:"-"`
	StudentStatus    StudentStatus `db:"student_status" json:"student_status"`
	GradeLevelName   string        `db:"grade_level_name" json:"-"`
	Section          string        `db:"section" json:"-"`
	ProgrammeCode    *string       `db:"programme_code" json:"-"`
	AcademicYearName string        `db:"academic_year_name" json:"academic_year_name"`
}

// StudentName returns "First Last".
func (d EnrollmentDetail) StudentName() string {
	return Student{FirstName: d.StudentFirstName, LastName: d.StudentLastName}.FullName()
}

// ClassName renders the class display name from the joined columns.
func (d EnrollmentDetail) ClassName() string {
	return ClassDetail{
		Class:          Class{Section: d.Section},
		GradeLevelName: d.GradeLevelName,
		ProgrammeCode:  d.ProgrammeCode,
	}.DisplayName()
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID      string
	ClassID        string
	AcademicYearID string
	ActiveOnly     bool
	Page           int
	PageSize       int
}
