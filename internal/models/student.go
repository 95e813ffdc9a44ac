package models

import (
	"strings"
	"time"
)

// StudentStatus is the lifecycle state of a student.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "active"
	StudentStatusGraduated   StudentStatus = "graduated"
	StudentStatusWithdrawn   StudentStatus = "withdrawn"
	StudentStatusTransferred StudentStatus = "transferred"
	StudentStatusSuspended   StudentStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentStatusActive, StudentStatusGraduated, StudentStatusWithdrawn, StudentStatusTransferred, StudentStatusSuspended:
		return true
	}
	return false
}

// Student is a learner. CurrentClassID mirrors the class of the active enrollment
// in the current academic year.
type Student struct {
	ID               string        `db:"id" json:"id"`
	StudentNumber    string        `db:"student_number" json:"student_number"`
	FirstName        string        `db:"first_name" json:"first_name"`
	MiddleName       string        `db:"middle_name" json:"middle_name,omitempty"`
	LastName         string        `db:"last_name" json:"last_name"`
	Status           StudentStatus `db:"status" json:"status"`
	IsActive         bool          `db:"is_active" json:"is_active"`
	CurrentClassID   *string       `db:"current_class_id" json:"current_class_id,omitempty"`
	GraduationDate   *time.Time    `db:"graduation_date" json:"graduation_date,omitempty"`
	GraduationYearID *string       `db:"graduation_year_id" json:"graduation_year_id,omitempty"`
	WithdrawalDate   *time.Time    `db:"withdrawal_date" json:"withdrawal_date,omitempty"`
	WithdrawalReason *string       `db:"withdrawal_reason" json:"withdrawal_reason,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName joins the non-empty name parts.
func (s Student) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.FirstName, s.MiddleName, s.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
