package models

import (
	"encoding/json"
	"time"
)

const (
	AuditActionPromotionExecute = "PROMOTION_EXECUTE"
	AuditActionSetCurrentYear   = "ACADEMIC_YEAR_SET_CURRENT"
	AuditActionSetCurrentTerm   = "TERM_SET_CURRENT"
	AuditActionSetDefaultScale  = "GRADE_SCALE_SET_DEFAULT"
	AuditActionEnrollmentCreate = "ENROLLMENT_CREATE"
	AuditActionEnrollmentEnd    = "ENROLLMENT_DEACTIVATE"
	AuditActionBulkEnroll       = "ENROLLMENT_BULK"
	AuditActionStudentStatus    = "STUDENT_STATUS_CHANGE"
)

// AuditLog is an append-only trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
