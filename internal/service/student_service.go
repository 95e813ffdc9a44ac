package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

// allowedTransitions lists the statuses a student may move to by hand. Graduation is
// only reachable through a promotion batch and is terminal.
var allowedTransitions = map[models.StudentStatus][]models.StudentStatus{
	models.StudentStatusActive:      {models.StudentStatusWithdrawn, models.StudentStatusTransferred, models.StudentStatusSuspended},
	models.StudentStatusSuspended:   {models.StudentStatusActive, models.StudentStatusWithdrawn, models.StudentStatusTransferred},
	models.StudentStatusWithdrawn:   {models.StudentStatusActive},
	models.StudentStatusTransferred: {models.StudentStatusActive},
}

// StudentService handles the student lifecycle outside of promotions.
type StudentService struct {
	tx          txRunner
	students    studentStore
	enrollments enrollmentStore
	calendar    currentYearProvider
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(tx txRunner, students studentStore, enrollments enrollmentStore, calendar currentYearProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &StudentService{
		tx:          tx,
		students:    students,
		enrollments: enrollments,
		calendar:    calendar,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, nil, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	return student, nil
}

// ChangeStatus applies a manual lifecycle transition. Leaving the school closes the
// current year enrollment and clears the current class.
func (s *StudentService) ChangeStatus(ctx context.Context, actorID, id string, req dto.ChangeStudentStatusRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status change")
	}
	effective, err := s.effectiveDate(req.EffectiveDate)
	if err != nil {
		return nil, err
	}

	var current *models.AcademicYear
	if req.Status == models.StudentStatusWithdrawn || req.Status == models.StudentStatusTransferred {
		current, err = s.calendar.CurrentYear(ctx)
		if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
	}

	var updated *models.Student
	var previous models.StudentStatus
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := s.students.LockByID(ctx, exec, id)
		if err != nil {
			return lookupError(err, "student not found", "failed to load student")
		}
		previous = student.Status
		if err := checkTransition(student.Status, req.Status); err != nil {
			return err
		}

		reason := strings.TrimSpace(req.Reason)
		switch req.Status {
		case models.StudentStatusWithdrawn, models.StudentStatusTransferred:
			if current != nil {
				if err := s.closeCurrentEnrollment(ctx, exec, id, current.ID, req.Status, reason); err != nil {
					return err
				}
			}
			student.IsActive = false
			student.CurrentClassID = nil
			student.WithdrawalDate = &effective
			if reason != "" {
				student.WithdrawalReason = &reason
			} else {
				student.WithdrawalReason = nil
			}
		case models.StudentStatusActive:
			student.IsActive = true
			student.WithdrawalDate = nil
			student.WithdrawalReason = nil
		case models.StudentStatusSuspended:
			student.IsActive = true
		}
		student.Status = req.Status

		if err := s.students.UpdateLifecycle(ctx, exec, student); err != nil {
			return lookupError(err, "student not found", "failed to update student")
		}
		updated = student
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionStudentStatus, "student", id, map[string]interface{}{
		"from":   previous,
		"to":     req.Status,
		"reason": req.Reason,
	}))
	s.logger.Info("student status changed",
		zap.String("student_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(req.Status)))
	return updated, nil
}

func (s *StudentService) closeCurrentEnrollment(ctx context.Context, exec sqlx.ExtContext, studentID, yearID string, status models.StudentStatus, reason string) error {
	enrollment, err := s.enrollments.FindActiveByStudentYear(ctx, exec, studentID, yearID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return appErrors.Internal(err, "failed to load current enrollment")
	}
	note := fmt.Sprintf("Student %s", status)
	if reason != "" {
		note = fmt.Sprintf("%s: %s", note, reason)
	}
	if err := s.enrollments.Deactivate(ctx, exec, enrollment.ID, note); err != nil {
		return appErrors.Internal(err, "failed to close current enrollment")
	}
	return nil
}

func checkTransition(from, to models.StudentStatus) error {
	if from == models.StudentStatusGraduated {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "graduated students cannot change status")
	}
	if from == to {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("student is already %s", to))
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot change status from %s to %s", from, to))
}

func (s *StudentService) effectiveDate(raw string) (time.Time, error) {
	if raw == "" {
		now := s.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, validationError(err, "effective_date must be YYYY-MM-DD")
	}
	return t, nil
}
