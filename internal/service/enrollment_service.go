package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/internal/repository"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

// EnrollmentService is the write path for class enrollments outside of promotions.
// Every write that touches the current academic year re-derives the student's
// current class inside the same transaction.
type EnrollmentService struct {
	tx          txRunner
	enrollments enrollmentStore
	students    studentStore
	classes     classReader
	years       academicYearStore
	calendar    currentYearProvider
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(tx txRunner, enrollments enrollmentStore, students studentStore, classes classReader, years academicYearStore, calendar currentYearProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &EnrollmentService{
		tx:          tx,
		enrollments: enrollments,
		students:    students,
		classes:     classes,
		years:       years,
		calendar:    calendar,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]dto.EnrollmentView, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	rows, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return toViews(rows), &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Enroll places a student in a class for a year. A second active enrollment for the
// same student and year is a CONFLICT.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID string, req dto.CreateEnrollmentRequest) (*dto.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}

	var created models.Enrollment
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := s.students.LockByID(ctx, exec, req.StudentID)
		if err != nil {
			return lookupError(err, "student not found", "failed to load student")
		}
		if student.Status != models.StudentStatusActive && student.Status != models.StudentStatusSuspended {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("student is %s and cannot be enrolled", student.Status))
		}
		class, err := s.classes.FindDetailByID(ctx, exec, req.ClassID)
		if err != nil {
			return lookupError(err, "class not found", "failed to load class")
		}
		if !class.IsActive {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "class is inactive")
		}
		year, err := s.years.FindByID(ctx, exec, req.AcademicYearID)
		if err != nil {
			return lookupError(err, "academic year not found", "failed to load academic year")
		}

		created = models.Enrollment{
			StudentID:      student.ID,
			ClassID:        class.ID,
			AcademicYearID: year.ID,
			IsActive:       true,
			Notes:          req.Notes,
		}
		return s.create(ctx, exec, &created, year)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionEnrollmentCreate, "class_enrollment", created.ID, created))
	return s.view(ctx, created.ID)
}

// create inserts an active enrollment after checking the one-active-per-year rule and
// syncs current_class when the year is current.
func (s *EnrollmentService) create(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment, year *models.AcademicYear) error {
	if _, err := s.enrollments.FindActiveByStudentYear(ctx, exec, e.StudentID, year.ID); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student already has an active enrollment in %s", year.Name))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Internal(err, "failed to check existing enrollment")
	}

	if err := s.enrollments.Create(ctx, exec, e); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student already has an active enrollment in %s", year.Name))
		}
		return appErrors.Internal(err, "failed to create enrollment")
	}
	if year.IsCurrent {
		classID := e.ClassID
		if err := s.students.SetCurrentClass(ctx, exec, e.StudentID, &classID); err != nil {
			return appErrors.Internal(err, "failed to update current class")
		}
	}
	return nil
}

// Deactivate ends an active enrollment. The row is kept for history.
func (s *EnrollmentService) Deactivate(ctx context.Context, actorID, enrollmentID, note string) error {
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		enrollment, err := s.enrollments.FindByID(ctx, exec, enrollmentID)
		if err != nil {
			return lookupError(err, "enrollment not found", "failed to load enrollment")
		}
		if !enrollment.IsActive {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment is already inactive")
		}
		if _, err := s.students.LockByID(ctx, exec, enrollment.StudentID); err != nil {
			return lookupError(err, "student not found", "failed to lock student")
		}
		return s.deactivate(ctx, exec, enrollment, note)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionEnrollmentEnd, "class_enrollment", enrollmentID, map[string]string{"note": note}))
	return nil
}

func (s *EnrollmentService) deactivate(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment, note string) error {
	if err := s.enrollments.Deactivate(ctx, exec, enrollment.ID, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment is already inactive")
		}
		return appErrors.Internal(err, "failed to deactivate enrollment")
	}
	year, err := s.years.FindByID(ctx, exec, enrollment.AcademicYearID)
	if err != nil {
		return lookupError(err, "academic year not found", "failed to load academic year")
	}
	if year.IsCurrent {
		if err := s.students.ClearCurrentClassIf(ctx, exec, enrollment.StudentID, enrollment.ClassID); err != nil {
			return appErrors.Internal(err, "failed to clear current class")
		}
	}
	return nil
}

// History walks the promoted_from chain starting at enrollmentID, newest first.
func (s *EnrollmentService) History(ctx context.Context, enrollmentID string) ([]dto.EnrollmentView, error) {
	var chain []dto.EnrollmentView
	seen := make(map[string]bool)
	next := &enrollmentID
	for next != nil {
		if seen[*next] {
			s.logger.Warn("enrollment history cycle", zap.String("enrollment_id", *next))
			break
		}
		seen[*next] = true

		detail, err := s.enrollments.FindDetailByID(ctx, *next)
		if err != nil {
			if len(chain) > 0 && errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, lookupError(err, "enrollment not found", "failed to load enrollment")
		}
		chain = append(chain, dto.NewEnrollmentView(*detail))
		next = detail.PromotedFromID
	}
	return chain, nil
}

// StudentEnrollments lists every enrollment of a student, newest year first.
func (s *EnrollmentService) StudentEnrollments(ctx context.Context, studentID string) ([]dto.EnrollmentView, error) {
	if _, err := s.students.FindByID(ctx, nil, studentID); err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	rows, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list student enrollments")
	}
	return toViews(rows), nil
}

// BulkEnroll enrolls each student into the class unless they already hold an
// enrollment for the year. Each student is committed on its own.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, actorID, classID string, req dto.BulkEnrollmentRequest) (*dto.BulkEnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk enrollment payload")
	}
	class, err := s.classes.FindDetailByID(ctx, nil, classID)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	year, err := s.years.FindByID(ctx, nil, req.AcademicYearID)
	if err != nil {
		return nil, lookupError(err, "academic year not found", "failed to load academic year")
	}

	result := &dto.BulkEnrollmentResult{ClassID: class.ID, AcademicYearID: year.ID, Errors: []dto.PromotionError{}}
	for _, studentID := range dedupe(req.StudentIDs) {
		created := false
		err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
			if _, err := s.students.LockByID(ctx, exec, studentID); err != nil {
				return lookupError(err, "student not found", "failed to lock student")
			}
			exists, err := s.enrollments.ExistsForStudentYear(ctx, exec, studentID, year.ID, "")
			if err != nil {
				return appErrors.Internal(err, "failed to check existing enrollment")
			}
			if exists {
				return nil
			}
			e := models.Enrollment{StudentID: studentID, ClassID: class.ID, AcademicYearID: year.ID, IsActive: true}
			if err := s.create(ctx, exec, &e, year); err != nil {
				return err
			}
			created = true
			return nil
		})
		switch {
		case err == nil && created:
			result.Created++
		case err == nil, errors.Is(err, appErrors.ErrConflict):
			result.AlreadyEnrolled++
		default:
			appErr := appErrors.FromError(err)
			result.Errors = append(result.Errors, dto.PromotionError{StudentID: studentID, Code: appErr.Code, Message: appErr.Message})
		}
	}

	result.Message = fmt.Sprintf("Successfully enrolled %d student(s) in %s (%s).", result.Created, class.DisplayName(), year.Name)
	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionBulkEnroll, "class", class.ID, result))
	s.logger.Info("bulk enrollment finished",
		zap.String("class_id", class.ID),
		zap.String("academic_year_id", year.ID),
		zap.Int("created", result.Created),
		zap.Int("already_enrolled", result.AlreadyEnrolled),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// ClassStudents lists the active cohort of a class. An empty yearID means the current year.
func (s *EnrollmentService) ClassStudents(ctx context.Context, classID, yearID string) (*dto.ClassStudentsResponse, error) {
	class, err := s.classes.FindDetailByID(ctx, nil, classID)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}

	var year *models.AcademicYear
	if yearID == "" {
		year, err = s.calendar.CurrentYear(ctx)
	} else {
		year, err = s.years.FindByID(ctx, nil, yearID)
		if err != nil {
			err = lookupError(err, "academic year not found", "failed to load academic year")
		}
	}
	if err != nil {
		return nil, err
	}

	cohort, err := s.enrollments.ListActiveByClassYear(ctx, class.ID, year.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list class students")
	}

	students := make([]dto.ClassStudent, 0, len(cohort))
	for _, row := range cohort {
		students = append(students, dto.ClassStudent{
			StudentID:     row.StudentID,
			StudentNumber: row.StudentNumber,
			StudentName:   row.StudentName(),
			Status:        row.StudentStatus,
			EnrollmentID:  row.ID,
			EnrolledAt:    row.EnrolledAt,
		})
	}
	return &dto.ClassStudentsResponse{
		Class:        dto.NewClassSummary(*class),
		AcademicYear: dto.NewYearSummary(*year),
		Occupancy:    models.NewClassOccupancy(class.ID, year.ID, class.Capacity, len(cohort)),
		Students:     students,
	}, nil
}

func (s *EnrollmentService) view(ctx context.Context, id string) (*dto.EnrollmentView, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment not found", "failed to load enrollment")
	}
	view := dto.NewEnrollmentView(*detail)
	return &view, nil
}

func toViews(rows []models.EnrollmentDetail) []dto.EnrollmentView {
	views := make([]dto.EnrollmentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, dto.NewEnrollmentView(row))
	}
	return views
}
