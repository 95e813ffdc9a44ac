package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
)

// Persistence ports shared by the academics services. Methods taking an exec run on
// the supplied transaction, or on the pool when exec is nil.

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type academicYearStore interface {
	List(ctx context.Context) ([]models.AcademicYear, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AcademicYear, error)
	FindCurrent(ctx context.Context) (*models.AcademicYear, error)
	SetCurrent(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type termStore interface {
	ListByYear(ctx context.Context, academicYearID string) ([]models.Term, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Term, error)
	FindCurrent(ctx context.Context, academicYearID string) (*models.Term, error)
	SetCurrent(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type gradeScaleStore interface {
	List(ctx context.Context) ([]models.GradeScale, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.GradeScale, error)
	FindDefault(ctx context.Context, levelType models.LevelType) (*models.GradeScale, error)
	SetDefault(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type currentClassSyncer interface {
	SyncCurrentClasses(ctx context.Context, exec sqlx.ExtContext, academicYearID string) (int64, error)
}

type gradeLevelReader interface {
	FindNext(ctx context.Context, order int) (*models.GradeLevel, error)
}

type classReader interface {
	FindDetailByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassDetail, error)
	ListActiveByGradeLevel(ctx context.Context, gradeLevelID string) ([]models.ClassDetail, error)
}

type studentStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	MarkGraduated(ctx context.Context, exec sqlx.ExtContext, id, yearID string, on time.Time) error
	SetCurrentClass(ctx context.Context, exec sqlx.ExtContext, id string, classID *string) error
	ClearCurrentClassIf(ctx context.Context, exec sqlx.ExtContext, id, classID string) error
	UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

type enrollmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	Deactivate(ctx context.Context, exec sqlx.ExtContext, id, note string) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindActiveByStudentYear(ctx context.Context, exec sqlx.ExtContext, studentID, yearID string) (*models.Enrollment, error)
	FindActiveInClass(ctx context.Context, exec sqlx.ExtContext, studentID, classID, yearID string) (*models.Enrollment, error)
	ExistsForStudentYear(ctx context.Context, exec sqlx.ExtContext, studentID, yearID, excludeID string) (bool, error)
	ActiveStudentIDsInYear(ctx context.Context, yearID string, studentIDs, excludeIDs []string) (map[string]bool, error)
	ListActiveByClassYear(ctx context.Context, classID, yearID string) ([]models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

type currentYearProvider interface {
	CurrentYear(ctx context.Context) (*models.AcademicYear, error)
}
