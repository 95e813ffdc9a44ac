package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-academics/internal/models"
)

const studentColumns = `id, student_number, first_name, middle_name, last_name, status, is_active, current_class_id,
graduation_date, graduation_year_id, withdrawal_date, withdrawal_reason, created_at, updated_at`

// StudentRepository handles the student columns owned by the academics core.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a student. sql.ErrNoRows is returned unwrapped.
func (r *StudentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockByID loads a student with a row lock held until the surrounding transaction ends.
func (r *StudentRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 FOR UPDATE`
	var student models.Student
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByIDs returns the students found among ids; missing ids are simply absent.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ANY($1) ORDER BY last_name, first_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	return students, nil
}

// MarkGraduated closes the student's record for the given graduation year.
func (r *StudentRepository) MarkGraduated(ctx context.Context, exec sqlx.ExtContext, id, yearID string, on time.Time) error {
	const query = `UPDATE students SET status = $2, is_active = FALSE, graduation_date = $3, graduation_year_id = $4,
current_class_id = NULL, updated_at = $5 WHERE id = $1`
	res, err := pick(r.db, exec).ExecContext(ctx, query, id, models.StudentStatusGraduated, on, yearID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark student graduated: %w", err)
	}
	return expectOne(res)
}

// SetCurrentClass overwrites current_class_id; nil clears it.
func (r *StudentRepository) SetCurrentClass(ctx context.Context, exec sqlx.ExtContext, id string, classID *string) error {
	const query = `UPDATE students SET current_class_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, classID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set current class: %w", err)
	}
	return nil
}

// ClearCurrentClassIf clears current_class_id only while it still points at classID.
func (r *StudentRepository) ClearCurrentClassIf(ctx context.Context, exec sqlx.ExtContext, id, classID string) error {
	const query = `UPDATE students SET current_class_id = NULL, updated_at = $3 WHERE id = $1 AND current_class_id = $2`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, classID, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear current class: %w", err)
	}
	return nil
}

// SyncCurrentClasses points every student at the class of their active enrollment in
// yearID and clears the pointer of students without one. It returns the rows changed.
func (r *StudentRepository) SyncCurrentClasses(ctx context.Context, exec sqlx.ExtContext, yearID string) (int64, error) {
	const assign = `UPDATE students s SET current_class_id = e.class_id, updated_at = $2
FROM class_enrollments e
WHERE e.student_id = s.id AND e.academic_year_id = $1 AND e.is_active = TRUE
AND s.current_class_id IS DISTINCT FROM e.class_id`
	const clear = `UPDATE students s SET current_class_id = NULL, updated_at = $2
WHERE s.current_class_id IS NOT NULL AND NOT EXISTS (
SELECT 1 FROM class_enrollments e WHERE e.student_id = s.id AND e.academic_year_id = $1 AND e.is_active = TRUE)`

	db := pick(r.db, exec)
	now := time.Now().UTC()
	var changed int64
	for _, query := range []string{assign, clear} {
		res, err := db.ExecContext(ctx, query, yearID, now)
		if err != nil {
			return 0, fmt.Errorf("sync current classes: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		changed += n
	}
	return changed, nil
}

// UpdateLifecycle writes the status related columns of a student.
func (r *StudentRepository) UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET status = :status, is_active = :is_active, current_class_id = :current_class_id,
withdrawal_date = :withdrawal_date, withdrawal_reason = :withdrawal_reason, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, student)
	if err != nil {
		return fmt.Errorf("update student lifecycle: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
