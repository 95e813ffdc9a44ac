package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-academics/internal/models"
)

const enrollmentColumns = `id, student_id, class_id, academic_year_id, is_active, promoted_from_id, notes, enrolled_at, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.class_id, e.academic_year_id, e.is_active, e.promoted_from_id, e.notes,
       e.enrolled_at, e.updated_at,
       s.student_number, s.first_name AS student_first_name, s.last_name AS student_last_name, s.status AS student_status,
       gl.name AS grade_level_name, c.section, p.code AS programme_code, ay.name AS academic_year_name
FROM class_enrollments e
JOIN students s ON s.id = e.student_id
JOIN classes c ON c.id = e.class_id
JOIN grade_levels gl ON gl.id = c.grade_level_id
LEFT JOIN programmes p ON p.id = c.programme_id
JOIN academic_years ay ON ay.id = e.academic_year_id`

// EnrollmentRepository handles persistence of class enrollments. Rows are deactivated,
// never deleted; a partial unique index keeps one active row per student and year.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts an enrollment. ErrDuplicate signals an existing active row for the
// same student and year.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now

	const query = `INSERT INTO class_enrollments (` + enrollmentColumns + `)
VALUES (:id, :student_id, :class_id, :academic_year_id, :is_active, :promoted_from_id, :notes, :enrolled_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Deactivate flips an active enrollment to inactive and appends note when given.
// sql.ErrNoRows means the row is missing or already inactive.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, id, note string) error {
	const query = `UPDATE class_enrollments
SET is_active = FALSE,
    notes = CASE WHEN $2 = '' THEN notes WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
    updated_at = $3
WHERE id = $1 AND is_active = TRUE`
	res, err := pick(r.db, exec).ExecContext(ctx, query, id, note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	return expectOne(res)
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM class_enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and class context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveByStudentYear returns the student's active enrollment in a year.
func (r *EnrollmentRepository) FindActiveByStudentYear(ctx context.Context, exec sqlx.ExtContext, studentID, yearID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM class_enrollments WHERE student_id = $1 AND academic_year_id = $2 AND is_active = TRUE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, studentID, yearID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveInClass returns the student's active enrollment in one class and year.
func (r *EnrollmentRepository) FindActiveInClass(ctx context.Context, exec sqlx.ExtContext, studentID, classID, yearID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM class_enrollments
WHERE student_id = $1 AND class_id = $2 AND academic_year_id = $3 AND is_active = TRUE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, studentID, classID, yearID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsForStudentYear reports whether the student has any enrollment, active or not,
// in the year other than excludeID.
func (r *EnrollmentRepository) ExistsForStudentYear(ctx context.Context, exec sqlx.ExtContext, studentID, yearID, excludeID string) (bool, error) {
	query := `SELECT 1 FROM class_enrollments WHERE student_id = $1 AND academic_year_id = $2`
	args := []interface{}{studentID, yearID}
	if excludeID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}
	var exists int
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &exists, query+` LIMIT 1`, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment in year: %w", err)
	}
	return true, nil
}

// ActiveStudentIDsInYear returns which of studentIDs hold an active enrollment in the
// year, ignoring the enrollments listed in excludeIDs.
func (r *EnrollmentRepository) ActiveStudentIDsInYear(ctx context.Context, yearID string, studentIDs, excludeIDs []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(studentIDs) == 0 {
		return found, nil
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	const query = `SELECT DISTINCT student_id FROM class_enrollments
WHERE academic_year_id = $1 AND is_active = TRUE AND student_id = ANY($2) AND id <> ALL($3)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, yearID, pq.Array(studentIDs), pq.Array(excludeIDs)); err != nil {
		return nil, fmt.Errorf("list active students in year: %w", err)
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}

// ListActiveByClassYear returns the active cohort of a class in one year.
func (r *EnrollmentRepository) ListActiveByClassYear(ctx context.Context, classID, yearID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.class_id = $1 AND e.academic_year_id = $2 AND e.is_active = TRUE
ORDER BY s.last_name ASC, s.first_name ASC`
	var cohort []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &cohort, query, classID, yearID); err != nil {
		return nil, fmt.Errorf("list class cohort: %w", err)
	}
	return cohort, nil
}

// CountActiveByClassYear counts active enrollments in a class for a year.
func (r *EnrollmentRepository) CountActiveByClassYear(ctx context.Context, classID, yearID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1 AND academic_year_id = $2 AND is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, yearID); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// ListByStudent returns every enrollment of a student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.student_id = $1 ORDER BY ay.start_date DESC, e.enrolled_at DESC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return rows, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("e.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "e.is_active = TRUE")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d", enrollmentDetailSelect, clause, size, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM class_enrollments e"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}
