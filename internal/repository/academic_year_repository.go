package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
)

const academicYearColumns = `id, name, start_date, end_date, is_current, is_active, created_at, updated_at`

// AcademicYearRepository handles persistence for academic years.
type AcademicYearRepository struct {
	db      *sqlx.DB
	current *SingletonFlag
}

// NewAcademicYearRepository instantiates the repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db, current: NewSingletonFlag(db, "academic_years", "is_current", "")}
}

// List returns every year, newest first.
func (r *AcademicYearRepository) List(ctx context.Context) ([]models.AcademicYear, error) {
	query := `SELECT ` + academicYearColumns + ` FROM academic_years ORDER BY start_date DESC`
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindByID loads a year. sql.ErrNoRows is returned unwrapped.
func (r *AcademicYearRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AcademicYear, error) {
	query := `SELECT ` + academicYearColumns + ` FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindCurrent returns the year flagged current.
func (r *AcademicYearRepository) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	query := `SELECT ` + academicYearColumns + ` FROM academic_years WHERE is_current = TRUE LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// SetCurrent makes id the only current year.
func (r *AcademicYearRepository) SetCurrent(ctx context.Context, exec sqlx.ExtContext, id string) error {
	return r.current.Set(ctx, exec, id)
}
