package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
)

const termColumns = `id, academic_year_id, term_number, name, start_date, end_date, is_current, is_active, created_at, updated_at`

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db      *sqlx.DB
	current *SingletonFlag
}

// NewTermRepository instantiates a term repository. The current flag is scoped per year.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db, current: NewSingletonFlag(db, "terms", "is_current", "academic_year_id")}
}

// ListByYear returns the terms of one academic year in term order.
func (r *TermRepository) ListByYear(ctx context.Context, academicYearID string) ([]models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE academic_year_id = $1 ORDER BY term_number ASC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, academicYearID); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE id = $1`
	var term models.Term
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the current term of a year.
func (r *TermRepository) FindCurrent(ctx context.Context, academicYearID string) (*models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE academic_year_id = $1 AND is_current = TRUE LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, academicYearID); err != nil {
		return nil, err
	}
	return &term, nil
}

// SetCurrent marks the term current and clears its siblings in the same year.
func (r *TermRepository) SetCurrent(ctx context.Context, exec sqlx.ExtContext, id string) error {
	return r.current.Set(ctx, exec, id)
}
