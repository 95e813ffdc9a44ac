package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
)

const classDetailSelect = `SELECT c.id, c.grade_level_id, c.section, c.programme_id, c.capacity, c.is_active,
       gl.name AS grade_level_name, gl.sort_order AS grade_level_order, gl.level_type, gl.is_final_level,
       p.code AS programme_code, p.name AS programme_name
FROM classes c
JOIN grade_levels gl ON gl.id = c.grade_level_id
LEFT JOIN programmes p ON p.id = c.programme_id`

// ClassRepository reads classes together with their grade level and programme.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindDetailByID loads one class. sql.ErrNoRows is returned unwrapped.
func (r *ClassRepository) FindDetailByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassDetail, error) {
	var class models.ClassDetail
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &class, classDetailSelect+` WHERE c.id = $1`, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListActiveByGradeLevel returns the active classes of a grade level ordered by section.
func (r *ClassRepository) ListActiveByGradeLevel(ctx context.Context, gradeLevelID string) ([]models.ClassDetail, error) {
	query := classDetailSelect + ` WHERE c.grade_level_id = $1 AND c.is_active = TRUE ORDER BY c.section ASC, c.id ASC`
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, gradeLevelID); err != nil {
		return nil, fmt.Errorf("list classes by grade level: %w", err)
	}
	return classes, nil
}
