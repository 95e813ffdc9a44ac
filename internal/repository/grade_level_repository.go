package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
)

const gradeLevelColumns = `id, name, code, level_type, numeric_level, sort_order, is_final_level, is_active`

// GradeLevelRepository reads the grade ladder.
type GradeLevelRepository struct {
	db *sqlx.DB
}

func NewGradeLevelRepository(db *sqlx.DB) *GradeLevelRepository {
	return &GradeLevelRepository{db: db}
}

// List returns every grade level in ladder order.
func (r *GradeLevelRepository) List(ctx context.Context) ([]models.GradeLevel, error) {
	query := `SELECT ` + gradeLevelColumns + ` FROM grade_levels ORDER BY sort_order ASC`
	var levels []models.GradeLevel
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, fmt.Errorf("list grade levels: %w", err)
	}
	return levels, nil
}

// FindNext returns the active level whose order directly follows the given one.
func (r *GradeLevelRepository) FindNext(ctx context.Context, order int) (*models.GradeLevel, error) {
	query := `SELECT ` + gradeLevelColumns + ` FROM grade_levels WHERE sort_order = $1 AND is_active = TRUE LIMIT 1`
	var level models.GradeLevel
	if err := r.db.GetContext(ctx, &level, query, order+1); err != nil {
		return nil, err
	}
	return &level, nil
}
