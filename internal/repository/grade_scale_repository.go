package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
)

const gradeScaleColumns = `id, name, level_type, is_default, is_active`

// GradeScaleRepository persists grading scales.
type GradeScaleRepository struct {
	db         *sqlx.DB
	defaultSet *SingletonFlag
}

func NewGradeScaleRepository(db *sqlx.DB) *GradeScaleRepository {
	return &GradeScaleRepository{db: db, defaultSet: NewSingletonFlag(db, "grade_scales", "is_default", "level_type")}
}

func (r *GradeScaleRepository) List(ctx context.Context) ([]models.GradeScale, error) {
	query := `SELECT ` + gradeScaleColumns + ` FROM grade_scales ORDER BY level_type, name`
	var scales []models.GradeScale
	if err := r.db.SelectContext(ctx, &scales, query); err != nil {
		return nil, fmt.Errorf("list grade scales: %w", err)
	}
	return scales, nil
}

func (r *GradeScaleRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.GradeScale, error) {
	query := `SELECT ` + gradeScaleColumns + ` FROM grade_scales WHERE id = $1`
	var scale models.GradeScale
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &scale, query, id); err != nil {
		return nil, err
	}
	return &scale, nil
}

// FindDefault returns the default scale for a level type.
func (r *GradeScaleRepository) FindDefault(ctx context.Context, levelType models.LevelType) (*models.GradeScale, error) {
	query := `SELECT ` + gradeScaleColumns + ` FROM grade_scales WHERE level_type = $1 AND is_default = TRUE LIMIT 1`
	var scale models.GradeScale
	if err := r.db.GetContext(ctx, &scale, query, levelType); err != nil {
		return nil, err
	}
	return &scale, nil
}

// SetDefault makes id the only default scale of its level type.
func (r *GradeScaleRepository) SetDefault(ctx context.Context, exec sqlx.ExtContext, id string) error {
	return r.defaultSet.Set(ctx, exec, id)
}
