package models

// GradeScale maps scores to grades for a level type. One default per level type.
type GradeScale struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	LevelType LevelType `db:"level_type" json:"level_type"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}
