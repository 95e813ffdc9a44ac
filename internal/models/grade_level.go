package models

// LevelType groups grade levels into school phases.
type LevelType string

const (
	LevelTypePrimary LevelType = "primary"
	LevelTypeJHS     LevelType = "jhs"
	LevelTypeSHS     LevelType = "shs"
)

// GradeLevel is one rung of the progression ladder. Order defines promotion adjacency:
// the level after a class's level is the active one with Order+1.
type GradeLevel struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	LevelType    LevelType `db:"level_type" json:"level_type"`
	NumericLevel int       `db:"numeric_level" json:"numeric_level"`
	Order        int       `db:"sort_order" json:"order"`
	IsFinalLevel bool      `db:"is_final_level" json:"is_final_level"`
	IsActive     bool      `db:"is_active" json:"is_active"`
}

// Programme is an optional stream within a grade level, e.g. General Science.
type Programme struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Code     string `db:"code" json:"code"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
