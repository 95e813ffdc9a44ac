package models

import "fmt"

// Class is a year-independent section of a grade level. Occupancy is derived from
// active enrollments per academic year and never stored.
type Class struct {
	ID           string  `db:"id" json:"id"`
	GradeLevelID string  `db:"grade_level_id" json:"grade_level_id"`
	Section      string  `db:"section" json:"section"`
	ProgrammeID  *string `db:"programme_id" json:"programme_id,omitempty"`
	Capacity     int     `db:"capacity" json:"capacity"`
	IsActive     bool    `db:"is_active" json:"is_active"`
}

// ClassDetail joins the grade level and programme needed for naming and promotion.
type ClassDetail struct {
	Class
	GradeLevelName  string    `db:"grade_level_name" json:"grade_level_name"`
	GradeLevelOrder int       `db:"grade_level_order" json:"grade_level_order"`
	LevelType       LevelType `db:"level_type" json:"level_type"`
	IsFinalLevel    bool      `db:"is_final_level" json:"is_final_level"`
	ProgrammeCode   *string   `db:"programme_code" json:"programme_code,omitempty"`
	ProgrammeName   *string   `db:"programme_name" json:"programme_name,omitempty"`
}

// DisplayName renders "Form 1 SCI-A", "Form 1 A" or "Form 1" depending on which parts exist.
func (c ClassDetail) DisplayName() string {
	if c.ProgrammeCode != nil && *c.ProgrammeCode != "" {
		return fmt.Sprintf("%s %s-%s", c.GradeLevelName, *c.ProgrammeCode, c.Section)
	}
	if c.Section != "" {
		return fmt.Sprintf("%s %s", c.GradeLevelName, c.Section)
	}
	return c.GradeLevelName
}

// SameProgramme reports whether both classes share a programme, treating two empty
// programmes as equal.
func (c ClassDetail) SameProgramme(other ClassDetail) bool {
	if c.ProgrammeID == nil || other.ProgrammeID == nil {
		return c.ProgrammeID == nil && other.ProgrammeID == nil
	}
	return *c.ProgrammeID == *other.ProgrammeID
}

// ClassOccupancy summarises active enrollments against capacity for one year.
type ClassOccupancy struct {
	ClassID        string  `json:"class_id"`
	AcademicYearID string  `json:"academic_year_id"`
	Capacity       int     `json:"capacity"`
	Enrolled       int     `json:"enrolled"`
	HasSpace       bool    `json:"has_space"`
	Percentage     float64 `json:"percentage"`
}

// NewClassOccupancy derives the occupancy figures. A zero capacity means unlimited.
func NewClassOccupancy(classID, yearID string, capacity, enrolled int) ClassOccupancy {
	occ := ClassOccupancy{ClassID: classID, AcademicYearID: yearID, Capacity: capacity, Enrolled: enrolled, HasSpace: true}
	if capacity > 0 {
		occ.HasSpace = enrolled < capacity
		occ.Percentage = float64(enrolled) / float64(capacity) * 100
	}
	return occ
}
