package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sis-academics/internal/models"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

// CalendarService owns the single-winner flags of the school calendar: the current
// academic year, the current term of each year and the default grade scale of each
// level type.
type CalendarService struct {
	tx       txRunner
	years    academicYearStore
	terms    termStore
	scales   gradeScaleStore
	students currentClassSyncer
	cache    *CacheService
	audit    auditRecorder
	logger   *zap.Logger

	currentGroup singleflight.Group
}

// NewCalendarService constructs the service.
func NewCalendarService(tx txRunner, years academicYearStore, terms termStore, scales gradeScaleStore, students currentClassSyncer, cache *CacheService, audit auditRecorder, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &CalendarService{tx: tx, years: years, terms: terms, scales: scales, students: students, cache: cache, audit: audit, logger: logger}
}

// ListYears returns every academic year, newest first.
func (s *CalendarService) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.years.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list academic years")
	}
	return years, nil
}

// CurrentYear returns the year flagged current. Concurrent callers share one lookup.
func (s *CalendarService) CurrentYear(ctx context.Context) (*models.AcademicYear, error) {
	var cached models.AcademicYear
	if s.cache.Get(ctx, cacheKeyCurrentYear, &cached) {
		return &cached, nil
	}

	v, err, _ := s.currentGroup.Do(cacheKeyCurrentYear, func() (interface{}, error) {
		year, err := s.years.FindCurrent(ctx)
		if err != nil {
			return nil, lookupError(err, "no academic year is marked current", "failed to load current academic year")
		}
		s.cache.Set(ctx, cacheKeyCurrentYear, year, 0)
		return year, nil
	})
	if err != nil {
		return nil, err
	}
	year := *v.(*models.AcademicYear)
	return &year, nil
}

// SetCurrentYear makes id the only current academic year and re-points every
// student's current class at their active enrollment in it.
func (s *CalendarService) SetCurrentYear(ctx context.Context, actorID, id string) (*models.AcademicYear, error) {
	var year *models.AcademicYear
	var synced int64
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.years.SetCurrent(ctx, exec, id); err != nil {
			return lookupError(err, "academic year not found", "failed to set current academic year")
		}
		var err error
		year, err = s.years.FindByID(ctx, exec, id)
		if err != nil {
			return lookupError(err, "academic year not found", "failed to reload academic year")
		}
		synced, err = s.students.SyncCurrentClasses(ctx, exec, id)
		if err != nil {
			return appErrors.Internal(err, "failed to sync current classes")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cacheKeyCurrentYear)
	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionSetCurrentYear, "academic_year", id, map[string]string{"name": year.Name}))
	s.logger.Info("current academic year changed",
		zap.String("academic_year_id", id),
		zap.String("name", year.Name),
		zap.Int64("current_classes_synced", synced))
	return year, nil
}

// ListTerms returns the terms of a year.
func (s *CalendarService) ListTerms(ctx context.Context, academicYearID string) ([]models.Term, error) {
	if _, err := s.years.FindByID(ctx, nil, academicYearID); err != nil {
		return nil, lookupError(err, "academic year not found", "failed to load academic year")
	}
	terms, err := s.terms.ListByYear(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list terms")
	}
	return terms, nil
}

// CurrentTerm returns the current term of a year.
func (s *CalendarService) CurrentTerm(ctx context.Context, academicYearID string) (*models.Term, error) {
	term, err := s.terms.FindCurrent(ctx, academicYearID)
	if err != nil {
		return nil, lookupError(err, "no current term for academic year", "failed to load current term")
	}
	return term, nil
}

// SetCurrentTerm makes id the current term among the terms of its year.
func (s *CalendarService) SetCurrentTerm(ctx context.Context, actorID, id string) (*models.Term, error) {
	var term *models.Term
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.terms.SetCurrent(ctx, exec, id); err != nil {
			return lookupError(err, "term not found", "failed to set current term")
		}
		var err error
		term, err = s.terms.FindByID(ctx, exec, id)
		if err != nil {
			return lookupError(err, "term not found", "failed to reload term")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionSetCurrentTerm, "term", id, map[string]string{"academic_year_id": term.AcademicYearID}))
	return term, nil
}

// ListGradeScales returns all grade scales.
func (s *CalendarService) ListGradeScales(ctx context.Context) ([]models.GradeScale, error) {
	scales, err := s.scales.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list grade scales")
	}
	return scales, nil
}

// DefaultGradeScale returns the default scale for a level type.
func (s *CalendarService) DefaultGradeScale(ctx context.Context, levelType models.LevelType) (*models.GradeScale, error) {
	scale, err := s.scales.FindDefault(ctx, levelType)
	if err != nil {
		return nil, lookupError(err, "no default grade scale for level type", "failed to load grade scale")
	}
	return scale, nil
}

// SetDefaultGradeScale makes id the default scale of its level type.
func (s *CalendarService) SetDefaultGradeScale(ctx context.Context, actorID, id string) (*models.GradeScale, error) {
	var scale *models.GradeScale
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.scales.SetDefault(ctx, exec, id); err != nil {
			return lookupError(err, "grade scale not found", "failed to set default grade scale")
		}
		var err error
		scale, err = s.scales.FindByID(ctx, exec, id)
		if err != nil {
			return lookupError(err, "grade scale not found", "failed to reload grade scale")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionSetDefaultScale, "grade_scale", id, map[string]string{"level_type": string(scale.LevelType)}))
	return scale, nil
}
