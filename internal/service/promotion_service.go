package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/internal/repository"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

const sameYearSameClassMessage = "Source and target must be different when using the same academic year."

var promotionTypeDisplay = map[models.PromotionType]string{
	models.PromotionPromote:  "Promote to next level",
	models.PromotionGraduate: "Graduate (final year students)",
	models.PromotionDemote:   "Demote to previous level",
	models.PromotionTransfer: "Transfer to another class (same level)",
	models.PromotionRepeat:   "Repeat current class",
}

// PromotionSetup is a validated request with its years and classes resolved. Target
// fields are nil for graduation.
type PromotionSetup struct {
	Type        models.PromotionType
	SourceYear  models.AcademicYear
	SourceClass models.ClassDetail
	TargetYear  *models.AcademicYear
	TargetClass *models.ClassDetail
}

type outcome int

const (
	outcomeMoved outcome = iota
	outcomeGraduated
	outcomeSkipped
)

// PromotionService moves a cohort of students out of one class and year: into a target
// class and year for promote, transfer, demote and repeat, or out of the school for
// graduate. Each student is processed in its own transaction so one failure never
// touches the rest of the batch.
type PromotionService struct {
	tx          txRunner
	years       academicYearStore
	classes     classReader
	levels      gradeLevelReader
	students    studentStore
	enrollments enrollmentStore
	cache       *CacheService
	metrics     *MetricsService
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewPromotionService wires the engine.
func NewPromotionService(
	tx txRunner,
	years academicYearStore,
	classes classReader,
	levels gradeLevelReader,
	students studentStore,
	enrollments enrollmentStore,
	cache *CacheService,
	metrics *MetricsService,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &PromotionService{
		tx:          tx,
		years:       years,
		classes:     classes,
		levels:      levels,
		students:    students,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// ValidateSetup checks the request shape before any lookup, then resolves the years
// and classes it names.
func (s *PromotionService) ValidateSetup(ctx context.Context, req dto.PromotionSetupRequest) (*PromotionSetup, error) {
	if err := s.checkSetupShape(req); err != nil {
		return nil, err
	}

	setup := &PromotionSetup{Type: req.Type}
	year, err := s.years.FindByID(ctx, nil, req.SourceAcademicYearID)
	if err != nil {
		return nil, lookupError(err, "source academic year not found", "failed to load source academic year")
	}
	setup.SourceYear = *year
	class, err := s.classes.FindDetailByID(ctx, nil, req.SourceClassID)
	if err != nil {
		return nil, lookupError(err, "source class not found", "failed to load source class")
	}
	setup.SourceClass = *class

	if !req.Type.NeedsTarget() {
		return setup, nil
	}

	if setup.TargetYear, err = s.years.FindByID(ctx, nil, req.TargetAcademicYearID); err != nil {
		return nil, lookupError(err, "target academic year not found", "failed to load target academic year")
	}
	if setup.TargetClass, err = s.classes.FindDetailByID(ctx, nil, req.TargetClassID); err != nil {
		return nil, lookupError(err, "target class not found", "failed to load target class")
	}
	if !setup.TargetClass.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target class is inactive")
	}
	return setup, nil
}

func (s *PromotionService) checkSetupShape(req dto.PromotionSetupRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid promotion setup")
	}
	if !req.Type.NeedsTarget() {
		return nil
	}
	if req.TargetAcademicYearID == "" || req.TargetClassID == "" {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("target academic year and target class are required to %s", req.Type))
	}
	if req.SourceAcademicYearID == req.TargetAcademicYearID && req.SourceClassID == req.TargetClassID {
		return appErrors.Clone(appErrors.ErrValidation, sameYearSameClassMessage)
	}
	return nil
}

// Preview reports for every active member of the source cohort whether the action
// would apply. It never writes.
func (s *PromotionService) Preview(ctx context.Context, req dto.PromotionSetupRequest) (*dto.PromotionPreview, error) {
	setup, err := s.ValidateSetup(ctx, req)
	if err != nil {
		return nil, err
	}

	cohort, err := s.enrollments.ListActiveByClassYear(ctx, setup.SourceClass.ID, setup.SourceYear.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load source cohort")
	}

	enrolledInTarget := map[string]bool{}
	if setup.TargetYear != nil && len(cohort) > 0 {
		studentIDs := make([]string, len(cohort))
		sourceIDs := make([]string, len(cohort))
		for i, row := range cohort {
			studentIDs[i] = row.StudentID
			sourceIDs[i] = row.ID
		}
		enrolledInTarget, err = s.enrollments.ActiveStudentIDsInYear(ctx, setup.TargetYear.ID, studentIDs, sourceIDs)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check target year enrollments")
		}
	}

	preview := &dto.PromotionPreview{
		Type:               setup.Type,
		SourceClass:        dto.NewClassSummary(setup.SourceClass),
		SourceAcademicYear: dto.NewYearSummary(setup.SourceYear),
		IsFinalLevel:       setup.SourceClass.IsFinalLevel,
		Students:           make([]dto.PromotionPreviewRow, 0, len(cohort)),
		TotalCount:         len(cohort),
	}
	if setup.TargetClass != nil {
		target := dto.NewClassSummary(*setup.TargetClass)
		preview.TargetClass = &target
	}
	if setup.TargetYear != nil {
		target := dto.NewYearSummary(*setup.TargetYear)
		preview.TargetAcademicYear = &target
	}

	for _, row := range cohort {
		processed := enrolledInTarget[row.StudentID]
		if setup.Type == models.PromotionGraduate {
			processed = row.StudentStatus == models.StudentStatusGraduated
		}
		canAct := !processed && row.StudentStatus == models.StudentStatusActive
		if processed {
			preview.AlreadyEnrolledCount++
		}
		if canAct {
			preview.PromotableCount++
		}
		preview.Students = append(preview.Students, dto.PromotionPreviewRow{
			StudentID:        row.StudentID,
			StudentNumber:    row.StudentNumber,
			StudentName:      row.StudentName(),
			Status:           row.StudentStatus,
			EnrollmentID:     row.ID,
			AlreadyProcessed: processed,
			CanAct:           canAct,
		})
	}
	return preview, nil
}

// Execute applies the action to each listed student. Per-student failures are reported
// in the result; only an invalid setup fails the whole call.
func (s *PromotionService) Execute(ctx context.Context, actorID string, req dto.PromotionExecuteRequest) (*dto.PromotionResult, error) {
	started := s.now()
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid promotion request")
	}
	setup, err := s.ValidateSetup(ctx, req.PromotionSetupRequest)
	if err != nil {
		return nil, err
	}

	result := &dto.PromotionResult{
		Type:    setup.Type,
		Skipped: []dto.PromotionSkip{},
		Errors:  []dto.PromotionError{},
	}
	for _, studentID := range dedupe(req.StudentIDs) {
		result.Processed++
		out, reason, err := s.processStudent(ctx, setup, studentID)
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Errors = append(result.Errors, dto.PromotionError{StudentID: studentID, Code: appErr.Code, Message: appErr.Message})
			s.logger.Warn("promotion failed for student",
				zap.String("student_id", studentID),
				zap.String("type", string(setup.Type)),
				zap.Error(err))
			continue
		}
		switch out {
		case outcomeMoved:
			result.PromotedCount++
		case outcomeGraduated:
			result.GraduatedCount++
		case outcomeSkipped:
			result.Skipped = append(result.Skipped, dto.PromotionSkip{StudentID: studentID, Reason: reason})
		}
	}
	result.SkippedCount = len(result.Skipped)
	result.ErrorCount = len(result.Errors)
	result.Messages = summarize(setup, result)

	s.recordMetrics(setup.Type, result, s.now().Sub(started))
	s.audit.Record(ctx, newAuditEntry(actorID, models.AuditActionPromotionExecute, "class", setup.SourceClass.ID, map[string]interface{}{
		"type":                    setup.Type,
		"source_academic_year_id": setup.SourceYear.ID,
		"target_class_id":         req.TargetClassID,
		"target_academic_year_id": req.TargetAcademicYearID,
		"promoted":                result.PromotedCount,
		"graduated":               result.GraduatedCount,
		"skipped":                 result.SkippedCount,
		"errors":                  result.ErrorCount,
	}))
	s.logger.Info("promotion executed",
		zap.String("type", string(setup.Type)),
		zap.String("source_class_id", setup.SourceClass.ID),
		zap.String("source_academic_year_id", setup.SourceYear.ID),
		zap.Int("promoted", result.PromotedCount),
		zap.Int("graduated", result.GraduatedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("errors", result.ErrorCount))
	return result, nil
}

var errConcurrentEnrollment = errors.New("enrolled concurrently")

// processStudent is the atomic unit of Execute. The student row lock serialises
// concurrent batches touching the same student; a unique violation raised by a batch
// that got there first is reported as a skip.
func (s *PromotionService) processStudent(ctx context.Context, setup *PromotionSetup, studentID string) (outcome, string, error) {
	var out outcome
	var reason string
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := s.students.LockByID(ctx, exec, studentID)
		if err != nil {
			return lookupError(err, fmt.Sprintf("student %s not found", studentID), "failed to lock student")
		}
		source, err := s.enrollments.FindActiveInClass(ctx, exec, studentID, setup.SourceClass.ID, setup.SourceYear.ID)
		if errors.Is(err, sql.ErrNoRows) && setup.Type != models.PromotionGraduate {
			// A student moved by an earlier run no longer has an active source row.
			moved, existsErr := s.enrollments.ExistsForStudentYear(ctx, exec, studentID, setup.TargetYear.ID, "")
			if existsErr != nil {
				return appErrors.Internal(existsErr, "failed to check target year enrollment")
			}
			if moved {
				out, reason = outcomeSkipped, alreadyEnrolledReason(setup)
				return nil
			}
		}
		if err != nil {
			return lookupError(err, fmt.Sprintf("student %s not found in source class", studentID), "failed to load source enrollment")
		}

		if setup.Type == models.PromotionGraduate {
			if student.Status == models.StudentStatusGraduated {
				out, reason = outcomeSkipped, "already graduated"
				return nil
			}
			if err := s.students.MarkGraduated(ctx, exec, studentID, setup.SourceYear.ID, s.today()); err != nil {
				return appErrors.Internal(err, "failed to graduate student")
			}
			note := fmt.Sprintf("Graduated from %s (%s)", setup.SourceClass.DisplayName(), setup.SourceYear.Name)
			if err := s.enrollments.Deactivate(ctx, exec, source.ID, note); err != nil {
				return appErrors.Internal(err, "failed to close source enrollment")
			}
			out = outcomeGraduated
			return nil
		}

		exists, err := s.enrollments.ExistsForStudentYear(ctx, exec, studentID, setup.TargetYear.ID, source.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to check target year enrollment")
		}
		if exists {
			out, reason = outcomeSkipped, alreadyEnrolledReason(setup)
			return nil
		}

		// The source row gives way before the target is created so a chain only ever
		// has its newest link active.
		if err := s.enrollments.Deactivate(ctx, exec, source.ID, ""); err != nil {
			return appErrors.Internal(err, "failed to close source enrollment")
		}
		sourceID := source.ID
		next := &models.Enrollment{
			StudentID:      studentID,
			ClassID:        setup.TargetClass.ID,
			AcademicYearID: setup.TargetYear.ID,
			IsActive:       true,
			PromotedFromID: &sourceID,
			Notes:          fmt.Sprintf("%s from %s (%s)", setup.Type.Label(), setup.SourceClass.DisplayName(), setup.SourceYear.Name),
		}
		if err := s.enrollments.Create(ctx, exec, next); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errConcurrentEnrollment
			}
			return appErrors.Internal(err, "failed to create target enrollment")
		}
		switch {
		case setup.TargetYear.IsCurrent:
			classID := setup.TargetClass.ID
			if err := s.students.SetCurrentClass(ctx, exec, studentID, &classID); err != nil {
				return appErrors.Internal(err, "failed to update current class")
			}
		case setup.SourceYear.IsCurrent:
			if err := s.students.ClearCurrentClassIf(ctx, exec, studentID, setup.SourceClass.ID); err != nil {
				return appErrors.Internal(err, "failed to clear current class")
			}
		}
		out = outcomeMoved
		return nil
	})
	if errors.Is(err, errConcurrentEnrollment) {
		return outcomeSkipped, alreadyEnrolledReason(setup), nil
	}
	if err != nil {
		return 0, "", err
	}
	return out, reason, nil
}

// SuggestTarget proposes a class in the next grade level, preferring the same section
// and programme, then the same programme, then any active class.
func (s *PromotionService) SuggestTarget(ctx context.Context, sourceClassID string) (*dto.TargetSuggestion, error) {
	if sourceClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source class is required")
	}
	var cached dto.TargetSuggestion
	if s.cache.Get(ctx, suggestionCacheKey(sourceClassID), &cached) {
		return &cached, nil
	}

	source, err := s.classes.FindDetailByID(ctx, nil, sourceClassID)
	if err != nil {
		return nil, lookupError(err, "source class not found", "failed to load source class")
	}

	suggestion := &dto.TargetSuggestion{SourceClassID: source.ID}
	level, err := s.levels.FindNext(ctx, source.GradeLevelOrder)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load next grade level")
		}
		suggestion.Message = "No next grade level found"
		s.cache.Set(ctx, suggestionCacheKey(sourceClassID), suggestion, 0)
		return suggestion, nil
	}
	levelID := level.ID
	suggestion.NextGradeLevelID = &levelID

	candidates, err := s.classes.ListActiveByGradeLevel(ctx, level.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list next grade level classes")
	}
	if pick := bestCandidate(*source, candidates); pick != nil {
		summary := dto.NewClassSummary(*pick)
		suggestion.Found = true
		suggestion.Class = &summary
	} else {
		suggestion.Message = fmt.Sprintf("No active class found in %s", level.Name)
	}
	s.cache.Set(ctx, suggestionCacheKey(sourceClassID), suggestion, 0)
	return suggestion, nil
}

func bestCandidate(source models.ClassDetail, candidates []models.ClassDetail) *models.ClassDetail {
	var sameProgramme, any *models.ClassDetail
	for i := range candidates {
		c := &candidates[i]
		if c.SameProgramme(source) {
			if c.Section == source.Section {
				return c
			}
			if sameProgramme == nil {
				sameProgramme = c
			}
		}
		if any == nil {
			any = c
		}
	}
	if sameProgramme != nil {
		return sameProgramme
	}
	return any
}

func (s *PromotionService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *PromotionService) recordMetrics(t models.PromotionType, result *dto.PromotionResult, elapsed time.Duration) {
	s.metrics.RecordPromotionOutcome(string(t), "promoted", result.PromotedCount)
	s.metrics.RecordPromotionOutcome(string(t), "graduated", result.GraduatedCount)
	s.metrics.RecordPromotionOutcome(string(t), "skipped", result.SkippedCount)
	s.metrics.RecordPromotionOutcome(string(t), "error", result.ErrorCount)
	s.metrics.ObservePromotionBatch(string(t), elapsed)
}

func alreadyEnrolledReason(setup *PromotionSetup) string {
	return fmt.Sprintf("already enrolled in %s", setup.TargetYear.Name)
}

func summarize(setup *PromotionSetup, result *dto.PromotionResult) []string {
	var messages []string
	if setup.Type == models.PromotionGraduate {
		if result.GraduatedCount > 0 {
			messages = append(messages, fmt.Sprintf("Successfully graduated %d student(s) from %s (%s).",
				result.GraduatedCount, setup.SourceClass.DisplayName(), setup.SourceYear.Name))
		}
		if result.SkippedCount > 0 {
			messages = append(messages, fmt.Sprintf("%d student(s) skipped (already graduated).", result.SkippedCount))
		}
	} else {
		if result.PromotedCount > 0 {
			messages = append(messages, fmt.Sprintf("Successfully processed %d student(s). Action: %s to %s (%s).",
				result.PromotedCount, promotionTypeDisplay[setup.Type], setup.TargetClass.DisplayName(), setup.TargetYear.Name))
		}
		if result.SkippedCount > 0 {
			messages = append(messages, fmt.Sprintf("%d student(s) skipped (already enrolled in %s).", result.SkippedCount, setup.TargetYear.Name))
		}
	}
	if result.ErrorCount > 0 {
		messages = append(messages, fmt.Sprintf("%d error(s) occurred during processing.", result.ErrorCount))
	}
	return messages
}
