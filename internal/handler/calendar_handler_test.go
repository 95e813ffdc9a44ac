package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/internal/service"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

type calendarServiceMock struct {
	year      *models.AcademicYear
	err       error
	lastID    string
	lastActor string
	lastLevel models.LevelType
}

func (m *calendarServiceMock) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	return []models.AcademicYear{*m.year}, m.err
}

func (m *calendarServiceMock) CurrentYear(ctx context.Context) (*models.AcademicYear, error) {
	return m.year, m.err
}

func (m *calendarServiceMock) SetCurrentYear(ctx context.Context, actorID, id string) (*models.AcademicYear, error) {
	m.lastActor, m.lastID = actorID, id
	return m.year, m.err
}

func (m *calendarServiceMock) ListTerms(ctx context.Context, academicYearID string) ([]models.Term, error) {
	m.lastID = academicYearID
	return nil, m.err
}

func (m *calendarServiceMock) CurrentTerm(ctx context.Context, academicYearID string) (*models.Term, error) {
	m.lastID = academicYearID
	return &models.Term{ID: "t1"}, m.err
}

func (m *calendarServiceMock) SetCurrentTerm(ctx context.Context, actorID, id string) (*models.Term, error) {
	m.lastActor, m.lastID = actorID, id
	return &models.Term{ID: id, IsCurrent: true}, m.err
}

func (m *calendarServiceMock) ListGradeScales(ctx context.Context) ([]models.GradeScale, error) {
	return nil, m.err
}

func (m *calendarServiceMock) DefaultGradeScale(ctx context.Context, levelType models.LevelType) (*models.GradeScale, error) {
	m.lastLevel = levelType
	return &models.GradeScale{ID: "g1", LevelType: levelType, IsDefault: true}, m.err
}

func (m *calendarServiceMock) SetDefaultGradeScale(ctx context.Context, actorID, id string) (*models.GradeScale, error) {
	m.lastActor, m.lastID = actorID, id
	return &models.GradeScale{ID: id, IsDefault: true}, m.err
}

func TestCalendarHandlerSetCurrentYear(t *testing.T) {
	mockSvc := &calendarServiceMock{year: &models.AcademicYear{ID: "y2", IsCurrent: true}}
	handler := NewCalendarHandler(mockSvc)

	c, w := jsonContext(http.MethodPut, "/academic-years/y2/current", "")
	c.Params = gin.Params{{Key: "id", Value: "y2"}}
	handler.SetCurrentYear(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "y2", mockSvc.lastID)
	assert.Equal(t, "admin-1", mockSvc.lastActor)
}

func TestCalendarHandlerCurrentYearMissing(t *testing.T) {
	mockSvc := &calendarServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "no academic year is marked current")}
	handler := NewCalendarHandler(mockSvc)

	c, w := jsonContext(http.MethodGet, "/academic-years/current", "")
	handler.CurrentYear(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCalendarHandlerDefaultGradeScale(t *testing.T) {
	mockSvc := &calendarServiceMock{}
	handler := NewCalendarHandler(mockSvc)

	c, w := jsonContext(http.MethodGet, "/grade-scales/default?level_type=jhs", "")
	handler.DefaultGradeScale(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LevelTypeJHS, mockSvc.lastLevel)
}

func TestCalendarHandlerSetCurrentTerm(t *testing.T) {
	mockSvc := &calendarServiceMock{}
	handler := NewCalendarHandler(mockSvc)

	c, w := jsonContext(http.MethodPut, "/terms/t2/current", "")
	c.Params = gin.Params{{Key: "id", Value: "t2"}}
	handler.SetCurrentTerm(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t2", mockSvc.lastID)
}

type studentServiceMock struct {
	student    *models.Student
	err        error
	lastReq    dto.ChangeStudentStatusRequest
	lastActor  string
	enrollment []dto.EnrollmentView
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	return m.student, m.err
}

func (m *studentServiceMock) ChangeStatus(ctx context.Context, actorID, id string, req dto.ChangeStudentStatusRequest) (*models.Student, error) {
	m.lastActor = actorID
	m.lastReq = req
	return m.student, m.err
}

func (m *studentServiceMock) StudentEnrollments(ctx context.Context, studentID string) ([]dto.EnrollmentView, error) {
	return m.enrollment, m.err
}

func TestStudentHandlerChangeStatus(t *testing.T) {
	mockSvc := &studentServiceMock{student: &models.Student{ID: "s1", Status: models.StudentStatusWithdrawn}}
	handler := NewStudentHandler(mockSvc, mockSvc)

	c, w := jsonContext(http.MethodPut, "/students/s1/status", `{"status":"withdrawn","reason":"moved"}`)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.ChangeStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StudentStatusWithdrawn, mockSvc.lastReq.Status)
	assert.Equal(t, "moved", mockSvc.lastReq.Reason)
	assert.Equal(t, "admin-1", mockSvc.lastActor)
}

func TestStudentHandlerChangeStatusPrecondition(t *testing.T) {
	mockSvc := &studentServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "graduated students cannot change status")}
	handler := NewStudentHandler(mockSvc, mockSvc)

	c, w := jsonContext(http.MethodPut, "/students/s1/status", `{"status":"active"}`)
	handler.ChangeStatus(c)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

type pingerStub struct{ err error }

func (p pingerStub) PingContext(ctx context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	ok := NewMetricsHandler(service.NewMetricsService(), pingerStub{})
	c, w := jsonContext(http.MethodGet, "/ready", "")
	ok.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	down := NewMetricsHandler(nil, pingerStub{err: errors.New("connection refused")})
	c, w = jsonContext(http.MethodGet, "/ready", "")
	down.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordPromotionOutcome("promote", "promoted", 3)
	handler := NewMetricsHandler(metrics, nil)

	c, w := jsonContext(http.MethodGet, "/metrics", "")
	handler.Prometheus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `promotion_students_total{outcome="promoted",type="promote"} 3`)
}
