package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

func newEnrollmentFixture() (*fakeSchool, *fakeAudit, *EnrollmentService) {
	school := newFakeSchool()
	school.addYear("y1", "2023/2024", false)
	school.addYear("y2", "2024/2025", true)
	school.addLevel("f1", "Form 1", 1, false)
	school.addClass("c1a", "f1", "A", nil)
	school.addClass("c1b", "f1", "B", nil)
	school.addStudent("s1", models.StudentStatusActive)
	school.addStudent("s2", models.StudentStatusActive)
	school.addStudent("s3", models.StudentStatusWithdrawn)

	years := fakeYears{school}
	audit := &fakeAudit{}
	calendar := NewCalendarService(school, years, fakeTerms{school}, fakeScales{school}, fakeStudents{school}, nil, nil, nil)
	svc := NewEnrollmentService(school, fakeEnrollments{school}, fakeStudents{school}, fakeClasses{school}, years, calendar, audit, nil, zap.NewNop())
	return school, audit, svc
}

func TestEnrollmentEnrollSetsCurrentClass(t *testing.T) {
	school, audit, svc := newEnrollmentFixture()

	view, err := svc.Enroll(context.Background(), "admin", dto.CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1a", AcademicYearID: "y2"})
	require.NoError(t, err)

	assert.True(t, view.IsActive)
	assert.Equal(t, "Form 1 A", view.ClassName)
	assert.Equal(t, "2024/2025", view.AcademicYearName)
	require.NotNil(t, school.student("s1").CurrentClassID)
	assert.Equal(t, "c1a", *school.student("s1").CurrentClassID)
	assert.Equal(t, []string{models.AuditActionEnrollmentCreate}, audit.actions())
}

func TestEnrollmentEnrollPastYearLeavesCurrentClass(t *testing.T) {
	school, _, svc := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "admin", dto.CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1a", AcademicYearID: "y1"})
	require.NoError(t, err)
	assert.Nil(t, school.student("s1").CurrentClassID)
}

func TestEnrollmentEnrollRejectsSecondActiveInYear(t *testing.T) {
	school, _, svc := newEnrollmentFixture()
	school.enroll("s1", "c1a", "y2")

	_, err := svc.Enroll(context.Background(), "admin", dto.CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1b", AcademicYearID: "y2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, "student already has an active enrollment in 2024/2025", appErrors.FromError(err).Message)
	assert.Len(t, activeIn(school, "s1", "y2"), 1)
}

func TestEnrollmentEnrollPreconditions(t *testing.T) {
	school, _, svc := newEnrollmentFixture()
	inactive := school.classes["c1b"]
	inactive.IsActive = false
	school.classes["c1b"] = inactive

	tests := []struct {
		name string
		req  dto.CreateEnrollmentRequest
		want *appErrors.Error
	}{
		{"missing fields", dto.CreateEnrollmentRequest{StudentID: "s1"}, appErrors.ErrValidation},
		{"unknown student", dto.CreateEnrollmentRequest{StudentID: "ghost", ClassID: "c1a", AcademicYearID: "y2"}, appErrors.ErrNotFound},
		{"withdrawn student", dto.CreateEnrollmentRequest{StudentID: "s3", ClassID: "c1a", AcademicYearID: "y2"}, appErrors.ErrPreconditionFailed},
		{"inactive class", dto.CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1b", AcademicYearID: "y2"}, appErrors.ErrPreconditionFailed},
		{"unknown year", dto.CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1a", AcademicYearID: "y9"}, appErrors.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Enroll(context.Background(), "admin", tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestEnrollmentDeactivateKeepsRowAndClearsCurrentClass(t *testing.T) {
	school, audit, svc := newEnrollmentFixture()
	e := school.enroll("s1", "c1a", "y2")

	require.NoError(t, svc.Deactivate(context.Background(), "admin", e.ID, "left mid-year"))

	row := school.enrollments[e.ID]
	assert.False(t, row.IsActive)
	assert.Equal(t, "left mid-year", row.Notes)
	assert.Nil(t, school.student("s1").CurrentClassID)
	assert.Equal(t, []string{models.AuditActionEnrollmentEnd}, audit.actions())

	err := svc.Deactivate(context.Background(), "admin", e.ID, "")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestEnrollmentHistoryBreaksCycles(t *testing.T) {
	school, _, svc := newEnrollmentFixture()
	a := school.enroll("s1", "c1a", "y1")
	b := school.enroll("s1", "c1a", "y2")
	a.PromotedFromID = &b.ID
	b.PromotedFromID = &a.ID
	school.enrollments[a.ID] = a
	school.enrollments[b.ID] = b

	chain, err := svc.History(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	_, err = svc.History(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentBulkEnroll(t *testing.T) {
	school, audit, svc := newEnrollmentFixture()
	school.enroll("s2", "c1b", "y2")

	result, err := svc.BulkEnroll(context.Background(), "admin", "c1a", dto.BulkEnrollmentRequest{
		AcademicYearID: "y2",
		StudentIDs:     []string{"s1", "s2", "ghost", "s1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.AlreadyEnrolled)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ghost", result.Errors[0].StudentID)
	assert.Equal(t, "Successfully enrolled 1 student(s) in Form 1 A (2024/2025).", result.Message)
	assert.Equal(t, "c1b", activeIn(school, "s2", "y2")[0].ClassID)
	assert.Equal(t, []string{models.AuditActionBulkEnroll}, audit.actions())
}

func TestEnrollmentClassStudentsDefaultsToCurrentYear(t *testing.T) {
	school, _, svc := newEnrollmentFixture()
	school.enroll("s1", "c1a", "y2")
	school.enroll("s2", "c1a", "y2")
	school.enroll("s2", "c1a", "y1")

	listing, err := svc.ClassStudents(context.Background(), "c1a", "")
	require.NoError(t, err)

	assert.Equal(t, "y2", listing.AcademicYear.ID)
	require.Len(t, listing.Students, 2)
	assert.Equal(t, "s1", listing.Students[0].StudentID)
	assert.Equal(t, "Firsts1 Last", listing.Students[0].StudentName)
	assert.Equal(t, 2, listing.Occupancy.Enrolled)
	assert.True(t, listing.Occupancy.HasSpace)
	assert.InDelta(t, 5.0, listing.Occupancy.Percentage, 0.001)
}

func TestEnrollmentListNormalisesPaging(t *testing.T) {
	school, _, svc := newEnrollmentFixture()
	school.enroll("s1", "c1a", "y2")

	rows, page, err := svc.List(context.Background(), models.EnrollmentFilter{PageSize: 10000})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, models.MaxPageSize, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
}

func TestEnrollmentStudentEnrollments(t *testing.T) {
	school, _, svc := newEnrollmentFixture()
	school.enroll("s1", "c1a", "y1")
	school.enroll("s1", "c1b", "y2")

	rows, err := svc.StudentEnrollments(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.StudentEnrollments(context.Background(), "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
