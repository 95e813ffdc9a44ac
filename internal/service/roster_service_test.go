package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

type stubLister struct {
	listing *dto.ClassStudentsResponse
	err     error
	yearID  string
}

func (s *stubLister) ClassStudents(ctx context.Context, classID, yearID string) (*dto.ClassStudentsResponse, error) {
	s.yearID = yearID
	return s.listing, s.err
}

func rosterListing() *dto.ClassStudentsResponse {
	return &dto.ClassStudentsResponse{
		Class:        dto.ClassSummary{ID: "c1a", Name: "Form 1 A"},
		AcademicYear: dto.YearSummary{ID: "y2", Name: "2024/2025"},
		Students: []dto.ClassStudent{
			{StudentID: "s1", StudentNumber: "S-001", StudentName: "Ama Mensah", Status: models.StudentStatusActive, EnrolledAt: time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)},
			{StudentID: "s2", StudentNumber: "S-002", StudentName: "Kofi Boateng", Status: models.StudentStatusSuspended, EnrolledAt: time.Date(2024, 9, 3, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestRosterCSV(t *testing.T) {
	lister := &stubLister{listing: rosterListing()}
	svc := NewRosterService(lister, "", nil)

	file, err := svc.Roster(context.Background(), "c1a", dto.RosterRequest{AcademicYearID: "y2"})
	require.NoError(t, err)

	assert.Equal(t, "y2", lister.yearID)
	assert.Equal(t, "roster-form-1-a-2024-2025.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	body := string(file.Content)
	assert.True(t, strings.HasPrefix(body, "No,Student Number,Name,Status,Enrolled On\n"), body)
	assert.Contains(t, body, "1,S-001,Ama Mensah,active,2024-09-02")
	assert.Contains(t, body, "2,S-002,Kofi Boateng,suspended,2024-09-03")
}

func TestRosterPDF(t *testing.T) {
	svc := NewRosterService(&stubLister{listing: rosterListing()}, "Roster", nil)

	file, err := svc.Roster(context.Background(), "c1a", dto.RosterRequest{Format: "PDF"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestRosterRejectsUnknownFormat(t *testing.T) {
	svc := NewRosterService(&stubLister{listing: rosterListing()}, "", nil)

	_, err := svc.Roster(context.Background(), "c1a", dto.RosterRequest{Format: "xlsx"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRosterPropagatesLookupErrors(t *testing.T) {
	svc := NewRosterService(&stubLister{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}, "", nil)

	_, err := svc.Roster(context.Background(), "nope", dto.RosterRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "form-1-sci-a", slug("Form 1 SCI-A"))
	assert.Equal(t, "2024-2025", slug("2024/2025"))
	assert.Equal(t, "x", slug("  x  "))
}
