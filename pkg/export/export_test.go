package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Form 1 SCI-A (2024/2025)",
		Columns: []string{"Student Number", "Name", "Status"},
		Rows: [][]string{
			{"S-001", "Ama Mensah", "active"},
			{"S-002", "Kofi, Boateng", "suspended"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sample())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student Number,Name,Status", lines[0])
	assert.Equal(t, `S-002,"Kofi, Boateng",suspended`, lines[2])
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	ds := sample()
	ds.Rows = append(ds.Rows, []string{"only one"})
	_, err := NewCSVExporter().Render(ds)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(ds)
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := For(FormatPDF).Render(sample())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
