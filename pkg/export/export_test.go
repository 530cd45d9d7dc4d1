package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-timetable-proxy/internal/models"
)

func sampleTimetable() *models.Timetable {
	tt := models.NewTimetable([]string{"9-10", "10-11"})
	tt.SetDay("Wed", []string{"Lab, Block C", "Maths"})
	tt.SetDay("Mon", []string{"Physics"})
	return tt
}

func TestFromTimetableKeepsUpstreamOrder(t *testing.T) {
	data := FromTimetable(sampleTimetable())

	assert.Equal(t, []string{DayColumn, "9-10", "10-11"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, map[string]string{DayColumn: "Wed", "9-10": "Lab, Block C", "10-11": "Maths"}, data.Rows[0])
	assert.Equal(t, map[string]string{DayColumn: "Mon", "9-10": "Physics"}, data.Rows[1])
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter(false).Render(FromTimetable(sampleTimetable()))
	require.NoError(t, err)
	assert.Equal(t, "Day,9-10,10-11\nWed,\"Lab, Block C\",Maths\nMon,Physics,\n", string(out))
}

func TestCSVExporterBOM(t *testing.T) {
	out, err := NewCSVExporter(true).Render(Dataset{Headers: []string{"Day"}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte(utf8BOM)))
	assert.Equal(t, "Day\n", string(out[len(utf8BOM):]))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter(false).Render(Dataset{})
	assert.Error(t, err)

	_, err = NewPDFExporter().Render(Dataset{}, "Timetable")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(FromTimetable(sampleTimetable()), "Timetable 2025-26")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
