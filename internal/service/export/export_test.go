package export

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"busoptimizer/backend/internal/service/occupancy"
)

func sampleReport() occupancy.Report {
	route := "Route-A01"
	row := occupancy.BusRow{BusID: "A01", Route: &route, Plant: "P1", BusCapacity: 42, TotalCapacity: 42, TotalPresent: 30, TotalRoster: 35, Utilization: 71.4}
	report := occupancy.Report{DateFrom: "2026-01-12", DateTo: "2026-01-12", Days: 1, Rows: []occupancy.BusRow{row}}
	report.TotalBusCapacity = 42
	report.TotalPresent = 30
	return report
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"date", "bus_id", "present"}, [][]string{
		{"2026-01-12", "A01", "12"},
		{"2026-01-12", "B, 02", "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "date,bus_id,present\n2026-01-12,A01,12\n2026-01-12,\"B, 02\",3\n", buf.String())
}

func TestFileName(t *testing.T) {
	got := FileName("headcount", "csv", "from", "2026-01-01", "to", "2026-01-07", "shift", "", "bus", "A01,B02")
	assert.Equal(t, "headcount_from-2026-01-01_to-2026-01-07_shift-all_bus-A01-B02.csv", got)
}

func TestOccupancyXLSX(t *testing.T) {
	data, err := OccupancyXLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Occupancy")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Bus ID", rows[2][0])
	assert.Equal(t, "A01", rows[3][0])
	assert.Equal(t, "TOTAL", rows[4][0])
	assert.Equal(t, "42", rows[4][3])
}

func TestTemplate(t *testing.T) {
	data, err := Template("Master", []string{"PersonId", "Name", "Route"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Master")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PersonId", "Name", "Route"}}, rows)
}

func TestOccupancyPDF(t *testing.T) {
	data, err := OccupancyPDF(sampleReport())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestBadges(t *testing.T) {
	data, err := BadgePNG(Badge{BatchID: 1001, Name: "Ali", BusID: "A01"})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, qrSize, img.Bounds().Dx())
	assert.Equal(t, qrSize+captionHeight, img.Bounds().Dy())

	sheet, err := BadgeSheetPDF("Bus A01", []Badge{{BatchID: 1001, Name: "Ali"}, {BatchID: 1002, Name: "Siti"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sheet), "%PDF"))

	empty, err := BadgeSheetPDF("Bus A01", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, empty)
}
