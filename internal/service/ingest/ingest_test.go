package ingest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/sheet"
)

func workbook(t *testing.T, name string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", name)
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow(name, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestMasterRows(t *testing.T) {
	data := workbook(t, "Master", [][]interface{}{
		{"Employee master list"},
		{"PersonId", "SAP ID", "Name", "Status", "Terminate", "Route", "Transport", "Building ID", "Contact No"},
		{"1001", "", "Ali", "Active", "", "Route C1_P1_AB", "V12", "P1", "012-3456789"},
		{"", "2002", "Siti", "Active", "Y", "Route-A07", "", "P2", ""},
		{"1003", "", "Chong", "Resigned", "31/12/2024", "Own", "", "", ""},
	})

	table, err := sheet.Locate(data, MasterTable)
	require.NoError(t, err)
	assert.Equal(t, 2, table.HeaderRow)

	rows := MasterRows(table)
	require.Len(t, rows, 3)

	assert.Equal(t, 3, rows[0].Number)
	assert.Equal(t, int64(1001), *rows[0].PersonID)
	assert.Equal(t, "Ali", *rows[0].Name)
	assert.Equal(t, "V12", *rows[0].Transport)
	assert.Equal(t, "012-3456789", *rows[0].ContactNo)
	assert.Nil(t, rows[0].SapID)
	assert.True(t, rows[0].Active())

	assert.Nil(t, rows[1].PersonID)
	assert.Equal(t, int64(2002), *rows[1].ResolvePersonID())
	assert.Equal(t, "Y", *rows[1].TerminateMarker)
	assert.False(t, rows[1].Active())

	require.NotNil(t, rows[2].Terminate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *rows[2].Terminate)
	assert.Nil(t, rows[2].TerminateMarker)
}

func TestAttendanceRows(t *testing.T) {
	data := workbook(t, "Attendance", [][]interface{}{
		{"Person ID", "Name", "Date", "Time In", "Day Type", "Route"},
		{"1001", "Ali", "Tue-24/12/2024", "7:45 AM", "Regular", "Route A07"},
		{"1002", "Siti", "12/01/2026 (Mon)", ".", "Offday", ""},
	})

	table, err := sheet.Locate(data, AttendanceTable)
	require.NoError(t, err)

	rows := AttendanceRows(table)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), *rows[0].Date)
	assert.Equal(t, 7, rows[0].TimeIn.Hour)
	assert.Equal(t, 45, rows[0].TimeIn.Minute)
	assert.Equal(t, "Route A07", *rows[0].Route)

	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), *rows[1].Date)
	assert.Nil(t, rows[1].TimeIn)
	assert.Equal(t, "Offday", *rows[1].DayType)
}

func TestImportRejectsBadInput(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, logger.Discard())
	ctx := context.Background()

	_, err := svc.ImportMaster(ctx, "junk.xlsx", []byte("not a workbook"))
	var webErr *web.Error
	require.True(t, errors.As(err, &webErr))
	assert.Equal(t, http.StatusBadRequest, webErr.Status)

	noPersonID := workbook(t, "Data", [][]interface{}{{"Name", "Route"}, {"Ali", "A07"}})
	_, err = svc.ImportMaster(ctx, "master.xlsx", noPersonID)
	require.True(t, errors.As(err, &webErr))
	assert.True(t, errors.Is(err, sheet.ErrNoMatchingTable))

	_, err = svc.ImportAttendance(ctx, "att.xlsx", noPersonID, "evening")
	require.True(t, errors.As(err, &webErr))
	assert.Equal(t, http.StatusBadRequest, webErr.Status)
}
