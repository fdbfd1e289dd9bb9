package export

import (
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"busoptimizer/backend/internal/service/occupancy"
)

var occupancyHeaders = []interface{}{
	"Bus ID", "Route", "Plant", "Bus Capacity", "Vans", "Van Capacity", "Total Capacity",
	"Bus Present", "Van Present", "Total Present", "Present Sum",
	"Bus Roster", "Van Roster", "Total Roster", "Utilization %",
}

// OccupancyXLSX renders the occupancy report as a single-sheet workbook.
func OccupancyXLSX(report occupancy.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Occupancy"
	f.SetSheetName("Sheet1", sheet)

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"From", report.DateFrom, "To", report.DateTo, "Days", report.Days}); err != nil {
		return nil, errors.Wrap(err, "write period")
	}
	if err := f.SetSheetRow(sheet, "A3", &occupancyHeaders); err != nil {
		return nil, errors.Wrap(err, "write headers")
	}

	rowNum := 4
	for _, r := range report.Rows {
		route := ""
		if r.Route != nil {
			route = *r.Route
		}
		values := []interface{}{
			r.BusID, route, r.Plant, r.BusCapacity, r.VanCount, r.VanCapacity, r.TotalCapacity,
			r.BusPresent, r.VanPresent, r.TotalPresent, r.TotalPresentSum,
			r.BusRoster, r.VanRoster, r.TotalRoster, r.Utilization,
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return nil, err
		}
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, errors.Wrapf(err, "write bus %s", r.BusID)
		}
		rowNum++
	}

	t := report.Totals
	totals := []interface{}{
		"TOTAL", "", "", t.TotalBusCapacity, t.TotalVanCount, t.TotalVanCapacity, t.TotalCapacity,
		t.TotalBusPresent, t.TotalVanPresent, t.TotalPresent, t.TotalPresentSum,
		t.TotalBusRoster, t.TotalVanRoster, t.TotalRoster,
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return nil, err
	}
	if err = f.SetSheetRow(sheet, cell, &totals); err != nil {
		return nil, errors.Wrap(err, "write totals")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}

// Template returns an empty workbook with one header row.
func Template(sheet string, headers []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheet)

	row := make([]interface{}, 0, len(headers))
	for _, h := range headers {
		row = append(row, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return nil, errors.Wrap(err, "write headers")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}
