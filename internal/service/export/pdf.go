package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/pkg/errors"

	"busoptimizer/backend/internal/service/occupancy"
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Bus", 18}, {"Route", 52}, {"Plant", 22}, {"Bus Cap", 20}, {"Vans", 14}, {"Van Cap", 20},
	{"Total Cap", 22}, {"Present", 20}, {"Present Sum", 26}, {"Roster", 20}, {"Util %", 18},
}

// OccupancyPDF renders the occupancy report as a landscape A4 table.
func OccupancyPDF(report occupancy.Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Bus occupancy", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s to %s (%d days)", report.DateFrom, report.DateTo, report.Days), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	row := func(values []string, bold bool) {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		if bold {
			pdf.SetFont("Arial", "B", 9)
		}
		for i, v := range values {
			align := "R"
			if i < 3 {
				align = "L"
			}
			pdf.CellFormat(pdfColumns[i].width, 7, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	for _, r := range report.Rows {
		route := ""
		if r.Route != nil {
			route = *r.Route
		}
		row([]string{
			r.BusID, route, r.Plant, itoa(r.BusCapacity), itoa(r.VanCount), itoa(r.VanCapacity),
			itoa(r.TotalCapacity), itoa(r.TotalPresent), itoa(r.TotalPresentSum), itoa(r.TotalRoster),
			fmt.Sprintf("%.1f", r.Utilization),
		}, false)
	}

	t := report.Totals
	row([]string{
		"TOTAL", "", "", itoa(t.TotalBusCapacity), itoa(t.TotalVanCount), itoa(t.TotalVanCapacity),
		itoa(t.TotalCapacity), itoa(t.TotalPresent), itoa(t.TotalPresentSum), itoa(t.TotalRoster), "",
	}, true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render pdf")
	}
	return buf.Bytes(), nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
