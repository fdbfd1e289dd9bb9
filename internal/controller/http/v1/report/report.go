package report

import (
	"bytes"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/repository/postgres/report"
	"busoptimizer/backend/internal/service/attendance"
	"busoptimizer/backend/internal/service/export"
	"busoptimizer/backend/internal/service/occupancy"
)

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

type Controller struct {
	report    Report
	occupancy Occupancy
	loc       *time.Location
	now       func() time.Time
}

func NewController(report Report, occupancy Occupancy, loc *time.Location) *Controller {
	return &Controller{report: report, occupancy: occupancy, loc: loc, now: time.Now}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func day(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02")
}

// shiftQuery validates the optional single shift filter.
func shiftQuery(c *web.Context) (*string, error) {
	shift, err := attendance.ParseShift(c.Query("shift"))
	if err != nil {
		return nil, web.NewRequestError(err, http.StatusBadRequest)
	}
	if shift == nil {
		return nil, nil
	}
	s := string(*shift)
	return &s, nil
}

func (uc Controller) headcountFilter(c *web.Context) (report.HeadcountFilter, error) {
	var filter report.HeadcountFilter

	filter.Date = c.GetDateQuery("date")
	filter.DateFrom = c.GetDateQuery("date_from")
	filter.DateTo = c.GetDateQuery("date_to")
	if busID, ok := c.GetQueryFunc(reflect.String, "bus_id").(*string); ok {
		filter.BusID = busID
	}
	if err := c.ValidQuery(); err != nil {
		return filter, err
	}

	shift, err := shiftQuery(c)
	if err != nil {
		return filter, err
	}
	filter.Shift = shift
	return filter, nil
}

func (uc Controller) Headcount(c *web.Context) error {
	filter, err := uc.headcountFilter(c)
	if err != nil {
		return c.RespondError(err)
	}

	rows, err := uc.report.Headcount(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"rows": rows,
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) HeadcountExport(c *web.Context) error {
	filter, err := uc.headcountFilter(c)
	if err != nil {
		return c.RespondError(err)
	}

	rows, err := uc.report.Headcount(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Date, r.Shift, r.BusID, str(r.Route),
			strconv.Itoa(r.Present), strconv.Itoa(r.UnknownBatch), strconv.Itoa(r.UnknownShift), strconv.Itoa(r.Total),
		})
	}

	var name string
	if filter.Date != nil {
		name = export.FileName("headcount", "csv", "date", day(filter.Date), "shift", str(filter.Shift), "bus", str(filter.BusID))
	} else {
		name = export.FileName("headcount", "csv", "from", day(filter.DateFrom), "to", day(filter.DateTo), "shift", str(filter.Shift), "bus", str(filter.BusID))
	}

	header := []string{"date", "shift", "bus_id", "route", "present", "unknown_batch", "unknown_shift", "total"}
	return uc.csv(c, name, header, records)
}

func (uc Controller) detailFilter(c *web.Context) (report.DetailFilter, error) {
	var filter report.DetailFilter

	d := c.GetDateQuery("date")
	if busID, ok := c.GetQueryFunc(reflect.String, "bus_id").(*string); ok {
		filter.BusID = busID
	}
	if err := c.ValidQuery(); err != nil {
		return filter, err
	}
	if d == nil {
		return filter, web.NewRequestError(errors.New("date parameter is required"), http.StatusBadRequest)
	}
	filter.Date = *d

	shift, err := shiftQuery(c)
	if err != nil {
		return filter, err
	}
	filter.Shift = shift
	return filter, nil
}

func (uc Controller) Attendance(c *web.Context) error {
	filter, err := uc.detailFilter(c)
	if err != nil {
		return c.RespondError(err)
	}

	list, err := uc.report.AttendanceDetail(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   len(list),
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) AttendanceExport(c *web.Context) error {
	filter, err := uc.detailFilter(c)
	if err != nil {
		return c.RespondError(err)
	}

	list, err := uc.report.AttendanceDetail(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	records := make([][]string, 0, len(list))
	for _, r := range list {
		van := ""
		if r.VanID != nil {
			van = strconv.FormatInt(*r.VanID, 10)
		}
		records = append(records, []string{
			r.ScannedAt.In(uc.loc).Format(time.RFC3339),
			strconv.FormatInt(r.BatchID, 10),
			str(r.EmployeeName), str(r.BusID), van, r.Shift, r.Status, str(r.Source),
		})
	}

	name := export.FileName("attendance", "csv", "date", day(&filter.Date), "shift", str(filter.Shift), "bus", str(filter.BusID))
	header := []string{"scanned_at", "batch_id", "employee_name", "bus_id", "van_id", "shift", "status", "source"}
	return uc.csv(c, name, header, records)
}

func (uc Controller) Summary(c *web.Context) error {
	var filter report.SummaryFilter

	filter.DateFrom = c.GetDateQuery("date_from")
	filter.DateTo = c.GetDateQuery("date_to")
	if route, ok := c.GetQueryFunc(reflect.String, "route").(*string); ok {
		filter.Route = route
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	summary, err := uc.report.Summary(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   summary,
		"status": true,
	}, http.StatusOK)
}

// occupancyQuery reads the dashboard filters. Without dates the current
// local day is used.
func (uc Controller) occupancyQuery(c *web.Context) (occupancy.Query, error) {
	from := c.GetDateQuery("date_from")
	to := c.GetDateQuery("date_to")
	if err := c.ValidQuery(); err != nil {
		return occupancy.Query{}, err
	}

	var start, end time.Time
	if from != nil {
		start = *from
	} else {
		now := uc.now().In(uc.loc)
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to != nil {
		end = *to
	}

	q, err := occupancy.NewQuery(start, end, c.Query("shift"), c.Query("bus_id"), c.Query("route"), c.Query("plant"))
	if err != nil {
		return occupancy.Query{}, web.NewRequestError(err, http.StatusBadRequest)
	}
	for _, s := range q.Shifts {
		if _, err = attendance.ParseShift(s); err != nil {
			return occupancy.Query{}, web.NewRequestError(err, http.StatusBadRequest)
		}
	}
	return q, nil
}

func (uc Controller) Occupancy(c *web.Context) error {
	q, err := uc.occupancyQuery(c)
	if err != nil {
		return c.RespondError(err)
	}

	result, err := uc.occupancy.Occupancy(c.Ctx, q)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   result,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) OccupancyFilters(c *web.Context) error {
	options, err := uc.occupancy.Filters(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   options,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) OccupancyExport(c *web.Context) error {
	q, err := uc.occupancyQuery(c)
	if err != nil {
		return c.RespondError(err)
	}

	format := c.DefaultQuery("format", "xlsx")
	if format != "xlsx" && format != "pdf" {
		return c.RespondError(web.NewRequestError(errors.New("format must be xlsx or pdf"), http.StatusBadRequest))
	}

	result, err := uc.occupancy.Occupancy(c.Ctx, q)
	if err != nil {
		return c.RespondError(err)
	}

	var (
		data        []byte
		contentType string
	)
	if format == "pdf" {
		data, err = export.OccupancyPDF(result)
		contentType = pdfContentType
	} else {
		data, err = export.OccupancyXLSX(result)
		contentType = xlsxContentType
	}
	if err != nil {
		return c.RespondError(err)
	}

	name := export.FileName("occupancy", format, "from", result.DateFrom, "to", result.DateTo)
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.Data(http.StatusOK, contentType, data)
	return nil
}

func (uc Controller) BusDetail(c *web.Context) error {
	busID := c.Query("bus_id")
	if busID == "" {
		return c.RespondError(web.NewRequestError(errors.New("bus_id parameter is required"), http.StatusBadRequest))
	}

	includeInactive := false
	if v, ok := c.GetQueryFunc(reflect.Bool, "include_inactive").(*bool); ok {
		includeInactive = *v
	}

	// bus_id doubles as the occupancy bus filter, which detail ignores.
	q, err := uc.occupancyQuery(c)
	if err != nil {
		return c.RespondError(err)
	}

	detail, err := uc.occupancy.BusDetail(c.Ctx, busID, q, includeInactive)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   detail,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) csv(c *web.Context, name string, header []string, records [][]string) error {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, header, records); err != nil {
		return c.RespondError(err)
	}

	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
	return nil
}
