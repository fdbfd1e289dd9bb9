package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/repository/postgres/report"
	"busoptimizer/backend/internal/service/occupancy"
)

type stubReport struct {
	Report

	headcount *report.HeadcountFilter
}

func (s *stubReport) Headcount(_ context.Context, filter report.HeadcountFilter) ([]report.HeadcountRow, error) {
	s.headcount = &filter
	route := "Route A"
	return []report.HeadcountRow{
		{Date: "2026-01-12", Shift: "morning", BusID: "A01", Route: &route, Present: 12, UnknownBatch: 1, Total: 13},
	}, nil
}

// occupancyService aliases Occupancy so the embedded field's name does not
// collide with the stub's Occupancy method.
type occupancyService = Occupancy

type stubOccupancy struct {
	occupancyService

	query  *occupancy.Query
	busID  string
	detail bool
}

func (s *stubOccupancy) Occupancy(_ context.Context, q occupancy.Query) (occupancy.Report, error) {
	s.query = &q
	return occupancy.Report{
		DateFrom: q.DateFrom.Format("2006-01-02"),
		DateTo:   q.DateTo.Format("2006-01-02"),
		Days:     q.Days(),
		Rows:     []occupancy.BusRow{},
	}, nil
}

func (s *stubOccupancy) BusDetail(_ context.Context, busID string, q occupancy.Query, includeInactive bool) (occupancy.BusDetail, error) {
	s.query, s.busID, s.detail = &q, busID, includeInactive
	return occupancy.BusDetail{}, nil
}

func newApp(rep *stubReport, occ *stubOccupancy, now time.Time) *web.App {
	gin.SetMode(gin.TestMode)

	loc, _ := time.LoadLocation("Asia/Kuala_Lumpur")
	uc := NewController(rep, occ, loc)
	uc.now = func() time.Time { return now }

	app := web.NewApp(logger.Discard())
	app.Get("/headcount", uc.Headcount)
	app.Get("/headcount/export", uc.HeadcountExport)
	app.Get("/occupancy", uc.Occupancy)
	app.Get("/occupancy/export", uc.OccupancyExport)
	app.Get("/bus-detail", uc.BusDetail)
	return app
}

func get(app *web.App, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestOccupancyDefaultsToLocalToday(t *testing.T) {
	occ := &stubOccupancy{}
	// 17:30 UTC is already the next day in Kuala Lumpur.
	app := newApp(&stubReport{}, occ, time.Date(2026, 1, 11, 17, 30, 0, 0, time.UTC))

	w := get(app, "/occupancy?shift=morning,night&bus_id=a01")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, occ.query)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), occ.query.DateFrom)
	assert.Equal(t, occ.query.DateFrom, occ.query.DateTo)
	assert.Equal(t, []string{"morning", "night"}, occ.query.Shifts)
	assert.Equal(t, []string{"A01"}, occ.query.BusIDs)
}

func TestOccupancyRejectsBadFilters(t *testing.T) {
	app := newApp(&stubReport{}, &stubOccupancy{}, time.Now())

	for _, target := range []string{
		"/occupancy?shift=evening",
		"/occupancy?date_from=2026-13-01",
		"/occupancy?date_from=2026-01-12&date_to=2026-01-01",
		"/occupancy/export?format=docx",
		"/bus-detail",
	} {
		w := get(app, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestOccupancyExport(t *testing.T) {
	app := newApp(&stubReport{}, &stubOccupancy{}, time.Now())

	w := get(app, "/occupancy/export?format=xlsx&date_from=2026-01-12")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestBusDetail(t *testing.T) {
	occ := &stubOccupancy{}
	app := newApp(&stubReport{}, occ, time.Now())

	w := get(app, "/bus-detail?bus_id=A01&date_from=2026-01-12&include_inactive=true")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A01", occ.busID)
	assert.True(t, occ.detail)

	w = get(app, "/bus-detail?bus_id=A01&include_inactive=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeadcountExport(t *testing.T) {
	rep := &stubReport{}
	app := newApp(rep, &stubOccupancy{}, time.Now())

	w := get(app, "/headcount/export?date=2026-01-12&shift=Morning")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, rep.headcount)
	require.NotNil(t, rep.headcount.Shift)
	assert.Equal(t, "morning", *rep.headcount.Shift)

	assert.Equal(t, csvContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "date,shift,bus_id,route,present,unknown_batch,unknown_shift,total")
	assert.Contains(t, w.Body.String(), "2026-01-12,morning,A01,Route A,12,1,0,13")

	w = get(app, "/headcount?shift=evening")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
