package report

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
	"busoptimizer/backend/internal/service/attendance"
	"busoptimizer/backend/internal/service/occupancy"
)

const dateLayout = "2006-01-02"

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

type headcountRow struct {
	ScannedOn    time.Time `bun:"scanned_on"`
	Shift        string    `bun:"shift"`
	BusID        string    `bun:"bus_id"`
	Route        *string   `bun:"route"`
	Present      int       `bun:"present"`
	UnknownBatch int       `bun:"unknown_batch"`
	UnknownShift int       `bun:"unknown_shift"`
	Total        int       `bun:"total"`
}

// Headcount aggregates attendance per date, shift and bus. A single Date
// takes precedence over the range.
func (r Repository) Headcount(ctx context.Context, filter HeadcountFilter) ([]HeadcountRow, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin, auth.RoleDashboard); err != nil {
		return nil, err
	}

	q := r.NewSelect().
		TableExpr("attendances AS a").
		ColumnExpr("a.scanned_on").
		ColumnExpr("a.shift").
		ColumnExpr("COALESCE(a.bus_id, '') AS bus_id").
		ColumnExpr("b.route").
		ColumnExpr("SUM(CASE WHEN a.status = ? THEN 1 ELSE 0 END) AS present", attendance.StatusPresent).
		ColumnExpr("SUM(CASE WHEN a.status = ? THEN 1 ELSE 0 END) AS unknown_batch", attendance.StatusUnknownBatch).
		ColumnExpr("SUM(CASE WHEN a.status = ? THEN 1 ELSE 0 END) AS unknown_shift", attendance.StatusUnknownShift).
		ColumnExpr("COUNT(a.id) AS total").
		Join("LEFT JOIN buses AS b ON b.bus_id = a.bus_id").
		GroupExpr("a.scanned_on, a.shift, a.bus_id, b.route").
		OrderExpr("a.scanned_on DESC, a.shift, a.bus_id")

	if filter.Date != nil {
		q = q.Where("a.scanned_on = ?", filter.Date.Format(dateLayout))
	} else {
		if filter.DateFrom != nil {
			q = q.Where("a.scanned_on >= ?", filter.DateFrom.Format(dateLayout))
		}
		if filter.DateTo != nil {
			q = q.Where("a.scanned_on <= ?", filter.DateTo.Format(dateLayout))
		}
	}
	if filter.Shift != nil {
		q = q.Where("a.shift = ?", *filter.Shift)
	}
	if filter.BusID != nil {
		q = q.Where("a.bus_id = ?", strings.ToUpper(*filter.BusID))
	}

	var rows []headcountRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "selecting headcount"), http.StatusBadRequest)
	}

	list := make([]HeadcountRow, 0, len(rows))
	for _, row := range rows {
		list = append(list, HeadcountRow{
			Date:         row.ScannedOn.Format(dateLayout),
			Shift:        row.Shift,
			BusID:        row.BusID,
			Route:        row.Route,
			Present:      row.Present,
			UnknownBatch: row.UnknownBatch,
			UnknownShift: row.UnknownShift,
			Total:        row.Total,
		})
	}
	return list, nil
}

// AttendanceDetail lists the attendance records of one day, newest first.
func (r Repository) AttendanceDetail(ctx context.Context, filter DetailFilter) ([]AttendanceRecord, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin, auth.RoleDashboard); err != nil {
		return nil, err
	}

	q := r.NewSelect().
		TableExpr("attendances AS a").
		ColumnExpr("a.scanned_at, a.scanned_batch_id AS batch_id, e.name AS employee_name").
		ColumnExpr("a.bus_id, a.van_id, a.shift, a.status, a.source").
		Join("LEFT JOIN employees AS e ON e.id = a.employee_id").
		Where("a.scanned_on = ?", filter.Date.Format(dateLayout)).
		OrderExpr("a.scanned_at DESC")

	if filter.Shift != nil {
		q = q.Where("a.shift = ?", *filter.Shift)
	}
	if filter.BusID != nil {
		q = q.Where("a.bus_id = ?", strings.ToUpper(*filter.BusID))
	}

	list := []AttendanceRecord{}
	if err := q.Scan(ctx, &list); err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "selecting attendance detail"), http.StatusBadRequest)
	}
	return list, nil
}

type tripRow struct {
	ScannedOn time.Time `bun:"scanned_on"`
	Shift     string    `bun:"shift"`
	BusID     string    `bun:"bus_id"`
	Route     *string   `bun:"route"`
	Capacity  *int      `bun:"capacity"`
	Present   int       `bun:"present"`
}

// Summary reports attendance as one synthetic trip per date, shift and bus
// for dashboards built on trips.
func (r Repository) Summary(ctx context.Context, filter SummaryFilter) (SummaryResponse, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin, auth.RoleDashboard); err != nil {
		return SummaryResponse{}, err
	}

	q := r.NewSelect().
		TableExpr("attendances AS a").
		ColumnExpr("a.scanned_on, a.shift, COALESCE(a.bus_id, '') AS bus_id, b.route, b.capacity").
		ColumnExpr("SUM(CASE WHEN a.status = ? THEN 1 ELSE 0 END) AS present", attendance.StatusPresent).
		Join("LEFT JOIN buses AS b ON b.bus_id = a.bus_id").
		GroupExpr("a.scanned_on, a.shift, a.bus_id, b.route, b.capacity").
		OrderExpr("a.scanned_on DESC, a.bus_id")

	if filter.DateFrom != nil {
		q = q.Where("a.scanned_on >= ?", filter.DateFrom.Format(dateLayout))
	}
	if filter.DateTo != nil {
		q = q.Where("a.scanned_on <= ?", filter.DateTo.Format(dateLayout))
	}
	if filter.Route != nil {
		q = q.Where("b.route ILIKE ?", "%"+*filter.Route+"%")
	}

	var rows []tripRow
	if err := q.Scan(ctx, &rows); err != nil {
		return SummaryResponse{}, web.NewRequestError(errors.Wrap(err, "selecting trip summary"), http.StatusBadRequest)
	}
	return summarize(rows), nil
}

func summarize(rows []tripRow) SummaryResponse {
	resp := SummaryResponse{Trips: make([]TripSummary, 0, len(rows))}

	loadSum, loadCount := decimal.Zero, 0
	for _, row := range rows {
		trip := TripSummary{
			TripDate:       row.ScannedOn.Format(dateLayout),
			TripCode:       row.Shift,
			BusID:          row.BusID,
			RouteName:      row.Route,
			Direction:      "unknown",
			PassengerCount: row.Present,
		}
		if row.Capacity != nil && *row.Capacity > 0 {
			capacity := *row.Capacity
			trip.Capacity = &capacity

			load := decimal.NewFromInt(int64(row.Present)).Div(decimal.NewFromInt(int64(capacity)))
			rounded := load.Round(3).InexactFloat64()
			trip.LoadFactor = &rounded

			loadSum = loadSum.Add(load)
			loadCount++
		}

		resp.TotalPassengers += row.Present
		resp.Trips = append(resp.Trips, trip)
	}

	resp.TripCount = len(resp.Trips)
	if loadCount > 0 {
		avg := loadSum.Div(decimal.NewFromInt(int64(loadCount))).Round(3).InexactFloat64()
		resp.AvgLoadFactor = &avg
	}
	return resp
}

var _ occupancy.Source = Repository{}

func (r Repository) Buses(ctx context.Context) ([]occupancy.BusInfo, error) {
	var rows []struct {
		BusID string  `bun:"bus_id"`
		Route *string `bun:"route"`
	}
	if err := r.NewSelect().TableExpr("buses").Column("bus_id", "route").OrderExpr("bus_id").Scan(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting buses")
	}

	out := make([]occupancy.BusInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, occupancy.BusInfo{BusID: row.BusID, Route: row.Route})
	}
	return out, nil
}

func (r Repository) ActiveVans(ctx context.Context) ([]occupancy.VanInfo, error) {
	var rows []struct {
		ID       int64  `bun:"id"`
		BusID    string `bun:"bus_id"`
		Capacity *int   `bun:"capacity"`
	}
	err := r.NewSelect().
		TableExpr("vans").
		Column("id", "bus_id", "capacity").
		Where("active AND bus_id IS NOT NULL").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting vans")
	}

	out := make([]occupancy.VanInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, occupancy.VanInfo{ID: row.ID, BusID: row.BusID, Capacity: row.Capacity})
	}
	return out, nil
}

func (r Repository) ActiveMembers(ctx context.Context) ([]occupancy.Member, error) {
	var rows []struct {
		BatchID    int64   `bun:"batch_id"`
		BusID      string  `bun:"bus_id"`
		VanID      *int64  `bun:"van_id"`
		BuildingID *string `bun:"building_id"`
		DayType    *string `bun:"day_type"`
	}
	err := r.NewSelect().
		TableExpr("employees AS e").
		ColumnExpr("e.batch_id, e.bus_id, e.van_id, m.building_id, m.day_type").
		Join("LEFT JOIN employee_master AS m ON m.personid = e.batch_id").
		Where("e.active AND e.bus_id IS NOT NULL").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting members")
	}

	out := make([]occupancy.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, occupancy.Member{
			BatchID:    row.BatchID,
			BusID:      row.BusID,
			VanID:      row.VanID,
			BuildingID: row.BuildingID,
			DayType:    row.DayType,
		})
	}
	return out, nil
}

func presentIn(q *bun.SelectQuery, from, to time.Time, shifts []string) *bun.SelectQuery {
	q = q.Where("a.status = ?", attendance.StatusPresent).
		Where("a.scanned_on BETWEEN ? AND ?", from.Format(dateLayout), to.Format(dateLayout))
	if len(shifts) > 0 {
		q = q.Where("a.shift IN (?)", bun.In(shifts))
	}
	return q
}

func (r Repository) Presence(ctx context.Context, from, to time.Time, shifts []string, busIDs []string) ([]occupancy.Presence, error) {
	if len(busIDs) == 0 {
		return nil, nil
	}

	var rows []struct {
		BatchID int64     `bun:"scanned_batch_id"`
		BusID   string    `bun:"bus_id"`
		VanID   *int64    `bun:"van_id"`
		Day     time.Time `bun:"scanned_on"`
	}
	q := r.NewSelect().
		TableExpr("attendances AS a").
		ColumnExpr("a.scanned_batch_id, a.bus_id, a.van_id, a.scanned_on").
		Where("a.bus_id IN (?)", bun.In(busIDs))
	if err := presentIn(q, from, to, shifts).Scan(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting presence")
	}

	out := make([]occupancy.Presence, 0, len(rows))
	for _, row := range rows {
		out = append(out, occupancy.Presence{BatchID: row.BatchID, BusID: row.BusID, VanID: row.VanID, Day: row.Day})
	}
	return out, nil
}

func (r Repository) Roster(ctx context.Context, busID string, includeInactive bool) ([]occupancy.RosterEntry, error) {
	var rows []struct {
		BatchID             int64   `bun:"batch_id"`
		Name                string  `bun:"name"`
		Active              bool    `bun:"active"`
		VanID               *int64  `bun:"van_id"`
		PickupPoint         *string `bun:"pickup_point"`
		TransportContractor *string `bun:"transport_contractor"`
		BuildingID          *string `bun:"building_id"`
	}
	q := r.NewSelect().
		TableExpr("employees AS e").
		ColumnExpr("e.batch_id, e.name, e.active, e.van_id").
		ColumnExpr("m.pickup_point, m.transport_contractor, m.building_id").
		Join("LEFT JOIN employee_master AS m ON m.personid = e.batch_id").
		Where("e.bus_id = ?", busID).
		OrderExpr("e.name, e.batch_id")
	if !includeInactive {
		q = q.Where("e.active")
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting roster")
	}

	out := make([]occupancy.RosterEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, occupancy.RosterEntry{
			BatchID:             row.BatchID,
			Name:                row.Name,
			Active:              row.Active,
			VanID:               row.VanID,
			PickupPoint:         row.PickupPoint,
			TransportContractor: row.TransportContractor,
			BuildingID:          row.BuildingID,
		})
	}
	return out, nil
}

func (r Repository) FirstScans(ctx context.Context, busID string, from, to time.Time, shifts []string) (map[int64]time.Time, error) {
	var rows []struct {
		BatchID   int64     `bun:"scanned_batch_id"`
		FirstScan time.Time `bun:"first_scan"`
	}
	q := r.NewSelect().
		TableExpr("attendances AS a").
		ColumnExpr("a.scanned_batch_id, MIN(a.scanned_at) AS first_scan").
		Where("a.bus_id = ?", busID).
		GroupExpr("a.scanned_batch_id")
	if err := presentIn(q, from, to, shifts).Scan(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting first scans")
	}

	out := make(map[int64]time.Time, len(rows))
	for _, row := range rows {
		out[row.BatchID] = row.FirstScan
	}
	return out, nil
}
