package occupancy

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/attendance"
	"busoptimizer/backend/internal/service/canonical"
)

type BusInfo struct {
	BusID string
	Route *string
}

type VanInfo struct {
	ID       int64
	BusID    string
	Capacity *int
}

// Member is an active employee with the master fields occupancy needs.
type Member struct {
	BatchID    int64
	BusID      string
	VanID      *int64
	BuildingID *string
	DayType    *string
}

// Presence is one attendance record counted as present.
type Presence struct {
	BatchID int64
	BusID   string
	VanID   *int64
	Day     time.Time
}

// Source is the read-only view of the store used by the aggregator.
type Source interface {
	Buses(ctx context.Context) ([]BusInfo, error)
	ActiveVans(ctx context.Context) ([]VanInfo, error)
	ActiveMembers(ctx context.Context) ([]Member, error)
	Presence(ctx context.Context, from, to time.Time, shifts []string, busIDs []string) ([]Presence, error)
	Roster(ctx context.Context, busID string, includeInactive bool) ([]RosterEntry, error)
	FirstScans(ctx context.Context, busID string, from, to time.Time, shifts []string) (map[int64]time.Time, error)
}

type BusRow struct {
	BusID           string  `json:"bus_id"`
	Route           *string `json:"route"`
	Plant           string  `json:"plant"`
	BusCapacity     int     `json:"bus_capacity"`
	VanCount        int     `json:"van_count"`
	VanCapacity     int     `json:"van_capacity"`
	TotalCapacity   int     `json:"total_capacity"`
	BusPresent      int     `json:"bus_present"`
	VanPresent      int     `json:"van_present"`
	TotalPresent    int     `json:"total_present"`
	BusPresentSum   int     `json:"bus_present_sum"`
	VanPresentSum   int     `json:"van_present_sum"`
	TotalPresentSum int     `json:"total_present_sum"`
	BusRoster       int     `json:"bus_roster"`
	VanRoster       int     `json:"van_roster"`
	TotalRoster     int     `json:"total_roster"`
	BusRosterSum    int     `json:"bus_roster_sum"`
	VanRosterSum    int     `json:"van_roster_sum"`
	TotalRosterSum  int     `json:"total_roster_sum"`
	Utilization     float64 `json:"utilization"`
}

type Totals struct {
	TotalBusCapacity   int `json:"total_bus_capacity"`
	TotalVanCount      int `json:"total_van_count"`
	TotalVanCapacity   int `json:"total_van_capacity"`
	TotalCapacity      int `json:"total_capacity"`
	TotalBusPresent    int `json:"total_bus_present"`
	TotalVanPresent    int `json:"total_van_present"`
	TotalPresent       int `json:"total_present"`
	TotalBusPresentSum int `json:"total_bus_present_sum"`
	TotalVanPresentSum int `json:"total_van_present_sum"`
	TotalPresentSum    int `json:"total_present_sum"`
	TotalBusRoster     int `json:"total_bus_roster"`
	TotalVanRoster     int `json:"total_van_roster"`
	TotalRoster        int `json:"total_roster"`
	TotalRosterSum     int `json:"total_roster_sum"`
}

type Report struct {
	DateFrom string   `json:"date_from"`
	DateTo   string   `json:"date_to"`
	Days     int      `json:"days"`
	Rows     []BusRow `json:"rows"`
	Totals
}

type FilterOptions struct {
	BusIDs []string `json:"bus_ids"`
	Routes []string `json:"routes"`
	Plants []string `json:"plants"`
	Shifts []string `json:"shifts"`
}

type Aggregator struct {
	source Source
	log    logger.Logger
}

func NewAggregator(source Source, log logger.Logger) *Aggregator {
	return &Aggregator{source: source, log: log.WithComponent("occupancy")}
}

type busState struct {
	info    BusInfo
	plant   string
	members []Member
	vans    []VanInfo
}

// fleet loads buses with their plants, members and vans. OWN is left out.
func (a *Aggregator) fleet(ctx context.Context) ([]*busState, error) {
	buses, err := a.source.Buses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch buses")
	}
	members, err := a.source.ActiveMembers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch employees")
	}
	vans, err := a.source.ActiveVans(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch vans")
	}

	byID := map[string]*busState{}
	var out []*busState
	for _, b := range buses {
		if strings.EqualFold(b.BusID, canonical.OwnCode) {
			continue
		}
		st := &busState{info: b}
		byID[b.BusID] = st
		out = append(out, st)
	}
	for _, m := range members {
		if st, ok := byID[m.BusID]; ok {
			st.members = append(st.members, m)
		}
	}
	for _, v := range vans {
		if st, ok := byID[v.BusID]; ok {
			st.vans = append(st.vans, v)
		}
	}
	for _, st := range out {
		var plants []string
		for _, m := range st.members {
			if m.BuildingID != nil {
				plants = append(plants, *m.BuildingID)
			}
		}
		st.plant = DerivePlant(plants)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].info.BusID < out[j].info.BusID })
	return out, nil
}

// selectBuses applies the bus filters. Explicit bus ids win over routes
// and plants.
func selectBuses(all []*busState, q Query) []*busState {
	if len(q.BusIDs) > 0 {
		want := map[string]struct{}{}
		for _, id := range q.BusIDs {
			want[strings.ToUpper(id)] = struct{}{}
		}
		var out []*busState
		for _, st := range all {
			if _, ok := want[strings.ToUpper(st.info.BusID)]; ok {
				out = append(out, st)
			}
		}
		return out
	}

	var out []*busState
	for _, st := range all {
		if len(q.Routes) > 0 && !matchesRoute(st.info.Route, q.Routes) {
			continue
		}
		if len(q.Plants) > 0 && !contains(q.Plants, st.plant) {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Occupancy computes per-bus capacity, presence and roster for q.
func (a *Aggregator) Occupancy(ctx context.Context, q Query) (Report, error) {
	all, err := a.fleet(ctx)
	if err != nil {
		return Report{}, err
	}
	buses := selectBuses(all, q)

	report := Report{
		DateFrom: q.DateFrom.Format("2006-01-02"),
		DateTo:   q.DateTo.Format("2006-01-02"),
		Days:     q.Days(),
		Rows:     []BusRow{},
	}
	if len(buses) == 0 {
		return report, nil
	}

	ids := make([]string, 0, len(buses))
	offday := map[int64]struct{}{}
	for _, st := range buses {
		ids = append(ids, st.info.BusID)
		for _, m := range st.members {
			if attendance.IsOffDay(attendance.NormalizeDayType(m.DayType)) {
				offday[m.BatchID] = struct{}{}
			}
		}
	}

	presence, err := a.source.Presence(ctx, q.DateFrom, q.DateTo, q.Shifts, ids)
	if err != nil {
		return Report{}, errors.Wrap(err, "fetch presence")
	}

	type dayKey struct {
		batchID int64
		day     string
	}
	busSum, vanSum := map[string]int{}, map[string]int{}
	counted := map[dayKey]struct{}{}
	for _, p := range presence {
		if _, ok := offday[p.BatchID]; ok {
			continue
		}
		key := dayKey{batchID: p.BatchID, day: p.Day.Format("2006-01-02")}
		if _, ok := counted[key]; ok {
			continue
		}
		counted[key] = struct{}{}

		if p.VanID != nil {
			vanSum[p.BusID]++
		} else {
			busSum[p.BusID]++
		}
	}

	days := q.Days()
	for _, st := range buses {
		row := BusRow{
			BusID:       st.info.BusID,
			Route:       st.info.Route,
			Plant:       st.plant,
			BusCapacity: BusCapacityFor(st.info.BusID),
			VanCount:    len(st.vans),
		}
		for _, v := range st.vans {
			if v.Capacity != nil {
				row.VanCapacity += *v.Capacity
			}
		}
		row.TotalCapacity = row.BusCapacity + row.VanCapacity

		for _, m := range st.members {
			if _, ok := offday[m.BatchID]; ok {
				continue
			}
			if m.VanID != nil {
				row.VanRoster++
			} else {
				row.BusRoster++
			}
		}
		row.TotalRoster = row.BusRoster + row.VanRoster
		row.BusRosterSum = row.BusRoster * days
		row.VanRosterSum = row.VanRoster * days
		row.TotalRosterSum = row.TotalRoster * days

		row.BusPresentSum = busSum[st.info.BusID]
		row.VanPresentSum = vanSum[st.info.BusID]
		row.TotalPresentSum = row.BusPresentSum + row.VanPresentSum
		row.BusPresent = average(row.BusPresentSum, days)
		row.VanPresent = average(row.VanPresentSum, days)
		row.TotalPresent = average(row.TotalPresentSum, days)
		row.Utilization = percent(row.TotalPresent, row.BusCapacity)

		report.Rows = append(report.Rows, row)
		report.Totals.add(row)
	}

	return report, nil
}

// Filters lists the values the dashboard can filter on.
func (a *Aggregator) Filters(ctx context.Context) (FilterOptions, error) {
	all, err := a.fleet(ctx)
	if err != nil {
		return FilterOptions{}, err
	}

	opts := FilterOptions{
		BusIDs: []string{},
		Routes: []string{},
		Plants: []string{},
		Shifts: []string{string(attendance.ShiftMorning), string(attendance.ShiftNight), string(attendance.ShiftUnknown)},
	}
	routes, plants := map[string]struct{}{}, map[string]struct{}{}
	for _, st := range all {
		opts.BusIDs = append(opts.BusIDs, st.info.BusID)
		if st.info.Route != nil && *st.info.Route != "" {
			routes[*st.info.Route] = struct{}{}
		}
		if st.plant != UnassignedPlant {
			plants[st.plant] = struct{}{}
		}
	}
	for r := range routes {
		opts.Routes = append(opts.Routes, r)
	}
	for p := range plants {
		opts.Plants = append(opts.Plants, p)
	}
	sort.Strings(opts.Routes)
	sort.Strings(opts.Plants)
	return opts, nil
}

func (t *Totals) add(row BusRow) {
	t.TotalBusCapacity += row.BusCapacity
	t.TotalVanCount += row.VanCount
	t.TotalVanCapacity += row.VanCapacity
	t.TotalCapacity += row.TotalCapacity
	t.TotalBusPresent += row.BusPresent
	t.TotalVanPresent += row.VanPresent
	t.TotalPresent += row.TotalPresent
	t.TotalBusPresentSum += row.BusPresentSum
	t.TotalVanPresentSum += row.VanPresentSum
	t.TotalPresentSum += row.TotalPresentSum
	t.TotalBusRoster += row.BusRoster
	t.TotalVanRoster += row.VanRoster
	t.TotalRoster += row.TotalRoster
	t.TotalRosterSum += row.TotalRosterSum
}

// average is sum/days rounded half away from zero.
func average(sum, days int) int {
	if days <= 0 {
		return sum
	}
	return int(decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(days))).Round(0).IntPart())
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole))).Round(1).Float64()
	return v
}

func matchesRoute(route *string, filters []string) bool {
	if route == nil {
		return false
	}
	r := strings.ToLower(*route)
	for _, f := range filters {
		if strings.Contains(r, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
