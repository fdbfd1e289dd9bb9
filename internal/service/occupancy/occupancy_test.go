package occupancy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/internal/pkg/logger"
)

type fakeSource struct {
	buses    []BusInfo
	vans     []VanInfo
	members  []Member
	presence []Presence
	roster   []RosterEntry
	scans    map[int64]time.Time

	presenceBusIDs []string
	calls          int
}

func (f *fakeSource) Buses(context.Context) ([]BusInfo, error) {
	f.calls++
	return f.buses, nil
}

func (f *fakeSource) ActiveVans(context.Context) ([]VanInfo, error) { return f.vans, nil }

func (f *fakeSource) ActiveMembers(context.Context) ([]Member, error) { return f.members, nil }

func (f *fakeSource) Presence(_ context.Context, from, to time.Time, _ []string, busIDs []string) ([]Presence, error) {
	f.presenceBusIDs = busIDs
	want := map[string]bool{}
	for _, id := range busIDs {
		want[id] = true
	}
	var out []Presence
	for _, p := range f.presence {
		if want[p.BusID] && !p.Day.Before(from) && !p.Day.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) Roster(context.Context, string, bool) ([]RosterEntry, error) {
	return f.roster, nil
}

func (f *fakeSource) FirstScans(context.Context, string, time.Time, time.Time, []string) (map[int64]time.Time, error) {
	return f.scans, nil
}

func sp(v string) *string { return &v }

func ip(v int64) *int64 { return &v }

func cp(v int) *int { return &v }

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

func newFleet() *fakeSource {
	return &fakeSource{
		buses: []BusInfo{
			{BusID: "OWN", Route: sp("Route-OWN")},
			{BusID: "B02", Route: sp("Route B02 Klang")},
			{BusID: "A01", Route: sp("Route-A01")},
		},
		vans: []VanInfo{{ID: 7, BusID: "A01", Capacity: cp(12)}},
		members: []Member{
			{BatchID: 1, BusID: "A01", BuildingID: sp("P1")},
			{BatchID: 2, BusID: "A01", BuildingID: sp("P1"), VanID: ip(7)},
			{BatchID: 3, BusID: "A01", BuildingID: sp("P2"), DayType: sp("Offday")},
			{BatchID: 4, BusID: "B02", BuildingID: sp("BK3")},
			{BatchID: 5, BusID: "OWN", BuildingID: sp("P2")},
		},
	}
}

func query(t *testing.T, from, to time.Time, shifts, buses, routes, plants string) Query {
	q, err := NewQuery(from, to, shifts, buses, routes, plants)
	require.NoError(t, err)
	return q
}

func TestOccupancySingleDay(t *testing.T) {
	src := newFleet()
	src.presence = []Presence{
		{BatchID: 1, BusID: "A01", Day: day(12)},
		{BatchID: 1, BusID: "A01", Day: day(12)},
		{BatchID: 2, BusID: "A01", VanID: ip(7), Day: day(12)},
		{BatchID: 3, BusID: "A01", Day: day(12)},
	}
	agg := NewAggregator(src, logger.Discard())

	report, err := agg.Occupancy(context.Background(), query(t, day(12), time.Time{}, "", "", "", ""))
	require.NoError(t, err)

	require.Len(t, report.Rows, 2, "OWN is never reported")
	row := report.Rows[0]
	assert.Equal(t, "A01", row.BusID)
	assert.Equal(t, "P1", row.Plant)
	assert.Equal(t, 42, row.BusCapacity)
	assert.Equal(t, 1, row.VanCount)
	assert.Equal(t, 54, row.TotalCapacity)
	assert.Equal(t, 1, row.BusPresent)
	assert.Equal(t, 1, row.VanPresent)
	assert.Equal(t, 2, row.TotalPresent, "off-day employees and repeat scans are not counted")
	assert.Equal(t, 1, row.BusRoster)
	assert.Equal(t, 1, row.VanRoster)
	assert.Equal(t, 2, row.TotalRoster)
	assert.Equal(t, 4.8, row.Utilization)

	assert.Equal(t, "B02", report.Rows[1].BusID)
	assert.Equal(t, "BK3", report.Rows[1].Plant)
	assert.Equal(t, 84, report.TotalBusCapacity)
	assert.Equal(t, 3, report.TotalRoster)
	assert.Equal(t, 2, report.TotalPresent)
}

func TestOccupancyRangeAverages(t *testing.T) {
	src := newFleet()
	for d := 1; d <= 7; d++ {
		src.presence = append(src.presence,
			Presence{BatchID: 1, BusID: "A01", Day: day(d)},
			Presence{BatchID: 2, BusID: "A01", VanID: ip(7), Day: day(d)},
		)
	}
	src.presence = append(src.presence, Presence{BatchID: 4, BusID: "B02", Day: day(3)})
	agg := NewAggregator(src, logger.Discard())

	report, err := agg.Occupancy(context.Background(), query(t, day(1), day(7), "", "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, 7, report.Days)

	a01 := report.Rows[0]
	assert.Equal(t, 14, a01.TotalPresentSum)
	assert.Equal(t, 2, a01.TotalPresent)
	assert.Equal(t, 14, a01.TotalRosterSum)

	b02 := report.Rows[1]
	assert.Equal(t, 1, b02.TotalPresentSum)
	assert.Equal(t, 0, b02.TotalPresent, "1/7 rounds to 0")
}

func TestOccupancyFilters(t *testing.T) {
	src := newFleet()
	agg := NewAggregator(src, logger.Discard())
	ctx := context.Background()

	report, err := agg.Occupancy(ctx, query(t, day(12), day(12), "", "", "", "bk3"))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "B02", report.Rows[0].BusID)
	assert.Equal(t, []string{"B02"}, src.presenceBusIDs, "plant narrows the buses before presence is queried")

	report, err = agg.Occupancy(ctx, query(t, day(12), day(12), "", "", "klang", ""))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "B02", report.Rows[0].BusID)

	report, err = agg.Occupancy(ctx, query(t, day(12), day(12), "", "a01", "klang", "BK3"))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1, "bus ids take precedence")
	assert.Equal(t, "A01", report.Rows[0].BusID)

	report, err = agg.Occupancy(ctx, query(t, day(12), day(12), "", "OWN", "", ""))
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
}

func TestFilters(t *testing.T) {
	agg := NewAggregator(newFleet(), logger.Discard())

	opts, err := agg.Filters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A01", "B02"}, opts.BusIDs)
	assert.Equal(t, []string{"Route B02 Klang", "Route-A01"}, opts.Routes)
	assert.Equal(t, []string{"BK3", "P1"}, opts.Plants)
	assert.Len(t, opts.Shifts, 3)
}

func TestBusDetail(t *testing.T) {
	src := newFleet()
	first := time.Date(2026, 1, 12, 6, 45, 0, 0, time.UTC)
	src.roster = []RosterEntry{
		{BatchID: 1, Name: "Ali", Active: true, BuildingID: sp("P1"), PickupPoint: sp("Gate 3")},
		{BatchID: 2, Name: "Siti", Active: true},
	}
	src.scans = map[int64]time.Time{1: first}
	agg := NewAggregator(src, logger.Discard())

	detail, err := agg.BusDetail(context.Background(), " a01 ", query(t, day(12), day(12), "", "", "", ""), false)
	require.NoError(t, err)
	assert.Equal(t, "A01", detail.BusID)
	assert.Equal(t, 2, detail.RosterTotal)
	assert.Equal(t, 1, detail.PresentTotal)
	assert.Equal(t, 1, detail.AbsentTotal)
	assert.True(t, detail.Employees[0].Present)
	assert.Equal(t, first, *detail.Employees[0].FirstScan)
	assert.Equal(t, "P1", detail.Employees[0].Plant)
	assert.Equal(t, UnassignedPlant, detail.Employees[1].Plant)

	_, err = agg.BusDetail(context.Background(), "", query(t, day(12), day(12), "", "", "", ""), false)
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, []string{"A01", "A02"}, ParseMultiValue("A01, A02"))
	assert.Nil(t, ParseMultiValue(" , "))

	for _, in := range []string{"p1", " P2 ", "bk 5", "JBMW"} {
		_, ok := NormalizePlant(in)
		assert.True(t, ok, in)
	}
	_, ok := NormalizePlant("HQ")
	assert.False(t, ok)

	assert.Equal(t, 0, BusCapacityFor("OWN"))
	assert.Equal(t, 0, BusCapacityFor("UNKN"))
	assert.Equal(t, 42, BusCapacityFor("A01"))

	assert.Equal(t, "P1", DerivePlant([]string{"P2", "P1", "HQ"}))
	assert.Equal(t, "P2", DerivePlant([]string{"P2", "P1", "p2"}))
	assert.Equal(t, UnassignedPlant, DerivePlant(nil))
}

func TestQuery(t *testing.T) {
	a := query(t, day(1), day(7), "night,morning", "a01, B02", "", "p1")
	b := query(t, day(1), day(7), "Morning, NIGHT", "b02,A01", "", "P1")
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), query(t, day(1), day(6), "", "", "", "").Key())

	_, err := NewQuery(day(7), day(1), "", "", "", "")
	assert.Error(t, err)
	_, err = NewQuery(time.Time{}, day(1), "", "", "", "")
	assert.Error(t, err)
}

func TestCachedAggregator(t *testing.T) {
	src := newFleet()
	cache := NewMemoryCache(30 * time.Second)
	now := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	agg := NewCachedAggregator(NewAggregator(src, logger.Discard()), cache, logger.Discard())
	ctx := context.Background()
	q := query(t, day(12), day(12), "", "", "", "")

	first, err := agg.Occupancy(ctx, q)
	require.NoError(t, err)
	second, err := agg.Occupancy(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	agg.Invalidate(ctx)
	_, err = agg.Occupancy(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	now = now.Add(31 * time.Second)
	_, err = agg.Occupancy(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls, "expired entries are reloaded")
}
