package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	day := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	route := "Route-A01"
	forty, zero := 40, 0

	resp := summarize([]tripRow{
		{ScannedOn: day, Shift: "morning", BusID: "A01", Route: &route, Capacity: &forty, Present: 13},
		{ScannedOn: day, Shift: "night", BusID: "A01", Route: &route, Capacity: &forty, Present: 20},
		{ScannedOn: day, Shift: "morning", BusID: "OWN", Capacity: &zero, Present: 4},
		{ScannedOn: day, Shift: "morning", BusID: "", Present: 1},
	})

	assert.Equal(t, 38, resp.TotalPassengers)
	assert.Equal(t, 4, resp.TripCount)
	require.Len(t, resp.Trips, 4)

	first := resp.Trips[0]
	assert.Equal(t, "2026-01-12", first.TripDate)
	assert.Equal(t, "morning", first.TripCode)
	assert.Equal(t, "unknown", first.Direction)
	require.NotNil(t, first.LoadFactor)
	assert.Equal(t, 0.325, *first.LoadFactor)

	assert.Nil(t, resp.Trips[2].Capacity, "zero capacity is reported as missing")
	assert.Nil(t, resp.Trips[2].LoadFactor)
	assert.Nil(t, resp.Trips[3].LoadFactor)

	require.NotNil(t, resp.AvgLoadFactor)
	assert.Equal(t, 0.413, *resp.AvgLoadFactor)
}

func TestSummarizeEmpty(t *testing.T) {
	resp := summarize(nil)
	assert.Equal(t, 0, resp.TripCount)
	assert.Nil(t, resp.AvgLoadFactor)
	assert.NotNil(t, resp.Trips)
}
