package occupancy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"busoptimizer/backend/internal/service/canonical"
)

const MaxRangeDays = 366

type Query struct {
	DateFrom time.Time
	DateTo   time.Time
	Shifts   []string
	BusIDs   []string
	Routes   []string
	Plants   []string
}

// NewQuery normalises the raw filters. A zero to date means a single day.
func NewQuery(from, to time.Time, shifts, busIDs, routes, plants string) (Query, error) {
	if from.IsZero() {
		return Query{}, errors.New("date_from is required")
	}
	if to.IsZero() {
		to = from
	}
	from, to = dateOnly(from), dateOnly(to)
	if to.Before(from) {
		return Query{}, errors.New("date_to must not be before date_from")
	}

	q := Query{DateFrom: from, DateTo: to}
	if q.Days() > MaxRangeDays {
		return Query{}, errors.Errorf("date range is limited to %d days", MaxRangeDays)
	}

	for _, s := range ParseMultiValue(shifts) {
		q.Shifts = append(q.Shifts, strings.ToLower(s))
	}
	for _, id := range ParseMultiValue(busIDs) {
		q.BusIDs = append(q.BusIDs, strings.ToUpper(id))
	}
	q.Routes = ParseMultiValue(routes)
	for _, p := range ParseMultiValue(plants) {
		if plant, ok := NormalizePlant(p); ok {
			q.Plants = append(q.Plants, plant)
		}
	}
	return q, nil
}

// Days is the number of calendar days in the range, inclusive.
func (q Query) Days() int {
	return int(q.DateTo.Sub(q.DateFrom).Hours()/24) + 1
}

// Key identifies the query for caching. Filter order does not matter.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%s|shift=%s|bus=%s|route=%s|plant=%s",
		q.DateFrom.Format("2006-01-02"),
		q.DateTo.Format("2006-01-02"),
		joinSorted(q.Shifts, strings.ToLower),
		joinSorted(q.BusIDs, strings.ToUpper),
		joinSorted(q.Routes, strings.ToLower),
		joinSorted(q.Plants, strings.ToUpper),
	)
}

// ParseMultiValue splits a comma separated filter, dropping blanks.
func ParseMultiValue(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// NormalizePlant maps building ids to a plant name. P1, P2, BK* and JBMW
// are known; anything else has no plant.
func NormalizePlant(raw string) (string, bool) {
	v := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	switch {
	case v == "P1", v == "P2", v == "JBMW":
		return v, true
	case strings.HasPrefix(v, "BK"):
		return v, true
	}
	return "", false
}

const (
	StandardBusCapacity = 42
	UnassignedPlant     = "Unassigned"
)

// BusCapacityFor is the seat count used in occupancy math.
func BusCapacityFor(busID string) int {
	if canonical.IsSynthetic(busID) {
		return 0
	}
	return StandardBusCapacity
}

// DerivePlant returns the most frequent plant. Ties go to the lowest name.
func DerivePlant(plants []string) string {
	counts := map[string]int{}
	for _, p := range plants {
		if plant, ok := NormalizePlant(p); ok {
			counts[plant]++
		}
	}

	best, bestCount := UnassignedPlant, 0
	for plant, n := range counts {
		if n > bestCount || (n == bestCount && plant < best) {
			best, bestCount = plant, n
		}
	}
	return best
}

func joinSorted(values []string, fold func(string) string) string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, v := range values {
		v = fold(strings.TrimSpace(v))
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
