package occupancy

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type RosterEntry struct {
	BatchID             int64   `json:"batch_id"`
	Name                string  `json:"name"`
	Active              bool    `json:"active"`
	VanID               *int64  `json:"van_id"`
	PickupPoint         *string `json:"pickup_point"`
	TransportContractor *string `json:"transport_contractor"`
	BuildingID          *string `json:"-"`
}

type DetailEmployee struct {
	RosterEntry
	Plant     string     `json:"plant"`
	Present   bool       `json:"present"`
	FirstScan *time.Time `json:"first_scan"`
}

type BusDetail struct {
	BusID        string           `json:"bus_id"`
	DateFrom     string           `json:"date_from"`
	DateTo       string           `json:"date_to"`
	Employees    []DetailEmployee `json:"employees"`
	PresentTotal int              `json:"present_total"`
	AbsentTotal  int              `json:"absent_total"`
	RosterTotal  int              `json:"roster_total"`
}

// BusDetail lists the roster of one bus with presence over q's range.
func (a *Aggregator) BusDetail(ctx context.Context, busID string, q Query, includeInactive bool) (BusDetail, error) {
	busID = strings.ToUpper(strings.TrimSpace(busID))
	if busID == "" {
		return BusDetail{}, errors.New("bus_id is required")
	}

	roster, err := a.source.Roster(ctx, busID, includeInactive)
	if err != nil {
		return BusDetail{}, errors.Wrap(err, "fetch roster")
	}
	scans, err := a.source.FirstScans(ctx, busID, q.DateFrom, q.DateTo, q.Shifts)
	if err != nil {
		return BusDetail{}, errors.Wrap(err, "fetch scans")
	}

	detail := BusDetail{
		BusID:     busID,
		DateFrom:  q.DateFrom.Format("2006-01-02"),
		DateTo:    q.DateTo.Format("2006-01-02"),
		Employees: make([]DetailEmployee, 0, len(roster)),
	}
	for _, entry := range roster {
		emp := DetailEmployee{RosterEntry: entry, Plant: UnassignedPlant}
		if entry.BuildingID != nil {
			if plant, ok := NormalizePlant(*entry.BuildingID); ok {
				emp.Plant = plant
			}
		}
		if at, ok := scans[entry.BatchID]; ok {
			at := at
			emp.Present = true
			emp.FirstScan = &at
			detail.PresentTotal++
		}
		detail.Employees = append(detail.Employees, emp)
	}
	detail.RosterTotal = len(detail.Employees)
	detail.AbsentTotal = detail.RosterTotal - detail.PresentTotal

	return detail, nil
}
