package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"busoptimizer/backend/internal/entity"
)

// MasterRow is one normalised master-list row.
type MasterRow struct {
	Number int

	PersonID        *int64
	SapID           *string
	Name            *string
	Status          *string
	DateJoined      *time.Time
	Terminate       *time.Time
	TerminateMarker *string

	WDID                *string
	TransportContractor *string
	Address1            *string
	Postcode            *string
	City                *string
	State               *string
	ContactNo           *string
	PickupPoint         *string
	Transport           *string
	Route               *string
	BuildingID          *string
	DayType             *string
	Nationality         *string
}

// ResolvePersonID returns the person id, falling back to a numeric SAP id.
func (r MasterRow) ResolvePersonID() *int64 {
	if r.PersonID != nil {
		return r.PersonID
	}
	if r.SapID == nil {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(*r.SapID), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// Active is false for terminated rows, otherwise decided by the status
// text. Unrecognised statuses count as active.
func (r MasterRow) Active() bool {
	if r.Terminate != nil || r.TerminateMarker != nil {
		return false
	}
	if r.Status == nil {
		return true
	}

	status := strings.ToLower(*r.Status)
	switch {
	case strings.Contains(status, "inactive"), strings.Contains(status, "terminat"):
		return false
	case strings.Contains(status, "active"), strings.Contains(status, "current"):
		return true
	}
	return true
}

// ContentHash identifies an unlinked row across repeated uploads.
func (r MasterRow) ContentHash() string {
	parts := []string{
		"name=" + val(r.Name),
		"sap=" + val(r.SapID),
		"wdid=" + val(r.WDID),
		"contact=" + val(r.ContactNo),
		"address=" + val(r.Address1),
		"postcode=" + val(r.Postcode),
		"pickup=" + val(r.PickupPoint),
		"transport=" + val(r.Transport),
		"route=" + val(r.Route),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Record builds the master record for the row.
func (r MasterRow) Record() entity.EmployeeMaster {
	return entity.EmployeeMaster{
		PersonID:            r.ResolvePersonID(),
		DateJoined:          r.DateJoined,
		Name:                r.Name,
		SapID:               r.SapID,
		Status:              r.Status,
		WDID:                r.WDID,
		TransportContractor: r.TransportContractor,
		Address1:            r.Address1,
		Postcode:            r.Postcode,
		City:                r.City,
		State:               r.State,
		ContactNo:           r.ContactNo,
		PickupPoint:         r.PickupPoint,
		Transport:           r.Transport,
		Route:               r.Route,
		BuildingID:          r.BuildingID,
		DayType:             r.DayType,
		Nationality:         r.Nationality,
		Terminate:           r.Terminate,
	}
}

// Overlay copies every non-nil field of src onto dst and reports whether
// anything changed. Nil fields never clear dst.
func Overlay(dst *entity.EmployeeMaster, src entity.EmployeeMaster) bool {
	changed := false
	str := func(d **string, s *string) {
		if s != nil && (*d == nil || **d != *s) {
			*d = s
			changed = true
		}
	}
	day := func(d **time.Time, s *time.Time) {
		if s != nil && (*d == nil || !(*d).Equal(*s)) {
			*d = s
			changed = true
		}
	}

	str(&dst.Name, src.Name)
	str(&dst.SapID, src.SapID)
	str(&dst.Status, src.Status)
	str(&dst.WDID, src.WDID)
	str(&dst.TransportContractor, src.TransportContractor)
	str(&dst.Address1, src.Address1)
	str(&dst.Postcode, src.Postcode)
	str(&dst.City, src.City)
	str(&dst.State, src.State)
	str(&dst.ContactNo, src.ContactNo)
	str(&dst.PickupPoint, src.PickupPoint)
	str(&dst.Transport, src.Transport)
	str(&dst.Route, src.Route)
	str(&dst.BuildingID, src.BuildingID)
	str(&dst.DayType, src.DayType)
	str(&dst.Nationality, src.Nationality)
	day(&dst.DateJoined, src.DateJoined)
	day(&dst.Terminate, src.Terminate)

	return changed
}

func val(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
