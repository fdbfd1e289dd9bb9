package ingest

import (
	"busoptimizer/backend/internal/service/attendance"
	"busoptimizer/backend/internal/service/coerce"
	"busoptimizer/backend/internal/service/reconcile"
	"busoptimizer/backend/internal/service/sheet"
)

// MasterTable describes the master list sheet.
var MasterTable = sheet.Config{
	MustInclude:              []string{"personid"},
	PreferInclude:            []string{"name", "route", "transport", "status", "sapid", "buildingid"},
	RequiredNonEmptyInSample: []string{"personid"},
	MinValidSampleRows:       1,
}

// AttendanceTable describes the daily attendance export.
var AttendanceTable = sheet.Config{
	MustInclude:              []string{"personid", "date"},
	PreferInclude:            []string{"timein", "daytype", "route", "name"},
	RequiredNonEmptyInSample: []string{"personid", "date"},
	MinValidSampleRows:       1,
}

// MasterHeaders is the column order of the downloadable template.
var MasterHeaders = []string{
	"PersonId", "SAP ID", "Name", "Status", "Date Joined", "Terminate", "WDID",
	"Transport Contractor", "Address1", "Postcode", "City", "State", "Contact No",
	"Pickup Point", "Transport", "Route", "Building ID", "Day Type", "Nationality",
}

// first returns the first non-blank value among the header aliases.
func first(row sheet.Row, keys ...string) interface{} {
	for _, k := range keys {
		if v := row.Value(k); v != nil {
			return v
		}
	}
	return nil
}

func MasterRows(table *sheet.Table) []reconcile.MasterRow {
	rows := make([]reconcile.MasterRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		row := reconcile.MasterRow{
			Number:              r.Number,
			PersonID:            coerce.Int(first(r, "personid")),
			SapID:               coerce.String(first(r, "sapid", "sap")),
			Name:                coerce.String(first(r, "name", "employeename", "fullname")),
			Status:              coerce.String(first(r, "status", "employmentstatus")),
			DateJoined:          coerce.Date(first(r, "datejoined", "joindate")),
			WDID:                coerce.String(first(r, "wdid")),
			TransportContractor: coerce.String(first(r, "transportcontractor", "contractor")),
			Address1:            coerce.String(first(r, "address1", "address")),
			Postcode:            coerce.String(first(r, "postcode")),
			City:                coerce.String(first(r, "city")),
			State:               coerce.String(first(r, "state")),
			ContactNo:           coerce.String(first(r, "contactno", "contact", "phone")),
			PickupPoint:         coerce.String(first(r, "pickuppoint")),
			Transport:           coerce.String(first(r, "transport")),
			Route:               coerce.String(first(r, "route")),
			BuildingID:          coerce.String(first(r, "buildingid", "plant")),
			DayType:             coerce.String(first(r, "daytype")),
			Nationality:         coerce.String(first(r, "nationality")),
		}

		terminate := first(r, "terminate", "terminatedate", "terminationdate")
		if day := coerce.Date(terminate); day != nil {
			row.Terminate = day
		} else {
			row.TerminateMarker = coerce.String(terminate)
		}

		rows = append(rows, row)
	}
	return rows
}

func AttendanceRows(table *sheet.Table) []attendance.Row {
	rows := make([]attendance.Row, 0, len(table.Rows))
	for _, r := range table.Rows {
		rows = append(rows, attendance.Row{
			Number:   r.Number,
			PersonID: coerce.Int(first(r, "personid")),
			Date:     coerce.Date(first(r, "date")),
			TimeIn:   coerce.Time(first(r, "timein", "clockin")),
			DayType:  coerce.String(first(r, "daytype")),
			Route:    coerce.String(first(r, "route")),
		})
	}
	return rows
}
