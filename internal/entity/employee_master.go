package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// EmployeeMaster mirrors the richest master-list row seen for a person id.
// Rows without a person id are kept with PersonID nil and a RowHash.
type EmployeeMaster struct {
	bun.BaseModel `bun:"table:employee_master"`

	BasicEntity
	PersonID            *int64     `json:"personid"             bun:"personid"`
	RowHash             *string    `json:"row_hash"             bun:"row_hash"`
	DateJoined          *time.Time `json:"date_joined"          bun:"date_joined,type:date"`
	Name                *string    `json:"name"                 bun:"name"`
	SapID               *string    `json:"sap_id"               bun:"sap_id"`
	Status              *string    `json:"status"               bun:"status"`
	WDID                *string    `json:"wdid"                 bun:"wdid"`
	TransportContractor *string    `json:"transport_contractor" bun:"transport_contractor"`
	Address1            *string    `json:"address1"             bun:"address1"`
	Postcode            *string    `json:"postcode"             bun:"postcode"`
	City                *string    `json:"city"                 bun:"city"`
	State               *string    `json:"state"                bun:"state"`
	ContactNo           *string    `json:"contact_no"           bun:"contact_no"`
	PickupPoint         *string    `json:"pickup_point"         bun:"pickup_point"`
	Transport           *string    `json:"transport"            bun:"transport"`
	Route               *string    `json:"route"                bun:"route"`
	BuildingID          *string    `json:"building_id"          bun:"building_id"`
	DayType             *string    `json:"day_type"             bun:"day_type"`
	Nationality         *string    `json:"nationality"          bun:"nationality"`
	Terminate           *time.Time `json:"terminate"            bun:"terminate,type:date"`
}
