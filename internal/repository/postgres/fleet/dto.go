package fleet

import "time"

type BusRequest struct {
	BusID       string  `json:"bus_id"       form:"bus_id"       validate:"required,alphanum,max=10"`
	Route       *string `json:"route"        form:"route"`
	PlateNumber *string `json:"plate_number" form:"plate_number"`
	Capacity    *int    `json:"capacity"     form:"capacity"     validate:"omitempty,min=0,max=200"`
}

type BusListItem struct {
	BusID         string  `json:"bus_id"`
	Route         *string `json:"route"`
	PlateNumber   *string `json:"plate_number"`
	Capacity      *int    `json:"capacity"`
	VanCount      int     `json:"van_count"`
	EmployeeCount int     `json:"employee_count"`
}

type VanFilter struct {
	BusID *string
}

type VanRequest struct {
	VanCode     string  `json:"van_code"     form:"van_code"     validate:"required,alphanum,max=20"`
	BusID       *string `json:"bus_id"       form:"bus_id"`
	PlateNumber *string `json:"plate_number" form:"plate_number"`
	DriverName  *string `json:"driver_name"  form:"driver_name"`
	Capacity    *int    `json:"capacity"     form:"capacity"     validate:"omitempty,min=0,max=50"`
	Active      *bool   `json:"active"       form:"active"`
}

type EmployeeFilter struct {
	Limit  *int
	Offset *int
	Page   *int
	Search *string
	BusID  *string
	Active *bool
}

type EmployeeRequest struct {
	BatchID int64   `json:"batch_id" form:"batch_id" validate:"required,gt=0"`
	Name    string  `json:"name"     form:"name"     validate:"required,max=200"`
	BusID   *string `json:"bus_id"   form:"bus_id"`
	VanID   *int64  `json:"van_id"   form:"van_id"`
	Active  *bool   `json:"active"   form:"active"`
}

type EmployeeListItem struct {
	ID          int64   `json:"id"           bun:"id"`
	BatchID     int64   `json:"batch_id"     bun:"batch_id"`
	Name        string  `json:"name"         bun:"name"`
	BusID       *string `json:"bus_id"       bun:"bus_id"`
	VanID       *int64  `json:"van_id"       bun:"van_id"`
	VanCode     *string `json:"van_code"     bun:"van_code"`
	Active      bool    `json:"active"       bun:"active"`
	PickupPoint *string `json:"pickup_point" bun:"pickup_point"`
	BuildingID  *string `json:"building_id"  bun:"building_id"`
}

type DeleteAttendanceRequest struct {
	DateFrom time.Time
	DateTo   *time.Time
}

type DeleteAttendanceResponse struct {
	Deleted        int `json:"deleted"`
	DeletedUnknown int `json:"deleted_unknown"`
}
