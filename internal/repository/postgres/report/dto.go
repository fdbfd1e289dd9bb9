package report

import "time"

type HeadcountFilter struct {
	Date     *time.Time
	DateFrom *time.Time
	DateTo   *time.Time
	Shift    *string
	BusID    *string
}

type HeadcountRow struct {
	Date         string  `json:"date"`
	Shift        string  `json:"shift"`
	BusID        string  `json:"bus_id"`
	Route        *string `json:"route"`
	Present      int     `json:"present"`
	UnknownBatch int     `json:"unknown_batch"`
	UnknownShift int     `json:"unknown_shift"`
	Total        int     `json:"total"`
}

type DetailFilter struct {
	Date  time.Time
	Shift *string
	BusID *string
}

type AttendanceRecord struct {
	ScannedAt    time.Time `json:"scanned_at"`
	BatchID      int64     `json:"batch_id"`
	EmployeeName *string   `json:"employee_name"`
	BusID        *string   `json:"bus_id"`
	VanID        *int64    `json:"van_id"`
	Shift        string    `json:"shift"`
	Status       string    `json:"status"`
	Source       *string   `json:"source"`
}

type SummaryFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Route    *string
}

type TripSummary struct {
	TripDate       string   `json:"trip_date"`
	TripCode       string   `json:"trip_code"`
	BusID          string   `json:"bus_id"`
	RouteName      *string  `json:"route_name"`
	Direction      string   `json:"direction"`
	PassengerCount int      `json:"passenger_count"`
	Capacity       *int     `json:"capacity"`
	LoadFactor     *float64 `json:"load_factor"`
}

type SummaryResponse struct {
	TotalPassengers int           `json:"total_passengers"`
	AvgLoadFactor   *float64      `json:"avg_load_factor"`
	TripCount       int           `json:"trip_count"`
	SavingEstimate  float64       `json:"saving_estimate"`
	Trips           []TripSummary `json:"trips"`
}
