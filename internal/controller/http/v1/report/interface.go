package report

import (
	"context"

	"busoptimizer/backend/internal/repository/postgres/report"
	"busoptimizer/backend/internal/service/occupancy"
)

type Report interface {
	Headcount(ctx context.Context, filter report.HeadcountFilter) ([]report.HeadcountRow, error)
	AttendanceDetail(ctx context.Context, filter report.DetailFilter) ([]report.AttendanceRecord, error)
	Summary(ctx context.Context, filter report.SummaryFilter) (report.SummaryResponse, error)
}

type Occupancy interface {
	Occupancy(ctx context.Context, q occupancy.Query) (occupancy.Report, error)
	Filters(ctx context.Context) (occupancy.FilterOptions, error)
	BusDetail(ctx context.Context, busID string, q occupancy.Query, includeInactive bool) (occupancy.BusDetail, error)
}
