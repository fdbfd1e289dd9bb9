package fleet

import (
	"context"

	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/repository/postgres/fleet"
)

type Fleet interface {
	ListBuses(ctx context.Context) ([]fleet.BusListItem, error)
	UpsertBus(ctx context.Context, request fleet.BusRequest) (entity.Bus, error)
	ListVans(ctx context.Context, filter fleet.VanFilter) ([]entity.Van, error)
	UpsertVan(ctx context.Context, request fleet.VanRequest) (entity.Van, error)
	ListEmployees(ctx context.Context, filter fleet.EmployeeFilter) ([]fleet.EmployeeListItem, int, error)
	GetEmployee(ctx context.Context, batchID int64) (fleet.EmployeeListItem, error)
	BusEmployees(ctx context.Context, busID string) ([]fleet.EmployeeListItem, error)
	UpsertEmployee(ctx context.Context, request fleet.EmployeeRequest) (entity.Employee, error)
	DeleteAttendanceByDate(ctx context.Context, request fleet.DeleteAttendanceRequest) (fleet.DeleteAttendanceResponse, error)
}

// Invalidator drops cached reports after a write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}
