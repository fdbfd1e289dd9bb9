package fleet

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
	"busoptimizer/backend/internal/repository/postgres"
)

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func upper(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}

func (r Repository) ListBuses(ctx context.Context) ([]BusListItem, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return nil, err
	}

	list := []BusListItem{}
	err := r.NewSelect().
		TableExpr("buses AS b").
		ColumnExpr("b.bus_id, b.route, b.plate_number, b.capacity").
		ColumnExpr("(SELECT count(*) FROM vans v WHERE v.bus_id = b.bus_id AND v.active) AS van_count").
		ColumnExpr("(SELECT count(*) FROM employees e WHERE e.bus_id = b.bus_id AND e.active) AS employee_count").
		OrderExpr("b.bus_id").
		Scan(ctx, &list)
	if err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "selecting buses"), http.StatusBadRequest)
	}
	return list, nil
}

// UpsertBus creates the bus or replaces its route, plate and capacity.
func (r Repository) UpsertBus(ctx context.Context, request BusRequest) (entity.Bus, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return entity.Bus{}, err
	}
	request.BusID = strings.ToUpper(strings.TrimSpace(request.BusID))
	if err := r.ValidateStruct(&request, "BusID"); err != nil {
		return entity.Bus{}, err
	}

	bus := entity.Bus{
		BusID:       request.BusID,
		Route:       request.Route,
		PlateNumber: request.PlateNumber,
		Capacity:    request.Capacity,
	}
	_, err := r.NewInsert().
		Model(&bus).
		On("CONFLICT (bus_id) DO UPDATE").
		Set("route = EXCLUDED.route").
		Set("plate_number = EXCLUDED.plate_number").
		Set("capacity = EXCLUDED.capacity").
		Set("updated_at = now()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return entity.Bus{}, web.NewRequestError(errors.Wrap(err, "saving bus"), http.StatusBadRequest)
	}
	return bus, nil
}

func (r Repository) ListVans(ctx context.Context, filter VanFilter) ([]entity.Van, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return nil, err
	}

	list := []entity.Van{}
	q := r.NewSelect().Model(&list).OrderExpr("van_code")
	if busID := upper(filter.BusID); busID != nil {
		q = q.Where("bus_id = ?", *busID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "selecting vans"), http.StatusBadRequest)
	}
	return list, nil
}

// UpsertVan creates the van or updates it by van code. The bus, when
// given, must exist.
func (r Repository) UpsertVan(ctx context.Context, request VanRequest) (entity.Van, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return entity.Van{}, err
	}
	request.VanCode = strings.ToUpper(strings.TrimSpace(request.VanCode))
	request.BusID = upper(request.BusID)
	if err := r.ValidateStruct(&request, "VanCode"); err != nil {
		return entity.Van{}, err
	}
	if request.BusID != nil {
		if err := r.busExists(ctx, *request.BusID); err != nil {
			return entity.Van{}, err
		}
	}

	van := entity.Van{
		VanCode:     request.VanCode,
		BusID:       request.BusID,
		PlateNumber: request.PlateNumber,
		DriverName:  request.DriverName,
		Capacity:    request.Capacity,
		Active:      request.Active == nil || *request.Active,
	}
	_, err := r.NewInsert().
		Model(&van).
		On("CONFLICT (van_code) DO UPDATE").
		Set("bus_id = EXCLUDED.bus_id").
		Set("plate_number = EXCLUDED.plate_number").
		Set("driver_name = EXCLUDED.driver_name").
		Set("capacity = EXCLUDED.capacity").
		Set("active = EXCLUDED.active").
		Set("updated_at = now()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return entity.Van{}, web.NewRequestError(errors.Wrap(err, "saving van"), http.StatusBadRequest)
	}
	return van, nil
}

func (r Repository) busExists(ctx context.Context, busID string) error {
	exists, err := r.NewSelect().Model((*entity.Bus)(nil)).Where("bus_id = ?", busID).Exists(ctx)
	if err != nil {
		return web.NewRequestError(errors.Wrap(err, "selecting bus"), http.StatusBadRequest)
	}
	if !exists {
		return web.NewRequestError(errors.Errorf("bus %s not found", busID), http.StatusBadRequest)
	}
	return nil
}

func (r Repository) employeeQuery() *bun.SelectQuery {
	return r.NewSelect().
		TableExpr("employees AS e").
		ColumnExpr("e.id, e.batch_id, e.name, e.bus_id, e.van_id, v.van_code, e.active").
		ColumnExpr("m.pickup_point, m.building_id").
		Join("LEFT JOIN vans AS v ON v.id = e.van_id").
		Join("LEFT JOIN employee_master AS m ON m.personid = e.batch_id")
}

func (r Repository) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]EmployeeListItem, int, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}

	q := r.employeeQuery().OrderExpr("e.batch_id")
	if busID := upper(filter.BusID); busID != nil {
		q = q.Where("e.bus_id = ?", *busID)
	}
	if filter.Active != nil {
		q = q.Where("e.active = ?", *filter.Active)
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.TrimSpace(*filter.Search) + "%"
		q = q.Where("(e.name ILIKE ? OR e.batch_id::text LIKE ?)", search, search)
	}
	if filter.Page != nil && filter.Limit != nil {
		offset := (*filter.Page - 1) * (*filter.Limit)
		filter.Offset = &offset
	}
	if filter.Limit != nil {
		q = q.Limit(*filter.Limit)
	}
	if filter.Offset != nil {
		q = q.Offset(*filter.Offset)
	}

	list := []EmployeeListItem{}
	count, err := q.ScanAndCount(ctx, &list)
	if err != nil {
		return nil, 0, web.NewRequestError(errors.Wrap(err, "selecting employees"), http.StatusBadRequest)
	}
	return list, count, nil
}

func (r Repository) GetEmployee(ctx context.Context, batchID int64) (EmployeeListItem, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return EmployeeListItem{}, err
	}

	var detail EmployeeListItem
	err := r.employeeQuery().Where("e.batch_id = ?", batchID).Scan(ctx, &detail)
	if errors.Is(err, sql.ErrNoRows) {
		return EmployeeListItem{}, web.NewRequestError(postgres.ErrNotFound, http.StatusNotFound)
	}
	if err != nil {
		return EmployeeListItem{}, web.NewRequestError(errors.Wrap(err, "selecting employee"), http.StatusBadRequest)
	}
	return detail, nil
}

// BusEmployees lists the active employees of a bus, for badge printing.
func (r Repository) BusEmployees(ctx context.Context, busID string) ([]EmployeeListItem, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return nil, err
	}

	list := []EmployeeListItem{}
	err := r.employeeQuery().
		Where("e.bus_id = ?", strings.ToUpper(strings.TrimSpace(busID))).
		Where("e.active").
		OrderExpr("e.name, e.batch_id").
		Scan(ctx, &list)
	if err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "selecting bus employees"), http.StatusBadRequest)
	}
	return list, nil
}

// UpsertEmployee creates or updates an employee by batch id. An assigned
// van must belong to the employee's bus.
func (r Repository) UpsertEmployee(ctx context.Context, request EmployeeRequest) (entity.Employee, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return entity.Employee{}, err
	}
	request.Name = strings.TrimSpace(request.Name)
	request.BusID = upper(request.BusID)
	if err := r.ValidateStruct(&request, "BatchID", "Name"); err != nil {
		return entity.Employee{}, err
	}

	if request.BusID != nil {
		if err := r.busExists(ctx, *request.BusID); err != nil {
			return entity.Employee{}, err
		}
	}
	if request.VanID != nil {
		var van entity.Van
		err := r.NewSelect().Model(&van).Where("id = ?", *request.VanID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Employee{}, web.NewRequestError(errors.Errorf("van %d not found", *request.VanID), http.StatusBadRequest)
		}
		if err != nil {
			return entity.Employee{}, web.NewRequestError(errors.Wrap(err, "selecting van"), http.StatusBadRequest)
		}
		if err = VanMatchesBus(van, request.BusID); err != nil {
			return entity.Employee{}, web.NewRequestError(err, http.StatusBadRequest)
		}
	}

	employee := entity.Employee{
		BatchID: request.BatchID,
		Name:    request.Name,
		BusID:   request.BusID,
		VanID:   request.VanID,
		Active:  request.Active == nil || *request.Active,
	}
	_, err := r.NewInsert().
		Model(&employee).
		On("CONFLICT (batch_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("bus_id = EXCLUDED.bus_id").
		Set("van_id = EXCLUDED.van_id").
		Set("active = EXCLUDED.active").
		Set("updated_at = now()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return entity.Employee{}, web.NewRequestError(errors.Wrap(err, "saving employee"), http.StatusBadRequest)
	}
	return employee, nil
}

// VanMatchesBus reports an error unless van runs for busID.
func VanMatchesBus(van entity.Van, busID *string) error {
	if busID == nil {
		return errors.Errorf("van %s needs the employee to have a bus", van.VanCode)
	}
	if van.BusID == nil || !strings.EqualFold(*van.BusID, *busID) {
		return errors.Errorf("van %s does not belong to bus %s", van.VanCode, *busID)
	}
	return nil
}

// DeleteAttendanceByDate removes attendance and unknown attendance recorded
// between DateFrom and DateTo, inclusive. A missing DateTo means one day.
func (r Repository) DeleteAttendanceByDate(ctx context.Context, request DeleteAttendanceRequest) (DeleteAttendanceResponse, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return DeleteAttendanceResponse{}, err
	}

	to := request.DateFrom
	if request.DateTo != nil {
		to = *request.DateTo
	}
	if to.Before(request.DateFrom) {
		return DeleteAttendanceResponse{}, web.NewRequestError(errors.New("date_to is before date_from"), http.StatusBadRequest)
	}
	from, until := request.DateFrom.Format(time.DateOnly), to.Format(time.DateOnly)

	var resp DeleteAttendanceResponse
	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*entity.Attendance)(nil)).
			Where("scanned_on BETWEEN ? AND ?", from, until).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "deleting attendance")
		}
		n, _ := res.RowsAffected()
		resp.Deleted = int(n)

		res, err = tx.NewDelete().
			Model((*entity.UnknownAttendance)(nil)).
			Where("scanned_on BETWEEN ? AND ?", from, until).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "deleting unknown attendance")
		}
		n, _ = res.RowsAffected()
		resp.DeletedUnknown = int(n)
		return nil
	})
	if err != nil {
		return DeleteAttendanceResponse{}, web.NewRequestError(err, http.StatusBadRequest)
	}
	return resp, nil
}
