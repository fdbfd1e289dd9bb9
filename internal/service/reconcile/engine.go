package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/canonical"
	"busoptimizer/backend/internal/service/sheet"
)

const (
	DefaultBusCapacity = 40
	DefaultVanCapacity = 12
)

// Store is the persistence the engine needs. Every method runs inside the
// unit of work handed to UnitOfWork.Do.
type Store interface {
	BusesByID(ctx context.Context, ids []string) (map[string]entity.Bus, error)
	CreateBuses(ctx context.Context, buses []entity.Bus) (int, error)

	VansByCode(ctx context.Context, codes []string) (map[string]entity.Van, error)
	VansByID(ctx context.Context, ids []int64) (map[int64]entity.Van, error)
	CreateVans(ctx context.Context, vans []entity.Van) (int, error)
	AssignVanBus(ctx context.Context, vanID int64, busID string) error

	EmployeesByBatchID(ctx context.Context, batchIDs []int64) (map[int64]entity.Employee, error)
	CreateEmployees(ctx context.Context, employees []entity.Employee) (int, error)
	UpdateEmployees(ctx context.Context, employees []entity.Employee) error

	MastersByPersonID(ctx context.Context, personIDs []int64) (map[int64]entity.EmployeeMaster, error)
	CreateMasters(ctx context.Context, records []entity.EmployeeMaster) (int, error)
	UpdateMasters(ctx context.Context, records []entity.EmployeeMaster) error
	UnlinkedHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)
}

// UnitOfWork runs fn atomically. If fn returns an error nothing it wrote
// may be visible afterwards.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type Outcome struct {
	ProcessedRows          int              `json:"processed_rows"`
	EmployeesCreated       int              `json:"employees_created"`
	EmployeesUpdated       int              `json:"employees_updated"`
	BusesCreated           int              `json:"buses_created"`
	VansCreated            int              `json:"vans_created"`
	VansReassigned         int              `json:"vans_reassigned"`
	MasterInserted         int              `json:"master_records_inserted"`
	MasterUpdated          int              `json:"master_records_updated"`
	UnlinkedInserted       int              `json:"unlinked_recorded"`
	SkippedMissingPersonID int              `json:"skipped_missing_personid"`
	SkippedMissingName     int              `json:"skipped_missing_name"`
	UnassignedRows         int              `json:"unassigned_rows"`
	RowErrors              []sheet.RowError `json:"row_errors"`
}

// EmployeesUpserted is the number of employees created or changed.
func (o Outcome) EmployeesUpserted() int {
	return o.EmployeesCreated + o.EmployeesUpdated
}

type Engine struct {
	uow UnitOfWork
	log logger.Logger
}

func NewEngine(uow UnitOfWork, log logger.Logger) *Engine {
	return &Engine{uow: uow, log: log.WithComponent("reconcile")}
}

type employeePlan struct {
	name   string
	active bool
	busID  *string
}

type plan struct {
	buses     map[string]struct{}
	vans      map[string]*string
	employees map[int64]employeePlan
	masters   map[int64]entity.EmployeeMaster
	unlinked  map[string]entity.EmployeeMaster
}

// Reconcile upserts buses, vans, employees and master records for rows as a
// single unit of work. On error no counts are returned and nothing is kept.
func (e *Engine) Reconcile(ctx context.Context, rows []MasterRow) (Outcome, error) {
	p, out := build(rows)

	err := e.uow.Do(ctx, func(ctx context.Context, store Store) error {
		applied := out
		if err := apply(ctx, store, p, &applied); err != nil {
			return err
		}
		out = applied
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	e.log.WithFields(logger.Fields{
		"rows":              out.ProcessedRows,
		"employees_created": out.EmployeesCreated,
		"employees_updated": out.EmployeesUpdated,
		"buses_created":     out.BusesCreated,
		"vans_created":      out.VansCreated,
		"unlinked":          out.UnlinkedInserted,
	}).Info("master list reconciled")

	return out, nil
}

func build(rows []MasterRow) (plan, Outcome) {
	p := plan{
		buses:     map[string]struct{}{},
		vans:      map[string]*string{},
		employees: map[int64]employeePlan{},
		masters:   map[int64]entity.EmployeeMaster{},
		unlinked:  map[string]entity.EmployeeMaster{},
	}
	out := Outcome{RowErrors: []sheet.RowError{}}

	for _, row := range rows {
		out.ProcessedRows++

		personID := row.ResolvePersonID()
		if personID == nil {
			out.SkippedMissingPersonID++
			out.RowErrors = append(out.RowErrors, sheet.RowError{RowNumber: row.Number, Message: "missing PersonId"})

			hash := row.ContentHash()
			if _, ok := p.unlinked[hash]; !ok {
				record := row.Record()
				record.RowHash = &hash
				p.unlinked[hash] = record
			}
			continue
		}

		record := row.Record()
		if current, ok := p.masters[*personID]; ok {
			Overlay(&current, record)
			p.masters[*personID] = current
		} else {
			p.masters[*personID] = record
		}

		if row.Name == nil {
			out.SkippedMissingName++
			out.RowErrors = append(out.RowErrors, sheet.RowError{RowNumber: row.Number, PersonID: personID, Message: "missing Name"})
			continue
		}

		var busID *string
		if row.Route != nil {
			if code, ok := canonical.BusCode(*row.Route); ok {
				busID = &code
				p.buses[code] = struct{}{}
			}
		}
		if busID == nil {
			out.UnassignedRows++
		}

		if row.Transport != nil {
			bus := ""
			if busID != nil {
				bus = *busID
			}
			if code, ok := canonical.VanCode(*row.Transport, bus); ok {
				p.vans[code] = busID
			}
		}

		p.employees[*personID] = employeePlan{
			name:   *row.Name,
			active: row.Active(),
			busID:  busID,
		}
	}

	return p, out
}

func apply(ctx context.Context, store Store, p plan, out *Outcome) error {
	if err := applyBuses(ctx, store, p, out); err != nil {
		return err
	}
	if err := applyVans(ctx, store, p, out); err != nil {
		return err
	}
	if err := applyEmployees(ctx, store, p, out); err != nil {
		return err
	}
	if err := applyMasters(ctx, store, p, out); err != nil {
		return err
	}
	return applyUnlinked(ctx, store, p, out)
}

func applyBuses(ctx context.Context, store Store, p plan, out *Outcome) error {
	ids := sortedKeys(p.buses)
	if len(ids) == 0 {
		return nil
	}

	existing, err := store.BusesByID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "fetch buses")
	}

	var create []entity.Bus
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			continue
		}
		route := fmt.Sprintf("Route-%s", id)
		bus := entity.Bus{BusID: id, Route: &route}
		if !canonical.IsSynthetic(id) {
			capacity := DefaultBusCapacity
			bus.Capacity = &capacity
		}
		create = append(create, bus)
	}

	if len(create) > 0 {
		n, err := store.CreateBuses(ctx, create)
		if err != nil {
			return errors.Wrap(err, "create buses")
		}
		out.BusesCreated = n
	}
	return nil
}

func applyVans(ctx context.Context, store Store, p plan, out *Outcome) error {
	codes := sortedKeys(p.vans)
	if len(codes) == 0 {
		return nil
	}

	existing, err := store.VansByCode(ctx, codes)
	if err != nil {
		return errors.Wrap(err, "fetch vans")
	}

	var create []entity.Van
	for _, code := range codes {
		busID := p.vans[code]
		van, ok := existing[code]
		if !ok {
			capacity := DefaultVanCapacity
			create = append(create, entity.Van{
				VanCode:  code,
				BusID:    busID,
				Capacity: &capacity,
				Active:   true,
			})
			continue
		}

		if busID != nil && (van.BusID == nil || *van.BusID != *busID) {
			if err = store.AssignVanBus(ctx, van.ID, *busID); err != nil {
				return errors.Wrapf(err, "reassign van %s", code)
			}
			out.VansReassigned++
		}
	}

	if len(create) > 0 {
		n, err := store.CreateVans(ctx, create)
		if err != nil {
			return errors.Wrap(err, "create vans")
		}
		out.VansCreated = n
	}
	return nil
}

func applyEmployees(ctx context.Context, store Store, p plan, out *Outcome) error {
	ids := sortedKeys(p.employees)
	if len(ids) == 0 {
		return nil
	}

	existing, err := store.EmployeesByBatchID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "fetch employees")
	}

	var vanIDs []int64
	for _, id := range ids {
		if emp, ok := existing[id]; ok && emp.VanID != nil {
			vanIDs = append(vanIDs, *emp.VanID)
		}
	}
	vans := map[int64]entity.Van{}
	if len(vanIDs) > 0 {
		if vans, err = store.VansByID(ctx, vanIDs); err != nil {
			return errors.Wrap(err, "fetch employee vans")
		}
	}

	var (
		create []entity.Employee
		update []entity.Employee
	)
	for _, id := range ids {
		next := p.employees[id]
		emp, ok := existing[id]
		if !ok {
			create = append(create, entity.Employee{
				BatchID: id,
				Name:    next.name,
				BusID:   next.busID,
				Active:  next.active,
			})
			continue
		}

		vanID := emp.VanID
		if vanID != nil {
			van, found := vans[*vanID]
			if !found || !sameBus(van.BusID, next.busID) {
				vanID = nil
			}
		}

		if emp.Name == next.name && emp.Active == next.active && sameBus(emp.BusID, next.busID) && sameVan(emp.VanID, vanID) {
			continue
		}

		emp.Name = next.name
		emp.Active = next.active
		emp.BusID = next.busID
		emp.VanID = vanID
		update = append(update, emp)
	}

	if len(create) > 0 {
		n, err := store.CreateEmployees(ctx, create)
		if err != nil {
			return errors.Wrap(err, "create employees")
		}
		out.EmployeesCreated = n
	}
	if len(update) > 0 {
		if err = store.UpdateEmployees(ctx, update); err != nil {
			return errors.Wrap(err, "update employees")
		}
		out.EmployeesUpdated = len(update)
	}
	return nil
}

func applyMasters(ctx context.Context, store Store, p plan, out *Outcome) error {
	ids := sortedKeys(p.masters)
	if len(ids) == 0 {
		return nil
	}

	existing, err := store.MastersByPersonID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "fetch master records")
	}

	var (
		create []entity.EmployeeMaster
		update []entity.EmployeeMaster
	)
	for _, id := range ids {
		next := p.masters[id]
		current, ok := existing[id]
		if !ok {
			create = append(create, next)
			continue
		}
		if Overlay(&current, next) {
			update = append(update, current)
		}
	}

	if len(create) > 0 {
		n, err := store.CreateMasters(ctx, create)
		if err != nil {
			return errors.Wrap(err, "create master records")
		}
		out.MasterInserted = n
	}
	if len(update) > 0 {
		if err = store.UpdateMasters(ctx, update); err != nil {
			return errors.Wrap(err, "update master records")
		}
		out.MasterUpdated = len(update)
	}
	return nil
}

func applyUnlinked(ctx context.Context, store Store, p plan, out *Outcome) error {
	hashes := sortedKeys(p.unlinked)
	if len(hashes) == 0 {
		return nil
	}

	existing, err := store.UnlinkedHashes(ctx, hashes)
	if err != nil {
		return errors.Wrap(err, "fetch unlinked hashes")
	}

	var create []entity.EmployeeMaster
	for _, hash := range hashes {
		if _, ok := existing[hash]; ok {
			continue
		}
		create = append(create, p.unlinked[hash])
	}
	if len(create) == 0 {
		return nil
	}

	n, err := store.CreateMasters(ctx, create)
	if err != nil {
		return errors.Wrap(err, "record unlinked rows")
	}
	out.UnlinkedInserted = n
	return nil
}

func sameBus(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameVan(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortedKeys[K string | int64, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
