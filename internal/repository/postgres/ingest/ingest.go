package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
	"busoptimizer/backend/internal/service/attendance"
	"busoptimizer/backend/internal/service/reconcile"
)

// Repository hands out transactional stores to the reconciliation engine
// and the attendance processor.
type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func (r Repository) run(ctx context.Context, fn func(ctx context.Context, s store) error) error {
	return r.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, store{db: tx, now: time.Now})
	})
}

// MasterUnit is the reconcile.UnitOfWork backed by one database transaction.
type MasterUnit struct {
	Repository
}

func (u MasterUnit) Do(ctx context.Context, fn func(ctx context.Context, s reconcile.Store) error) error {
	return u.run(ctx, func(ctx context.Context, s store) error { return fn(ctx, s) })
}

// AttendanceUnit is the attendance.UnitOfWork backed by one database
// transaction.
type AttendanceUnit struct {
	Repository
}

func (u AttendanceUnit) Do(ctx context.Context, fn func(ctx context.Context, s attendance.Store) error) error {
	return u.run(ctx, func(ctx context.Context, s store) error { return fn(ctx, s) })
}

func (r Repository) Masters() MasterUnit {
	return MasterUnit{Repository: r}
}

func (r Repository) Attendance() AttendanceUnit {
	return AttendanceUnit{Repository: r}
}

type store struct {
	db  bun.IDB
	now func() time.Time
}

var (
	_ reconcile.Store  = store{}
	_ attendance.Store = store{}
)

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s store) BusesByID(ctx context.Context, ids []string) (map[string]entity.Bus, error) {
	var buses []entity.Bus
	if err := s.db.NewSelect().Model(&buses).Where("bus_id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "selecting buses")
	}

	out := make(map[string]entity.Bus, len(buses))
	for _, b := range buses {
		out[b.BusID] = b
	}
	return out, nil
}

func (s store) CreateBuses(ctx context.Context, buses []entity.Bus) (int, error) {
	res, err := s.db.NewInsert().Model(&buses).On("CONFLICT (bus_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "inserting buses")
	}
	return affected(res), nil
}

func (s store) VansByCode(ctx context.Context, codes []string) (map[string]entity.Van, error) {
	var vans []entity.Van
	if err := s.db.NewSelect().Model(&vans).Where("van_code IN (?)", bun.In(codes)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "selecting vans")
	}

	out := make(map[string]entity.Van, len(vans))
	for _, v := range vans {
		out[v.VanCode] = v
	}
	return out, nil
}

func (s store) VansByID(ctx context.Context, ids []int64) (map[int64]entity.Van, error) {
	var vans []entity.Van
	if err := s.db.NewSelect().Model(&vans).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "selecting vans")
	}

	out := make(map[int64]entity.Van, len(vans))
	for _, v := range vans {
		out[v.ID] = v
	}
	return out, nil
}

func (s store) CreateVans(ctx context.Context, vans []entity.Van) (int, error) {
	res, err := s.db.NewInsert().Model(&vans).On("CONFLICT (van_code) DO NOTHING").Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "inserting vans")
	}
	return affected(res), nil
}

func (s store) AssignVanBus(ctx context.Context, vanID int64, busID string) error {
	_, err := s.db.NewUpdate().
		Model((*entity.Van)(nil)).
		Set("bus_id = ?", busID).
		Set("updated_at = ?", s.now()).
		Where("id = ?", vanID).
		Exec(ctx)
	return errors.Wrap(err, "updating van bus")
}

func (s store) EmployeesByBatchID(ctx context.Context, batchIDs []int64) (map[int64]entity.Employee, error) {
	var employees []entity.Employee
	if err := s.db.NewSelect().Model(&employees).Where("batch_id IN (?)", bun.In(batchIDs)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "selecting employees")
	}

	out := make(map[int64]entity.Employee, len(employees))
	for _, e := range employees {
		out[e.BatchID] = e
	}
	return out, nil
}

func (s store) CreateEmployees(ctx context.Context, employees []entity.Employee) (int, error) {
	res, err := s.db.NewInsert().Model(&employees).On("CONFLICT (batch_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "inserting employees")
	}
	return affected(res), nil
}

func (s store) UpdateEmployees(ctx context.Context, employees []entity.Employee) error {
	for i := range employees {
		emp := employees[i]
		emp.UpdatedAt = s.now()
		if _, err := s.db.NewUpdate().
			Model(&emp).
			Column("name", "bus_id", "van_id", "active", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return errors.Wrapf(err, "updating employee %d", emp.BatchID)
		}
	}
	return nil
}

func (s store) MastersByPersonID(ctx context.Context, personIDs []int64) (map[int64]entity.EmployeeMaster, error) {
	var records []entity.EmployeeMaster
	if err := s.db.NewSelect().Model(&records).Where("personid IN (?)", bun.In(personIDs)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "selecting master records")
	}

	out := make(map[int64]entity.EmployeeMaster, len(records))
	for _, rec := range records {
		if rec.PersonID != nil {
			out[*rec.PersonID] = rec
		}
	}
	return out, nil
}

// CreateMasters inserts linked and unlinked master records. Each kind has
// its own partial unique index, so they are inserted separately.
func (s store) CreateMasters(ctx context.Context, records []entity.EmployeeMaster) (int, error) {
	var linked, unlinked []entity.EmployeeMaster
	for _, rec := range records {
		if rec.PersonID != nil {
			linked = append(linked, rec)
		} else {
			unlinked = append(unlinked, rec)
		}
	}

	total := 0
	if len(linked) > 0 {
		res, err := s.db.NewInsert().Model(&linked).
			On("CONFLICT (personid) WHERE personid IS NOT NULL DO NOTHING").
			Exec(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "inserting master records")
		}
		total += affected(res)
	}
	if len(unlinked) > 0 {
		res, err := s.db.NewInsert().Model(&unlinked).
			On("CONFLICT (row_hash) WHERE personid IS NULL DO NOTHING").
			Exec(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "inserting unlinked master records")
		}
		total += affected(res)
	}
	return total, nil
}

func (s store) UpdateMasters(ctx context.Context, records []entity.EmployeeMaster) error {
	for i := range records {
		rec := records[i]
		rec.UpdatedAt = s.now()
		if _, err := s.db.NewUpdate().
			Model(&rec).
			ExcludeColumn("id", "created_at", "personid", "row_hash").
			WherePK().
			Exec(ctx); err != nil {
			return errors.Wrap(err, "updating master record")
		}
	}
	return nil
}

func (s store) UnlinkedHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	var found []string
	err := s.db.NewSelect().
		Model((*entity.EmployeeMaster)(nil)).
		Column("row_hash").
		Where("personid IS NULL").
		Where("row_hash IN (?)", bun.In(hashes)).
		Scan(ctx, &found)
	if err != nil {
		return nil, errors.Wrap(err, "selecting unlinked hashes")
	}

	out := make(map[string]struct{}, len(found))
	for _, h := range found {
		out[h] = struct{}{}
	}
	return out, nil
}

type keyRow struct {
	BatchID int64     `bun:"scanned_batch_id"`
	Day     time.Time `bun:"scanned_on"`
	Shift   string    `bun:"shift"`
}

// ExistingKeys returns the natural keys already recorded in the attendance
// and the unknown attendance tables, kept apart.
func (s store) ExistingKeys(ctx context.Context, batchIDs []int64, from, to time.Time) (attendance.Seen, error) {
	out := attendance.NewSeen()
	if len(batchIDs) == 0 {
		return out, nil
	}

	tables := []struct {
		model interface{}
		keys  map[attendance.Key]struct{}
	}{
		{(*entity.Attendance)(nil), out.Attendance},
		{(*entity.UnknownAttendance)(nil), out.Unknown},
	}
	for _, table := range tables {
		var rows []keyRow
		err := s.db.NewSelect().
			Model(table.model).
			Column("scanned_batch_id", "scanned_on", "shift").
			Where("scanned_batch_id IN (?)", bun.In(batchIDs)).
			Where("scanned_on BETWEEN ? AND ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
			Scan(ctx, &rows)
		if err != nil {
			return attendance.Seen{}, errors.Wrap(err, "selecting attendance keys")
		}
		for _, row := range rows {
			table.keys[attendance.NewKey(row.BatchID, row.Day, attendance.Shift(row.Shift))] = struct{}{}
		}
	}
	return out, nil
}

func (s store) InsertAttendances(ctx context.Context, rows []entity.Attendance) (int, error) {
	res, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (scanned_batch_id, scanned_on, shift) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "inserting attendance")
	}
	return affected(res), nil
}

func (s store) InsertUnknown(ctx context.Context, rows []entity.UnknownAttendance) (int, error) {
	res, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (scanned_batch_id, scanned_on, shift) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "inserting unknown attendance")
	}
	return affected(res), nil
}
