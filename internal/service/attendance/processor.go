package attendance

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/canonical"
	"busoptimizer/backend/internal/service/coerce"
	"busoptimizer/backend/internal/service/sheet"
)

// Store is the persistence used while recording attendance. Inserts skip
// rows whose natural key already exists and return how many were written.
type Store interface {
	EmployeesByBatchID(ctx context.Context, batchIDs []int64) (map[int64]entity.Employee, error)
	ExistingKeys(ctx context.Context, batchIDs []int64, from, to time.Time) (Seen, error)
	InsertAttendances(ctx context.Context, rows []entity.Attendance) (int, error)
	InsertUnknown(ctx context.Context, rows []entity.UnknownAttendance) (int, error)
}

// Seen holds the natural keys already stored, per table. Whether a row is
// checked against Attendance or Unknown depends on the employee lookup.
type Seen struct {
	Attendance map[Key]struct{}
	Unknown    map[Key]struct{}
}

func NewSeen() Seen {
	return Seen{Attendance: map[Key]struct{}{}, Unknown: map[Key]struct{}{}}
}

type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Row is one normalised attendance-file row.
type Row struct {
	Number   int
	PersonID *int64
	Date     *time.Time
	TimeIn   *coerce.TimeOfDay
	DayType  *string
	Route    *string
}

type Outcome struct {
	ProcessedRows      int              `json:"processed_rows"`
	Inserted           int              `json:"attendance_inserted"`
	Duplicates         int              `json:"duplicates_ignored"`
	UnknownPersonIDs   []int64          `json:"unknown_personids"`
	UnknownRecorded    int              `json:"unknown_recorded"`
	OffdayRows         int              `json:"offday_rows"`
	SkippedNoTimeIn    int              `json:"skipped_no_timein"`
	SkippedMissingDate int              `json:"skipped_missing_date"`
	RowErrors          []sheet.RowError `json:"row_errors"`
}

type Processor struct {
	uow UnitOfWork
	loc *time.Location
	log logger.Logger
	pub Publisher
}

func NewProcessor(uow UnitOfWork, loc *time.Location, log logger.Logger, pub Publisher) *Processor {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Processor{uow: uow, loc: loc, log: log.WithComponent("attendance"), pub: pub}
}

type candidate struct {
	row       int
	batchID   int64
	day       time.Time
	shift     Shift
	status    string
	scannedAt time.Time
	route     *string
}

// Process records a batch of attendance-file rows. override, when set,
// replaces shift derivation for every row.
func (p *Processor) Process(ctx context.Context, rows []Row, override *Shift, source string) (Outcome, error) {
	out := Outcome{UnknownPersonIDs: []int64{}, RowErrors: []sheet.RowError{}}

	var candidates []candidate
	for _, row := range rows {
		out.ProcessedRows++

		if row.PersonID == nil {
			out.RowErrors = append(out.RowErrors, sheet.RowError{RowNumber: row.Number, Message: "missing PersonId"})
			continue
		}
		if row.Date == nil {
			out.SkippedMissingDate++
			continue
		}

		c := candidate{row: row.Number, batchID: *row.PersonID, day: *row.Date, route: row.Route}

		switch {
		case IsOffDay(NormalizeDayType(row.DayType)):
			c.shift = ShiftUnknown
			if override != nil {
				c.shift = *override
			}
			c.status = StatusOffday
			c.scannedAt = coerce.ScannedAtFor(c.day, string(c.shift), p.loc)
			out.OffdayRows++
		case override != nil:
			c.shift = *override
			c.status = StatusPresent
			if row.TimeIn != nil {
				c.scannedAt = row.TimeIn.On(c.day, p.loc)
			} else {
				c.scannedAt = coerce.ScannedAtFor(c.day, string(c.shift), p.loc)
			}
		case row.TimeIn == nil:
			out.SkippedNoTimeIn++
			continue
		default:
			c.scannedAt = row.TimeIn.On(c.day, p.loc)
			c.shift = DeriveShift(c.scannedAt, p.loc)
			c.status = StatusPresent
			if c.shift == ShiftUnknown {
				c.status = StatusUnknownShift
			}
		}

		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return out, nil
	}

	err := p.uow.Do(ctx, func(ctx context.Context, store Store) error {
		res := out
		if err := p.record(ctx, store, candidates, source, &res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	p.log.WithFields(logger.Fields{
		"rows":       out.ProcessedRows,
		"inserted":   out.Inserted,
		"duplicates": out.Duplicates,
		"unknown":    len(out.UnknownPersonIDs),
		"source":     source,
	}).Info("attendance batch recorded")

	return out, nil
}

func (p *Processor) record(ctx context.Context, store Store, candidates []candidate, source string, out *Outcome) error {
	ids := make([]int64, 0, len(candidates))
	from, to := candidates[0].day, candidates[0].day
	for _, c := range candidates {
		ids = append(ids, c.batchID)
		if c.day.Before(from) {
			from = c.day
		}
		if c.day.After(to) {
			to = c.day
		}
	}
	ids = uniqueIDs(ids)

	employees, err := store.EmployeesByBatchID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "fetch employees")
	}
	seen, err := store.ExistingKeys(ctx, ids, from, to)
	if err != nil {
		return errors.Wrap(err, "fetch existing attendance")
	}

	var (
		records []entity.Attendance
		unknown []entity.UnknownAttendance
		missing = map[int64]struct{}{}
	)
	for _, c := range candidates {
		key := NewKey(c.batchID, c.day, c.shift)
		emp, ok := employees[c.batchID]
		if !ok {
			if _, reported := missing[c.batchID]; !reported {
				missing[c.batchID] = struct{}{}
				out.UnknownPersonIDs = append(out.UnknownPersonIDs, c.batchID)
			}
			if _, dup := seen.Unknown[key]; dup {
				continue
			}
			seen.Unknown[key] = struct{}{}
			unknown = append(unknown, unknownRecord(c, source))
			continue
		}

		if _, dup := seen.Attendance[key]; dup {
			out.Duplicates++
			continue
		}
		seen.Attendance[key] = struct{}{}
		records = append(records, attendanceRecord(emp, c, source))
	}

	if len(records) > 0 {
		n, err := store.InsertAttendances(ctx, records)
		if err != nil {
			return errors.Wrap(err, "insert attendance")
		}
		out.Inserted = n
		out.Duplicates += len(records) - n
	}
	if len(unknown) > 0 {
		n, err := store.InsertUnknown(ctx, unknown)
		if err != nil {
			return errors.Wrap(err, "insert unknown attendance")
		}
		out.UnknownRecorded = n
	}
	return nil
}

func attendanceRecord(emp entity.Employee, c candidate, source string) entity.Attendance {
	rec := entity.Attendance{
		ScannedBatchID: c.batchID,
		EmployeeID:     &emp.ID,
		BusID:          emp.BusID,
		VanID:          emp.VanID,
		Shift:          string(c.shift),
		Status:         c.status,
		ScannedAt:      c.scannedAt,
		ScannedOn:      c.day,
	}
	if source != "" {
		rec.Source = &source
	}
	return rec
}

func unknownRecord(c candidate, source string) entity.UnknownAttendance {
	rec := entity.UnknownAttendance{
		ScannedBatchID: c.batchID,
		RouteRaw:       c.route,
		Shift:          string(c.shift),
		ScannedAt:      c.scannedAt,
		ScannedOn:      c.day,
	}
	if c.route != nil {
		if code, ok := canonical.BusCode(*c.route); ok {
			rec.BusID = &code
		}
	}
	if source != "" {
		rec.Source = &source
	}
	return rec
}

func uniqueIDs(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if len(out) == 0 || out[len(out)-1] != id {
			out = append(out, id)
		}
	}
	return out
}
