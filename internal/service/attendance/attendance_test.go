package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/coerce"
)

var myt = time.FixedZone("MYT", 8*3600)

type memStore struct {
	employees map[int64]entity.Employee
	records   []entity.Attendance
	unknown   []entity.UnknownAttendance
	// raced keys are rejected on insert as if another request won.
	raced  map[Key]struct{}
	failOn string
}

func newMemStore() *memStore {
	busA := "A07"
	return &memStore{
		employees: map[int64]entity.Employee{
			1001: {BasicEntity: entity.BasicEntity{ID: 1}, BatchID: 1001, Name: "Ali", BusID: &busA, Active: true},
			1002: {BasicEntity: entity.BasicEntity{ID: 2}, BatchID: 1002, Name: "Siti", BusID: &busA, Active: true},
		},
		raced: map[Key]struct{}{},
	}
}

func (m *memStore) Do(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	records, unknown := len(m.records), len(m.unknown)
	if err := fn(ctx, m); err != nil {
		m.records, m.unknown = m.records[:records], m.unknown[:unknown]
		return err
	}
	return nil
}

func (m *memStore) EmployeesByBatchID(_ context.Context, ids []int64) (map[int64]entity.Employee, error) {
	out := map[int64]entity.Employee{}
	for _, id := range ids {
		if e, ok := m.employees[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (m *memStore) ExistingKeys(_ context.Context, ids []int64, from, to time.Time) (Seen, error) {
	out := NewSeen()
	collect := func(keys map[Key]struct{}, batchID int64, day time.Time, shift string) {
		if day.Before(from) || day.After(to) {
			return
		}
		for _, id := range ids {
			if batchID == id {
				keys[NewKey(id, day, Shift(shift))] = struct{}{}
			}
		}
	}
	for _, r := range m.records {
		collect(out.Attendance, r.ScannedBatchID, r.ScannedOn, r.Shift)
	}
	for _, r := range m.unknown {
		collect(out.Unknown, r.ScannedBatchID, r.ScannedOn, r.Shift)
	}
	return out, nil
}

func (m *memStore) InsertAttendances(_ context.Context, rows []entity.Attendance) (int, error) {
	if m.failOn == "attendance" {
		return 0, errors.New("insert failed")
	}
	n := 0
	for _, r := range rows {
		if _, ok := m.raced[NewKey(r.ScannedBatchID, r.ScannedOn, Shift(r.Shift))]; ok {
			continue
		}
		m.records = append(m.records, r)
		n++
	}
	return n, nil
}

func (m *memStore) InsertUnknown(_ context.Context, rows []entity.UnknownAttendance) (int, error) {
	m.unknown = append(m.unknown, rows...)
	return len(rows), nil
}

type recorder struct {
	events []ScanEvent
}

func (r *recorder) Publish(e ScanEvent) { r.events = append(r.events, e) }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func id(v int64) *int64 { return &v }

func str(v string) *string { return &v }

func TestDeriveShift(t *testing.T) {
	tests := []struct {
		clock string
		want  Shift
	}{
		{clock: "03:59:59", want: ShiftUnknown},
		{clock: "04:00:00", want: ShiftMorning},
		{clock: "05:30:00", want: ShiftMorning},
		{clock: "10:00:00", want: ShiftMorning},
		{clock: "10:00:01", want: ShiftUnknown},
		{clock: "16:00:00", want: ShiftNight},
		{clock: "21:00:00", want: ShiftNight},
		{clock: "22:00:00", want: ShiftUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			at, err := time.ParseInLocation("2006-01-02 15:04:05", "2026-01-12 "+tt.clock, myt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, DeriveShift(at, myt))
		})
	}

	utc := time.Date(2026, 1, 11, 21, 30, 0, 0, time.UTC)
	assert.Equal(t, ShiftMorning, DeriveShift(utc, myt), "05:30 local")
}

func TestParseShift(t *testing.T) {
	s, err := ParseShift("")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = ParseShift(" Night ")
	require.NoError(t, err)
	assert.Equal(t, ShiftNight, *s)

	_, err = ParseShift("evening")
	assert.ErrorIs(t, err, ErrInvalidShift)
}

func TestDayType(t *testing.T) {
	assert.Equal(t, DayTypeRegular, NormalizeDayType(nil))
	assert.Equal(t, DayTypeRegular, NormalizeDayType(str("  ")))
	assert.Equal(t, "offday", NormalizeDayType(str(" OffDay ")))
	assert.True(t, IsOffDay("offday"))
	assert.True(t, IsOffDay("rest day"))
	assert.False(t, IsOffDay(DayTypeRegular))
}

func TestProcess(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, myt, logger.Discard(), nil)

	rows := []Row{
		{Number: 2, PersonID: id(1001), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 5, Minute: 30}},
		{Number: 3, PersonID: id(1001), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 6}},
		{Number: 4, PersonID: id(1002), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 22}},
		{Number: 5, PersonID: id(1002), Date: date(2026, 1, 13), DayType: str("Offday")},
		{Number: 6, PersonID: id(1002), Date: date(2026, 1, 14)},
		{Number: 7, PersonID: id(1001)},
		{Number: 8, Date: date(2026, 1, 12)},
		{Number: 9, PersonID: id(9999), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 17}, Route: str("Route B02")},
	}

	out, err := p.Process(context.Background(), rows, nil, "upload")
	require.NoError(t, err)

	assert.Equal(t, 8, out.ProcessedRows)
	assert.Equal(t, 3, out.Inserted)
	assert.Equal(t, 1, out.Duplicates)
	assert.Equal(t, 1, out.OffdayRows)
	assert.Equal(t, 1, out.SkippedNoTimeIn)
	assert.Equal(t, 1, out.SkippedMissingDate)
	assert.Equal(t, []int64{9999}, out.UnknownPersonIDs)
	assert.Equal(t, 1, out.UnknownRecorded)
	require.Len(t, out.RowErrors, 1)
	assert.Equal(t, 8, out.RowErrors[0].RowNumber)

	require.Len(t, store.records, 3)
	assert.Equal(t, string(ShiftMorning), store.records[0].Shift)
	assert.Equal(t, StatusPresent, store.records[0].Status)
	assert.Equal(t, "A07", *store.records[0].BusID)
	assert.Equal(t, StatusUnknownShift, store.records[1].Status)
	assert.Equal(t, StatusOffday, store.records[2].Status)
	assert.Equal(t, 12, store.records[2].ScannedAt.Hour())

	require.Len(t, store.unknown, 1)
	assert.Equal(t, "B02", *store.unknown[0].BusID)
	assert.Equal(t, string(ShiftNight), store.unknown[0].Shift)
}

func TestProcessDeduplicatesAcrossUploads(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, myt, logger.Discard(), nil)
	rows := []Row{{Number: 2, PersonID: id(1001), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 5, Minute: 30}}}

	_, err := p.Process(context.Background(), rows, nil, "upload")
	require.NoError(t, err)

	out, err := p.Process(context.Background(), rows, nil, "upload")
	require.NoError(t, err)
	assert.Zero(t, out.Inserted)
	assert.Equal(t, 1, out.Duplicates)
	assert.Len(t, store.records, 1)
}

func TestProcessRaceCountsAsDuplicate(t *testing.T) {
	store := newMemStore()
	store.raced[NewKey(1001, *date(2026, 1, 12), ShiftMorning)] = struct{}{}
	p := NewProcessor(store, myt, logger.Discard(), nil)

	out, err := p.Process(context.Background(), []Row{
		{Number: 2, PersonID: id(1001), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 7}},
	}, nil, "upload")
	require.NoError(t, err)
	assert.Zero(t, out.Inserted)
	assert.Equal(t, 1, out.Duplicates)
}

func TestProcessOverride(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, myt, logger.Discard(), nil)
	night, err := ParseShift("night")
	require.NoError(t, err)

	out, err := p.Process(context.Background(), []Row{
		{Number: 2, PersonID: id(1001), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 5, Minute: 30}},
		{Number: 3, PersonID: id(1002), Date: date(2026, 1, 12)},
	}, night, "upload")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Inserted)
	assert.Zero(t, out.SkippedNoTimeIn)

	assert.Equal(t, string(ShiftNight), store.records[0].Shift)
	assert.Equal(t, 5, store.records[0].ScannedAt.Hour())
	assert.Equal(t, 18, store.records[1].ScannedAt.Hour())
}

func TestProcessRollsBack(t *testing.T) {
	store := newMemStore()
	store.failOn = "attendance"
	p := NewProcessor(store, myt, logger.Discard(), nil)

	out, err := p.Process(context.Background(), []Row{
		{Number: 2, PersonID: id(9999), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 5}},
		{Number: 3, PersonID: id(1001), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 5}},
	}, nil, "upload")
	require.Error(t, err)
	assert.Equal(t, Outcome{}, out)
	assert.Empty(t, store.records)
	assert.Empty(t, store.unknown)
}

func TestRecordScans(t *testing.T) {
	store := newMemStore()
	pub := &recorder{}
	p := NewProcessor(store, myt, logger.Discard(), pub)

	scans := []Scan{
		{ID: 1, BatchID: 1001, ScanTime: "2026-01-12T05:30:00+08:00"},
		{ID: 2, BatchID: 1001, ScanTime: "2026-01-12T06:10:00"},
		{ID: 3, BatchID: 4242, ScanTime: "2026-01-12T06:10:00"},
		{ID: 4, BatchID: 1002, ScanTime: "yesterday"},
		{ID: 5, BatchID: 1002, ScanTime: "2026-01-11T13:00:00Z"},
	}

	ids, err := p.RecordScans(context.Background(), scans, "ENTRY_GATE")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 5}, ids)

	require.Len(t, store.records, 2)
	assert.Equal(t, string(ShiftMorning), store.records[0].Shift)
	assert.Equal(t, string(ShiftNight), store.records[1].Shift, "21:00 local")
	assert.Equal(t, "2026-01-11", store.records[1].ScannedOn.Format("2006-01-02"))
	assert.Equal(t, "ENTRY_GATE", *store.records[0].Source)
	require.Len(t, store.unknown, 1)

	require.Len(t, pub.events, 2)
	assert.Equal(t, "Ali", pub.events[0].EmployeeName)

	ids, err = p.RecordScans(context.Background(), scans[:1], "ENTRY_GATE")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids, "duplicates are still acknowledged")
	assert.Len(t, store.records, 2)
	assert.Len(t, pub.events, 2)
}

func TestProcessAfterMasterImport(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, myt, logger.Discard(), nil)
	rows := []Row{{Number: 2, PersonID: id(3003), Date: date(2026, 1, 12), TimeIn: &coerce.TimeOfDay{Hour: 5, Minute: 30}}}

	out, err := p.Process(context.Background(), rows, nil, "upload")
	require.NoError(t, err)
	assert.Equal(t, []int64{3003}, out.UnknownPersonIDs)
	assert.Equal(t, 1, out.UnknownRecorded)

	out, err = p.Process(context.Background(), rows, nil, "upload")
	require.NoError(t, err)
	assert.Equal(t, []int64{3003}, out.UnknownPersonIDs, "still unknown on re-upload")
	assert.Zero(t, out.Duplicates)
	assert.Zero(t, out.UnknownRecorded)
	assert.Len(t, store.unknown, 1)

	bus := "A07"
	store.employees[3003] = entity.Employee{BasicEntity: entity.BasicEntity{ID: 3}, BatchID: 3003, Name: "Ravi", BusID: &bus, Active: true}

	out, err = p.Process(context.Background(), rows, nil, "upload")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Inserted)
	assert.Zero(t, out.Duplicates)
	assert.Empty(t, out.UnknownPersonIDs)
	require.Len(t, store.records, 1)
	assert.Equal(t, int64(3), *store.records[0].EmployeeID)
}

func TestRecordScansAfterMasterImport(t *testing.T) {
	store := newMemStore()
	pub := &recorder{}
	p := NewProcessor(store, myt, logger.Discard(), pub)
	scans := []Scan{{ID: 7, BatchID: 3003, ScanTime: "2026-01-12T06:00:00"}}

	ids, err := p.RecordScans(context.Background(), scans, "ENTRY_GATE")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	require.Len(t, store.unknown, 1)
	assert.Empty(t, pub.events)

	ids, err = p.RecordScans(context.Background(), scans, "ENTRY_GATE")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	assert.Len(t, store.unknown, 1)

	bus := "A07"
	store.employees[3003] = entity.Employee{BasicEntity: entity.BasicEntity{ID: 3}, BatchID: 3003, Name: "Ravi", BusID: &bus, Active: true}

	ids, err = p.RecordScans(context.Background(), scans, "ENTRY_GATE")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	require.Len(t, store.records, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "Ravi", pub.events[0].EmployeeName)
}

func TestRecordScansPublishesOnlyStoredRows(t *testing.T) {
	store := newMemStore()
	store.raced[NewKey(1001, *date(2026, 1, 12), ShiftMorning)] = struct{}{}
	pub := &recorder{}
	p := NewProcessor(store, myt, logger.Discard(), pub)

	ids, err := p.RecordScans(context.Background(), []Scan{
		{ID: 1, BatchID: 1001, ScanTime: "2026-01-12T05:30:00"},
		{ID: 2, BatchID: 1002, ScanTime: "2026-01-12T05:40:00"},
	}, "ENTRY_GATE")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	require.Len(t, store.records, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "Siti", pub.events[0].EmployeeName)
}

func TestParseScanTime(t *testing.T) {
	at, err := ParseScanTime("2026-01-12T05:30:00", myt)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 12, 5, 30, 0, 0, myt), at)

	at, err = ParseScanTime("2026-01-11T21:30:00Z", myt)
	require.NoError(t, err)
	assert.Equal(t, 5, at.Hour())

	_, err = ParseScanTime("12 Jan", myt)
	assert.Error(t, err)
}
