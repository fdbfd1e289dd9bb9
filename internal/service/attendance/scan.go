package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/logger"
)

// Scan is one record pushed by a gate device.
type Scan struct {
	ID       int64   `json:"id"`
	BatchID  int64   `json:"batch_id"`
	ScanTime string  `json:"scan_time"`
	CardUID  *string `json:"card_uid"`
}

// ScanEvent is broadcast for every newly recorded scan.
type ScanEvent struct {
	BatchID      int64     `json:"batch_id"`
	EmployeeName string    `json:"employee_name"`
	BusID        *string   `json:"bus_id"`
	Shift        Shift     `json:"shift"`
	ScannedAt    time.Time `json:"scanned_at"`
	Source       string    `json:"source"`
}

type Publisher interface {
	Publish(event ScanEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(ScanEvent) {}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseScanTime reads an ISO-8601 timestamp. Values without a zone are
// taken to be in loc.
func ParseScanTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid scan_time %q", raw)
}

// RecordScans stores live scans and returns the ids the device may forget:
// recorded, already recorded, and scans of people not on the roster.
// Only scans with an unreadable time are left out.
func (p *Processor) RecordScans(ctx context.Context, scans []Scan, source string) ([]int64, error) {
	type accepted struct {
		scan Scan
		c    candidate
	}

	success := []int64{}
	var valid []accepted
	for _, s := range scans {
		at, err := ParseScanTime(s.ScanTime, p.loc)
		if err != nil {
			p.log.WithField("scan_id", s.ID).Warn(err.Error())
			continue
		}
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		shift := DeriveShift(at, p.loc)
		status := StatusPresent
		if shift == ShiftUnknown {
			status = StatusUnknownShift
		}
		valid = append(valid, accepted{scan: s, c: candidate{
			batchID:   s.BatchID,
			day:       day,
			shift:     shift,
			status:    status,
			scannedAt: at,
		}})
	}
	if len(valid) == 0 {
		return success, nil
	}

	var events []ScanEvent
	err := p.uow.Do(ctx, func(ctx context.Context, store Store) error {
		events = nil

		ids := make([]int64, 0, len(valid))
		from, to := valid[0].c.day, valid[0].c.day
		for _, v := range valid {
			ids = append(ids, v.c.batchID)
			if v.c.day.Before(from) {
				from = v.c.day
			}
			if v.c.day.After(to) {
				to = v.c.day
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

		var unknown []entity.UnknownAttendance
		for _, v := range valid {
			key := NewKey(v.c.batchID, v.c.day, v.c.shift)
			emp, ok := employees[v.c.batchID]
			if !ok {
				if _, dup := seen.Unknown[key]; dup {
					continue
				}
				seen.Unknown[key] = struct{}{}
				unknown = append(unknown, unknownRecord(v.c, source))
				continue
			}
			if _, dup := seen.Attendance[key]; dup {
				continue
			}
			seen.Attendance[key] = struct{}{}

			// Inserted one by one so only rows actually stored are published.
			n, err := store.InsertAttendances(ctx, []entity.Attendance{attendanceRecord(emp, v.c, source)})
			if err != nil {
				return errors.Wrap(err, "insert attendance")
			}
			if n == 0 {
				continue
			}
			events = append(events, ScanEvent{
				BatchID:      v.c.batchID,
				EmployeeName: emp.Name,
				BusID:        emp.BusID,
				Shift:        v.c.shift,
				ScannedAt:    v.c.scannedAt,
				Source:       source,
			})
		}

		if len(unknown) > 0 {
			if _, err = store.InsertUnknown(ctx, unknown); err != nil {
				return errors.Wrap(err, "insert unknown attendance")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, v := range valid {
		success = append(success, v.scan.ID)
	}
	for _, e := range events {
		p.pub.Publish(e)
	}

	p.log.WithFields(logger.Fields{
		"received": len(scans),
		"accepted": len(success),
		"recorded": len(events),
		"source":   source,
	}).Info("scans processed")

	return success, nil
}
