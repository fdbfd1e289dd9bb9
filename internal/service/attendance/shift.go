package attendance

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftNight   Shift = "night"
	ShiftUnknown Shift = "unknown"
)

const (
	StatusPresent      = "present"
	StatusOffday       = "offday"
	StatusUnknownShift = "unknown_shift"
	StatusUnknownBatch = "unknown_batch"
)

const DayTypeRegular = "regular"

var ErrInvalidShift = errors.New("shift must be one of morning, night, unknown")

// Shift windows, inclusive, in seconds since local midnight.
const (
	morningFrom = 4 * 3600
	morningTo   = 10 * 3600
	nightFrom   = 16 * 3600
	nightTo     = 21 * 3600
)

// ParseShift parses an operator override. An empty value means the shift
// is derived per row and nil is returned.
func ParseShift(raw string) (*Shift, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return nil, nil
	}

	shift := Shift(value)
	switch shift {
	case ShiftMorning, ShiftNight, ShiftUnknown:
		return &shift, nil
	}
	return nil, ErrInvalidShift
}

// DeriveShift buckets t by its time of day in loc.
func DeriveShift(t time.Time, loc *time.Location) Shift {
	local := t.In(loc)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()

	switch {
	case sec >= morningFrom && sec <= morningTo:
		return ShiftMorning
	case sec >= nightFrom && sec <= nightTo:
		return ShiftNight
	}
	return ShiftUnknown
}

func NormalizeDayType(raw *string) string {
	if raw == nil {
		return DayTypeRegular
	}
	v := strings.ToLower(strings.TrimSpace(*raw))
	if v == "" {
		return DayTypeRegular
	}
	return v
}

func IsOffDay(dayType string) bool {
	switch strings.ReplaceAll(strings.ReplaceAll(dayType, " ", ""), "-", "") {
	case "offday", "restday":
		return true
	}
	return false
}

// Key is the natural key of an attendance record.
type Key struct {
	BatchID int64
	Date    string
	Shift   Shift
}

func NewKey(batchID int64, day time.Time, shift Shift) Key {
	return Key{BatchID: batchID, Date: day.Format("2006-01-02"), Shift: shift}
}
