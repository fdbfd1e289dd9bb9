package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	trailingNote  = regexp.MustCompile(`\s*\(.*\)\s*$`)
	leadingDayTag = regexp.MustCompile(`^[A-Za-z]{3,9}-`)
)

// dateLayouts are tried in order, first match wins.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var timeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"3:04:05PM",
	"15:04",
	"15:04:05",
}

// Excel serial day numbers accepted as dates (1954-10-03 .. 2119-01-08).
const (
	minDateSerial = 20000
	maxDateSerial = 80000
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// On places t on the calendar date of day in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) String() string {
	return time.Date(0, 1, 1, t.Hour, t.Minute, t.Second, 0, time.UTC).Format("15:04:05")
}

// String trims v; empty becomes nil.
func String(v interface{}) *string {
	var text string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		text = x
	case *string:
		if x == nil {
			return nil
		}
		text = *x
	case float64:
		text = strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		text = x.Format(time.RFC3339)
	default:
		if n, ok := integer(v); ok {
			text = strconv.FormatInt(n, 10)
		} else {
			return nil
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

// Int accepts native integers, floats (truncated) and numeric strings.
// Booleans and anything unparseable give nil.
func Int(v interface{}) *int64 {
	switch x := v.(type) {
	case nil, bool:
		return nil
	case float64:
		return truncate(x)
	case float32:
		return truncate(float64(x))
	case string:
		text := strings.TrimSpace(x)
		if text == "" {
			return nil
		}
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &n
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil
		}
		return truncate(f)
	}

	if n, ok := integer(v); ok {
		return &n
	}
	return nil
}

// Date returns the calendar date (UTC midnight) of v. Strings may carry a
// trailing "(Mon)" note or a leading "Tue-" tag.
func Date(v interface{}) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		d := dateOf(x)
		return &d
	case *time.Time:
		if x == nil {
			return nil
		}
		d := dateOf(*x)
		return &d
	case float64:
		return serialDate(x)
	case string:
		return parseDate(x)
	}
	return nil
}

func parseDate(raw string) *time.Time {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	text = trailingNote.ReplaceAllString(text, "")
	text = leadingDayTag.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			d := dateOf(t)
			return &d
		}
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return serialDate(f)
	}
	return nil
}

func serialDate(f float64) *time.Time {
	if f < minDateSerial || f > maxDateSerial {
		return nil
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return nil
	}
	d := dateOf(t)
	return &d
}

// Time parses 12-hour (with meridiem) and 24-hour clock strings, and
// Excel day fractions. A lone "." means no time.
func Time(v interface{}) *TimeOfDay {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return &TimeOfDay{Hour: x.Hour(), Minute: x.Minute(), Second: x.Second()}
	case TimeOfDay:
		return &x
	case float64:
		return fraction(x)
	case string:
		text := strings.TrimSpace(x)
		if text == "" || text == "." {
			return nil
		}
		text = strings.ToUpper(text)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return &TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
			}
		}
		if strings.Contains(text, ".") {
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				return fraction(f)
			}
		}
	}
	return nil
}

func fraction(f float64) *TimeOfDay {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	_, frac := math.Modf(f)
	secs := int(math.Round(frac * 86400))
	if secs >= 86400 {
		secs = 86399
	}
	return &TimeOfDay{Hour: secs / 3600, Minute: secs % 3600 / 60, Second: secs % 60}
}

// ScannedAtFor builds a deterministic timestamp for rows that only carry a
// date: 08:00 for morning, 18:00 for night, noon otherwise.
func ScannedAtFor(day time.Time, shift string, loc *time.Location) time.Time {
	hour := 12
	switch shift {
	case "morning":
		hour = 8
	case "night":
		hour = 18
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, loc)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func truncate(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

func integer(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}
