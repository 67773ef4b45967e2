package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a closed enumeration of the seven days, Monday first.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// AllWeekdays lists the enumeration in iteration order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday accepts full names or three-letter abbreviations, case-insensitive.
func ParseWeekday(raw string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return 0, fmt.Errorf("weekday is empty")
	}
	for idx := 1; idx < len(weekdayNames); idx++ {
		full := strings.ToLower(weekdayNames[idx])
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return Weekday(idx), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// Valid reports whether the value is one of the seven variants.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Value stores the weekday by name.
func (d Weekday) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return d.String(), nil
}

// Scan reads a weekday name column.
func (d *Weekday) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Weekday", src)
	}
	parsed, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a minute-of-day value in [0, 1440].
type Clock int

const minutesPerDay = 24 * 60

// ParseClock validates "HH:MM" or "HH:MM:SS".
func ParseClock(raw string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q, expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		if seconds, err := strconv.Atoi(parts[2]); err != nil || seconds != 0 {
			return 0, fmt.Errorf("seconds are not supported in %q", raw)
		}
	}
	value := hours*60 + minutes
	if value > minutesPerDay {
		return 0, fmt.Errorf("clock %q exceeds 24:00", raw)
	}
	return Clock(value), nil
}

// MustClock panics on invalid input; intended for constants and fixtures.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Value stores the clock as a postgres TIME literal.
func (c Clock) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Scan accepts TIME columns returned as text or time.Time.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseClock(v)
		if err != nil {
			return err
		}
		*c = parsed
	case []byte:
		parsed, err := ParseClock(string(v))
		if err != nil {
			return err
		}
		*c = parsed
	case time.Time:
		*c = Clock(v.Hour()*60 + v.Minute())
	default:
		return fmt.Errorf("cannot scan %T into Clock", src)
	}
	return nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is a half-open interval [Start, End) within one day.
type TimeRange struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Minutes returns the range length.
func (r TimeRange) Minutes() int {
	return int(r.End - r.Start)
}

// Overlaps reports s1 < e2 && e1 > s2.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && r.End > other.Start
}

// Touches reports whether the ranges share a boundary without overlapping.
func (r TimeRange) Touches(other TimeRange) bool {
	return r.End == other.Start || other.End == r.Start
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}
