package domain

import "time"

const (
	cetOffset  = time.Hour
	cestOffset = 2 * time.Hour
)

var (
	cet  = time.FixedZone("CET", int(cetOffset.Seconds()))
	cest = time.FixedZone("CEST", int(cestOffset.Seconds()))
)

// LastSunday returns midnight UTC of the last Sunday in the given month.
func LastSunday(year int, month time.Month) time.Time {
	// Day 0 of the next month is the last day of this one.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return last.AddDate(0, 0, -int(last.Weekday()))
}

// SummerTimeWindow returns the UTC instants at which summer time starts
// and ends in the given year.
func SummerTimeWindow(year int) (start, end time.Time) {
	start = LastSunday(year, time.March).Add(time.Hour)
	end = LastSunday(year, time.October).Add(time.Hour)
	return start, end
}

// CentralEuropeanOffset returns +2h inside the summer time window
// (start inclusive, end exclusive) and +1h otherwise.
func CentralEuropeanOffset(utc time.Time) time.Duration {
	utc = utc.UTC()
	start, end := SummerTimeWindow(utc.Year())
	if !utc.Before(start) && utc.Before(end) {
		return cestOffset
	}
	return cetOffset
}

// CentralEuropeanTime converts utc to local civil time.
func CentralEuropeanTime(utc time.Time) time.Time {
	if CentralEuropeanOffset(utc) == cestOffset {
		return utc.In(cest)
	}
	return utc.In(cet)
}

// RTCDateTime is the value written to the persistent clock.
type RTCDateTime struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	Day       int `json:"day"`
	Weekday   int `json:"weekday"` // 1 = Monday … 7 = Sunday
	Hour      int `json:"hour"`
	Minute    int `json:"minute"`
	Second    int `json:"second"`
	Subsecond int `json:"subsecond"`
}

// MondayIndex returns the weekday counted from Monday = 0.
func MondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// ToRTCWeekday shifts a Monday-zero weekday to the clock's Monday-one convention.
func ToRTCWeekday(mondayZero int) int {
	return mondayZero + 1
}

// NewRTCDateTime builds the register value for a local wall time.
func NewRTCDateTime(local time.Time) RTCDateTime {
	return RTCDateTime{
		Year:    local.Year(),
		Month:   int(local.Month()),
		Day:     local.Day(),
		Weekday: ToRTCWeekday(MondayIndex(local.Weekday())),
		Hour:    local.Hour(),
		Minute:  local.Minute(),
		Second:  local.Second(),
	}
}

// UTC interprets the register as Central European civil time. In the
// repeated hour of the autumn change the summer time reading wins.
func (r RTCDateTime) UTC() time.Time {
	wall := r.Time(time.UTC)
	if summer := wall.Add(-cestOffset); CentralEuropeanOffset(summer) == cestOffset {
		return summer
	}
	return wall.Add(-cetOffset)
}

// Time returns the register as a wall time in the given zone.
func (r RTCDateTime) Time(loc *time.Location) time.Time {
	return time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, r.Minute, r.Second, 0, loc)
}
