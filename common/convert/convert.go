package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	errInvalidDate = errors.New("invalid date")
	errInvalidTime = errors.New("invalid time")
)

// dateLayouts are the accepted textual date formats for ParseDate
var dateLayouts = []string{"20060102", "2006-01-02", "2006/01/02"}

// Int64FromString format
func Int64FromString(raw any) (int64, error) {
	str, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("unable to parse, value not string: %T", raw)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse as int64: %q", str)
	}
	return n, nil
}

// DateTimeToTime converts a YYYYMMDD date and HHMMSSmmm time pair into a UTC time
func DateTimeToTime(date, tm int) time.Time {
	return time.Date(
		date/10000, time.Month(date/100%100), date%100,
		tm/10000000, tm/100000%100, tm/1000%100,
		tm%1000*int(time.Millisecond), time.UTC)
}

// TimeToDateTime splits a time into YYYYMMDD date and HHMMSSmmm time integers
func TimeToDateTime(t time.Time) (date, tm int) {
	t = t.UTC()
	date = t.Year()*10000 + int(t.Month())*100 + t.Day()
	tm = t.Hour()*10000000 + t.Minute()*100000 + t.Second()*1000 + t.Nanosecond()/int(time.Millisecond)
	return date, tm
}

// DateTimeKey returns a sortable integer for a date and time pair
func DateTimeKey(date, tm int) int64 {
	return int64(date)*1000000000 + int64(tm)
}

// TimeToKey returns the sortable DateTimeKey for a time
func TimeToKey(t time.Time) int64 {
	return DateTimeKey(TimeToDateTime(t))
}

// ValidDate checks a YYYYMMDD integer represents a calendar date
func ValidDate(date int) error {
	if date < 10000101 || date > 99991231 {
		return fmt.Errorf("%w: %d", errInvalidDate, date)
	}
	t := DateTimeToTime(date, 0)
	if d, _ := TimeToDateTime(t); d != date {
		return fmt.Errorf("%w: %d", errInvalidDate, date)
	}
	return nil
}

// ValidTime checks a HHMMSSmmm integer represents a time of day
func ValidTime(tm int) error {
	if tm < 0 || tm/10000000 > 23 || tm/100000%100 > 59 || tm/1000%100 > 59 {
		return fmt.Errorf("%w: %d", errInvalidTime, tm)
	}
	return nil
}

// ParseDate parses a textual date into a YYYYMMDD integer
func ParseDate(s string) (int, error) {
	s = strings.TrimSpace(s)
	for i := range dateLayouts {
		t, err := time.Parse(dateLayouts[i], s)
		if err != nil {
			continue
		}
		date, _ := TimeToDateTime(t)
		return date, nil
	}
	return 0, fmt.Errorf("%w: %q", errInvalidDate, s)
}
