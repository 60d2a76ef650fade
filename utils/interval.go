package utils

import (
	"fmt"
	"time"
)

// Interval helpers shared by the booking and opponent-finding overlap checks.
// All predicates use strict open-interval semantics: two windows that only
// touch at an endpoint (10:00-11:00 vs 11:00-12:00) do not overlap.

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// SpansOverlap is Overlaps on absolute datetimes.
func SpansOverlap(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && bFrom.Before(aTo)
}

// ToDaySeconds converts a clock time to seconds since midnight.
func ToDaySeconds(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// FormatDaySeconds renders seconds since midnight as "HH:mm".
func FormatDaySeconds(s int) string {
	return fmt.Sprintf("%02d:%02d", s/3600, (s%3600)/60)
}

// DaySpan resolves a date plus two seconds-of-day offsets into the absolute
// start and end of the window, in the date's location.
func DaySpan(date time.Time, startSeconds, endSeconds int) (time.Time, time.Time) {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(time.Duration(startSeconds) * time.Second),
		midnight.Add(time.Duration(endSeconds) * time.Second)
}
