package utils

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"identical", 3600, 7200, 3600, 7200, true},
		{"contained", 3600, 10800, 5400, 7200, true},
		{"partial overlap", 32400, 36000, 34200, 37800, true},
		{"touching endpoints", 36000, 39600, 39600, 43200, false},
		{"touching endpoints reversed", 39600, 43200, 36000, 39600, false},
		{"disjoint", 3600, 7200, 10800, 14400, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps(%d,%d,%d,%d) = %v, want %v", tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
			// overlap is symmetric
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %s", tc.name)
			}
		})
	}
}

func TestSpansOverlap(t *testing.T) {
	base := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	if SpansOverlap(base, base.Add(time.Hour), base.Add(time.Hour), base.Add(2*time.Hour)) {
		t.Fatal("touching spans must not overlap")
	}
	if !SpansOverlap(base, base.Add(2*time.Hour), base.Add(time.Hour), base.Add(3*time.Hour)) {
		t.Fatal("intersecting spans must overlap")
	}
}

func TestToDaySeconds(t *testing.T) {
	at := time.Date(2030, 5, 1, 14, 30, 15, 0, time.UTC)
	if got := ToDaySeconds(at); got != 14*3600+30*60+15 {
		t.Fatalf("ToDaySeconds = %d", got)
	}
}

func TestFormatDaySeconds(t *testing.T) {
	if got := FormatDaySeconds(9*3600 + 5*60); got != "09:05" {
		t.Fatalf("FormatDaySeconds = %q", got)
	}
	if got := FormatDaySeconds(0); got != "00:00" {
		t.Fatalf("FormatDaySeconds(0) = %q", got)
	}
}

func TestDaySpan(t *testing.T) {
	day := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	from, to := DaySpan(day, 9*3600, 11*3600)
	if from.Hour() != 9 || to.Hour() != 11 {
		t.Fatalf("DaySpan = %v, %v", from, to)
	}
	if !from.Before(to) {
		t.Fatal("DaySpan start must precede end")
	}
}
