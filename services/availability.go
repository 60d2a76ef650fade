package services

import (
	"sort"
	"time"

	"fieldbook-server/models"
	"fieldbook-server/utils"

	"gorm.io/gorm"
)

// AvailabilityService answers free/occupied for partial fields by combining
// live bookings, the field's inactive periods and, for fixed-slot fields,
// the slot grid.
type AvailabilityService struct{}

func NewAvailabilityService() *AvailabilityService {
	return &AvailabilityService{}
}

type FreeSlot struct {
	StartSeconds int    `json:"startSeconds"`
	EndSeconds   int    `json:"endSeconds"`
	Display      string `json:"display"`
}

type FreePartialField struct {
	PartialField models.PartialField `json:"partialField"`
	FreeSlots    []FreeSlot          `json:"freeSlots,omitempty"`
}

type busyWindow struct {
	start int
	end   int
}

// DateOnly truncates t to midnight in its own location, matching how
// booking dates are stored.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsPartialFieldFree reports whether [startSeconds,endSeconds) on the given
// date is bookable: no live booking overlaps it, no inactive period of the
// owning field covers any of it and, on fixed-slot fields, it matches one
// slot exactly.
func (as *AvailabilityService) IsPartialFieldFree(tx *gorm.DB, partialFieldID uint, date time.Time, startSeconds, endSeconds int) (bool, error) {
	var pf models.PartialField
	if err := tx.First(&pf, partialFieldID).Error; err != nil {
		return false, utils.NewNotFound("field_not_found", "partial field not found")
	}
	var field models.Field
	if err := tx.Preload("TimeSlots").First(&field, pf.FieldID).Error; err != nil {
		return false, utils.NewNotFound("field_not_found", "field not found")
	}

	day := DateOnly(date)

	if field.FixedSlot && !matchesSlot(field.TimeSlots, startSeconds, endSeconds) {
		return false, nil
	}

	blocked, err := as.inactivePeriodOverlaps(tx, field.ID, day, startSeconds, endSeconds)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	overlapping, err := countLiveOverlaps(tx, pf.ID, day, startSeconds, endSeconds)
	if err != nil {
		return false, err
	}
	return overlapping == 0, nil
}

// ListFreePartialFields returns the field's active partial fields that can
// take a booking on the given date. Flexible fields need a gap of duration
// seconds somewhere inside the opening window (optionally narrowed by
// start/end); fixed-slot fields return the individual free slots.
func (as *AvailabilityService) ListFreePartialFields(tx *gorm.DB, fieldID uint, date time.Time, startSeconds, endSeconds *int, duration int) ([]FreePartialField, error) {
	var field models.Field
	if err := tx.Preload("PartialFields").Preload("TimeSlots").First(&field, fieldID).Error; err != nil {
		return nil, utils.NewNotFound("field_not_found", "field not found")
	}

	day := DateOnly(date)
	windowStart := field.OpenSeconds
	windowEnd := field.CloseSeconds
	if startSeconds != nil && *startSeconds > windowStart {
		windowStart = *startSeconds
	}
	if endSeconds != nil && *endSeconds < windowEnd {
		windowEnd = *endSeconds
	}

	inactive, err := as.inactiveWindowsForDay(tx, field.ID, day)
	if err != nil {
		return nil, err
	}

	free := make([]FreePartialField, 0, len(field.PartialFields))
	for _, pf := range field.PartialFields {
		if pf.IsActive != nil && !*pf.IsActive {
			continue
		}
		var bookings []models.Booking
		if err := tx.Where("partial_field_id = ? AND date = ? AND status IN ?", pf.ID, day, models.BookingLiveStatuses).
			Order("start_seconds ASC").Find(&bookings).Error; err != nil {
			return nil, err
		}

		if field.FixedSlot {
			slots := as.freeFixedSlots(field.TimeSlots, bookings, inactive, windowStart, windowEnd)
			if len(slots) > 0 {
				free = append(free, FreePartialField{PartialField: pf, FreeSlots: slots})
			}
			continue
		}

		busy := make([]busyWindow, 0, len(bookings)+len(inactive))
		for _, b := range bookings {
			busy = append(busy, busyWindow{start: b.StartSeconds, end: b.EndSeconds})
		}
		busy = append(busy, inactive...)
		if hasFreeWindow(busy, windowStart, windowEnd, duration) {
			free = append(free, FreePartialField{PartialField: pf})
		}
	}
	return free, nil
}

// freeFixedSlots keeps slots inside the window whose exact start is
// unclaimed by a live booking and which no inactive period touches.
func (as *AvailabilityService) freeFixedSlots(slots []models.FieldTimeSlot, bookings []models.Booking, inactive []busyWindow, windowStart, windowEnd int) []FreeSlot {
	free := make([]FreeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.StartSeconds < windowStart || slot.EndSeconds > windowEnd {
			continue
		}
		claimed := false
		for _, b := range bookings {
			if b.StartSeconds == slot.StartSeconds {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		blocked := false
		for _, w := range inactive {
			if utils.Overlaps(slot.StartSeconds, slot.EndSeconds, w.start, w.end) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		free = append(free, FreeSlot{
			StartSeconds: slot.StartSeconds,
			EndSeconds:   slot.EndSeconds,
			Display:      utils.FormatDaySeconds(slot.StartSeconds) + " - " + utils.FormatDaySeconds(slot.EndSeconds),
		})
	}
	sort.Slice(free, func(i, j int) bool { return free[i].StartSeconds < free[j].StartSeconds })
	return free
}

func (as *AvailabilityService) inactivePeriodOverlaps(tx *gorm.DB, fieldID uint, day time.Time, startSeconds, endSeconds int) (bool, error) {
	from, to := utils.DaySpan(day, startSeconds, endSeconds)
	var count int64
	if err := tx.Model(&models.FieldInactivePeriod{}).
		Where("field_id = ? AND starts_at < ? AND ends_at > ?", fieldID, to, from).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// inactiveWindowsForDay clips the field's inactive periods to the day and
// converts them to seconds-of-day windows.
func (as *AvailabilityService) inactiveWindowsForDay(tx *gorm.DB, fieldID uint, day time.Time) ([]busyWindow, error) {
	dayStart := day
	dayEnd := day.Add(24 * time.Hour)
	var periods []models.FieldInactivePeriod
	if err := tx.Where("field_id = ? AND starts_at < ? AND ends_at > ?", fieldID, dayEnd, dayStart).
		Find(&periods).Error; err != nil {
		return nil, err
	}
	windows := make([]busyWindow, 0, len(periods))
	for _, p := range periods {
		start := 0
		if p.StartsAt.After(dayStart) {
			start = utils.ToDaySeconds(p.StartsAt)
		}
		end := 24 * 3600
		if p.EndsAt.Before(dayEnd) {
			end = utils.ToDaySeconds(p.EndsAt)
		}
		windows = append(windows, busyWindow{start: start, end: end})
	}
	return windows, nil
}

// hasFreeWindow scans the sorted busy set for a gap of at least duration
// seconds inside [windowStart,windowEnd).
func hasFreeWindow(busy []busyWindow, windowStart, windowEnd, duration int) bool {
	if duration <= 0 || windowEnd-windowStart < duration {
		return false
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start < busy[j].start })

	cursor := windowStart
	for _, w := range busy {
		if w.end <= cursor || w.start >= windowEnd {
			continue
		}
		if w.start-cursor >= duration {
			return true
		}
		if w.end > cursor {
			cursor = w.end
		}
	}
	return windowEnd-cursor >= duration
}

func countLiveOverlaps(tx *gorm.DB, partialFieldID uint, day time.Time, startSeconds, endSeconds int) (int64, error) {
	var count int64
	err := tx.Model(&models.Booking{}).
		Where("partial_field_id = ? AND date = ? AND status IN ? AND start_seconds < ? AND end_seconds > ?",
			partialFieldID, day, models.BookingLiveStatuses, endSeconds, startSeconds).
		Count(&count).Error
	return count, err
}
