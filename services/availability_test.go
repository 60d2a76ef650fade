package services

import (
	"testing"
	"time"

	"fieldbook-server/models"
)

func TestIsPartialFieldFreeOverlapSemantics(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@test.local")
	_, pf := createTestField(t, db, owner.ID, 0)

	day := upcomingDate(2)
	accepted := models.Booking{
		PartialFieldID: pf.ID,
		HolderID:       owner.ID,
		Date:           day,
		StartSeconds:   9 * 3600,
		EndSeconds:     10 * 3600,
		Status:         models.BookingStatusAccepted,
	}
	if err := db.Create(&accepted).Error; err != nil {
		t.Fatalf("seeding booking: %v", err)
	}

	availability := NewAvailabilityService()

	// 09:30-10:30 intersects the 09:00-10:00 booking
	free, err := availability.IsPartialFieldFree(db, pf.ID, day, 9*3600+1800, 10*3600+1800)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if free {
		t.Fatal("expected overlapping window to be busy")
	}

	// 10:00-11:00 only touches the booking's end
	free, err = availability.IsPartialFieldFree(db, pf.ID, day, 10*3600, 11*3600)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if !free {
		t.Fatal("touching endpoints must not count as overlap")
	}
}

func TestIsPartialFieldFreeIgnoresTerminalBookings(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@test.local")
	_, pf := createTestField(t, db, owner.ID, 0)

	day := upcomingDate(2)
	rejected := models.Booking{
		PartialFieldID: pf.ID,
		HolderID:       owner.ID,
		Date:           day,
		StartSeconds:   9 * 3600,
		EndSeconds:     10 * 3600,
		Status:         models.BookingStatusRejected,
	}
	if err := db.Create(&rejected).Error; err != nil {
		t.Fatalf("seeding booking: %v", err)
	}

	availability := NewAvailabilityService()
	free, err := availability.IsPartialFieldFree(db, pf.ID, day, 9*3600, 10*3600)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if !free {
		t.Fatal("rejected bookings must not block the window")
	}
}

func TestIsPartialFieldFreeBlackout(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@test.local")
	field, pf := createTestField(t, db, owner.ID, 0)

	day := upcomingDate(2)
	from, to := day.Add(12*time.Hour), day.Add(14*time.Hour)
	period := models.FieldInactivePeriod{FieldID: field.ID, StartsAt: from, EndsAt: to, Reason: "maintenance"}
	if err := db.Create(&period).Error; err != nil {
		t.Fatalf("seeding inactive period: %v", err)
	}

	availability := NewAvailabilityService()
	free, err := availability.IsPartialFieldFree(db, pf.ID, day, 13*3600, 15*3600)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if free {
		t.Fatal("blackout window must block the booking")
	}

	// soft delete reopens the window
	if err := db.Delete(&period).Error; err != nil {
		t.Fatalf("deleting inactive period: %v", err)
	}
	free, err = availability.IsPartialFieldFree(db, pf.ID, day, 13*3600, 15*3600)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if !free {
		t.Fatal("soft-deleted blackout must not block the booking")
	}
}

func TestIsPartialFieldFreeFixedSlot(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@test.local")
	field, pf := createTestField(t, db, owner.ID, 0)
	if err := db.Model(&field).Update("fixed_slot", true).Error; err != nil {
		t.Fatalf("marking field fixed-slot: %v", err)
	}
	slot := models.FieldTimeSlot{FieldID: field.ID, StartSeconds: 18 * 3600, EndSeconds: 19 * 3600}
	if err := db.Create(&slot).Error; err != nil {
		t.Fatalf("seeding slot: %v", err)
	}

	availability := NewAvailabilityService()
	day := upcomingDate(2)

	free, err := availability.IsPartialFieldFree(db, pf.ID, day, 18*3600, 19*3600)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if !free {
		t.Fatal("exact slot match must be free")
	}

	free, err = availability.IsPartialFieldFree(db, pf.ID, day, 18*3600+900, 19*3600)
	if err != nil {
		t.Fatalf("IsPartialFieldFree: %v", err)
	}
	if free {
		t.Fatal("partial slot must not be bookable on a fixed-slot field")
	}
}

func TestListFreePartialFields(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@test.local")
	field, pfA := createTestField(t, db, owner.ID, 0)
	pfB := models.PartialField{FieldID: field.ID, Name: "Pitch B"}
	if err := db.Create(&pfB).Error; err != nil {
		t.Fatalf("creating partial field: %v", err)
	}

	day := upcomingDate(2)
	// fill pitch A completely
	full := models.Booking{
		PartialFieldID: pfA.ID,
		HolderID:       owner.ID,
		Date:           day,
		StartSeconds:   field.OpenSeconds,
		EndSeconds:     field.CloseSeconds,
		Status:         models.BookingStatusAccepted,
	}
	if err := db.Create(&full).Error; err != nil {
		t.Fatalf("seeding booking: %v", err)
	}

	availability := NewAvailabilityService()
	free, err := availability.ListFreePartialFields(db, field.ID, day, nil, nil, 3600)
	if err != nil {
		t.Fatalf("ListFreePartialFields: %v", err)
	}
	if len(free) != 1 || free[0].PartialField.ID != pfB.ID {
		t.Fatalf("expected only pitch B free, got %+v", free)
	}
}

func TestListFreePartialFieldsFixedSlot(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@test.local")
	field, pf := createTestField(t, db, owner.ID, 0)
	if err := db.Model(&field).Update("fixed_slot", true).Error; err != nil {
		t.Fatalf("marking field fixed-slot: %v", err)
	}
	slots := []models.FieldTimeSlot{
		{FieldID: field.ID, StartSeconds: 9 * 3600, EndSeconds: 10 * 3600},
		{FieldID: field.ID, StartSeconds: 10 * 3600, EndSeconds: 11 * 3600},
		{FieldID: field.ID, StartSeconds: 11 * 3600, EndSeconds: 12 * 3600},
	}
	for i := range slots {
		if err := db.Create(&slots[i]).Error; err != nil {
			t.Fatalf("seeding slot: %v", err)
		}
	}

	day := upcomingDate(2)
	// the 09:00 slot is claimed by a live booking
	claimed := models.Booking{
		PartialFieldID: pf.ID,
		HolderID:       owner.ID,
		Date:           day,
		StartSeconds:   9 * 3600,
		EndSeconds:     10 * 3600,
		Status:         models.BookingStatusAccepted,
	}
	if err := db.Create(&claimed).Error; err != nil {
		t.Fatalf("seeding booking: %v", err)
	}
	// the 11:00 slot sits inside a blackout
	period := models.FieldInactivePeriod{FieldID: field.ID, StartsAt: day.Add(11 * time.Hour), EndsAt: day.Add(12 * time.Hour)}
	if err := db.Create(&period).Error; err != nil {
		t.Fatalf("seeding inactive period: %v", err)
	}

	availability := NewAvailabilityService()
	free, err := availability.ListFreePartialFields(db, field.ID, day, nil, nil, 0)
	if err != nil {
		t.Fatalf("ListFreePartialFields: %v", err)
	}
	if len(free) != 1 || free[0].PartialField.ID != pf.ID {
		t.Fatalf("expected the pitch to be listed, got %+v", free)
	}
	if len(free[0].FreeSlots) != 1 {
		t.Fatalf("expected exactly one free slot, got %+v", free[0].FreeSlots)
	}
	if free[0].FreeSlots[0].StartSeconds != 10*3600 || free[0].FreeSlots[0].EndSeconds != 11*3600 {
		t.Fatalf("expected the 10:00-11:00 slot, got %+v", free[0].FreeSlots[0])
	}
}

func TestHasFreeWindow(t *testing.T) {
	busy := []busyWindow{{start: 9 * 3600, end: 11 * 3600}, {start: 12 * 3600, end: 14 * 3600}}

	if !hasFreeWindow(busy, 8*3600, 22*3600, 3600) {
		t.Fatal("expected a one-hour gap")
	}
	// 11:00-12:00 is exactly one hour between the busy windows
	if !hasFreeWindow(busy, 9*3600, 14*3600, 3600) {
		t.Fatal("expected the exact gap between busy windows to qualify")
	}
	if hasFreeWindow(busy, 9*3600, 14*3600, 3601) {
		t.Fatal("gap shorter than duration must not qualify")
	}
	if hasFreeWindow(nil, 9*3600, 10*3600, 7200) {
		t.Fatal("window shorter than duration must not qualify")
	}
}
