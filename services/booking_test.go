package services

import (
	"testing"
	"time"

	"fieldbook-server/models"
	"fieldbook-server/utils"

	"gorm.io/gorm"
)

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	appErr, ok := utils.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError %s, got %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

func TestCreateBookingNoDoubleBooking(t *testing.T) {
	db := newTestDB(t)
	setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	playerA := createTestUser(t, db, "a@test.local")
	playerB := createTestUser(t, db, "b@test.local")
	_, pf := createTestField(t, db, owner.ID, 0)

	day := upcomingDate(2)
	bookingService := NewBookingService()

	first, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: playerA.ID, Date: day,
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if first.Status != models.BookingStatusWaiting {
		t.Fatalf("expected waiting, got %s", first.Status)
	}

	// 09:30-10:30 intersects the live 09:00-10:00 request
	_, err = bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: playerB.ID, Date: day,
		StartSeconds: 9*3600 + 1800, EndSeconds: 10*3600 + 1800,
	})
	assertAppErrorCode(t, err, "time_overlap")

	// 10:00-11:00 only touches it
	second, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: playerB.ID, Date: day,
		StartSeconds: 10 * 3600, EndSeconds: 11 * 3600,
	})
	if err != nil {
		t.Fatalf("touching booking: %v", err)
	}
	if second.Status != models.BookingStatusWaiting {
		t.Fatalf("expected waiting, got %s", second.Status)
	}
}

func TestCreateBookingDepositHold(t *testing.T) {
	db := newTestDB(t)
	platform := setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	player := createTestUser(t, db, "player@test.local")
	_, pf := createTestField(t, db, owner.ID, 100)

	day := upcomingDate(2)
	bookingService := NewBookingService()

	_, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: player.ID, Date: day,
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	assertAppErrorCode(t, err, "insufficient_balance")

	fundUser(t, db, platform.ID, player.ID, 150)

	booking, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: player.ID, Date: day,
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	if err != nil {
		t.Fatalf("funded booking: %v", err)
	}
	if booking.Price != 100 {
		t.Fatalf("expected price 100, got %f", booking.Price)
	}

	var hold models.LedgerTransaction
	if err := db.Where("kind = ? AND payer_id = ?", models.LedgerKindBookingHold, player.ID).
		First(&hold).Error; err != nil {
		t.Fatalf("expected a hold transaction: %v", err)
	}
	if hold.PayeeID != platform.ID || hold.Amount != 100 {
		t.Fatalf("unexpected hold: %+v", hold)
	}

	balance, err := bookingService.Ledger.AvailableBalance(db, player.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 50 {
		t.Fatalf("expected balance 50 after hold, got %f", balance)
	}
}

func TestOwnerBookingAutoAccepted(t *testing.T) {
	db := newTestDB(t)
	setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	_, pf := createTestField(t, db, owner.ID, 100)

	bookingService := NewBookingService()
	booking, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: owner.ID, Date: upcomingDate(2),
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	if err != nil {
		t.Fatalf("owner booking: %v", err)
	}
	if booking.Status != models.BookingStatusAccepted || booking.Price != 0 {
		t.Fatalf("owner booking must be accepted with no hold, got %+v", booking)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	db := newTestDB(t)
	setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	_, pf := createTestField(t, db, owner.ID, 0)

	bookingService := NewBookingService()
	day := upcomingDate(2)

	_, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: owner.ID, Date: day,
		StartSeconds: 10 * 3600, EndSeconds: 10 * 3600,
	})
	assertAppErrorCode(t, err, "invalid_interval")

	// 06:00-07:00 is before the field opens at 08:00
	_, err = bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: owner.ID, Date: day,
		StartSeconds: 6 * 3600, EndSeconds: 7 * 3600,
	})
	assertAppErrorCode(t, err, "invalid_interval")

	_, err = bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: owner.ID, Date: upcomingDate(-2),
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	assertAppErrorCode(t, err, "in_past")

	_, err = bookingService.Create(db, CreateBookingInput{
		PartialFieldID: 9999, HolderID: owner.ID, Date: day,
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	assertAppErrorCode(t, err, "field_not_found")
}

func TestTransitionIllegal(t *testing.T) {
	db := newTestDB(t)
	setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	_, pf := createTestField(t, db, owner.ID, 0)

	booking := models.Booking{
		PartialFieldID: pf.ID, HolderID: owner.ID, Date: upcomingDate(2),
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600, Status: models.BookingStatusWaiting,
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("seeding booking: %v", err)
	}

	bookingService := NewBookingService()

	// repeating the current status is illegal, not idempotent
	_, err := bookingService.Transition(db, booking.ID, models.BookingStatusWaiting, owner.ID)
	assertAppErrorCode(t, err, "illegal_transition")

	_, err = bookingService.Transition(db, booking.ID, "nonsense", owner.ID)
	assertAppErrorCode(t, err, "illegal_transition")

	if _, err := bookingService.Transition(db, booking.ID, models.BookingStatusRejected, owner.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// rejected is terminal
	_, err = bookingService.Transition(db, booking.ID, models.BookingStatusAccepted, owner.ID)
	assertAppErrorCode(t, err, "illegal_transition")
}

// seedWaitingBooking writes a waiting booking and its hold directly,
// sidestepping the creation guard so cascade behavior can be exercised.
func seedWaitingBooking(t *testing.T, db *gorm.DB, pfID, holderID, platformID uint, day time.Time, price float64, start, end int) models.Booking {
	t.Helper()
	booking := models.Booking{
		PartialFieldID: pfID,
		HolderID:       holderID,
		Date:           day,
		StartSeconds:   start,
		EndSeconds:     end,
		Status:         models.BookingStatusWaiting,
		Price:          price,
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("seeding booking: %v", err)
	}
	if booking.Price > 0 {
		ledger := NewLedgerService()
		if _, err := ledger.RecordTransaction(db, models.LedgerKindBookingHold, booking.Price, holderID, platformID, "seed hold"); err != nil {
			t.Fatalf("seeding hold: %v", err)
		}
	}
	return booking
}

func TestAcceptCascadeRejectsOverlappingWaiting(t *testing.T) {
	db := newTestDB(t)
	platform := setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	playerA := createTestUser(t, db, "a@test.local")
	playerB := createTestUser(t, db, "b@test.local")
	playerC := createTestUser(t, db, "c@test.local")
	_, pf := createTestField(t, db, owner.ID, 100)

	day := upcomingDate(2)
	fundUser(t, db, platform.ID, playerA.ID, 100)
	fundUser(t, db, platform.ID, playerB.ID, 100)
	fundUser(t, db, platform.ID, playerC.ID, 100)

	target := seedWaitingBooking(t, db, pf.ID, playerA.ID, platform.ID, day, 100.0, 9*3600, 10*3600)
	overlapping := seedWaitingBooking(t, db, pf.ID, playerB.ID, platform.ID, day, 100.0, 9*3600+1800, 10*3600+1800)
	touching := seedWaitingBooking(t, db, pf.ID, playerC.ID, platform.ID, day, 100.0, 10*3600, 11*3600)

	bookingService := NewBookingService()
	accepted, err := bookingService.Transition(db, target.ID, models.BookingStatusAccepted, owner.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.BookingStatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}

	var after models.Booking
	if err := db.First(&after, overlapping.ID).Error; err != nil {
		t.Fatalf("reloading overlapping booking: %v", err)
	}
	if after.Status != models.BookingStatusRejected {
		t.Fatalf("overlapping waiting booking must be rejected, got %s", after.Status)
	}

	var untouched models.Booking
	if err := db.First(&untouched, touching.ID).Error; err != nil {
		t.Fatalf("reloading touching booking: %v", err)
	}
	if untouched.Status != models.BookingStatusWaiting {
		t.Fatalf("touching booking must be untouched, got %s", untouched.Status)
	}

	var refund models.LedgerTransaction
	if err := db.Where("kind = ? AND payee_id = ?", models.LedgerKindBookingRefund, playerB.ID).
		First(&refund).Error; err != nil {
		t.Fatalf("expected a refund for the cascaded booking: %v", err)
	}
	if refund.Amount != 100 {
		t.Fatalf("expected full refund, got %f", refund.Amount)
	}

	var audit models.AuditLog
	if err := db.Where("action = ?", "booking_overlap_cascade").First(&audit).Error; err != nil {
		t.Fatalf("expected one cascade audit row: %v", err)
	}
}

func TestRejectRefundsHold(t *testing.T) {
	db := newTestDB(t)
	platform := setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	player := createTestUser(t, db, "player@test.local")
	_, pf := createTestField(t, db, owner.ID, 100)
	fundUser(t, db, platform.ID, player.ID, 100)

	bookingService := NewBookingService()
	booking, err := bookingService.Create(db, CreateBookingInput{
		PartialFieldID: pf.ID, HolderID: player.ID, Date: upcomingDate(2),
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600,
	})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	if _, err := bookingService.Transition(db, booking.ID, models.BookingStatusRejected, owner.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	balance, err := bookingService.Ledger.AvailableBalance(db, player.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("expected full balance back after reject, got %f", balance)
	}
}

func TestDeactivateFieldCascade(t *testing.T) {
	db := newTestDB(t)
	platform := setupPlatformAccount(t, db)
	owner := createTestUser(t, db, "owner@test.local")
	playerA := createTestUser(t, db, "a@test.local")
	playerB := createTestUser(t, db, "b@test.local")
	field, pf := createTestField(t, db, owner.ID, 100)

	fundUser(t, db, platform.ID, playerA.ID, 100)
	fundUser(t, db, platform.ID, playerB.ID, 100)

	future := seedWaitingBooking(t, db, pf.ID, playerA.ID, platform.ID, upcomingDate(3), 100.0, 9*3600, 10*3600)
	accepted := models.Booking{
		PartialFieldID: pf.ID, HolderID: playerB.ID, Date: upcomingDate(4),
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600, Status: models.BookingStatusAccepted, Price: 100,
	}
	if err := db.Create(&accepted).Error; err != nil {
		t.Fatalf("seeding accepted booking: %v", err)
	}
	ledger := NewLedgerService()
	if _, err := ledger.RecordTransaction(db, models.LedgerKindBookingHold, 100, playerB.ID, platform.ID, "seed hold"); err != nil {
		t.Fatalf("seeding hold: %v", err)
	}
	past := models.Booking{
		PartialFieldID: pf.ID, HolderID: playerA.ID, Date: upcomingDate(-3),
		StartSeconds: 9 * 3600, EndSeconds: 10 * 3600, Status: models.BookingStatusAccepted,
	}
	if err := db.Create(&past).Error; err != nil {
		t.Fatalf("seeding past booking: %v", err)
	}

	bookingService := NewBookingService()
	rejected, err := bookingService.DeactivateField(db, field.ID, owner.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if rejected != 2 {
		t.Fatalf("expected 2 rejected bookings, got %d", rejected)
	}

	var reloaded models.Field
	if err := db.First(&reloaded, field.ID).Error; err != nil {
		t.Fatalf("reloading field: %v", err)
	}
	if reloaded.IsActive == nil || *reloaded.IsActive {
		t.Fatal("field must be inactive after deactivation")
	}

	for _, id := range []uint{future.ID, accepted.ID} {
		var b models.Booking
		if err := db.First(&b, id).Error; err != nil {
			t.Fatalf("reloading booking %d: %v", id, err)
		}
		if b.Status != models.BookingStatusRejected {
			t.Fatalf("booking %d must be rejected, got %s", id, b.Status)
		}
	}

	var untouched models.Booking
	if err := db.First(&untouched, past.ID).Error; err != nil {
		t.Fatalf("reloading past booking: %v", err)
	}
	if untouched.Status != models.BookingStatusAccepted {
		t.Fatalf("past booking must be untouched, got %s", untouched.Status)
	}

	var refunds []models.LedgerTransaction
	if err := db.Where("kind = ?", models.LedgerKindBookingRefund).Find(&refunds).Error; err != nil {
		t.Fatalf("loading refunds: %v", err)
	}
	if len(refunds) != 2 {
		t.Fatalf("expected a refund per rejected booking, got %d", len(refunds))
	}
}
