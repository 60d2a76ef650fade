package services

import (
	"encoding/json"
	"fmt"
	"time"

	"fieldbook-server/models"
	"fieldbook-server/utils"

	"golang.org/x/exp/slices"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingService guards booking creation and status transitions with the
// availability checks. Every read-then-write decision runs inside one
// transaction holding a row lock on the partial field, which serializes all
// live bookings for one partial field and date.
type BookingService struct {
	Ledger        *LedgerService
	Availability  *AvailabilityService
	Notifications *NotificationService
}

func NewBookingService() *BookingService {
	return &BookingService{
		Ledger:        NewLedgerService(),
		Availability:  NewAvailabilityService(),
		Notifications: NewNotificationService(),
	}
}

// lockForUpdate takes a row lock on postgres. SQLite serializes writers on
// its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

type CreateBookingInput struct {
	PartialFieldID uint
	HolderID       uint
	Date           time.Time
	StartSeconds   int
	EndSeconds     int
	Note           string
}

// legal status transitions; everything absent (including a repeat of the
// current status) is an illegal_transition
var bookingTransitions = map[string][]string{
	models.BookingStatusWaiting:  {models.BookingStatusAccepted, models.BookingStatusRejected, models.BookingStatusCanceled},
	models.BookingStatusAccepted: {models.BookingStatusRejected},
}

// Create validates and persists a booking. Owners and staff book their own
// field without a hold and start accepted; everyone else pays the field
// deposit as a hold and starts waiting.
func (bs *BookingService) Create(db *gorm.DB, input CreateBookingInput) (*models.Booking, error) {
	if input.EndSeconds <= input.StartSeconds {
		return nil, utils.NewValidation("invalid_interval", "end must be after start")
	}
	now := time.Now()
	day := DateOnly(input.Date)

	var booking models.Booking
	var field models.Field
	err := db.Transaction(func(tx *gorm.DB) error {
		var pf models.PartialField
		if err := lockForUpdate(tx).First(&pf, input.PartialFieldID).Error; err != nil {
			return utils.NewNotFound("field_not_found", "partial field not found")
		}
		if err := tx.Preload("TimeSlots").First(&field, pf.FieldID).Error; err != nil {
			return utils.NewNotFound("field_not_found", "field not found")
		}
		if field.Status != models.FieldStatusApproved || (field.IsActive != nil && !*field.IsActive) {
			return utils.NewNotFound("field_not_found", "field is not active")
		}
		if pf.IsActive != nil && !*pf.IsActive {
			return utils.NewNotFound("field_not_found", "partial field is not active")
		}

		_, windowEnd := utils.DaySpan(day, input.StartSeconds, input.EndSeconds)
		if !windowEnd.After(now) {
			return utils.NewValidation("in_past", "booking must end in the future")
		}
		if input.StartSeconds < field.OpenSeconds || input.EndSeconds > field.CloseSeconds {
			return utils.NewValidation("invalid_interval", "booking is outside the field's opening hours")
		}
		if field.FixedSlot && !matchesSlot(field.TimeSlots, input.StartSeconds, input.EndSeconds) {
			return utils.NewValidation("slot_mismatch", "booking must match one of the field's time slots exactly")
		}

		blocked, err := bs.Availability.inactivePeriodOverlaps(tx, field.ID, day, input.StartSeconds, input.EndSeconds)
		if err != nil {
			return err
		}
		if blocked {
			return utils.NewConflict("inactive_period_conflict", "the field is inactive during the requested window")
		}

		overlapping, err := countLiveOverlaps(tx, pf.ID, day, input.StartSeconds, input.EndSeconds)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return utils.NewConflict("time_overlap", "the requested window overlaps an existing booking")
		}

		ownerSide := input.HolderID == field.OwnerID || slices.Contains(field.Staff(), input.HolderID)
		price := 0.0
		status := models.BookingStatusAccepted
		if !ownerSide {
			price = field.Deposit
			status = models.BookingStatusWaiting
			if price > 0 {
				balance, err := bs.Ledger.AvailableBalance(tx, input.HolderID)
				if err != nil {
					return err
				}
				if balance < price {
					return utils.NewConflict("insufficient_balance", "available balance does not cover the deposit")
				}
			}
		}

		booking = models.Booking{
			PartialFieldID: pf.ID,
			HolderID:       input.HolderID,
			Date:           day,
			StartSeconds:   input.StartSeconds,
			EndSeconds:     input.EndSeconds,
			Status:         status,
			Price:          price,
			Note:           input.Note,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		if price > 0 {
			platformID, err := bs.Ledger.PlatformAccountID()
			if err != nil {
				return err
			}
			note := fmt.Sprintf("hold for booking %d", booking.ID)
			if _, err := bs.Ledger.RecordTransaction(tx, models.LedgerKindBookingHold, price, input.HolderID, platformID, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recipients := append([]uint{field.OwnerID}, field.Staff()...)
	go bs.Notifications.Publish(recipients, "booking_request", "New Booking Request",
		fmt.Sprintf("Booking requested for %s %s-%s", day.Format("Jan 2, 2006"),
			utils.FormatDaySeconds(input.StartSeconds), utils.FormatDaySeconds(input.EndSeconds)),
		"booking", booking.ID)

	return &booking, nil
}

// Transition applies one status change. Accepting a waiting booking
// cascade-rejects every other waiting booking on the same partial field and
// date that overlaps it (first accepted wins), refunding their holds, all in
// the same transaction.
func (bs *BookingService) Transition(db *gorm.DB, bookingID uint, target string, actorID uint) (*models.Booking, error) {
	allStatuses := []string{models.BookingStatusWaiting, models.BookingStatusAccepted, models.BookingStatusRejected, models.BookingStatusCanceled}
	if !slices.Contains(allStatuses, target) {
		return nil, utils.NewValidation("illegal_transition", "unknown target status "+target)
	}

	var booking models.Booking
	var cascaded []models.Booking
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, bookingID).Error; err != nil {
			return utils.NewNotFound("not_found", "booking not found")
		}
		var pf models.PartialField
		if err := lockForUpdate(tx).First(&pf, booking.PartialFieldID).Error; err != nil {
			return utils.NewNotFound("field_not_found", "partial field not found")
		}

		if !slices.Contains(bookingTransitions[booking.Status], target) {
			return utils.NewValidation("illegal_transition",
				fmt.Sprintf("cannot transition booking from %s to %s", booking.Status, target))
		}

		if err := tx.Model(&booking).Update("status", target).Error; err != nil {
			return err
		}
		booking.Status = target

		if target == models.BookingStatusRejected || target == models.BookingStatusCanceled {
			if err := bs.refundHold(tx, &booking); err != nil {
				return err
			}
		}

		if target == models.BookingStatusAccepted {
			var err error
			cascaded, err = bs.rejectOverlappingWaiting(tx, &booking, actorID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go bs.Notifications.Publish([]uint{booking.HolderID}, "booking_status", "Booking "+target,
		fmt.Sprintf("Your booking for %s was %s", booking.Date.Format("Jan 2, 2006"), target),
		"booking", booking.ID)
	for _, rejected := range cascaded {
		go bs.Notifications.Publish([]uint{rejected.HolderID}, "booking_status", "Booking rejected",
			"Your booking request was rejected because an overlapping booking was accepted",
			"booking", rejected.ID)
	}

	return &booking, nil
}

// rejectOverlappingWaiting rejects, in creation order, every other waiting
// booking on the accepted booking's partial field and date whose interval
// overlaps it, and writes one audit row for the whole batch.
func (bs *BookingService) rejectOverlappingWaiting(tx *gorm.DB, accepted *models.Booking, actorID uint) ([]models.Booking, error) {
	var siblings []models.Booking
	if err := tx.Where("partial_field_id = ? AND date = ? AND status = ? AND id <> ? AND start_seconds < ? AND end_seconds > ?",
		accepted.PartialFieldID, accepted.Date, models.BookingStatusWaiting, accepted.ID,
		accepted.EndSeconds, accepted.StartSeconds).
		Order("id ASC").Find(&siblings).Error; err != nil {
		return nil, err
	}
	if len(siblings) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(siblings))
	for i := range siblings {
		if err := tx.Model(&siblings[i]).Update("status", models.BookingStatusRejected).Error; err != nil {
			return nil, err
		}
		siblings[i].Status = models.BookingStatusRejected
		if err := bs.refundHold(tx, &siblings[i]); err != nil {
			return nil, err
		}
		ids = append(ids, siblings[i].ID)
	}

	return siblings, auditCascade(tx, actorID, "booking_overlap_cascade", "booking", accepted.ID, ids)
}

// refundHold reverses the booking's hold, if any.
func (bs *BookingService) refundHold(tx *gorm.DB, booking *models.Booking) error {
	if booking.Price <= 0 {
		return nil
	}
	platformID, err := bs.Ledger.PlatformAccountID()
	if err != nil {
		return err
	}
	note := fmt.Sprintf("refund for booking %d", booking.ID)
	_, err = bs.Ledger.RecordTransaction(tx, models.LedgerKindBookingRefund, booking.Price, platformID, booking.HolderID, note)
	return err
}

// DeactivateField soft-disables the field and rejects every live booking on
// its partial fields whose window has not yet ended, refunding holds. One
// atomic batch; partial cascades are a correctness violation.
func (bs *BookingService) DeactivateField(db *gorm.DB, fieldID uint, actorID uint) (int, error) {
	return bs.rejectLiveBookings(db, fieldID, 0, actorID, "field_deactivation_cascade")
}

// DeactivatePartialField soft-disables one partial field and rejects its
// future live bookings the same way.
func (bs *BookingService) DeactivatePartialField(db *gorm.DB, partialFieldID uint, actorID uint) (int, error) {
	return bs.rejectLiveBookings(db, 0, partialFieldID, actorID, "partial_field_deactivation_cascade")
}

func (bs *BookingService) rejectLiveBookings(db *gorm.DB, fieldID, partialFieldID uint, actorID uint, action string) (int, error) {
	now := time.Now()
	today := DateOnly(now)
	nowSeconds := utils.ToDaySeconds(now)

	var rejected []models.Booking
	err := db.Transaction(func(tx *gorm.DB) error {
		var pfIDs []uint
		if fieldID != 0 {
			var field models.Field
			if err := lockForUpdate(tx).First(&field, fieldID).Error; err != nil {
				return utils.NewNotFound("field_not_found", "field not found")
			}
			if err := tx.Model(&field).Update("is_active", false).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.PartialField{}).Where("field_id = ?", fieldID).
				Pluck("id", &pfIDs).Error; err != nil {
				return err
			}
		} else {
			var pf models.PartialField
			if err := lockForUpdate(tx).First(&pf, partialFieldID).Error; err != nil {
				return utils.NewNotFound("field_not_found", "partial field not found")
			}
			if err := tx.Model(&pf).Update("is_active", false).Error; err != nil {
				return err
			}
			pfIDs = []uint{pf.ID}
		}
		if len(pfIDs) == 0 {
			return nil
		}

		if err := tx.Where("partial_field_id IN ? AND status IN ? AND (date > ? OR (date = ? AND end_seconds > ?))",
			pfIDs, models.BookingLiveStatuses, today, today, nowSeconds).
			Order("id ASC").Find(&rejected).Error; err != nil {
			return err
		}

		ids := make([]uint, 0, len(rejected))
		for i := range rejected {
			if err := tx.Model(&rejected[i]).Update("status", models.BookingStatusRejected).Error; err != nil {
				return err
			}
			rejected[i].Status = models.BookingStatusRejected
			if err := bs.refundHold(tx, &rejected[i]); err != nil {
				return err
			}
			ids = append(ids, rejected[i].ID)
		}
		if len(ids) == 0 {
			return nil
		}
		resourceID := fieldID
		if resourceID == 0 {
			resourceID = partialFieldID
		}
		return auditCascade(tx, actorID, action, "field", resourceID, ids)
	})
	if err != nil {
		return 0, err
	}

	for _, b := range rejected {
		go bs.Notifications.Publish([]uint{b.HolderID}, "booking_status", "Booking rejected",
			"Your booking was rejected because the field was deactivated; your deposit has been refunded",
			"booking", b.ID)
	}
	return len(rejected), nil
}

func matchesSlot(slots []models.FieldTimeSlot, startSeconds, endSeconds int) bool {
	for _, slot := range slots {
		if slot.StartSeconds == startSeconds && slot.EndSeconds == endSeconds {
			return true
		}
	}
	return false
}

// auditCascade records an entire invalidation batch as one audit row.
func auditCascade(tx *gorm.DB, actorID uint, action, resourceType string, resourceID uint, invalidated []uint) error {
	after, _ := json.Marshal(map[string][]uint{"invalidated": invalidated})
	return tx.Create(&models.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		AfterJSON:    string(after),
	}).Error
}
