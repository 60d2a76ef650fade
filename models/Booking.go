package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BookingStatusWaiting  = "waiting"
	BookingStatusAccepted = "accepted"
	BookingStatusRejected = "rejected"
	BookingStatusCanceled = "canceled"
)

// BookingLiveStatuses are the statuses that participate in overlap checks.
var BookingLiveStatuses = []string{BookingStatusWaiting, BookingStatusAccepted}

// Booking claims [StartSeconds,EndSeconds) on one partial field for one date.
// Rows are never hard-deleted; rejected/canceled bookings stay for history
// but are ignored by every overlap check.
type Booking struct {
	gorm.Model
	PartialFieldID uint         `json:"partialFieldID" gorm:"not null;index:idx_booking_day"`
	HolderID       uint         `json:"holderID" gorm:"not null;index"`
	Date           time.Time    `json:"date" gorm:"type:date;not null;index:idx_booking_day"`
	StartSeconds   int          `json:"startSeconds" gorm:"not null"`
	EndSeconds     int          `json:"endSeconds" gorm:"not null"`
	Status         string       `json:"status" gorm:"type:varchar(12);not null;index"` // waiting, accepted, rejected, canceled
	Price          float64      `json:"price"`
	Note           string       `json:"note" gorm:"size:500"`
	PartialField   PartialField `json:"partialField" gorm:"foreignKey:PartialFieldID"`
	Holder         User         `json:"holder" gorm:"foreignKey:HolderID"`
}

// IsLive reports whether the booking participates in overlap checks.
func (b *Booking) IsLive() bool {
	return b.Status == BookingStatusWaiting || b.Status == BookingStatusAccepted
}

// EndsAt is the absolute end of the booked window.
func (b *Booking) EndsAt() time.Time {
	d := b.Date
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()).
		Add(time.Duration(b.EndSeconds) * time.Second)
}
