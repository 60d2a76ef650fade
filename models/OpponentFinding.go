package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	FindingStatusFinding             = "finding"
	FindingStatusAccepted            = "accepted"
	FindingStatusCancelled           = "cancelled"
	FindingStatusOpponentCancelled   = "opponent_cancelled"
	FindingStatusOverlappedCancelled = "overlapped_cancelled"
)

// OpponentFinding is one player's "looking for opponent" post. It is anchored
// either to an accepted booking (interval derives from it) or to an explicit
// date + time-of-day window.
type OpponentFinding struct {
	gorm.Model
	HolderID  uint     `json:"holderID" gorm:"not null;index"`
	BookingID *uint    `json:"bookingID" gorm:"index"` // weak reference, lookup only
	Booking   *Booking `json:"booking,omitempty" gorm:"foreignKey:BookingID"`

	Date         time.Time `json:"date" gorm:"type:date;not null;index"`
	StartSeconds int       `json:"startSeconds" gorm:"not null"`
	EndSeconds   int       `json:"endSeconds" gorm:"not null"`

	Message string `json:"message" gorm:"size:500"`
	// finding, accepted, cancelled, opponent_cancelled, overlapped_cancelled
	Status string `json:"status" gorm:"type:varchar(24);not null;index"`

	Requests []OpponentFindingRequest `json:"requests" gorm:"foreignKey:OpponentFindingID"`
	Holder   User                     `json:"holder" gorm:"foreignKey:HolderID"`
}

// IsOverdue reports whether the post's window has already ended.
func (f *OpponentFinding) IsOverdue(now time.Time) bool {
	d := f.Date
	end := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()).
		Add(time.Duration(f.EndSeconds) * time.Second)
	return !end.After(now)
}
