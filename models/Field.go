package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FieldStatusPending  = "pending"
	FieldStatusApproved = "approved"
	FieldStatusRejected = "rejected"
)

type Field struct {
	gorm.Model
	OwnerID      uint   `json:"ownerID" gorm:"not null;index"`
	Name         string `json:"name" gorm:"not null"`
	Description  string `json:"description"`
	AddressLine1 string `json:"addressLine1"`
	City         string `json:"city"`

	// Daily opening window, expressed as seconds since midnight.
	// Invariant: OpenSeconds <= CloseSeconds.
	OpenSeconds  int `json:"openSeconds" gorm:"not null"`
	CloseSeconds int `json:"closeSeconds" gorm:"not null"`

	// When true, bookings must exactly match one of the field's time slots.
	// When false, any window inside [open,close) can be booked.
	FixedSlot bool `json:"fixedSlot" gorm:"default:false"`

	// Deposit held from a booker's balance until the owner decides.
	Deposit  float64 `json:"deposit" gorm:"default:0"`
	Currency string  `json:"currency" gorm:"type:varchar(8);default:'MRO'"`

	StaffIDs datatypes.JSON `json:"staffIDs"` // user ids allowed to manage bookings
	IsActive *bool          `json:"isActive"`

	// Admin moderation
	Status      string `json:"status" gorm:"type:varchar(20);default:'pending';index"` // pending, approved, rejected
	ReviewNotes string `json:"reviewNotes" gorm:"type:text"`

	PartialFields   []PartialField        `json:"partialFields" gorm:"foreignKey:FieldID"`
	InactivePeriods []FieldInactivePeriod `json:"inactivePeriods" gorm:"foreignKey:FieldID"`
	TimeSlots       []FieldTimeSlot       `json:"timeSlots" gorm:"foreignKey:FieldID"`
	Owner           User                  `json:"owner" gorm:"foreignKey:OwnerID;references:ID"`
}

// FieldInactivePeriod blocks an absolute datetime window for the whole field.
// Periods may overlap each other; soft delete reopens the window.
type FieldInactivePeriod struct {
	gorm.Model
	FieldID  uint      `json:"fieldID" gorm:"not null;index"`
	StartsAt time.Time `json:"startsAt" gorm:"not null"`
	EndsAt   time.Time `json:"endsAt" gorm:"not null"`
	Reason   string    `json:"reason"`
	Field    Field     `json:"-" gorm:"foreignKey:FieldID"`
}

// FieldTimeSlot is one bookable time-of-day window of a fixed-slot field.
type FieldTimeSlot struct {
	gorm.Model
	FieldID      uint  `json:"fieldID" gorm:"not null;index"`
	StartSeconds int   `json:"startSeconds" gorm:"not null"`
	EndSeconds   int   `json:"endSeconds" gorm:"not null"`
	Field        Field `json:"-" gorm:"foreignKey:FieldID"`
}

// Staff reports the user ids allowed to manage this field's bookings.
func (f *Field) Staff() []uint {
	var ids []uint
	if f.StaffIDs != nil {
		json.Unmarshal(f.StaffIDs, &ids)
	}
	return ids
}
