package models

import "gorm.io/gorm"

// PartialField is one independently bookable subdivision of a field
// (half pitch, court number, etc.). Bookings attach here, not to the field.
type PartialField struct {
	gorm.Model
	FieldID  uint      `json:"fieldID" gorm:"not null;index"`
	Name     string    `json:"name" gorm:"not null"`
	IsActive *bool     `json:"isActive"`
	Bookings []Booking `json:"bookings" gorm:"foreignKey:PartialFieldID"`
	Field    Field     `json:"field" gorm:"foreignKey:FieldID"`
}
