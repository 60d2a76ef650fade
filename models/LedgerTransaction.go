package models

import "gorm.io/gorm"

const (
	LedgerKindBookingHold   = "booking_hold"
	LedgerKindBookingRefund = "booking_refund"
	LedgerKindDeposit       = "deposit"
)

// LedgerTransaction is one money movement between two accounts. A user's
// available balance is the sum of amounts paid to them minus amounts they
// paid out; booking holds are ordinary debits until refunded.
type LedgerTransaction struct {
	gorm.Model
	Reference string  `json:"reference" gorm:"size:36;uniqueIndex"`
	Kind      string  `json:"kind" gorm:"size:24;index"` // booking_hold, booking_refund, deposit
	Amount    float64 `json:"amount" gorm:"not null"`
	PayerID   uint    `json:"payerID" gorm:"not null;index"`
	PayeeID   uint    `json:"payeeID" gorm:"not null;index"`
	Note      string  `json:"note" gorm:"size:255"`
}
