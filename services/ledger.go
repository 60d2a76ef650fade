package services

import (
	"os"
	"strconv"

	"fieldbook-server/models"
	"fieldbook-server/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService is the money-movement boundary. Ledger failures abort the
// surrounding transaction; money is never best-effort.
type LedgerService struct{}

func NewLedgerService() *LedgerService {
	return &LedgerService{}
}

// PlatformAccountID is the well-known counterparty account for deposits and
// refunds, configured via PLATFORM_ACCOUNT_ID.
func (ls *LedgerService) PlatformAccountID() (uint, error) {
	raw := os.Getenv("PLATFORM_ACCOUNT_ID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, utils.NewDependency("ledger_unconfigured", "PLATFORM_ACCOUNT_ID is not configured")
	}
	return uint(id), nil
}

// AvailableBalance sums everything paid to the user minus everything the
// user paid out. Holds are ordinary debits until refunded.
func (ls *LedgerService) AvailableBalance(tx *gorm.DB, userID uint) (float64, error) {
	var credit, debit float64
	if err := tx.Model(&models.LedgerTransaction{}).
		Where("payee_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&credit).Error; err != nil {
		return 0, utils.NewDependency("ledger_failure", err.Error())
	}
	if err := tx.Model(&models.LedgerTransaction{}).
		Where("payer_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&debit).Error; err != nil {
		return 0, utils.NewDependency("ledger_failure", err.Error())
	}
	return credit - debit, nil
}

// RecordTransaction writes one ledger row with a fresh reference.
func (ls *LedgerService) RecordTransaction(tx *gorm.DB, kind string, amount float64, payerID, payeeID uint, note string) (*models.LedgerTransaction, error) {
	t := models.LedgerTransaction{
		Reference: uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		PayerID:   payerID,
		PayeeID:   payeeID,
		Note:      note,
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, utils.NewDependency("ledger_failure", err.Error())
	}
	return &t, nil
}
