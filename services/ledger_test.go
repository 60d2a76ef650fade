package services

import (
	"testing"

	"fieldbook-server/models"
	"fieldbook-server/utils"
)

func TestPlatformAccountIDUnconfigured(t *testing.T) {
	t.Setenv("PLATFORM_ACCOUNT_ID", "")

	ledger := NewLedgerService()
	_, err := ledger.PlatformAccountID()
	if err == nil {
		t.Fatal("expected an error with no platform account configured")
	}
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != "ledger_unconfigured" {
		t.Fatalf("expected ledger_unconfigured, got %v", err)
	}
}

func TestAvailableBalance(t *testing.T) {
	db := newTestDB(t)
	platform := setupPlatformAccount(t, db)
	user := createTestUser(t, db, "user@test.local")

	ledger := NewLedgerService()
	balance, err := ledger.AvailableBalance(db, user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero opening balance, got %f", balance)
	}

	first, err := ledger.RecordTransaction(db, models.LedgerKindDeposit, 500, platform.ID, user.ID, "deposit")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	second, err := ledger.RecordTransaction(db, models.LedgerKindBookingHold, 200, user.ID, platform.ID, "hold")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if first.Reference == second.Reference || first.Reference == "" {
		t.Fatal("transactions must carry distinct references")
	}

	balance, err = ledger.AvailableBalance(db, user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 300 {
		t.Fatalf("expected 300 after deposit and hold, got %f", balance)
	}
}
