package services

import (
	"fmt"
	"testing"
	"time"

	"fieldbook-server/models"
	"fieldbook-server/storage"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the full schema. The
// storage.DB global is pointed at it too, for the notification writes that go
// through it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(t.TempDir()+"/test.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	storage.DB = db
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{FirstName: "Test", LastName: "User", Email: email, Password: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return user
}

// setupPlatformAccount creates the ledger counterparty and points
// PLATFORM_ACCOUNT_ID at it for the duration of the test.
func setupPlatformAccount(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	platform := createTestUser(t, db, "platform@test.local")
	t.Setenv("PLATFORM_ACCOUNT_ID", fmt.Sprint(platform.ID))
	return platform
}

func createTestField(t *testing.T, db *gorm.DB, ownerID uint, deposit float64) (models.Field, models.PartialField) {
	t.Helper()
	active := true
	field := models.Field{
		OwnerID:      ownerID,
		Name:         "Test Field",
		OpenSeconds:  8 * 3600,
		CloseSeconds: 22 * 3600,
		Deposit:      deposit,
		Status:       models.FieldStatusApproved,
		IsActive:     &active,
	}
	if err := db.Create(&field).Error; err != nil {
		t.Fatalf("creating field: %v", err)
	}
	pf := models.PartialField{FieldID: field.ID, Name: "Pitch A"}
	if err := db.Create(&pf).Error; err != nil {
		t.Fatalf("creating partial field: %v", err)
	}
	return field, pf
}

func fundUser(t *testing.T, db *gorm.DB, platformID, userID uint, amount float64) {
	t.Helper()
	ledger := NewLedgerService()
	if _, err := ledger.RecordTransaction(db, models.LedgerKindDeposit, amount, platformID, userID, "test deposit"); err != nil {
		t.Fatalf("funding user %d: %v", userID, err)
	}
}

// upcomingDate is a date safely in the future, at midnight in the local
// location like the services store it.
func upcomingDate(days int) time.Time {
	return DateOnly(time.Now().AddDate(0, 0, days))
}
