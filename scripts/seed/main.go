package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"fieldbook-server/models"
	"fieldbook-server/services"
	"fieldbook-server/storage"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// Seeds a development database with a platform account, an owner with one
// approved field and a couple of players with balances. Idempotent on email.
func main() {
	godotenv.Load()
	storage.InitializeDB()

	platform := upsertUser("platform@fieldbook.local", "Platform", "Account", "admin")
	fmt.Printf("platform ledger account id: %d (set PLATFORM_ACCOUNT_ID=%d)\n", platform.ID, platform.ID)
	os.Setenv("PLATFORM_ACCOUNT_ID", fmt.Sprintf("%d", platform.ID))

	owner := upsertUser("owner@fieldbook.local", "Omar", "Ba", "user")
	playerA := upsertUser("playera@fieldbook.local", "Aliou", "Sow", "user")
	playerB := upsertUser("playerb@fieldbook.local", "Moussa", "Diallo", "user")

	active := true
	staff, _ := json.Marshal([]uint{})
	field := models.Field{
		OwnerID:      owner.ID,
		Name:         "Stade Municipal",
		Description:  "Two mini-pitch field near the corniche",
		City:         "Nouakchott",
		OpenSeconds:  8 * 3600,
		CloseSeconds: 23 * 3600,
		Deposit:      200,
		Currency:     "MRO",
		StaffIDs:     datatypes.JSON(staff),
		IsActive:     &active,
		Status:       models.FieldStatusApproved,
	}
	if err := storage.DB.Where("owner_id = ? AND name = ?", owner.ID, field.Name).
		FirstOrCreate(&field).Error; err != nil {
		log.Fatalf("seeding field: %v", err)
	}

	for _, name := range []string{"Pitch A", "Pitch B"} {
		pf := models.PartialField{FieldID: field.ID, Name: name}
		if err := storage.DB.Where("field_id = ? AND name = ?", field.ID, name).
			FirstOrCreate(&pf).Error; err != nil {
			log.Fatalf("seeding partial field: %v", err)
		}
	}

	ledger := services.NewLedgerService()
	for _, player := range []models.User{playerA, playerB} {
		balance, err := ledger.AvailableBalance(storage.DB, player.ID)
		if err != nil {
			log.Fatalf("reading balance: %v", err)
		}
		if balance > 0 {
			continue
		}
		if _, err := ledger.RecordTransaction(storage.DB, models.LedgerKindDeposit, 1000, platform.ID, player.ID, "seed deposit"); err != nil {
			log.Fatalf("seeding deposit: %v", err)
		}
	}

	fmt.Println("Seed completed successfully!")
	fmt.Printf("field %d open %s, deposit %.0f %s\n", field.ID,
		time.Duration(field.CloseSeconds-field.OpenSeconds)*time.Second, field.Deposit, field.Currency)
}

func upsertUser(email, first, last, role string) models.User {
	var user models.User
	if err := storage.DB.Where("email = ?", email).First(&user).Error; err == nil {
		return user
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hashing seed password: %v", err)
	}
	user = models.User{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  string(hashed),
		Role:      role,
	}
	if err := storage.DB.Create(&user).Error; err != nil {
		log.Fatalf("seeding user %s: %v", email, err)
	}
	return user
}
