package routes

import (
	"time"

	"fieldbook-server/models"
	"fieldbook-server/services"
	"fieldbook-server/storage"
	"fieldbook-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
)

type CreateFieldInput struct {
	Name         string  `json:"name" validate:"required,max=256"`
	Description  string  `json:"description" validate:"max=2000"`
	AddressLine1 string  `json:"addressLine1" validate:"max=512"`
	City         string  `json:"city" validate:"max=256"`
	OpenSeconds  int     `json:"openSeconds" validate:"min=0,max=86400"`
	CloseSeconds int     `json:"closeSeconds" validate:"min=0,max=86400"`
	FixedSlot    bool    `json:"fixedSlot"`
	Deposit      float64 `json:"deposit" validate:"min=0"`
}

func CreateField(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateFieldInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if input.OpenSeconds > input.CloseSeconds {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "openSeconds must not be after closeSeconds", ctx)
		return
	}

	field := models.Field{
		OwnerID:      claims.ID,
		Name:         input.Name,
		Description:  input.Description,
		AddressLine1: input.AddressLine1,
		City:         input.City,
		OpenSeconds:  input.OpenSeconds,
		CloseSeconds: input.CloseSeconds,
		FixedSlot:    input.FixedSlot,
		Deposit:      input.Deposit,
		Status:       models.FieldStatusPending,
	}
	if err := storage.DB.Create(&field).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "field": field})
}

func GetField(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var field models.Field
	if err := storage.DB.
		Preload("PartialFields").
		Preload("InactivePeriods").
		Preload("TimeSlots").
		First(&field, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Field not found", ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "field": field})
}

func GetMyFields(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var fields []models.Field
	if err := storage.DB.Where("owner_id = ?", claims.ID).
		Preload("PartialFields").
		Order("created_at DESC").
		Find(&fields).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "fields": fields})
}

// DeactivateField disables the field and cascade-rejects every future live
// booking on its partial fields, refunding holds.
func DeactivateField(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	fieldID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid field ID", ctx)
		return
	}

	var field models.Field
	if err := storage.DB.First(&field, fieldID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Field not found", ctx)
		return
	}
	if field.OwnerID != claims.ID && claims.Role != "admin" && claims.Role != "super_admin" {
		ctx.StatusCode(iris.StatusForbidden)
		ctx.JSON(iris.Map{"error": "forbidden", "message": "only the owner or an admin can deactivate a field"})
		return
	}

	bookingService := services.NewBookingService()
	rejected, err := bookingService.DeactivateField(storage.DB, fieldID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	utils.Audit(ctx, "field_deactivated", "field", fieldID, nil, iris.Map{"rejectedBookings": rejected})
	ctx.JSON(iris.Map{"success": true, "rejectedBookings": rejected})
}

type CreatePartialFieldInput struct {
	Name string `json:"name" validate:"required,max=256"`
}

func CreatePartialField(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	fieldID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid field ID", ctx)
		return
	}

	var input CreatePartialFieldInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var field models.Field
	if err := storage.DB.First(&field, fieldID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Field not found", ctx)
		return
	}
	if field.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	partialField := models.PartialField{FieldID: fieldID, Name: input.Name}
	if err := storage.DB.Create(&partialField).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "partialField": partialField})
}

// DeactivatePartialField disables one subdivision and cascade-rejects its
// future live bookings.
func DeactivatePartialField(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	partialFieldID, err := ctx.Params().GetUint("partialFieldID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid partial field ID", ctx)
		return
	}

	var partialField models.PartialField
	if err := storage.DB.Preload("Field").First(&partialField, partialFieldID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Partial field not found", ctx)
		return
	}
	if partialField.Field.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	bookingService := services.NewBookingService()
	rejected, err := bookingService.DeactivatePartialField(storage.DB, partialFieldID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	utils.Audit(ctx, "partial_field_deactivated", "partial_field", partialFieldID, nil, iris.Map{"rejectedBookings": rejected})
	ctx.JSON(iris.Map{"success": true, "rejectedBookings": rejected})
}

type CreateInactivePeriodInput struct {
	StartsAt time.Time `json:"startsAt" validate:"required"`
	EndsAt   time.Time `json:"endsAt" validate:"required"`
	Reason   string    `json:"reason" validate:"max=500"`
}

func CreateInactivePeriod(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	fieldID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid field ID", ctx)
		return
	}

	var input CreateInactivePeriodInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if !input.StartsAt.Before(input.EndsAt) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "startsAt must be before endsAt", ctx)
		return
	}

	var field models.Field
	if err := storage.DB.First(&field, fieldID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Field not found", ctx)
		return
	}
	if field.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	period := models.FieldInactivePeriod{
		FieldID:  fieldID,
		StartsAt: input.StartsAt,
		EndsAt:   input.EndsAt,
		Reason:   input.Reason,
	}
	if err := storage.DB.Create(&period).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "inactivePeriod": period})
}

// DeleteInactivePeriod soft-deletes the blackout window, reopening it for
// bookings.
func DeleteInactivePeriod(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	periodID, err := ctx.Params().GetUint("periodID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid period ID", ctx)
		return
	}

	var period models.FieldInactivePeriod
	if err := storage.DB.Preload("Field").First(&period, periodID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Inactive period not found", ctx)
		return
	}
	if period.Field.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	if err := storage.DB.Delete(&period).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

type SetTimeSlotsInput struct {
	Slots []struct {
		StartSeconds int `json:"startSeconds" validate:"min=0,max=86400"`
		EndSeconds   int `json:"endSeconds" validate:"min=0,max=86400"`
	} `json:"slots" validate:"required,dive"`
}

// SetTimeSlots replaces the slot grid of a fixed-slot field.
func SetTimeSlots(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	fieldID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid field ID", ctx)
		return
	}

	var input SetTimeSlotsInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var field models.Field
	if err := storage.DB.First(&field, fieldID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Field not found", ctx)
		return
	}
	if field.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}
	if !field.FixedSlot {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "field is not fixed-slot", ctx)
		return
	}
	for _, slot := range input.Slots {
		if slot.EndSeconds <= slot.StartSeconds {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "slot end must be after start", ctx)
			return
		}
	}

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("field_id = ?", fieldID).Delete(&models.FieldTimeSlot{}).Error; err != nil {
			return err
		}
		for _, slot := range input.Slots {
			if err := tx.Create(&models.FieldTimeSlot{
				FieldID:      fieldID,
				StartSeconds: slot.StartSeconds,
				EndSeconds:   slot.EndSeconds,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}
