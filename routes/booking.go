package routes

import (
	"time"

	"fieldbook-server/services"
	"fieldbook-server/storage"
	"fieldbook-server/utils"

	"fieldbook-server/models"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type CreateBookingInput struct {
	PartialFieldID uint   `json:"partialFieldId" validate:"required"`
	Date           string `json:"date" validate:"required"`
	StartSeconds   int    `json:"startSeconds" validate:"min=0,max=86400"`
	EndSeconds     int    `json:"endSeconds" validate:"required,min=0,max=86400"`
	Note           string `json:"note" validate:"max=500"`
}

func CreateBooking(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateBookingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format, expected YYYY-MM-DD", ctx)
		return
	}

	bookingService := services.NewBookingService()
	booking, err := bookingService.Create(storage.DB, services.CreateBookingInput{
		PartialFieldID: input.PartialFieldID,
		HolderID:       claims.ID,
		Date:           date,
		StartSeconds:   input.StartSeconds,
		EndSeconds:     input.EndSeconds,
		Note:           input.Note,
	})
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "booking": booking})
}

type UpdateBookingStatusInput struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected canceled"`
}

func UpdateBookingStatus(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid booking ID", ctx)
		return
	}

	var input UpdateBookingStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.Preload("PartialField.Field").First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	field := booking.PartialField.Field
	isOwnerSide := field.OwnerID == claims.ID || claims.Role == "admin" || claims.Role == "super_admin"
	for _, staffID := range field.Staff() {
		if staffID == claims.ID {
			isOwnerSide = true
			break
		}
	}
	// holders may cancel their own waiting booking; everything else is the
	// owner's call
	if input.Status == "canceled" {
		if booking.HolderID != claims.ID {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}
	} else if !isOwnerSide {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	bookingService := services.NewBookingService()
	updated, err := bookingService.Transition(storage.DB, bookingID, input.Status, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "booking": updated})
}

func GetMyBookings(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var bookings []models.Booking
	if err := storage.DB.Where("holder_id = ?", claims.ID).
		Preload("PartialField").
		Preload("PartialField.Field").
		Order("date DESC, start_seconds DESC").
		Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "bookings": bookings})
}

// GetFieldBookings returns bookings across all partial fields of one field,
// for the owner's schedule view.
func GetFieldBookings(ctx iris.Context) {
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
	if field.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var bookings []models.Booking
	if err := storage.DB.
		Joins("JOIN partial_fields ON partial_fields.id = bookings.partial_field_id").
		Where("partial_fields.field_id = ?", fieldID).
		Preload("PartialField").
		Preload("Holder").
		Order("bookings.date DESC, bookings.start_seconds ASC").
		Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "bookings": bookings})
}

// GetFreePartialFields lists which subdivisions of a field can still take a
// booking on a date. Flexible fields take an optional start/end narrowing
// plus a duration; fixed-slot fields return their free slots.
func GetFreePartialFields(ctx iris.Context) {
	fieldID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid field ID", ctx)
		return
	}

	date, err := time.Parse("2006-01-02", ctx.URLParam("date"))
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format, expected YYYY-MM-DD", ctx)
		return
	}

	var startSeconds, endSeconds *int
	if v, err := ctx.URLParamInt("startSeconds"); err == nil {
		startSeconds = &v
	}
	if v, err := ctx.URLParamInt("endSeconds"); err == nil {
		endSeconds = &v
	}
	duration := ctx.URLParamIntDefault("duration", 3600)

	availability := services.NewAvailabilityService()
	free, err := availability.ListFreePartialFields(storage.DB, fieldID, date, startSeconds, endSeconds, duration)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "free": free})
}
