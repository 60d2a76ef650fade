package routes

import (
	"time"

	"fieldbook-server/models"
	"fieldbook-server/services"
	"fieldbook-server/storage"
	"fieldbook-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type CreateOpponentFindingInput struct {
	BookingID    *uint  `json:"bookingId"`
	Date         string `json:"date"`
	StartSeconds int    `json:"startSeconds" validate:"min=0,max=86400"`
	EndSeconds   int    `json:"endSeconds" validate:"min=0,max=86400"`
	Message      string `json:"message" validate:"max=500"`
}

func CreateOpponentFinding(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateOpponentFindingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	serviceInput := services.CreateFindingInput{
		HolderID:     claims.ID,
		BookingID:    input.BookingID,
		StartSeconds: input.StartSeconds,
		EndSeconds:   input.EndSeconds,
		Message:      input.Message,
	}
	if input.BookingID == nil {
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format, expected YYYY-MM-DD", ctx)
			return
		}
		serviceInput.Date = date
	}

	opponentService := services.NewOpponentService()
	finding, err := opponentService.CreateFinding(storage.DB, serviceInput)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "opponentFinding": finding})
}

// ListOpenOpponentFindings lists posts still looking for an opponent,
// newest first.
func ListOpenOpponentFindings(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 50 {
		perPage = 20
	}

	query := storage.DB.Model(&models.OpponentFinding{}).
		Where("status = ?", models.FindingStatusFinding)

	var total int64
	query.Count(&total)

	var findings []models.OpponentFinding
	if err := query.
		Preload("Holder").
		Order("date ASC, start_seconds ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&findings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.JSONPage(ctx, findings, page, perPage, total)
}

func GetMyOpponentFindings(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var findings []models.OpponentFinding
	if err := storage.DB.Where("holder_id = ?", claims.ID).
		Preload("Requests").
		Preload("Requests.Requester").
		Order("created_at DESC").
		Find(&findings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "opponentFindings": findings})
}

type CreateOpponentRequestInput struct {
	Message string `json:"message" validate:"max=500"`
}

func CreateOpponentFindingRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	findingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid opponent finding ID", ctx)
		return
	}

	var input CreateOpponentRequestInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	opponentService := services.NewOpponentService()
	request, err := opponentService.CreateRequest(storage.DB, findingID, claims.ID, input.Message)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "request": request})
}

// AcceptOpponentFindingRequest matches the post with one responder and
// overlap-cancels the responder's other active posts and requests.
func AcceptOpponentFindingRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	requestID, err := ctx.Params().GetUint("requestID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid request ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	request, err := opponentService.AcceptRequest(storage.DB, requestID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	utils.Audit(ctx, "opponent_request_accepted", "opponent_finding_request", requestID, nil, request)
	ctx.JSON(iris.Map{"success": true, "request": request})
}

func CancelOpponentFindingRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	requestID, err := ctx.Params().GetUint("requestID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid request ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	request, err := opponentService.CancelRequest(storage.DB, requestID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "request": request})
}

func CancelOpponentFinding(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	findingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid opponent finding ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	finding, err := opponentService.CancelFinding(storage.DB, findingID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "opponentFinding": finding})
}

// RestoreOpponentFinding reverses an overlap cancellation, failing with the
// blocking set while an overlapping accepted claim still exists.
func RestoreOpponentFinding(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	findingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid opponent finding ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	finding, err := opponentService.RestoreFinding(storage.DB, findingID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "opponentFinding": finding})
}

func RestoreOpponentFindingRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	requestID, err := ctx.Params().GetUint("requestID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid request ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	request, err := opponentService.RestoreRequest(storage.DB, requestID, claims.ID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "request": request})
}

// CheckOpponentFindingRestorable is the read-only probe the UI calls before
// offering the restore button.
func CheckOpponentFindingRestorable(ctx iris.Context) {
	findingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid opponent finding ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	restorable, err := opponentService.CheckRestorableFinding(storage.DB, findingID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "restorable": restorable})
}

func CheckOpponentFindingRequestRestorable(ctx iris.Context) {
	requestID, err := ctx.Params().GetUint("requestID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid request ID", ctx)
		return
	}

	opponentService := services.NewOpponentService()
	restorable, err := opponentService.CheckRestorableRequest(storage.DB, requestID)
	if err != nil {
		utils.HandleAppError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "restorable": restorable})
}
