package main

import (
	"fmt"
	"log"
	"os"

	"fieldbook-server/routes"
	"fieldbook-server/storage"
	"fieldbook-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	// JWT Verifiers
	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Get("/me", accessTokenVerifierMiddleware, routes.GetUser)
		user.Patch("/pushtoken", accessTokenVerifierMiddleware, routes.AlterPushToken)
		user.Put("/settings/notifications", accessTokenVerifierMiddleware, routes.UpdateNotificationSettings)
	}

	field := app.Party("/api/field")
	{
		field.Post("/", accessTokenVerifierMiddleware, routes.CreateField)
		field.Get("/mine", accessTokenVerifierMiddleware, routes.GetMyFields)
		field.Get("/{id:uint}", routes.GetField)
		field.Post("/{id:uint}/deactivate", accessTokenVerifierMiddleware, routes.DeactivateField)
		field.Post("/{id:uint}/partial", accessTokenVerifierMiddleware, routes.CreatePartialField)
		field.Post("/partial/{partialFieldID:uint}/deactivate", accessTokenVerifierMiddleware, routes.DeactivatePartialField)
		field.Post("/{id:uint}/inactive-periods", accessTokenVerifierMiddleware, routes.CreateInactivePeriod)
		field.Delete("/inactive-periods/{periodID:uint}", accessTokenVerifierMiddleware, routes.DeleteInactivePeriod)
		field.Put("/{id:uint}/slots", accessTokenVerifierMiddleware, routes.SetTimeSlots)
		field.Get("/{id:uint}/free", routes.GetFreePartialFields)
		field.Get("/{id:uint}/bookings", accessTokenVerifierMiddleware, routes.GetFieldBookings)
	}

	booking := app.Party("/api/booking")
	{
		booking.Post("/", accessTokenVerifierMiddleware, routes.CreateBooking)
		booking.Get("/mine", accessTokenVerifierMiddleware, routes.GetMyBookings)
		booking.Patch("/{id:uint}/status", accessTokenVerifierMiddleware, routes.UpdateBookingStatus)
	}

	opponent := app.Party("/api/opponent")
	{
		opponent.Post("/", accessTokenVerifierMiddleware, routes.CreateOpponentFinding)
		opponent.Get("/", routes.ListOpenOpponentFindings)
		opponent.Get("/mine", accessTokenVerifierMiddleware, routes.GetMyOpponentFindings)
		opponent.Post("/{id:uint}/cancel", accessTokenVerifierMiddleware, routes.CancelOpponentFinding)
		opponent.Post("/{id:uint}/restore", accessTokenVerifierMiddleware, routes.RestoreOpponentFinding)
		opponent.Get("/{id:uint}/restorable", accessTokenVerifierMiddleware, routes.CheckOpponentFindingRestorable)
		opponent.Post("/{id:uint}/requests", accessTokenVerifierMiddleware, routes.CreateOpponentFindingRequest)
		opponent.Post("/requests/{requestID:uint}/accept", accessTokenVerifierMiddleware, routes.AcceptOpponentFindingRequest)
		opponent.Post("/requests/{requestID:uint}/cancel", accessTokenVerifierMiddleware, routes.CancelOpponentFindingRequest)
		opponent.Post("/requests/{requestID:uint}/restore", accessTokenVerifierMiddleware, routes.RestoreOpponentFindingRequest)
		opponent.Get("/requests/{requestID:uint}/restorable", accessTokenVerifierMiddleware, routes.CheckOpponentFindingRequestRestorable)
	}

	notifications := app.Party("/api/notifications")
	{
		notifications.Get("/", accessTokenVerifierMiddleware, routes.GetMyNotifications)
		notifications.Patch("/{id:uint}/read", accessTokenVerifierMiddleware, routes.MarkNotificationRead)
		notifications.Post("/read-all", accessTokenVerifierMiddleware, routes.MarkAllNotificationsRead)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", routes.AdminListUsers)
		admin.Patch("/users/{id:uint}/role", utils.SuperAdminOnlyMiddleware, routes.AdminChangeUserRole)
		admin.Get("/fields", routes.AdminListFields)
		admin.Patch("/fields/{id:uint}/status", routes.AdminUpdateFieldStatus)
		admin.Get("/audit", routes.AdminListAuditLogs)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
