package routes

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"fieldbook-server/models"
	"fieldbook-server/storage"
	"fieldbook-server/utils"

	"github.com/glebarez/sqlite"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// buildTestApp creates a minimal Iris app with the admin routes, a JWT
// verifier and a throwaway sqlite database behind storage.DB.
func buildTestApp(t *testing.T) *iris.Application {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")

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

	app := iris.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} { return new(utils.AccessToken) })

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", AdminListUsers)
		admin.Get("/fields", AdminListFields)
		admin.Patch("/fields/{id:uint}/status", AdminUpdateFieldStatus)
	}
	if err := app.Build(); err != nil {
		t.Fatalf("building app: %v", err)
	}
	return app
}

// signTestToken returns a signed JWT with the given role
func signTestToken(role string) string {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 0)
	token, _ := signer.Sign(utils.AccessToken{ID: 1, Role: role})
	return string(token)
}

func TestAdminUsersRBAC(t *testing.T) {
	app := buildTestApp(t)

	// No token -> rejected by the verifier
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code == http.StatusOK {
		t.Fatalf("expected non-200 without token, got %d", resp.Code)
	}

	// User role -> 403
	req2 := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req2.Header.Set("Authorization", "Bearer "+signTestToken("user"))
	resp2 := httptest.NewRecorder()
	app.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", resp2.Code)
	}

	// Admin role -> 200 (empty list OK)
	req3 := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req3.Header.Set("Authorization", "Bearer "+signTestToken("admin"))
	resp3 := httptest.NewRecorder()
	app.ServeHTTP(resp3, req3)
	if resp3.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", resp3.Code)
	}
}

func TestAdminFieldApproval(t *testing.T) {
	app := buildTestApp(t)

	owner := models.User{FirstName: "Field", LastName: "Owner", Email: "owner@test.local", Password: "x"}
	if err := storage.DB.Create(&owner).Error; err != nil {
		t.Fatalf("seeding owner: %v", err)
	}
	field := models.Field{OwnerID: owner.ID, Name: "Pending Field", OpenSeconds: 8 * 3600, CloseSeconds: 22 * 3600, Status: models.FieldStatusPending}
	if err := storage.DB.Create(&field).Error; err != nil {
		t.Fatalf("seeding field: %v", err)
	}

	// bogus status -> 400
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/fields/1/status", strings.NewReader(`{"status":"sideways"}`))
	req.Header.Set("Authorization", "Bearer "+signTestToken("admin"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", resp.Code)
	}

	req2 := httptest.NewRequest(http.MethodPatch, "/api/admin/fields/1/status", strings.NewReader(`{"status":"approved"}`))
	req2.Header.Set("Authorization", "Bearer "+signTestToken("admin"))
	req2.Header.Set("Content-Type", "application/json")
	resp2 := httptest.NewRecorder()
	app.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected 200 approving field, got %d: %s", resp2.Code, resp2.Body.String())
	}

	var reloaded models.Field
	if err := storage.DB.First(&reloaded, field.ID).Error; err != nil {
		t.Fatalf("reloading field: %v", err)
	}
	if reloaded.Status != models.FieldStatusApproved {
		t.Fatalf("expected approved, got %s", reloaded.Status)
	}

	var audit models.AuditLog
	if err := storage.DB.Where("action = ?", "field.status_update").First(&audit).Error; err != nil {
		t.Fatalf("expected an audit row: %v", err)
	}
}
