package controllers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kendall-kelly/motorhub-api/middleware"
	"github.com/kendall-kelly/motorhub-api/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db), "Failed to migrate test database")
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// mockAuthMiddleware fills the context the way EnsureValidToken does for a
// token with subject auth0ID and the given role claim
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserID, auth0ID)
		c.Set(middleware.CtxAccessToken, accessToken)
		c.Set(middleware.CtxClaims, &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

type testFile struct {
	field    string
	filename string
	content  []byte
}

func createTestUser(t *testing.T, db *gorm.DB, auth0ID, role string) models.User {
	user := models.User{
		Auth0ID: auth0ID,
		Name:    "User " + auth0ID,
		Email:   strings.ReplaceAll(auth0ID, "|", "_") + "@example.com",
		Role:    role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestPart(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price string, stock int) models.CarPart {
	part := models.CarPart{
		Name:       "Part " + uuid.NewString()[:8],
		PartNumber: "PN-" + uuid.NewString()[:8],
		Category:   "brakes",
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		SellerID:   sellerID,
	}
	require.NoError(t, db.Create(&part).Error)
	return part
}

func createTestVehicle(t *testing.T, db *gorm.DB, ownerID uuid.UUID, rentable bool, rate string) models.Vehicle {
	vehicle := models.Vehicle{
		OwnerID:   ownerID,
		Make:      "Honda",
		Model:     "Civic",
		Year:      2021,
		VIN:       strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:models.VINLength],
		Rentable:  rentable,
		DailyRate: decimal.RequireFromString(rate),
	}
	require.NoError(t, db.Create(&vehicle).Error)
	return vehicle
}

// performJSON sends body as JSON through router
func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// performMultipart sends payload as the JSON payload field together with files
func performMultipart(t *testing.T, router *gin.Engine, method, path string, payload interface{}, files ...testFile) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		require.NoError(t, writer.WriteField(payloadField, string(raw)))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	response := decodeResponse(t, w)
	require.True(t, response["success"].(bool), "body: %s", w.Body.String())
	return response["data"].(map[string]interface{})
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	response := decodeResponse(t, w)
	require.False(t, response["success"].(bool), "body: %s", w.Body.String())
	return response["error"].(map[string]interface{})["code"].(string)
}

func assertDecimal(t *testing.T, want string, got interface{}) {
	t.Helper()
	s, ok := got.(string)
	require.True(t, ok, "expected a decimal string, got %#v", got)
	require.True(t, decimal.RequireFromString(want).Equal(decimal.RequireFromString(s)), "want %s, got %s", want, s)
}
