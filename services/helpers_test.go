package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createUser(t *testing.T, db *gorm.DB, role string) models.User {
	id := uuid.NewString()
	user := models.User{
		Auth0ID: "auth0|" + id,
		Name:    "User " + id[:8],
		Email:   id[:8] + "@example.com",
		Role:    role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createPart(t *testing.T, db *gorm.DB, price string, stock int) models.CarPart {
	part := models.CarPart{
		Name:       "Part " + uuid.NewString()[:8],
		PartNumber: "PN-" + uuid.NewString()[:8],
		Brand:      "Bosch",
		Category:   "brakes",
		Price:      dec(price),
		Stock:      stock,
	}
	require.NoError(t, db.Create(&part).Error)
	return part
}

func createVehicle(t *testing.T, db *gorm.DB, ownerID uuid.UUID, rentable bool, rate string) models.Vehicle {
	vin := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:models.VINLength]
	vehicle := models.Vehicle{
		OwnerID:   ownerID,
		Make:      "Toyota",
		Model:     "Corolla",
		Year:      2022,
		VIN:       vin,
		Rentable:  rentable,
		DailyRate: dec(rate),
	}
	require.NoError(t, db.Create(&vehicle).Error)
	return vehicle
}

func stockOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	var part models.CarPart
	require.NoError(t, db.First(&part, "id = ?", id).Error)
	return part.Stock
}

// createFileHeader builds a multipart.FileHeader holding content
func createFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

// mockNotifier records notifications
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func newAcceptingNotifier() *mockNotifier {
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil)
	return n
}

// waitForNotifications drains background sends before asserting on a notifier
func waitForNotifications(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, WaitForNotifications(ctx))
}
