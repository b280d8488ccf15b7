package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

// firstModelYear is the earliest accepted vehicle model year
const firstModelYear = 1886

// VehicleRequest represents the request body for registering or editing a
// vehicle. Omitted fields are left unchanged on update.
type VehicleRequest struct {
	Make         *string          `json:"make"`
	Model        *string          `json:"model"`
	Year         *int             `json:"year"`
	VIN          *string          `json:"vin"`
	LicensePlate *string          `json:"license_plate"`
	Mileage      *int             `json:"mileage"`
	Color        *string          `json:"color"`
	Rentable     *bool            `json:"rentable"`
	DailyRate    *decimal.Decimal `json:"daily_rate"`
}

// validate checks the fields that are set. creating requires make, model, year and VIN.
func (r VehicleRequest) validate(creating bool) (string, string) {
	if creating {
		if r.Make == nil || strings.TrimSpace(*r.Make) == "" || r.Model == nil || strings.TrimSpace(*r.Model) == "" {
			return "VALIDATION_ERROR", "Make and model are required"
		}
		if r.Year == nil || r.VIN == nil {
			return "VALIDATION_ERROR", "Year and VIN are required"
		}
	}
	if r.Year != nil && (*r.Year < firstModelYear || *r.Year > time.Now().Year()+1) {
		return "INVALID_YEAR", "Year is out of range"
	}
	if r.VIN != nil && len(strings.TrimSpace(*r.VIN)) != models.VINLength {
		return "INVALID_VIN", "VIN must be 17 characters"
	}
	if r.Mileage != nil && *r.Mileage < 0 {
		return "INVALID_MILEAGE", "Mileage must not be negative"
	}
	if r.DailyRate != nil && r.DailyRate.IsNegative() {
		return "INVALID_AMOUNT", "Daily rate must not be negative"
	}
	return "", ""
}

func (r VehicleRequest) apply(v *models.Vehicle) {
	if r.Make != nil {
		v.Make = strings.TrimSpace(*r.Make)
	}
	if r.Model != nil {
		v.Model = strings.TrimSpace(*r.Model)
	}
	if r.Year != nil {
		v.Year = *r.Year
	}
	if r.VIN != nil {
		v.VIN = strings.ToUpper(strings.TrimSpace(*r.VIN))
	}
	if r.LicensePlate != nil {
		v.LicensePlate = *r.LicensePlate
	}
	if r.Mileage != nil {
		v.Mileage = *r.Mileage
	}
	if r.Color != nil {
		v.Color = *r.Color
	}
	if r.Rentable != nil {
		v.Rentable = *r.Rentable
	}
	if r.DailyRate != nil {
		v.DailyRate = r.DailyRate.Round(2)
	}
}

func loadVehicle(c *gin.Context, db *gorm.DB, id uuid.UUID) (*models.Vehicle, bool) {
	var vehicle models.Vehicle
	if err := db.WithContext(c.Request.Context()).First(&vehicle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondErrorCode(c, http.StatusNotFound, "VEHICLE_NOT_FOUND", "Vehicle not found")
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}
	return &vehicle, true
}

func saveVehicle(c *gin.Context, db *gorm.DB, vehicle *models.Vehicle, status int) {
	if vehicle.Rentable && !vehicle.DailyRate.IsPositive() {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_AMOUNT", "Rentable vehicles need a positive daily rate")
		return
	}
	if err := db.WithContext(c.Request.Context()).Save(vehicle).Error; err != nil {
		if services.IsUniqueViolation(err) {
			respondErrorCode(c, http.StatusConflict, "VIN_EXISTS", "A vehicle with this VIN already exists")
			return
		}
		respondError(c, err)
		return
	}
	respondSuccess(c, status, vehicle)
}

// CreateVehicle handles POST /api/v1/vehicles - registers a vehicle owned by the caller
func CreateVehicle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if code, msg := req.validate(true); code != "" {
		respondErrorCode(c, http.StatusBadRequest, code, msg)
		return
	}

	vehicle := models.Vehicle{OwnerID: user.ID}
	req.apply(&vehicle)
	saveVehicle(c, config.GetDB(), &vehicle, http.StatusCreated)
}

// ListVehicles handles GET /api/v1/vehicles. ?rentable=true lists every
// vehicle offered for rent; otherwise callers see their own vehicles and
// admins see all.
func ListVehicles(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page := parsePage(c)
	q := config.GetDB().WithContext(c.Request.Context()).Model(&models.Vehicle{})
	if rentable, _ := strconv.ParseBool(c.Query("rentable")); rentable {
		q = q.Where("rentable = ?", true)
	} else if !user.IsAdmin() {
		q = q.Where("owner_id = ?", user.ID)
	}
	if mk := c.Query("make"); mk != "" {
		q = q.Where("LOWER(make) = ?", strings.ToLower(mk))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var vehicles []models.Vehicle
	if err := page.Apply(q).Order("created_at DESC").Find(&vehicles).Error; err != nil {
		respondError(c, err)
		return
	}

	respondList(c, vehicles, total, page)
}

// GetVehicle handles GET /api/v1/vehicles/:id. Rentable vehicles are visible to everyone.
func GetVehicle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	vehicle, ok := loadVehicle(c, config.GetDB(), id)
	if !ok {
		return
	}
	if !vehicle.Rentable && !user.IsAdmin() && vehicle.OwnerID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this vehicle")
		return
	}

	respondSuccess(c, http.StatusOK, vehicle)
}

// UpdateVehicle handles PUT /api/v1/vehicles/:id (owner or admin)
func UpdateVehicle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if code, msg := req.validate(false); code != "" {
		respondErrorCode(c, http.StatusBadRequest, code, msg)
		return
	}

	db := config.GetDB()
	vehicle, ok := loadVehicle(c, db, id)
	if !ok {
		return
	}
	if !user.IsAdmin() && vehicle.OwnerID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to edit this vehicle")
		return
	}

	req.apply(vehicle)
	saveVehicle(c, db, vehicle, http.StatusOK)
}

// DeleteVehicle handles DELETE /api/v1/vehicles/:id (owner or admin). Vehicles
// with open rental bookings cannot be removed.
func DeleteVehicle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db := config.GetDB()
	vehicle, ok := loadVehicle(c, db, id)
	if !ok {
		return
	}
	if !user.IsAdmin() && vehicle.OwnerID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to delete this vehicle")
		return
	}

	var open int64
	if err := db.WithContext(c.Request.Context()).Model(&models.RentalBooking{}).
		Where("vehicle_id = ? AND status IN ?", id,
			[]models.RentalStatus{models.RentalPending, models.RentalConfirmed, models.RentalActive}).
		Count(&open).Error; err != nil {
		respondError(c, err)
		return
	}
	if open > 0 {
		respondErrorCode(c, http.StatusConflict, "VEHICLE_IN_USE", "Vehicle has open rental bookings")
		return
	}

	if err := db.WithContext(c.Request.Context()).Delete(&models.Vehicle{}, "id = ?", id).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Vehicle deleted",
	})
}
