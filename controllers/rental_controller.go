package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

// CreateRentalRequest represents the request body for booking a rental
type CreateRentalRequest struct {
	VehicleID uuid.UUID `json:"vehicle_id" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

// UpdateRentalStatusRequest represents the request body for changing a booking's status
type UpdateRentalStatusRequest struct {
	Status models.RentalStatus `json:"status" binding:"required"`
}

// CreateRental handles POST /api/v1/rentals - books a rentable vehicle for the caller
func CreateRental(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	booking, err := rentalService().CreateBooking(c.Request.Context(), services.CreateBookingInput{
		CustomerID: user.ID,
		VehicleID:  req.VehicleID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, booking)
}

// ListRentals handles GET /api/v1/rentals. Customers see their bookings and
// the bookings of vehicles they own; admins see all.
func ListRentals(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page := parsePage(c)
	db := config.GetDB().WithContext(c.Request.Context())
	q := db.Model(&models.RentalBooking{})
	if !user.IsAdmin() {
		owned := db.Model(&models.Vehicle{}).Select("id").Where("owner_id = ?", user.ID)
		q = q.Where("customer_id = ? OR vehicle_id IN (?)", user.ID, owned)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	vehicleID, ok := parseUUIDQuery(c, "vehicle_id")
	if !ok {
		return
	}
	if vehicleID != nil {
		q = q.Where("vehicle_id = ?", *vehicleID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var bookings []models.RentalBooking
	if err := page.Apply(q).Preload("Vehicle").Order("start_date ASC").Find(&bookings).Error; err != nil {
		respondError(c, err)
		return
	}

	respondList(c, bookings, total, page)
}

func canManageBooking(user *models.User, booking *models.RentalBooking) bool {
	return user.IsAdmin() || (booking.Vehicle != nil && booking.Vehicle.OwnerID == user.ID)
}

// GetRental handles GET /api/v1/rentals/:id
func GetRental(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := rentalService().GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if booking.CustomerID != user.ID && !canManageBooking(user, booking) {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this booking")
		return
	}

	respondSuccess(c, http.StatusOK, booking)
}

// UpdateRentalStatus handles PATCH /api/v1/rentals/:id/status. The vehicle
// owner and admins manage bookings; the renter may only cancel.
func UpdateRentalStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateRentalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	svc := rentalService()
	booking, err := svc.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	renterCancelling := booking.CustomerID == user.ID && req.Status == models.RentalCancelled
	if !renterCancelling && !canManageBooking(user, booking) {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to change this booking")
		return
	}

	updated, err := svc.UpdateBookingStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, updated)
}
