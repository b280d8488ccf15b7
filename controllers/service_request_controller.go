package controllers

import (
	"errors"
	"net/http"
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

// CreateServiceRequestRequest represents the request body for booking a service
type CreateServiceRequestRequest struct {
	VehicleID     uuid.UUID          `json:"vehicle_id" binding:"required"`
	ServiceType   models.ServiceType `json:"service_type" binding:"required"`
	Description   string             `json:"description" binding:"required"`
	PreferredDate *time.Time         `json:"preferred_date"`
}

// UpdateServiceStatusRequest represents the request body for moving a service request along
type UpdateServiceStatusRequest struct {
	Status models.ServiceRequestStatus `json:"status" binding:"required"`
}

// AssignMechanicRequest represents the request body for assigning a mechanic
type AssignMechanicRequest struct {
	MechanicID uuid.UUID `json:"mechanic_id" binding:"required"`
}

// SetServiceCostRequest represents the request body for pricing a service request
type SetServiceCostRequest struct {
	TotalCost *decimal.Decimal `json:"total_cost" binding:"required"`
}

func loadServiceRequest(c *gin.Context, db *gorm.DB, id uuid.UUID) (*models.ServiceRequest, bool) {
	var sr models.ServiceRequest
	err := db.WithContext(c.Request.Context()).
		Preload("Customer").Preload("Vehicle").Preload("Mechanic").
		First(&sr, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondErrorCode(c, http.StatusNotFound, "SERVICE_REQUEST_NOT_FOUND", "Service request not found")
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}
	return &sr, true
}

func isAssignedMechanic(sr *models.ServiceRequest, user *models.User) bool {
	return sr.MechanicID != nil && *sr.MechanicID == user.ID
}

// CreateServiceRequest handles POST /api/v1/service-requests - a customer books work on their own vehicle
func CreateServiceRequest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateServiceRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if !req.ServiceType.Valid() {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_SERVICE_TYPE", "Unknown service type")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Description is required")
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var vehicle models.Vehicle
	if err := db.First(&vehicle, "id = ?", req.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondErrorCode(c, http.StatusNotFound, "VEHICLE_NOT_FOUND", "Vehicle not found")
			return
		}
		respondError(c, err)
		return
	}
	if vehicle.OwnerID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You can only request service for your own vehicles")
		return
	}

	sr := models.ServiceRequest{
		CustomerID:    user.ID,
		VehicleID:     vehicle.ID,
		ServiceType:   req.ServiceType,
		Description:   strings.TrimSpace(req.Description),
		PreferredDate: req.PreferredDate,
		Status:        models.ServicePending,
		TotalCost:     decimal.Zero,
		PaymentStatus: models.PaymentUnpaid,
	}
	if err := db.Create(&sr).Error; err != nil {
		respondError(c, err)
		return
	}

	created, ok := loadServiceRequest(c, db, sr.ID)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusCreated, created)
}

// ListServiceRequests handles GET /api/v1/service-requests. Customers see their
// own requests, mechanics the ones assigned to them, admins all of them.
func ListServiceRequests(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page := parsePage(c)
	q := config.GetDB().WithContext(c.Request.Context()).Model(&models.ServiceRequest{})
	switch user.Role {
	case models.RoleAdmin:
	case models.RoleMechanic:
		q = q.Where("mechanic_id = ?", user.ID)
	default:
		q = q.Where("customer_id = ?", user.ID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var requests []models.ServiceRequest
	if err := page.Apply(q).Preload("Vehicle").Order("created_at DESC").Find(&requests).Error; err != nil {
		respondError(c, err)
		return
	}

	respondList(c, requests, total, page)
}

// GetServiceRequest handles GET /api/v1/service-requests/:id
func GetServiceRequest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sr, ok := loadServiceRequest(c, config.GetDB(), id)
	if !ok {
		return
	}
	if !user.IsAdmin() && sr.CustomerID != user.ID && !isAssignedMechanic(sr, user) {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this service request")
		return
	}

	respondSuccess(c, http.StatusOK, sr)
}

// UpdateServiceRequestStatus handles PATCH /api/v1/service-requests/:id/status.
// The assigned mechanic and admins drive the workflow; customers may only cancel.
func UpdateServiceRequestStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateServiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if !req.Status.Valid() {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown service request status")
		return
	}

	db := config.GetDB()
	sr, ok := loadServiceRequest(c, db, id)
	if !ok {
		return
	}

	allowed := user.IsAdmin() || isAssignedMechanic(sr, user) ||
		(sr.CustomerID == user.ID && req.Status == models.ServiceCancelled)
	if !allowed {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to change this service request")
		return
	}
	if !sr.Status.CanTransitionTo(req.Status) {
		respondErrorCode(c, http.StatusConflict, "INVALID_STATUS_TRANSITION",
			"Cannot move a "+string(sr.Status)+" service request to "+string(req.Status))
		return
	}

	res := db.WithContext(c.Request.Context()).Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", id, sr.Status).
		Update("status", req.Status)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, services.ErrStatusConflict)
		return
	}

	updated, ok := loadServiceRequest(c, db, id)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, updated)
}

// AssignMechanic handles PATCH /api/v1/service-requests/:id/assign (admins only).
// A pending request becomes accepted once a mechanic is assigned.
func AssignMechanic(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requireRole(c, user, models.RoleAdmin) {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AssignMechanicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()
	sr, ok := loadServiceRequest(c, db, id)
	if !ok {
		return
	}
	if sr.Status == models.ServiceCompleted || sr.Status == models.ServiceCancelled {
		respondErrorCode(c, http.StatusConflict, "SERVICE_REQUEST_CLOSED", "Service request is already "+string(sr.Status))
		return
	}

	var mechanic models.User
	if err := db.WithContext(c.Request.Context()).First(&mechanic, "id = ?", req.MechanicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondErrorCode(c, http.StatusNotFound, "MECHANIC_NOT_FOUND", "Mechanic not found")
			return
		}
		respondError(c, err)
		return
	}
	if mechanic.Role != models.RoleMechanic {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_MECHANIC", "Assigned user is not a mechanic")
		return
	}

	updates := map[string]interface{}{"mechanic_id": mechanic.ID}
	if sr.Status == models.ServicePending {
		updates["status"] = models.ServiceAccepted
	}
	if err := db.WithContext(c.Request.Context()).Model(&models.ServiceRequest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		respondError(c, err)
		return
	}

	updated, ok := loadServiceRequest(c, db, id)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, updated)
}

// SetServiceCost handles PATCH /api/v1/service-requests/:id/cost. Only the
// assigned mechanic or an admin may price the work, and not once a payment
// has been recorded against it.
func SetServiceCost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetServiceCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.TotalCost.IsNegative() {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_AMOUNT", "Total cost must not be negative")
		return
	}

	db := config.GetDB()
	sr, ok := loadServiceRequest(c, db, id)
	if !ok {
		return
	}
	if !user.IsAdmin() && !isAssignedMechanic(sr, user) {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "Only the assigned mechanic or an admin can set the cost")
		return
	}
	if sr.PaymentStatus == models.PaymentPending || sr.PaymentStatus == models.PaymentCompleted {
		respondErrorCode(c, http.StatusConflict, "COST_LOCKED", "Cost cannot change after a payment was recorded")
		return
	}

	if err := db.WithContext(c.Request.Context()).Model(&models.ServiceRequest{}).
		Where("id = ?", id).
		Update("total_cost", req.TotalCost.Round(2)).Error; err != nil {
		respondError(c, err)
		return
	}

	updated, ok := loadServiceRequest(c, db, id)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, updated)
}
