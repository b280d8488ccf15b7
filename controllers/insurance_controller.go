package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

// CreatePolicyRequest represents the request body for insuring a vehicle
type CreatePolicyRequest struct {
	VehicleID      uuid.UUID           `json:"vehicle_id" binding:"required"`
	Provider       string              `json:"provider" binding:"required"`
	PolicyNumber   string              `json:"policy_number" binding:"required"`
	CoverageType   models.CoverageType `json:"coverage_type" binding:"required"`
	Premium        *decimal.Decimal    `json:"premium" binding:"required"`
	CoverageAmount *decimal.Decimal    `json:"coverage_amount" binding:"required"`
	StartDate      time.Time           `json:"start_date" binding:"required"`
	EndDate        time.Time           `json:"end_date" binding:"required"`
}

// CreateClaimRequest represents the request body for filing a claim
type CreateClaimRequest struct {
	PolicyID     uuid.UUID        `json:"policy_id" binding:"required"`
	IncidentDate time.Time        `json:"incident_date" binding:"required"`
	Description  string           `json:"description" binding:"required"`
	ClaimAmount  *decimal.Decimal `json:"claim_amount" binding:"required"`
}

// UpdateClaimStatusRequest represents the request body for a claim review decision
type UpdateClaimStatusRequest struct {
	Status  models.ClaimStatus `json:"status" binding:"required"`
	Remarks *string            `json:"remarks"`
}

// CreatePolicy handles POST /api/v1/insurance/policies - insures one of the caller's vehicles
func CreatePolicy(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	policy, err := insuranceService().CreatePolicy(c.Request.Context(), services.CreatePolicyInput{
		HolderID:       user.ID,
		VehicleID:      req.VehicleID,
		Provider:       req.Provider,
		PolicyNumber:   req.PolicyNumber,
		CoverageType:   req.CoverageType,
		Premium:        *req.Premium,
		CoverageAmount: *req.CoverageAmount,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, policy)
}

// ListPolicies handles GET /api/v1/insurance/policies - holders see their own, admins see all
func ListPolicies(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page := parsePage(c)
	q := config.GetDB().WithContext(c.Request.Context()).Model(&models.InsurancePolicy{})
	if !user.IsAdmin() {
		q = q.Where("holder_id = ?", user.ID)
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

	var policies []models.InsurancePolicy
	if err := page.Apply(q).Preload("Vehicle").Order("start_date DESC").Find(&policies).Error; err != nil {
		respondError(c, err)
		return
	}

	respondList(c, policies, total, page)
}

// GetPolicy handles GET /api/v1/insurance/policies/:id
func GetPolicy(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	policy, err := insuranceService().GetPolicy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.IsAdmin() && policy.HolderID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this policy")
		return
	}

	respondSuccess(c, http.StatusOK, policy)
}

// CancelPolicy handles PATCH /api/v1/insurance/policies/:id/cancel (holder or admin)
func CancelPolicy(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	policy, err := insuranceService().CancelPolicy(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, policy)
}

// CreateClaim handles POST /api/v1/insurance/claims - files a claim against the caller's policy.
// Accepts JSON, or multipart with the JSON in "payload" and files in "attachments".
func CreateClaim(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateClaimRequest
	if !bindPayload(c, &req) {
		return
	}

	claim, err := insuranceService().CreateClaim(c.Request.Context(), services.CreateClaimInput{
		PolicyID:     req.PolicyID,
		ClaimantID:   user.ID,
		IncidentDate: req.IncidentDate,
		Description:  req.Description,
		ClaimAmount:  *req.ClaimAmount,
		Attachments:  formFiles(c, attachmentsField),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, claim)
}

// ListClaims handles GET /api/v1/insurance/claims - claimants see their own, admins see all
func ListClaims(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page := parsePage(c)
	q := config.GetDB().WithContext(c.Request.Context()).Model(&models.InsuranceClaim{})
	if !user.IsAdmin() {
		q = q.Where("claimant_id = ?", user.ID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	policyID, ok := parseUUIDQuery(c, "policy_id")
	if !ok {
		return
	}
	if policyID != nil {
		q = q.Where("policy_id = ?", *policyID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var claims []models.InsuranceClaim
	if err := page.Apply(q).Order("created_at DESC").Find(&claims).Error; err != nil {
		respondError(c, err)
		return
	}

	respondList(c, claims, total, page)
}

// GetClaim handles GET /api/v1/insurance/claims/:id
func GetClaim(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	claim, err := insuranceService().GetClaim(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.IsAdmin() && claim.ClaimantID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this claim")
		return
	}

	respondSuccess(c, http.StatusOK, claim)
}

// UpdateClaimStatus handles PATCH /api/v1/insurance/claims/:id/status (admins only)
func UpdateClaimStatus(c *gin.Context) {
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

	var req UpdateClaimStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	claim, err := insuranceService().UpdateClaimStatus(c.Request.Context(), id, req.Status, req.Remarks)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, claim)
}
