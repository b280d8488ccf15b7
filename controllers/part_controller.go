package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

const imageField = "image"

// PartRequest represents the request body for creating or editing a part.
// Omitted fields are left unchanged on update.
type PartRequest struct {
	Name            *string          `json:"name"`
	PartNumber      *string          `json:"part_number"`
	Brand           *string          `json:"brand"`
	Category        *string          `json:"category"`
	CompatibleMakes *string          `json:"compatible_makes"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	Stock           *int             `json:"stock"`
}

// RestockRequest represents the request body for adding stock
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (r PartRequest) input(c *gin.Context) services.PartInput {
	return services.PartInput{
		Name:            r.Name,
		PartNumber:      r.PartNumber,
		Brand:           r.Brand,
		Category:        r.Category,
		CompatibleMakes: r.CompatibleMakes,
		Description:     r.Description,
		Price:           r.Price,
		Stock:           r.Stock,
		Image:           formFile(c, imageField),
	}
}

// CreatePart handles POST /api/v1/parts - lists a part for sale (mechanics and admins)
func CreatePart(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requireRole(c, user, models.RoleMechanic, models.RoleAdmin) {
		return
	}

	var req PartRequest
	if !bindPayload(c, &req) {
		return
	}

	part, err := partService().CreatePart(c.Request.Context(), user.ID, req.input(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, part)
}

// ListParts handles GET /api/v1/parts
func ListParts(c *gin.Context) {
	inStock, _ := strconv.ParseBool(c.Query("in_stock"))
	filter := services.PartFilter{
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
		Search:   c.Query("search"),
		InStock:  inStock,
		Page:     parsePage(c),
	}

	parts, total, err := partService().ListParts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, parts, total, filter.Page)
}

// GetPart handles GET /api/v1/parts/:id
func GetPart(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	part, err := partService().GetPart(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, part)
}

// UpdatePart handles PUT /api/v1/parts/:id (seller or admin)
func UpdatePart(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req PartRequest
	if !bindPayload(c, &req) {
		return
	}

	part, err := partService().UpdatePart(c.Request.Context(), user, id, req.input(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, part)
}

// RestockPart handles POST /api/v1/parts/:id/restock (seller or admin)
func RestockPart(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	part, err := partService().Restock(c.Request.Context(), user, id, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, part)
}

// DeletePart handles DELETE /api/v1/parts/:id (seller or admin)
func DeletePart(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := partService().DeletePart(c.Request.Context(), user, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Part deleted",
	})
}
