package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

// attachmentsField is the multipart field holding order and claim documents
const attachmentsField = "attachments"

// OrderItemRequest is one line of a new order
type OrderItemRequest struct {
	PartID   uuid.UUID `json:"part_id" binding:"required"`
	Quantity int       `json:"quantity"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Items    []OrderItemRequest  `json:"items" binding:"required,min=1,dive"`
	Shipping models.ShippingInfo `json:"shipping"`
}

// UpdateOrderStatusRequest represents the request body for changing an order's status
type UpdateOrderStatusRequest struct {
	Status         models.OrderStatus `json:"status" binding:"required"`
	TrackingNumber *string            `json:"tracking_number"`
	Remarks        *string            `json:"remarks"`
}

// CreateOrder handles POST /api/v1/orders - places a part order for the caller.
// Accepts JSON, or multipart with the JSON in "payload" and files in "attachments".
func CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !bindPayload(c, &req) {
		return
	}

	items := make([]services.OrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = services.OrderItemInput{PartID: it.PartID, Quantity: it.Quantity}
	}

	order, err := orderService().CreateOrder(c.Request.Context(), services.CreateOrderInput{
		BuyerID:     user.ID,
		Items:       items,
		Shipping:    req.Shipping,
		Attachments: formFiles(c, attachmentsField),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - buyers see their own orders, admins see all
func ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filter := services.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Page:   parsePage(c),
	}
	if user.IsAdmin() {
		buyerID, ok := parseUUIDQuery(c, "buyer_id")
		if !ok {
			return
		}
		filter.BuyerID = buyerID
	} else {
		filter.BuyerID = &user.ID
	}

	orders, total, err := orderService().ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, orders, total, filter.Page)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := orderService().GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.IsAdmin() && order.BuyerID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this order")
		return
	}

	respondSuccess(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status. Admins may move
// an order to any status; buyers may only cancel their own orders.
func UpdateOrderStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	svc := orderService()
	if !user.IsAdmin() {
		order, err := svc.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if order.BuyerID != user.ID || req.Status != models.OrderCancelled {
			respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "Only admins can change this order's status")
			return
		}
	}

	order, err := svc.UpdateOrderStatus(c.Request.Context(), services.UpdateOrderStatusInput{
		OrderID:        id,
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		Remarks:        req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, order)
}
