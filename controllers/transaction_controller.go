package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

const receiptField = "receipt"

// CreateTransactionRequest represents the request body for recording a payment
type CreateTransactionRequest struct {
	ReferenceType string               `json:"reference_type" binding:"required"`
	ReferenceID   uuid.UUID            `json:"reference_id" binding:"required"`
	Amount        *decimal.Decimal     `json:"amount" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
	Currency      string               `json:"currency"`
	Remarks       *string              `json:"remarks"`
}

// UpdateTransactionStatusRequest represents the request body for changing a transaction's status
type UpdateTransactionStatusRequest struct {
	Status  models.TransactionStatus `json:"status" binding:"required"`
	Remarks *string                  `json:"remarks"`
}

// CreateTransaction handles POST /api/v1/transactions - records a payment by the caller.
// Accepts JSON, or multipart with the JSON in "payload" and the receipt file in "receipt".
func CreateTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if !bindPayload(c, &req) {
		return
	}

	txn, err := paymentService().CreateTransaction(c.Request.Context(), services.CreateTransactionInput{
		PayerID:       user.ID,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Amount:        *req.Amount,
		PaymentMethod: req.PaymentMethod,
		Currency:      req.Currency,
		Receipt:       formFile(c, receiptField),
		Remarks:       req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, txn)
}

// ListTransactions handles GET /api/v1/transactions - payers see their own, admins see all
func ListTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filter := services.TransactionFilter{
		Status:        models.TransactionStatus(c.Query("status")),
		ReferenceType: models.ReferenceType(c.Query("reference_type")),
		Page:          parsePage(c),
	}
	if user.IsAdmin() {
		payerID, ok := parseUUIDQuery(c, "payer_id")
		if !ok {
			return
		}
		filter.PayerID = payerID
	} else {
		filter.PayerID = &user.ID
	}

	txns, total, err := paymentService().ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, txns, total, filter.Page)
}

// loadTransaction fetches the transaction named by :id if the caller may see it
func loadTransaction(c *gin.Context, svc *services.PaymentService) (*models.PaymentTransaction, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	txn, err := svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !user.IsAdmin() && txn.PayerID != user.ID {
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this transaction")
		return nil, false
	}
	return txn, true
}

// GetTransaction handles GET /api/v1/transactions/:id
func GetTransaction(c *gin.Context) {
	txn, ok := loadTransaction(c, paymentService())
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, txn)
}

// GetTransactionReceipt handles GET /api/v1/transactions/:id/receipt - returns
// the receipt number and a URL for the uploaded receipt
func GetTransactionReceipt(c *gin.Context) {
	txn, ok := loadTransaction(c, paymentService())
	if !ok {
		return
	}
	if txn.ReceiptURL == nil {
		respondErrorCode(c, http.StatusNotFound, "RECEIPT_NOT_FOUND", "No receipt was uploaded for this transaction")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"receipt_number": txn.ReceiptNumber,
		"filename":       txn.ReceiptFilename,
		"url":            *txn.ReceiptURL,
	})
}

// UpdateTransactionStatus handles PATCH /api/v1/transactions/:id/status (admins only)
func UpdateTransactionStatus(c *gin.Context) {
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

	var req UpdateTransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	txn, err := paymentService().UpdateTransactionStatus(c.Request.Context(), services.UpdateTransactionStatusInput{
		TransactionID: id,
		Status:        req.Status,
		Remarks:       req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, txn)
}
