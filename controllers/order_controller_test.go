package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

func setupOrderRouter(auth0ID, role string) *gin.Engine {
	router := setupTestRouter()
	auth := mockAuthMiddleware(auth0ID, role, "mock-token")
	router.POST("/orders", auth, CreateOrder)
	router.GET("/orders", auth, ListOrders)
	router.GET("/orders/:id", auth, GetOrder)
	router.PATCH("/orders/:id/status", auth, UpdateOrderStatus)
	return router
}

func TestCreateOrder(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	services.NewMockAttachmentService().SetAsMockForTesting()

	buyer := createTestUser(t, db, "auth0|buyer", models.RoleCustomer)
	part := createTestPart(t, db, buyer.ID, "10.00", 5)

	router := setupOrderRouter(buyer.Auth0ID, models.RoleCustomer)

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Fail with no items",
			body:           map[string]interface{}{"items": []interface{}{}},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name: "Fail with zero quantity",
			body: map[string]interface{}{
				"items": []map[string]interface{}{{"part_id": part.ID, "quantity": 0}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_QUANTITY",
		},
		{
			name: "Fail with more than in stock",
			body: map[string]interface{}{
				"items": []map[string]interface{}{{"part_id": part.ID, "quantity": 6}},
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "INSUFFICIENT_STOCK",
		},
		{
			name: "Fail with unknown part",
			body: map[string]interface{}{
				"items": []map[string]interface{}{{"part_id": "4b1f5c8e-8f61-4d7a-9a7c-0d2f5b4c1e90", "quantity": 1}},
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "PART_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(router, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, "body: %s", w.Body.String())
			assert.Equal(t, tt.expectedError, errorCode(t, w))
		})
	}

	t.Run("Successfully place an order", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/orders", map[string]interface{}{
			"items":    []map[string]interface{}{{"part_id": part.ID, "quantity": 3}},
			"shipping": map[string]interface{}{"recipient_name": "Buyer", "city": "Austin"},
		})
		require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

		data := responseData(t, w)
		assertDecimal(t, "30.00", data["total"])
		assert.Equal(t, "pending", data["status"])
		assert.Equal(t, buyer.ID.String(), data["buyer_id"])
		items := data["items"].([]interface{})
		require.Len(t, items, 1)
		assertDecimal(t, "10.00", items[0].(map[string]interface{})["unit_price"])

		var stored models.CarPart
		require.NoError(t, db.First(&stored, "id = ?", part.ID).Error)
		assert.Equal(t, 2, stored.Stock)
	})
}

func TestCreateOrder_WithAttachments(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	storage := services.NewMockAttachmentService()
	storage.SetAsMockForTesting()

	buyer := createTestUser(t, db, "auth0|buyer", models.RoleCustomer)
	part := createTestPart(t, db, buyer.ID, "4.50", 10)
	router := setupOrderRouter(buyer.Auth0ID, models.RoleCustomer)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{{"part_id": part.ID, "quantity": 2}},
	}

	t.Run("accepts a PDF", func(t *testing.T) {
		w := performMultipart(t, router, http.MethodPost, "/orders", payload,
			testFile{field: attachmentsField, filename: "quote.pdf", content: []byte("%PDF-1.4")})
		require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

		data := responseData(t, w)
		attachments := data["attachments"].([]interface{})
		require.Len(t, attachments, 1)
		assert.Equal(t, "quote.pdf", attachments[0].(map[string]interface{})["filename"])
		assert.True(t, storage.Exists(fmt.Sprintf("%s/mock_quote.pdf", services.FolderOrders)))
	})

	t.Run("rejects an executable and leaves stock alone", func(t *testing.T) {
		w := performMultipart(t, router, http.MethodPost, "/orders", payload,
			testFile{field: attachmentsField, filename: "virus.exe", content: []byte("MZ")})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_FILE_FORMAT", errorCode(t, w))

		var stored models.CarPart
		require.NoError(t, db.First(&stored, "id = ?", part.ID).Error)
		assert.Equal(t, 8, stored.Stock)
	})

	t.Run("requires the payload field", func(t *testing.T) {
		w := performMultipart(t, router, http.MethodPost, "/orders", nil,
			testFile{field: attachmentsField, filename: "quote.pdf", content: []byte("%PDF-1.4")})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})
}

func TestOrderLifecycle(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	services.NewMockAttachmentService().SetAsMockForTesting()

	buyer := createTestUser(t, db, "auth0|buyer", models.RoleCustomer)
	other := createTestUser(t, db, "auth0|other", models.RoleCustomer)
	admin := createTestUser(t, db, "auth0|admin", models.RoleAdmin)
	part := createTestPart(t, db, admin.ID, "10.00", 5)

	buyerRouter := setupOrderRouter(buyer.Auth0ID, models.RoleCustomer)
	otherRouter := setupOrderRouter(other.Auth0ID, models.RoleCustomer)
	adminRouter := setupOrderRouter(admin.Auth0ID, models.RoleAdmin)

	w := performJSON(buyerRouter, http.MethodPost, "/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"part_id": part.ID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	orderID := responseData(t, w)["id"].(string)
	statusPath := "/orders/" + orderID + "/status"

	t.Run("other customers cannot see the order", func(t *testing.T) {
		w := performJSON(otherRouter, http.MethodGet, "/orders/"+orderID, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("buyer cannot confirm", func(t *testing.T) {
		w := performJSON(buyerRouter, http.MethodPatch, statusPath, map[string]interface{}{"status": "confirmed"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("shipping requires a tracking number", func(t *testing.T) {
		w := performJSON(adminRouter, http.MethodPatch, statusPath, map[string]interface{}{"status": "shipped"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "MISSING_TRACKING_INFO", errorCode(t, w))
	})

	t.Run("admin ships with tracking", func(t *testing.T) {
		w := performJSON(adminRouter, http.MethodPatch, statusPath, map[string]interface{}{
			"status":          "shipped",
			"tracking_number": "1Z999",
		})
		require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
		data := responseData(t, w)
		assert.Equal(t, "shipped", data["status"])
		assert.Equal(t, "1Z999", data["tracking_number"])
	})

	t.Run("buyer cannot cancel a shipped order", func(t *testing.T) {
		w := performJSON(buyerRouter, http.MethodPatch, statusPath, map[string]interface{}{"status": "cancelled"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ALREADY_SHIPPED", errorCode(t, w))

		var stored models.CarPart
		require.NoError(t, db.First(&stored, "id = ?", part.ID).Error)
		assert.Equal(t, 2, stored.Stock)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := performJSON(adminRouter, http.MethodGet, "/orders/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", errorCode(t, w))
	})
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	services.NewMockAttachmentService().SetAsMockForTesting()

	buyer := createTestUser(t, db, "auth0|buyer", models.RoleCustomer)
	part := createTestPart(t, db, buyer.ID, "10.00", 5)
	router := setupOrderRouter(buyer.Auth0ID, models.RoleCustomer)

	w := performJSON(router, http.MethodPost, "/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"part_id": part.ID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := responseData(t, w)["id"].(string)

	w = performJSON(router, http.MethodPatch, "/orders/"+orderID+"/status", map[string]interface{}{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, "cancelled", responseData(t, w)["status"])

	var stored models.CarPart
	require.NoError(t, db.First(&stored, "id = ?", part.ID).Error)
	assert.Equal(t, 5, stored.Stock)
}

func TestListOrders(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	services.NewMockAttachmentService().SetAsMockForTesting()

	buyer1 := createTestUser(t, db, "auth0|buyer1", models.RoleCustomer)
	buyer2 := createTestUser(t, db, "auth0|buyer2", models.RoleCustomer)
	admin := createTestUser(t, db, "auth0|admin", models.RoleAdmin)
	part := createTestPart(t, db, admin.ID, "1.00", 10)

	order := map[string]interface{}{"items": []map[string]interface{}{{"part_id": part.ID, "quantity": 1}}}
	for _, u := range []models.User{buyer1, buyer1, buyer2} {
		w := performJSON(setupOrderRouter(u.Auth0ID, u.Role), http.MethodPost, "/orders", order)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	tests := []struct {
		name  string
		user  models.User
		query string
		want  int
	}{
		{"customer sees own orders", buyer1, "", 2},
		{"other customer sees own orders", buyer2, "", 1},
		{"admin sees all orders", admin, "", 3},
		{"admin filters by buyer", admin, "?buyer_id=" + buyer2.ID.String(), 1},
		{"status filter", admin, "?status=cancelled", 0},
		{"page size", admin, "?page_size=2", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(setupOrderRouter(tt.user.Auth0ID, tt.user.Role), http.MethodGet, "/orders"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

			response := decodeResponse(t, w)
			assert.Len(t, response["data"].([]interface{}), tt.want)
		})
	}
}
