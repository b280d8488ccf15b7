package controllers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/middleware"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
)

// payloadField is the multipart form field that carries the JSON body
// when a request also uploads files
const payloadField = "payload"

var kindStatus = map[services.Kind]int{
	services.KindInvalidArgument:    http.StatusBadRequest,
	services.KindNotFound:           http.StatusNotFound,
	services.KindInsufficientStock:  http.StatusConflict,
	services.KindAmountMismatch:     http.StatusUnprocessableEntity,
	services.KindIllegalTransition:  http.StatusConflict,
	services.KindAttachmentRejected: http.StatusBadRequest,
	services.KindForbidden:          http.StatusForbidden,
}

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondList(c *gin.Context, data interface{}, total int64, page services.Page) {
	page = page.Normalize()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"meta": gin.H{
			"total":     total,
			"page":      page.Number,
			"page_size": page.Size,
		},
	})
}

func respondErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondError writes err in the error envelope. Service errors keep their
// code; anything else is logged and reported as an internal error.
func respondError(c *gin.Context, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status, known := kindStatus[se.Kind]
		if !known {
			status = http.StatusInternalServerError
		}
		code := se.Code
		if code == "" {
			code = strings.ToUpper(string(se.Kind))
		}
		respondErrorCode(c, status, code, se.Message)
		return
	}

	logger.L().Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	respondErrorCode(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// currentUser loads the profile of the authenticated caller. It writes the
// error response itself and returns false when there is none.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}
	return &user, true
}

func requireRole(c *gin.Context, user *models.User, roles ...string) bool {
	for _, r := range roles {
		if user.Role == r {
			return true
		}
	}
	respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
	return false
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+" query parameter")
		return nil, false
	}
	return &id, true
}

func parsePage(c *gin.Context) services.Page {
	number, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return services.Page{Number: number, Size: size}.Normalize()
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindPayload decodes the request body into dst. Multipart requests carry
// the JSON document in the payload form field.
func bindPayload(c *gin.Context, dst interface{}) bool {
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(dst); err != nil {
			respondValidationError(c, err)
			return false
		}
		return true
	}

	raw := c.PostForm(payloadField)
	if raw == "" {
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing payload form field")
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		respondValidationError(c, err)
		return false
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		respondValidationError(c, err)
		return false
	}
	return true
}

// formFiles returns the uploaded files of field, or nil for non-multipart requests
func formFiles(c *gin.Context, field string) []*multipart.FileHeader {
	if !isMultipart(c) {
		return nil
	}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[field]
}

func formFile(c *gin.Context, field string) *multipart.FileHeader {
	files := formFiles(c, field)
	if len(files) == 0 {
		return nil
	}
	return files[0]
}
