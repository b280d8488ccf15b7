package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/motorhub-api/utils"
)

// GetUploadedFile handles GET /api/v1/uploads/:filename - serves attachments
// kept by the local attachment store
func GetUploadedFile(c *gin.Context) {
	filename := c.Param("filename")

	if filename == "" {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required")
		return
	}

	// Security: Prevent directory traversal attacks
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := utils.AllowedAttachmentFormats[ext]
	if !ok {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PDF, PNG and JPEG files are supported")
		return
	}

	filePath := filepath.Join(utils.UploadDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		respondErrorCode(c, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=86400")
	c.File(filePath)
}
