package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"sync"

	"github.com/kendall-kelly/motorhub-api/utils"
)

// Attachment folders
const (
	FolderOrders   = "orders"
	FolderReceipts = "receipts"
	FolderClaims   = "claims"
	FolderParts    = "parts"
)

// AttachmentService handles attachment upload, retrieval and deletion
type AttachmentService interface {
	// Upload validates and stores a file under folder, returns the storage key
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (string, error)

	// URL generates a URL for accessing a stored attachment
	URL(ctx context.Context, key string) (string, error)

	// Delete removes an attachment from storage
	Delete(ctx context.Context, key string) error
}

var (
	attachmentMu       sync.RWMutex
	attachmentInstance AttachmentService
)

// InitAttachmentService initializes the attachment service with an S3 backend
func InitAttachmentService(s3Service S3Interface) AttachmentService {
	SetAttachmentService(&S3AttachmentService{s3Service: s3Service})
	return GetAttachmentService()
}

// GetAttachmentService returns the configured attachment service, falling
// back to local disk storage under utils.UploadDir
func GetAttachmentService() AttachmentService {
	attachmentMu.RLock()
	defer attachmentMu.RUnlock()
	if attachmentInstance == nil {
		return NewLocalAttachmentService(utils.UploadDir)
	}
	return attachmentInstance
}

// SetAttachmentService sets the attachment service instance (primarily for testing)
func SetAttachmentService(service AttachmentService) {
	attachmentMu.Lock()
	attachmentInstance = service
	attachmentMu.Unlock()
}

// rejectAttachment turns a validation failure into an AttachmentRejected error
func rejectAttachment(err error) error {
	var fe *utils.FileUploadError
	if errors.As(err, &fe) {
		return &ServiceError{Kind: KindAttachmentRejected, Code: fe.Code, Message: fe.Message}
	}
	return err
}

// S3AttachmentService implements AttachmentService using AWS S3 for storage
type S3AttachmentService struct {
	s3Service S3Interface
}

// Upload validates and uploads a file to S3
func (s *S3AttachmentService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (string, error) {
	if err := utils.ValidateAttachment(fileHeader); err != nil {
		return "", rejectAttachment(err)
	}

	key, err := s.s3Service.UploadFile(ctx, fileHeader, folder)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	return key, nil
}

// URL generates a presigned URL for accessing an attachment
func (s *S3AttachmentService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate attachment URL: %w", err)
	}

	return url, nil
}

// Delete deletes an attachment from S3
func (s *S3AttachmentService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := s.s3Service.DeleteFile(ctx, key); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	return nil
}

// LocalAttachmentService stores attachments on local disk and serves
// them through the uploads route
type LocalAttachmentService struct {
	dir string
}

// NewLocalAttachmentService creates a disk-backed attachment service rooted at dir
func NewLocalAttachmentService(dir string) *LocalAttachmentService {
	return &LocalAttachmentService{dir: dir}
}

// Upload validates and saves a file. The folder is not used on disk.
func (s *LocalAttachmentService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (string, error) {
	if err := utils.ValidateAttachment(fileHeader); err != nil {
		return "", rejectAttachment(err)
	}

	filename, err := utils.SaveUploadedFile(fileHeader, s.dir)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	return filename, nil
}

// URL returns the uploads route path for key
func (s *LocalAttachmentService) URL(ctx context.Context, key string) (string, error) {
	return utils.GetAttachmentURL(key), nil
}

// Delete removes the file for key
func (s *LocalAttachmentService) Delete(ctx context.Context, key string) error {
	return utils.RemoveUploadedFile(key, s.dir)
}
