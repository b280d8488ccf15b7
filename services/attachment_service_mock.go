package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/kendall-kelly/motorhub-api/utils"
)

// MockAttachmentService is an in-memory AttachmentService for testing
type MockAttachmentService struct {
	files     map[string][]byte // map of storage key to file content
	uploadErr error
	mu        sync.RWMutex
}

// NewMockAttachmentService creates a new mock attachment service
func NewMockAttachmentService() *MockAttachmentService {
	return &MockAttachmentService{
		files: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global attachment service instance for testing
func (m *MockAttachmentService) SetAsMockForTesting() {
	SetAttachmentService(m)
}

// FailUploads makes every following Upload return err
func (m *MockAttachmentService) FailUploads(err error) {
	m.mu.Lock()
	m.uploadErr = err
	m.mu.Unlock()
}

// Upload simulates storing an attachment
func (m *MockAttachmentService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (string, error) {
	if err := utils.ValidateAttachment(fileHeader); err != nil {
		return "", rejectAttachment(err)
	}

	m.mu.RLock()
	uploadErr := m.uploadErr
	m.mu.RUnlock()
	if uploadErr != nil {
		return "", uploadErr
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	key := fmt.Sprintf("%s/mock_%s", folder, fileHeader.Filename)

	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()

	return key, nil
}

// URL simulates generating a URL for an attachment
func (m *MockAttachmentService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	if !m.Exists(key) {
		return "", fmt.Errorf("attachment not found in mock storage: %s", key)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// Delete simulates deleting an attachment
func (m *MockAttachmentService) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

// Files returns a copy of all stored attachments (for testing assertions)
func (m *MockAttachmentService) Files() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		files[k] = v
	}
	return files
}

// Exists checks if an attachment exists in mock storage
func (m *MockAttachmentService) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}

// Clear removes all attachments from mock storage
func (m *MockAttachmentService) Clear() {
	m.mu.Lock()
	m.files = make(map[string][]byte)
	m.uploadErr = nil
	m.mu.Unlock()
}
