package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/models"
)

// PartInput holds the editable fields of a part. Nil fields are left
// unchanged on update.
type PartInput struct {
	Name            *string
	PartNumber      *string
	Brand           *string
	Category        *string
	CompatibleMakes *string
	Description     *string
	Price           *decimal.Decimal
	Stock           *int
	Image           *multipart.FileHeader
}

// PartFilter narrows ListParts
type PartFilter struct {
	Category string
	Brand    string
	Search   string
	InStock  bool
	Page     Page
}

// PartService manages the parts catalogue
type PartService struct {
	db          *gorm.DB
	cache       PartCache
	attachments AttachmentService
	log         *zap.Logger
}

// NewPartService creates a part service
func NewPartService(db *gorm.DB, cache PartCache, attachments AttachmentService) *PartService {
	if cache == nil {
		cache = NoopPartCache{}
	}
	if attachments == nil {
		attachments = GetAttachmentService()
	}
	return &PartService{db: db, cache: cache, attachments: attachments, log: logger.L().Named("parts")}
}

func (in PartInput) validate(creating bool) error {
	if creating {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return invalidArgument("VALIDATION_ERROR", "name is required")
		}
		if in.PartNumber == nil || strings.TrimSpace(*in.PartNumber) == "" {
			return invalidArgument("VALIDATION_ERROR", "part_number is required")
		}
		if in.Price == nil {
			return invalidArgument("VALIDATION_ERROR", "price is required")
		}
	}
	if in.Price != nil && in.Price.IsNegative() {
		return invalidArgument("INVALID_PRICE", "price must not be negative")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return invalidArgument("INVALID_STOCK", "stock must not be negative")
	}
	return nil
}

func (in PartInput) apply(p *models.CarPart) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.PartNumber != nil {
		p.PartNumber = strings.TrimSpace(*in.PartNumber)
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.CompatibleMakes != nil {
		p.CompatibleMakes = *in.CompatibleMakes
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = in.Price.Round(2)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

// CreatePart lists a new part sold by sellerID
func (s *PartService) CreatePart(ctx context.Context, sellerID uuid.UUID, in PartInput) (*models.CarPart, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	part := models.CarPart{SellerID: sellerID}
	in.apply(&part)

	if in.Image != nil {
		key, err := s.attachments.Upload(ctx, in.Image, FolderParts)
		if err != nil {
			return nil, err
		}
		part.ImageKey = &key
	}

	if err := s.db.WithContext(ctx).Create(&part).Error; err != nil {
		s.discardImage(ctx, part.ImageKey)
		if IsUniqueViolation(err) {
			return nil, illegalTransition("PART_NUMBER_EXISTS", "part number %s already exists", part.PartNumber)
		}
		return nil, fmt.Errorf("failed to create part: %w", err)
	}

	s.resolveImageURL(ctx, &part)
	return &part, nil
}

func (s *PartService) load(ctx context.Context, id uuid.UUID) (*models.CarPart, error) {
	var part models.CarPart
	if err := s.db.WithContext(ctx).First(&part, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("PART_NOT_FOUND", "part %s not found", id)
		}
		return nil, fmt.Errorf("failed to load part: %w", err)
	}
	return &part, nil
}

// GetPart reads a part through the cache
func (s *PartService) GetPart(ctx context.Context, id uuid.UUID) (*models.CarPart, error) {
	part, err := s.cache.Get(ctx, id, func(ctx context.Context) (*models.CarPart, error) {
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.resolveImageURL(ctx, part)
	return part, nil
}

// ListParts returns parts matching f ordered by name
func (s *PartService) ListParts(ctx context.Context, f PartFilter) ([]models.CarPart, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CarPart{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Brand != "" {
		q = q.Where("brand = ?", f.Brand)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(part_number) LIKE ? OR LOWER(compatible_makes) LIKE ?", like, like, like)
	}
	if f.InStock {
		q = q.Where("stock > 0")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count parts: %w", err)
	}

	var parts []models.CarPart
	if err := f.Page.Apply(q).Order("name ASC").Find(&parts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list parts: %w", err)
	}
	for i := range parts {
		s.resolveImageURL(ctx, &parts[i])
	}
	return parts, total, nil
}

// UpdatePart changes the fields set in in. Only the seller or an admin may edit.
func (s *PartService) UpdatePart(ctx context.Context, actor *models.User, id uuid.UUID, in PartInput) (*models.CarPart, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	part, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && part.SellerID != actor.ID {
		return nil, forbidden("only the seller or an admin can edit this part")
	}

	oldImage := part.ImageKey
	in.apply(part)
	if in.Image != nil {
		key, err := s.attachments.Upload(ctx, in.Image, FolderParts)
		if err != nil {
			return nil, err
		}
		part.ImageKey = &key
	}

	if err := s.db.WithContext(ctx).Save(part).Error; err != nil {
		if in.Image != nil {
			s.discardImage(ctx, part.ImageKey)
		}
		if IsUniqueViolation(err) {
			return nil, illegalTransition("PART_NUMBER_EXISTS", "part number %s already exists", part.PartNumber)
		}
		return nil, fmt.Errorf("failed to update part: %w", err)
	}
	if in.Image != nil {
		s.discardImage(ctx, oldImage)
	}

	s.cache.Invalidate(ctx, part.ID)
	s.resolveImageURL(ctx, part)
	return part, nil
}

// Restock adds quantity units to a part's stock
func (s *PartService) Restock(ctx context.Context, actor *models.User, id uuid.UUID, quantity int) (*models.CarPart, error) {
	if quantity <= 0 {
		return nil, invalidArgument("INVALID_QUANTITY", "restock quantity must be greater than zero")
	}

	part, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && part.SellerID != actor.ID {
		return nil, forbidden("only the seller or an admin can restock this part")
	}

	if err := s.db.WithContext(ctx).Model(&models.CarPart{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity)).Error; err != nil {
		return nil, fmt.Errorf("failed to restock part: %w", err)
	}
	s.cache.Invalidate(ctx, id)

	s.log.Info("part restocked", zap.String("part_id", id.String()), zap.Int("quantity", quantity))
	return s.GetPart(ctx, id)
}

// DeletePart removes a part unless an open order still references it
func (s *PartService) DeletePart(ctx context.Context, actor *models.User, id uuid.UUID) error {
	part, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && part.SellerID != actor.ID {
		return forbidden("only the seller or an admin can delete this part")
	}

	var open int64
	err = s.db.WithContext(ctx).Model(&models.OrderLine{}).
		Joins("JOIN part_orders ON part_orders.id = order_lines.order_id").
		Where("order_lines.part_id = ? AND part_orders.status NOT IN ? AND part_orders.deleted_at IS NULL",
			id, []models.OrderStatus{models.OrderDelivered, models.OrderCancelled}).
		Count(&open).Error
	if err != nil {
		return fmt.Errorf("failed to check open orders: %w", err)
	}
	if open > 0 {
		return illegalTransition("PART_IN_USE", "part %s is referenced by %d open order lines", id, open)
	}

	if err := s.db.WithContext(ctx).Delete(&models.CarPart{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete part: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	s.discardImage(ctx, part.ImageKey)
	return nil
}

func (s *PartService) resolveImageURL(ctx context.Context, part *models.CarPart) {
	if part.ImageKey == nil || *part.ImageKey == "" {
		return
	}
	url, err := s.attachments.URL(ctx, *part.ImageKey)
	if err != nil {
		s.log.Warn("failed to resolve part image url", zap.String("key", *part.ImageKey), zap.Error(err))
		return
	}
	part.ImageURL = &url
}

func (s *PartService) discardImage(ctx context.Context, key *string) {
	if key == nil || *key == "" {
		return
	}
	if err := s.attachments.Delete(ctx, *key); err != nil {
		s.log.Warn("failed to delete part image", zap.String("key", *key), zap.Error(err))
	}
}

// IsUniqueViolation reports whether err is a unique constraint failure.
// Works with both PostgreSQL and SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
