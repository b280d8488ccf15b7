package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/telemetry"
)

// OrderItemInput is one requested (part, quantity) pair
type OrderItemInput struct {
	PartID   uuid.UUID
	Quantity int
}

// CreateOrderInput holds everything needed to place a part order
type CreateOrderInput struct {
	BuyerID     uuid.UUID
	Items       []OrderItemInput
	Shipping    models.ShippingInfo
	Attachments []*multipart.FileHeader
}

// UpdateOrderStatusInput is a requested order status change
type UpdateOrderStatusInput struct {
	OrderID        uuid.UUID
	Status         models.OrderStatus
	TrackingNumber *string
	Remarks        *string
}

// OrderService places part orders and moves them through their lifecycle
type OrderService struct {
	db          *gorm.DB
	attachments AttachmentService
	cache       PartCache
	notifier    Notifier
	log         *zap.Logger
	tracer      trace.Tracer

	ordersCreated   metric.Int64Counter
	ordersCancelled metric.Int64Counter
}

// NewOrderService creates an order service. Nil collaborators fall back
// to the package defaults.
func NewOrderService(db *gorm.DB, attachments AttachmentService, cache PartCache, notifier Notifier) *OrderService {
	if attachments == nil {
		attachments = GetAttachmentService()
	}
	if cache == nil {
		cache = NoopPartCache{}
	}
	if notifier == nil {
		notifier = GetNotifier()
	}

	s := &OrderService{
		db:          db,
		attachments: attachments,
		cache:       cache,
		notifier:    notifier,
		log:         logger.L().Named("orders"),
		tracer:      telemetry.Tracer(),
	}

	meter := telemetry.Meter()
	var err error
	if s.ordersCreated, err = meter.Int64Counter("orders.created",
		metric.WithDescription("Part orders placed")); err != nil {
		s.log.Warn("failed to create orders.created counter", zap.Error(err))
	}
	if s.ordersCancelled, err = meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Part orders cancelled with stock restored")); err != nil {
		s.log.Warn("failed to create orders.cancelled counter", zap.Error(err))
	}

	return s
}

func insufficientStock(part *models.CarPart, requested int) *ServiceError {
	return &ServiceError{
		Kind:    KindInsufficientStock,
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock for part %s: requested %d, available %d", part.Name, requested, part.Stock),
	}
}

func validateItems(items []OrderItemInput) error {
	if len(items) == 0 {
		return invalidArgument("EMPTY_ORDER", "an order needs at least one item")
	}
	for i, item := range items {
		if item.PartID == uuid.Nil {
			return invalidArgument("INVALID_PART_ID", "item %d has no part id", i)
		}
		if item.Quantity <= 0 {
			return invalidArgument("INVALID_QUANTITY", "item %d quantity must be greater than zero", i)
		}
	}
	return nil
}

// CreateOrder validates stock, snapshots prices, persists the order and
// decrements inventory in one database transaction
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.PartOrder, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.Int("order.items", len(in.Items))))
	defer span.End()

	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	var buyerCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", in.BuyerID).Count(&buyerCount).Error; err != nil {
		return nil, fmt.Errorf("failed to load buyer: %w", err)
	}
	if buyerCount == 0 {
		return nil, notFound("USER_NOT_FOUND", "buyer %s not found", in.BuyerID)
	}

	attachments, err := s.uploadAttachments(ctx, in.Attachments)
	if err != nil {
		return nil, err
	}

	var order models.PartOrder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parts := make(map[uuid.UUID]*models.CarPart, len(in.Items))
		requested := make(map[uuid.UUID]int, len(in.Items))
		partOrder := make([]uuid.UUID, 0, len(in.Items))
		lines := make([]models.OrderLine, 0, len(in.Items))

		for i, item := range in.Items {
			part, ok := parts[item.PartID]
			if !ok {
				part = &models.CarPart{}
				if err := tx.First(part, "id = ?", item.PartID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return notFound("PART_NOT_FOUND", "part %s not found", item.PartID)
					}
					return fmt.Errorf("failed to load part: %w", err)
				}
				parts[item.PartID] = part
				partOrder = append(partOrder, item.PartID)
			}

			requested[item.PartID] += item.Quantity
			if requested[item.PartID] > part.Stock {
				return insufficientStock(part, requested[item.PartID])
			}

			line := models.NewOrderLine(*part, item.Quantity)
			line.Position = i
			lines = append(lines, line)
		}

		order = models.PartOrder{
			BuyerID:       in.BuyerID,
			Lines:         lines,
			Total:         models.SumSubtotals(lines),
			Status:        models.OrderPending,
			PaymentStatus: models.PaymentUnpaid,
			Shipping:      in.Shipping,
			Attachments:   attachments,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, partID := range partOrder {
			qty := requested[partID]
			res := tx.Model(&models.CarPart{}).
				Where("id = ? AND stock >= ?", partID, qty).
				Update("stock", gorm.Expr("stock - ?", qty))
			if res.Error != nil {
				return fmt.Errorf("failed to decrement stock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return insufficientStock(parts[partID], qty)
			}
		}
		return nil
	})
	if err != nil {
		s.discardAttachments(ctx, attachments)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Invalidate(ctx, linePartIDs(order.Lines)...)
	if s.ordersCreated != nil {
		s.ordersCreated.Add(ctx, 1)
	}
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	loaded, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", loaded.ID.String()),
		zap.String("buyer_id", loaded.BuyerID.String()),
		zap.String("total", loaded.Total.StringFixed(2)))

	if loaded.Buyer != nil {
		notify(ctx, s.notifier, Notification{
			To:       loaded.Buyer.Email,
			Subject:  "Your order has been placed",
			Template: TemplateOrderCreated,
			Data: map[string]any{
				"order_id": loaded.ID.String(),
				"total":    loaded.Total.StringFixed(2),
			},
		})
	}

	return loaded, nil
}

// UpdateOrderStatus applies a requested status change. Cancelling restores
// the stock of every line exactly once over the order's lifetime.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, in UpdateOrderStatusInput) (*models.PartOrder, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID.String()),
			attribute.String("order.requested_status", string(in.Status)),
		))
	defer span.End()

	tracking := ""
	if in.TrackingNumber != nil {
		tracking = strings.TrimSpace(*in.TrackingNumber)
	}

	var (
		change   OrderStatusChange
		restored []uuid.UUID
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.PartOrder
		if err := tx.Preload("Lines").First(&order, "id = ?", in.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("ORDER_NOT_FOUND", "order %s not found", in.OrderID)
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		var err error
		change, err = NextOrderStatus(order.Status, in.Status, tracking)
		if err != nil {
			return err
		}
		// a reopened order keeps the flag, so a later cancel gives nothing back
		change.RestoreStock = change.RestoreStock && !order.StockRestored

		updates := map[string]interface{}{
			"status":     change.Status,
			"updated_at": time.Now(),
		}
		if tracking != "" {
			updates["tracking_number"] = tracking
		}
		if in.Remarks != nil {
			updates["remarks"] = *in.Remarks
		}
		if change.RestoreStock {
			updates["stock_restored"] = true
		}

		// conditional on what we read, so racing cancels restore once
		res := tx.Model(&models.PartOrder{}).
			Where("id = ? AND status = ? AND stock_restored = ?", order.ID, order.Status, order.StockRestored).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return illegalTransition(ErrStatusConflict.Code, "order %s changed status concurrently", order.ID)
		}

		if change.RestoreStock {
			for _, line := range order.Lines {
				if err := tx.Model(&models.CarPart{}).
					Where("id = ?", line.PartID).
					Update("stock", gorm.Expr("stock + ?", line.Quantity)).Error; err != nil {
					return fmt.Errorf("failed to restore stock: %w", err)
				}
				restored = append(restored, line.PartID)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if change.RestoreStock {
		s.cache.Invalidate(ctx, restored...)
		if s.ordersCancelled != nil {
			s.ordersCancelled.Add(ctx, 1)
		}
	}

	loaded, err := s.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	s.log.Info("order status updated",
		zap.String("order_id", loaded.ID.String()),
		zap.String("status", string(loaded.Status)),
		zap.Bool("stock_restored", change.RestoreStock))

	if loaded.Buyer != nil {
		data := map[string]any{
			"order_id": loaded.ID.String(),
			"status":   string(loaded.Status),
		}
		if loaded.TrackingNumber != nil {
			data["tracking_number"] = *loaded.TrackingNumber
		}
		notify(ctx, s.notifier, Notification{
			To:       loaded.Buyer.Email,
			Subject:  "Your order status changed",
			Template: TemplateOrderStatusChanged,
			Data:     data,
		})
	}

	return loaded, nil
}

// GetOrder loads an order with its buyer, lines and attachments
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.PartOrder, error) {
	var order models.PartOrder
	err := s.db.WithContext(ctx).
		Preload("Buyer").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Attachments").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("ORDER_NOT_FOUND", "order %s not found", id)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	s.resolveAttachmentURLs(ctx, order.Attachments)
	return &order, nil
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	BuyerID *uuid.UUID
	Status  models.OrderStatus
	Page    Page
}

// ListOrders returns orders newest first
func (s *OrderService) ListOrders(ctx context.Context, f OrderFilter) ([]models.PartOrder, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PartOrder{})
	if f.BuyerID != nil {
		q = q.Where("buyer_id = ?", *f.BuyerID)
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, invalidArgument("INVALID_STATUS", "unknown order status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.PartOrder
	err := f.Page.Apply(q).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *OrderService) uploadAttachments(ctx context.Context, files []*multipart.FileHeader) ([]models.OrderAttachment, error) {
	attachments := make([]models.OrderAttachment, 0, len(files))
	for _, fh := range files {
		key, err := s.attachments.Upload(ctx, fh, FolderOrders)
		if err != nil {
			s.discardAttachments(ctx, attachments)
			return nil, err
		}
		attachments = append(attachments, models.OrderAttachment{Key: key, Filename: fh.Filename})
	}
	return attachments, nil
}

func (s *OrderService) discardAttachments(ctx context.Context, attachments []models.OrderAttachment) {
	for _, a := range attachments {
		if err := s.attachments.Delete(ctx, a.Key); err != nil {
			s.log.Warn("failed to discard attachment", zap.String("key", a.Key), zap.Error(err))
		}
	}
}

func (s *OrderService) resolveAttachmentURLs(ctx context.Context, attachments []models.OrderAttachment) {
	for i := range attachments {
		url, err := s.attachments.URL(ctx, attachments[i].Key)
		if err != nil {
			s.log.Warn("failed to resolve attachment url", zap.String("key", attachments[i].Key), zap.Error(err))
			continue
		}
		attachments[i].URL = url
	}
}

func linePartIDs(lines []models.OrderLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.PartID)
	}
	return ids
}
