package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nanorand/nanorand"
	"github.com/shopspring/decimal"
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

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// CreateTransactionInput is a payment recorded against one payable entity
type CreateTransactionInput struct {
	PayerID       uuid.UUID
	ReferenceType string
	ReferenceID   uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod models.PaymentMethod
	Currency      string
	Receipt       *multipart.FileHeader
	Remarks       *string
}

// UpdateTransactionStatusInput is a requested transaction status change
type UpdateTransactionStatusInput struct {
	TransactionID uuid.UUID
	Status        models.TransactionStatus
	Remarks       *string
}

// PaymentService records payment transactions and mirrors their status
// onto the referenced entity
type PaymentService struct {
	db          *gorm.DB
	references  *ReferenceRegistry
	attachments AttachmentService
	notifier    Notifier
	log         *zap.Logger
	tracer      trace.Tracer

	transactionsCreated metric.Int64Counter
	statusChanges       metric.Int64Counter
}

// NewPaymentService creates a payment service. A nil registry uses
// DefaultReferenceRegistry.
func NewPaymentService(db *gorm.DB, references *ReferenceRegistry, attachments AttachmentService, notifier Notifier) *PaymentService {
	if references == nil {
		references = DefaultReferenceRegistry()
	}
	if attachments == nil {
		attachments = GetAttachmentService()
	}
	if notifier == nil {
		notifier = GetNotifier()
	}

	s := &PaymentService{
		db:          db,
		references:  references,
		attachments: attachments,
		notifier:    notifier,
		log:         logger.L().Named("payments"),
		tracer:      telemetry.Tracer(),
	}

	meter := telemetry.Meter()
	var err error
	if s.transactionsCreated, err = meter.Int64Counter("payments.transactions.created",
		metric.WithDescription("Payment transactions recorded")); err != nil {
		s.log.Warn("failed to create payments.transactions.created counter", zap.Error(err))
	}
	if s.statusChanges, err = meter.Int64Counter("payments.transactions.status_changes",
		metric.WithDescription("Payment transaction status changes")); err != nil {
		s.log.Warn("failed to create payments.transactions.status_changes counter", zap.Error(err))
	}

	return s
}

// NewReceiptNumber returns a random receipt code such as RCPT-8F2K1Q9ZLA
func NewReceiptNumber() (string, error) {
	code, err := nanorand.Gen(10)
	if err != nil {
		return "", fmt.Errorf("failed to generate receipt number: %w", err)
	}
	return "RCPT-" + strings.ToUpper(code), nil
}

func normalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return models.DefaultCurrency, nil
	}
	if !currencyPattern.MatchString(c) {
		return "", invalidArgument("INVALID_CURRENCY", "currency must be a three letter code")
	}
	return c, nil
}

func (in CreateTransactionInput) validate() (models.Reference, string, error) {
	ref, err := models.NewReference(models.ReferenceType(in.ReferenceType), in.ReferenceID)
	if err != nil {
		return nil, "", invalidArgument("INVALID_REFERENCE_TYPE", "%s", err.Error())
	}
	if in.ReferenceID == uuid.Nil {
		return nil, "", invalidArgument("INVALID_REFERENCE_ID", "reference id is required")
	}
	if in.Amount.IsNegative() {
		return nil, "", invalidArgument("INVALID_AMOUNT", "amount must not be negative")
	}
	if !in.PaymentMethod.Valid() {
		return nil, "", invalidArgument("INVALID_PAYMENT_METHOD", "unknown payment method %q", in.PaymentMethod)
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, "", err
	}
	return ref, currency, nil
}

// CreateTransaction records a pending payment whose amount exactly matches
// the reference total, then marks the reference payment_pending
func (s *PaymentService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*models.PaymentTransaction, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.CreateTransaction",
		trace.WithAttributes(
			attribute.String("payment.reference_type", in.ReferenceType),
			attribute.String("payment.reference_id", in.ReferenceID.String()),
		))
	defer span.End()

	ref, currency, err := in.validate()
	if err != nil {
		return nil, err
	}

	var payerCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", in.PayerID).Count(&payerCount).Error; err != nil {
		return nil, fmt.Errorf("failed to load payer: %w", err)
	}
	if payerCount == 0 {
		return nil, notFound("USER_NOT_FOUND", "payer %s not found", in.PayerID)
	}

	var receiptKey, receiptFilename *string
	if in.Receipt != nil {
		key, err := s.attachments.Upload(ctx, in.Receipt, FolderReceipts)
		if err != nil {
			return nil, err
		}
		filename := in.Receipt.Filename
		receiptKey, receiptFilename = &key, &filename
	}

	var txn models.PaymentTransaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total, err := s.references.Total(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !in.Amount.Equal(total) {
			return &ServiceError{
				Kind:    KindAmountMismatch,
				Code:    "AMOUNT_MISMATCH",
				Message: fmt.Sprintf("amount %s does not match %s total %s", in.Amount.StringFixed(2), ref.Type(), total.StringFixed(2)),
			}
		}

		var existing int64
		if err := tx.Unscoped().Model(&models.PaymentTransaction{}).
			Where("reference_type = ? AND reference_id = ?", ref.Type(), ref.RefID()).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check existing transactions: %w", err)
		}
		if existing > 0 {
			return illegalTransition(ErrDuplicateTransaction.Code, "%s %s already has a payment transaction", ref.Type(), ref.RefID())
		}

		receiptNumber, err := NewReceiptNumber()
		if err != nil {
			return err
		}

		txn = models.PaymentTransaction{
			PayerID:         in.PayerID,
			ReferenceType:   ref.Type(),
			ReferenceID:     ref.RefID(),
			Amount:          in.Amount,
			Currency:        currency,
			PaymentMethod:   in.PaymentMethod,
			Status:          models.TransactionPending,
			ReceiptNumber:   receiptNumber,
			ReceiptKey:      receiptKey,
			ReceiptFilename: receiptFilename,
			Remarks:         in.Remarks,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		return s.references.Propagate(ctx, tx, ref, models.PaymentPending)
	})
	if err != nil {
		if receiptKey != nil {
			if delErr := s.attachments.Delete(ctx, *receiptKey); delErr != nil {
				s.log.Warn("failed to discard receipt", zap.String("key", *receiptKey), zap.Error(delErr))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.transactionsCreated != nil {
		s.transactionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("reference_type", string(ref.Type()))))
	}

	loaded, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment transaction created",
		zap.String("transaction_id", loaded.ID.String()),
		zap.String("reference_type", string(loaded.ReferenceType)),
		zap.String("reference_id", loaded.ReferenceID.String()),
		zap.String("amount", loaded.Amount.StringFixed(2)))

	if loaded.Payer != nil {
		notify(ctx, s.notifier, Notification{
			To:       loaded.Payer.Email,
			Subject:  "Payment recorded",
			Template: TemplatePaymentRecorded,
			Data: map[string]any{
				"receipt_number": loaded.ReceiptNumber,
				"amount":         loaded.Amount.StringFixed(2),
				"currency":       loaded.Currency,
				"reference_type": string(loaded.ReferenceType),
			},
		})
	}

	return loaded, nil
}

// UpdateTransactionStatus moves a transaction to a new status and mirrors
// the derived payment status onto its reference
func (s *PaymentService) UpdateTransactionStatus(ctx context.Context, in UpdateTransactionStatusInput) (*models.PaymentTransaction, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.UpdateTransactionStatus",
		trace.WithAttributes(
			attribute.String("payment.transaction_id", in.TransactionID.String()),
			attribute.String("payment.requested_status", string(in.Status)),
		))
	defer span.End()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.PaymentTransaction
		if err := tx.First(&txn, "id = ?", in.TransactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("TRANSACTION_NOT_FOUND", "transaction %s not found", in.TransactionID)
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		next, err := NextTransactionStatus(txn.Status, in.Status)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":     next,
			"updated_at": time.Now(),
		}
		if in.Remarks != nil {
			updates["remarks"] = *in.Remarks
		}
		res := tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", txn.ID, txn.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return illegalTransition(ErrStatusConflict.Code, "transaction %s changed status concurrently", txn.ID)
		}

		ref, err := txn.Reference()
		if err != nil {
			return fmt.Errorf("stored transaction %s: %w", txn.ID, err)
		}
		if err := s.references.Propagate(ctx, tx, ref, PaymentStatusFor(next)); err != nil {
			// the referenced entity may have been removed since payment
			if errors.Is(err, ErrNotFound) {
				s.log.Warn("payment status not propagated, reference missing",
					zap.String("transaction_id", txn.ID.String()),
					zap.String("reference_type", string(ref.Type())),
					zap.String("reference_id", ref.RefID().String()))
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.statusChanges != nil {
		s.statusChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(in.Status))))
	}

	loaded, err := s.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment transaction status updated",
		zap.String("transaction_id", loaded.ID.String()),
		zap.String("status", string(loaded.Status)))

	if loaded.Payer != nil {
		notify(ctx, s.notifier, Notification{
			To:       loaded.Payer.Email,
			Subject:  "Payment status changed",
			Template: TemplatePaymentUpdated,
			Data: map[string]any{
				"receipt_number": loaded.ReceiptNumber,
				"status":         string(loaded.Status),
			},
		})
	}

	return loaded, nil
}

// GetTransaction loads a transaction with its payer and receipt URL
func (s *PaymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := s.db.WithContext(ctx).Preload("Payer").First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("TRANSACTION_NOT_FOUND", "transaction %s not found", id)
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	s.resolveReceiptURL(ctx, &txn)
	return &txn, nil
}

// TransactionFilter narrows ListTransactions
type TransactionFilter struct {
	PayerID       *uuid.UUID
	Status        models.TransactionStatus
	ReferenceType models.ReferenceType
	Page          Page
}

// ListTransactions returns transactions newest first
func (s *PaymentService) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.PaymentTransaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PaymentTransaction{})
	if f.PayerID != nil {
		q = q.Where("payer_id = ?", *f.PayerID)
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, invalidArgument("INVALID_STATUS", "unknown transaction status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.ReferenceType != "" {
		if _, err := models.NewReference(f.ReferenceType, uuid.Nil); err != nil {
			return nil, 0, invalidArgument("INVALID_REFERENCE_TYPE", "%s", err.Error())
		}
		q = q.Where("reference_type = ?", f.ReferenceType)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var txns []models.PaymentTransaction
	if err := f.Page.Apply(q).Order("created_at DESC").Find(&txns).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, total, nil
}

func (s *PaymentService) resolveReceiptURL(ctx context.Context, txn *models.PaymentTransaction) {
	if txn.ReceiptKey == nil || *txn.ReceiptKey == "" {
		return
	}
	url, err := s.attachments.URL(ctx, *txn.ReceiptKey)
	if err != nil {
		s.log.Warn("failed to resolve receipt url", zap.String("key", *txn.ReceiptKey), zap.Error(err))
		return
	}
	txn.ReceiptURL = &url
}
