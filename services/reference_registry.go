package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/models"
)

// ReferenceHandler reads and updates one kind of payable entity
type ReferenceHandler interface {
	// Total returns the amount a transaction must match
	Total(ctx context.Context, db *gorm.DB, ref models.Reference) (decimal.Decimal, error)
	// SetPaymentStatus mirrors a payment status onto the entity
	SetPaymentStatus(ctx context.Context, db *gorm.DB, ref models.Reference, status models.PaymentStatus) error
}

// ReferenceRegistry dispatches payable references to their handler
type ReferenceRegistry struct {
	handlers map[models.ReferenceType]ReferenceHandler
}

// NewReferenceRegistry builds a registry that must cover every reference type
func NewReferenceRegistry(handlers map[models.ReferenceType]ReferenceHandler) (*ReferenceRegistry, error) {
	r := &ReferenceRegistry{handlers: make(map[models.ReferenceType]ReferenceHandler, len(handlers))}
	for t, h := range handlers {
		r.handlers[t] = h
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultReferenceRegistry wires the gorm-backed handler for every type
func DefaultReferenceRegistry() *ReferenceRegistry {
	h := gormReferences{}
	r, err := NewReferenceRegistry(map[models.ReferenceType]ReferenceHandler{
		models.ReferenceServiceRequest: h,
		models.ReferenceRentalBooking:  h,
		models.ReferencePartOrder:      h,
	})
	if err != nil {
		panic(err)
	}
	return r
}

// Validate checks the registry is total over models.ReferenceTypes and
// holds nothing else
func (r *ReferenceRegistry) Validate() error {
	for _, t := range models.ReferenceTypes {
		if h, ok := r.handlers[t]; !ok || h == nil {
			return fmt.Errorf("reference registry: no handler for %q", t)
		}
	}
	if len(r.handlers) != len(models.ReferenceTypes) {
		return fmt.Errorf("reference registry: %d handlers registered for %d reference types",
			len(r.handlers), len(models.ReferenceTypes))
	}
	return nil
}

func (r *ReferenceRegistry) handler(ref models.Reference) (ReferenceHandler, error) {
	h, ok := r.handlers[ref.Type()]
	if !ok {
		return nil, invalidArgument("INVALID_REFERENCE_TYPE", "unknown reference type %q", ref.Type())
	}
	return h, nil
}

// Total resolves the reference and returns its total
func (r *ReferenceRegistry) Total(ctx context.Context, db *gorm.DB, ref models.Reference) (decimal.Decimal, error) {
	h, err := r.handler(ref)
	if err != nil {
		return decimal.Zero, err
	}
	return h.Total(ctx, db, ref)
}

// Propagate sets status on the referenced entity
func (r *ReferenceRegistry) Propagate(ctx context.Context, db *gorm.DB, ref models.Reference, status models.PaymentStatus) error {
	h, err := r.handler(ref)
	if err != nil {
		return err
	}
	return h.SetPaymentStatus(ctx, db, ref, status)
}

// gormReferences stores every payable entity in its own table
type gormReferences struct{}

func referenceNotFound(ref models.Reference) *ServiceError {
	return notFound("REFERENCE_NOT_FOUND", "%s %s not found", ref.Type(), ref.RefID())
}

func (gormReferences) Total(ctx context.Context, db *gorm.DB, ref models.Reference) (decimal.Decimal, error) {
	var (
		total decimal.Decimal
		err   error
	)
	switch r := ref.(type) {
	case models.ServiceRequestRef:
		var sr models.ServiceRequest
		err = db.WithContext(ctx).Select("id", "total_cost").First(&sr, "id = ?", r.ID).Error
		total = sr.TotalCost
	case models.RentalBookingRef:
		var rb models.RentalBooking
		err = db.WithContext(ctx).Select("id", "total_amount").First(&rb, "id = ?", r.ID).Error
		total = rb.TotalAmount
	case models.PartOrderRef:
		var po models.PartOrder
		err = db.WithContext(ctx).Select("id", "total").First(&po, "id = ?", r.ID).Error
		total = po.Total
	default:
		return decimal.Zero, invalidArgument("INVALID_REFERENCE_TYPE", "unknown reference type %q", ref.Type())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, referenceNotFound(ref)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load %s: %w", ref.Type(), err)
	}
	return total, nil
}

func (gormReferences) SetPaymentStatus(ctx context.Context, db *gorm.DB, ref models.Reference, status models.PaymentStatus) error {
	var model interface{}
	switch ref.(type) {
	case models.ServiceRequestRef:
		model = &models.ServiceRequest{}
	case models.RentalBookingRef:
		model = &models.RentalBooking{}
	case models.PartOrderRef:
		model = &models.PartOrder{}
	default:
		return invalidArgument("INVALID_REFERENCE_TYPE", "unknown reference type %q", ref.Type())
	}

	result := db.WithContext(ctx).Model(model).Where("id = ?", ref.RefID()).Update("payment_status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s payment status: %w", ref.Type(), result.Error)
	}
	if result.RowsAffected == 0 {
		return referenceNotFound(ref)
	}
	return nil
}
