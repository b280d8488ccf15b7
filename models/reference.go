package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ReferenceType tags the kind of entity a payment transaction pays for
type ReferenceType string

const (
	ReferenceServiceRequest ReferenceType = "service_request"
	ReferenceRentalBooking  ReferenceType = "rental_booking"
	ReferencePartOrder      ReferenceType = "part_order"
)

// ReferenceTypes lists every payable entity kind
var ReferenceTypes = []ReferenceType{
	ReferenceServiceRequest,
	ReferenceRentalBooking,
	ReferencePartOrder,
}

// PaymentStatus is the payment state mirrored onto a payable entity
type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentPending   PaymentStatus = "payment_pending"
	PaymentCompleted PaymentStatus = "payment_completed"
	PaymentFailed    PaymentStatus = "payment_failed"
)

// Reference identifies one payable entity. The set of implementations is
// closed: ServiceRequestRef, RentalBookingRef and PartOrderRef.
type Reference interface {
	Type() ReferenceType
	RefID() uuid.UUID
	isReference()
}

// ServiceRequestRef references a ServiceRequest
type ServiceRequestRef struct{ ID uuid.UUID }

// RentalBookingRef references a RentalBooking
type RentalBookingRef struct{ ID uuid.UUID }

// PartOrderRef references a PartOrder
type PartOrderRef struct{ ID uuid.UUID }

func (ServiceRequestRef) Type() ReferenceType { return ReferenceServiceRequest }
func (RentalBookingRef) Type() ReferenceType  { return ReferenceRentalBooking }
func (PartOrderRef) Type() ReferenceType      { return ReferencePartOrder }

func (r ServiceRequestRef) RefID() uuid.UUID { return r.ID }
func (r RentalBookingRef) RefID() uuid.UUID  { return r.ID }
func (r PartOrderRef) RefID() uuid.UUID      { return r.ID }

func (ServiceRequestRef) isReference() {}
func (RentalBookingRef) isReference()  {}
func (PartOrderRef) isReference()      {}

// UnknownReferenceTypeError is returned for tags outside ReferenceTypes
type UnknownReferenceTypeError struct {
	Type string
}

func (e *UnknownReferenceTypeError) Error() string {
	return fmt.Sprintf("unknown reference type %q", e.Type)
}

// NewReference builds the Reference for a (type, id) pair
func NewReference(t ReferenceType, id uuid.UUID) (Reference, error) {
	switch t {
	case ReferenceServiceRequest:
		return ServiceRequestRef{ID: id}, nil
	case ReferenceRentalBooking:
		return RentalBookingRef{ID: id}, nil
	case ReferencePartOrder:
		return PartOrderRef{ID: id}, nil
	}
	return nil, &UnknownReferenceTypeError{Type: string(t)}
}
