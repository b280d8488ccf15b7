package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceType is the kind of work requested for a vehicle
type ServiceType string

const (
	ServiceMaintenance ServiceType = "maintenance"
	ServiceRepair      ServiceType = "repair"
	ServiceInspection  ServiceType = "inspection"
	ServiceDetailing   ServiceType = "detailing"
	ServiceTowing      ServiceType = "towing"
)

// Valid reports whether t is a known service type
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceMaintenance, ServiceRepair, ServiceInspection, ServiceDetailing, ServiceTowing:
		return true
	}
	return false
}

// ServiceRequestStatus is the workflow state of a service request
type ServiceRequestStatus string

const (
	ServicePending    ServiceRequestStatus = "pending"
	ServiceAccepted   ServiceRequestStatus = "accepted"
	ServiceInProgress ServiceRequestStatus = "in_progress"
	ServiceCompleted  ServiceRequestStatus = "completed"
	ServiceCancelled  ServiceRequestStatus = "cancelled"
)

// Valid reports whether s is a known service request status
func (s ServiceRequestStatus) Valid() bool {
	switch s {
	case ServicePending, ServiceAccepted, ServiceInProgress, ServiceCompleted, ServiceCancelled:
		return true
	}
	return false
}

var serviceTransitions = map[ServiceRequestStatus][]ServiceRequestStatus{
	ServicePending:    {ServiceAccepted, ServiceCancelled},
	ServiceAccepted:   {ServiceInProgress, ServiceCancelled},
	ServiceInProgress: {ServiceCompleted, ServiceCancelled},
}

// CanTransitionTo reports whether a request in status s may move to next.
// Completed and cancelled requests are final.
func (s ServiceRequestStatus) CanTransitionTo(next ServiceRequestStatus) bool {
	for _, allowed := range serviceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ServiceRequest is a customer's request for work on one of their vehicles
type ServiceRequest struct {
	Base
	CustomerID    uuid.UUID            `gorm:"not null;index" json:"customer_id"`
	Customer      *User                `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	VehicleID     uuid.UUID            `gorm:"not null;index" json:"vehicle_id"`
	Vehicle       *Vehicle             `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	ServiceType   ServiceType          `gorm:"not null" json:"service_type"`
	Description   string               `gorm:"type:text;not null" json:"description"`
	PreferredDate *time.Time           `json:"preferred_date,omitempty"`
	Status        ServiceRequestStatus `gorm:"not null;default:'pending';index" json:"status"`
	MechanicID    *uuid.UUID           `gorm:"index" json:"mechanic_id,omitempty"`
	Mechanic      *User                `gorm:"foreignKey:MechanicID" json:"mechanic,omitempty"`
	TotalCost     decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0" json:"total_cost"`
	PaymentStatus PaymentStatus        `gorm:"not null;default:'unpaid'" json:"payment_status"`
}

// TableName specifies the table name for the ServiceRequest model
func (ServiceRequest) TableName() string {
	return "service_requests"
}
