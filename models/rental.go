package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RentalStatus is the lifecycle state of a rental booking
type RentalStatus string

const (
	RentalPending   RentalStatus = "pending"
	RentalConfirmed RentalStatus = "confirmed"
	RentalActive    RentalStatus = "active"
	RentalCompleted RentalStatus = "completed"
	RentalCancelled RentalStatus = "cancelled"
)

// Valid reports whether s is a known rental status
func (s RentalStatus) Valid() bool {
	switch s {
	case RentalPending, RentalConfirmed, RentalActive, RentalCompleted, RentalCancelled:
		return true
	}
	return false
}

// Blocking reports whether a booking in this status holds the vehicle
func (s RentalStatus) Blocking() bool {
	return s == RentalPending || s == RentalConfirmed || s == RentalActive
}

// RentalBooking reserves a rentable vehicle for a date range
type RentalBooking struct {
	Base
	CustomerID    uuid.UUID       `gorm:"not null;index" json:"customer_id"`
	Customer      *User           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	VehicleID     uuid.UUID       `gorm:"not null;index" json:"vehicle_id"`
	Vehicle       *Vehicle        `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	StartDate     time.Time       `gorm:"not null" json:"start_date"`
	EndDate       time.Time       `gorm:"not null" json:"end_date"`
	DailyRate     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"daily_rate"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status        RentalStatus    `gorm:"not null;default:'pending';index" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"not null;default:'unpaid'" json:"payment_status"`
}

// TableName specifies the table name for the RentalBooking model
func (RentalBooking) TableName() string {
	return "rental_bookings"
}

// RentalDays counts the billable days between start and end. A partial
// day is billed as a full one.
func RentalDays(start, end time.Time) int {
	d := end.Sub(start)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// RentalTotal is dailyRate multiplied by the billable days
func RentalTotal(dailyRate decimal.Decimal, start, end time.Time) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(int64(RentalDays(start, end))))
}
