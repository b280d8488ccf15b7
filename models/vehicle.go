package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VINLength is the length of a vehicle identification number
const VINLength = 17

// Vehicle is a car owned by a user, optionally offered for rent
type Vehicle struct {
	Base
	OwnerID      uuid.UUID       `gorm:"not null;index" json:"owner_id"`
	Owner        *User           `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Make         string          `gorm:"not null;index" json:"make"`
	Model        string          `gorm:"not null" json:"model"`
	Year         int             `gorm:"not null" json:"year"`
	VIN          string          `gorm:"column:vin;uniqueIndex;size:17;not null" json:"vin"`
	LicensePlate string          `json:"license_plate"`
	Mileage      int             `gorm:"not null;default:0" json:"mileage"`
	Color        string          `json:"color"`
	Rentable     bool            `gorm:"not null;default:false" json:"rentable"`
	DailyRate    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"daily_rate"`
}

// TableName specifies the table name for the Vehicle model
func (Vehicle) TableName() string {
	return "vehicles"
}
