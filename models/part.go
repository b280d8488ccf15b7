package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CarPart is an inventory item listed in the parts marketplace
type CarPart struct {
	Base
	Name            string          `gorm:"not null" json:"name"`
	PartNumber      string          `gorm:"uniqueIndex;not null" json:"part_number"`
	Brand           string          `gorm:"index" json:"brand"`
	Category        string          `gorm:"index" json:"category"`
	CompatibleMakes string          `json:"compatible_makes"` // comma separated vehicle makes
	Description     string          `gorm:"type:text" json:"description"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock           int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	SellerID        uuid.UUID       `gorm:"index" json:"seller_id"`
	ImageKey        *string         `json:"image_key,omitempty"`
	ImageURL        *string         `gorm:"-" json:"image_url,omitempty"` // computed field
}

// TableName specifies the table name for the CarPart model
func (CarPart) TableName() string {
	return "car_parts"
}
