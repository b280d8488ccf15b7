package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base holds the identity and timestamp columns shared by every table
type Base struct {
	ID        uuid.UUID      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a random UUID when the caller did not set one
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All returns every model managed by AutoMigrate, in dependency order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Vehicle{},
		&CarPart{},
		&PartOrder{},
		&OrderLine{},
		&OrderAttachment{},
		&ServiceRequest{},
		&RentalBooking{},
		&PaymentTransaction{},
		&InsurancePolicy{},
		&InsuranceClaim{},
		&ClaimAttachment{},
	}
}

// AutoMigrate creates or updates the schema for every model
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
