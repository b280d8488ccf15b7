package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CoverageType is the scope of an insurance policy
type CoverageType string

const (
	CoverageLiability     CoverageType = "liability"
	CoverageCollision     CoverageType = "collision"
	CoverageComprehensive CoverageType = "comprehensive"
)

// Valid reports whether c is a known coverage type
func (c CoverageType) Valid() bool {
	switch c {
	case CoverageLiability, CoverageCollision, CoverageComprehensive:
		return true
	}
	return false
}

// PolicyStatus is the state of an insurance policy
type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
)

// ClaimStatus is the review state of an insurance claim
type ClaimStatus string

const (
	ClaimSubmitted   ClaimStatus = "submitted"
	ClaimUnderReview ClaimStatus = "under_review"
	ClaimApproved    ClaimStatus = "approved"
	ClaimRejected    ClaimStatus = "rejected"
	ClaimPaid        ClaimStatus = "paid"
)

// Valid reports whether s is a known claim status
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimSubmitted, ClaimUnderReview, ClaimApproved, ClaimRejected, ClaimPaid:
		return true
	}
	return false
}

// InsurancePolicy covers one vehicle for a date range
type InsurancePolicy struct {
	Base
	HolderID       uuid.UUID       `gorm:"not null;index" json:"holder_id"`
	Holder         *User           `gorm:"foreignKey:HolderID" json:"holder,omitempty"`
	VehicleID      uuid.UUID       `gorm:"not null;index" json:"vehicle_id"`
	Vehicle        *Vehicle        `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	Provider       string          `gorm:"not null" json:"provider"`
	PolicyNumber   string          `gorm:"uniqueIndex;not null" json:"policy_number"`
	CoverageType   CoverageType    `gorm:"not null" json:"coverage_type"`
	Premium        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"premium"`
	CoverageAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"coverage_amount"`
	StartDate      time.Time       `gorm:"not null" json:"start_date"`
	EndDate        time.Time       `gorm:"not null" json:"end_date"`
	Status         PolicyStatus    `gorm:"not null;default:'active';index" json:"status"`
}

// TableName specifies the table name for the InsurancePolicy model
func (InsurancePolicy) TableName() string {
	return "insurance_policies"
}

// ActiveAt reports whether the policy is in force at t
func (p *InsurancePolicy) ActiveAt(t time.Time) bool {
	return p.Status == PolicyActive && !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// InsuranceClaim is a claim filed against a policy
type InsuranceClaim struct {
	Base
	PolicyID     uuid.UUID         `gorm:"not null;index" json:"policy_id"`
	Policy       *InsurancePolicy  `gorm:"foreignKey:PolicyID" json:"policy,omitempty"`
	ClaimantID   uuid.UUID         `gorm:"not null;index" json:"claimant_id"`
	IncidentDate time.Time         `gorm:"not null" json:"incident_date"`
	Description  string            `gorm:"type:text;not null" json:"description"`
	ClaimAmount  decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"claim_amount"`
	Status       ClaimStatus       `gorm:"not null;default:'submitted';index" json:"status"`
	Remarks      *string           `gorm:"type:text" json:"remarks,omitempty"`
	Attachments  []ClaimAttachment `gorm:"foreignKey:ClaimID;constraint:OnDelete:CASCADE" json:"attachments"`
}

// TableName specifies the table name for the InsuranceClaim model
func (InsuranceClaim) TableName() string {
	return "insurance_claims"
}

// ClaimAttachment is a supporting document for a claim
type ClaimAttachment struct {
	ID        uuid.UUID `gorm:"primaryKey" json:"id"`
	ClaimID   uuid.UUID `gorm:"not null;index" json:"claim_id"`
	Key       string    `gorm:"not null" json:"key"`
	Filename  string    `gorm:"not null" json:"filename"`
	URL       string    `gorm:"-" json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the ClaimAttachment model
func (ClaimAttachment) TableName() string {
	return "claim_attachments"
}

// BeforeCreate assigns a random UUID when the caller did not set one
func (a *ClaimAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
