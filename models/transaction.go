package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a payment transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Valid reports whether s is a known transaction status
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed, TransactionRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the payer settled the transaction
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodUPI          PaymentMethod = "upi"
	MethodWallet       PaymentMethod = "wallet"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodCash, MethodBankTransfer, MethodUPI, MethodWallet:
		return true
	}
	return false
}

// DefaultCurrency is used when a transaction does not name one
const DefaultCurrency = "USD"

// PaymentTransaction records a payment against exactly one payable entity
type PaymentTransaction struct {
	Base
	PayerID         uuid.UUID         `gorm:"not null;index" json:"payer_id"`
	Payer           *User             `gorm:"foreignKey:PayerID" json:"payer,omitempty"`
	ReferenceType   ReferenceType     `gorm:"not null;uniqueIndex:idx_transactions_reference" json:"reference_type"`
	ReferenceID     uuid.UUID         `gorm:"not null;uniqueIndex:idx_transactions_reference" json:"reference_id"`
	Amount          decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency        string            `gorm:"not null;default:'USD'" json:"currency"`
	PaymentMethod   PaymentMethod     `gorm:"not null" json:"payment_method"`
	Status          TransactionStatus `gorm:"not null;default:'pending';index" json:"status"`
	ReceiptNumber   string            `gorm:"uniqueIndex;not null" json:"receipt_number"`
	ReceiptKey      *string           `json:"receipt_key,omitempty"`
	ReceiptFilename *string           `json:"receipt_filename,omitempty"`
	ReceiptURL      *string           `gorm:"-" json:"receipt_url,omitempty"` // computed field
	Remarks         *string           `gorm:"type:text" json:"remarks,omitempty"`
}

// TableName specifies the table name for the PaymentTransaction model
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// Reference returns the entity this transaction pays for
func (t *PaymentTransaction) Reference() (Reference, error) {
	return NewReference(t.ReferenceType, t.ReferenceID)
}
