package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the fulfilment state of a part order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further fulfilment happens for the order
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// ShippingInfo is where a part order is delivered
type ShippingInfo struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	AddressLine   string `json:"address_line"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// PartOrder is a buyer's order of one or more car parts
type PartOrder struct {
	Base
	BuyerID        uuid.UUID         `gorm:"not null;index" json:"buyer_id"`
	Buyer          *User             `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Lines          []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Total          decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"total"`
	Status         OrderStatus       `gorm:"not null;default:'pending';index" json:"status"`
	PaymentStatus  PaymentStatus     `gorm:"not null;default:'unpaid'" json:"payment_status"`
	Shipping       ShippingInfo      `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	Remarks        *string           `gorm:"type:text" json:"remarks,omitempty"`
	StockRestored  bool              `gorm:"not null;default:false" json:"stock_restored"`
	Attachments    []OrderAttachment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"attachments"`
}

// TableName specifies the table name for the PartOrder model
func (PartOrder) TableName() string {
	return "part_orders"
}

// OrderLine is one part within an order. Unit price and subtotal are
// snapshots taken when the order was placed.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"not null;index" json:"order_id"`
	Position  int             `gorm:"not null" json:"position"`
	PartID    uuid.UUID       `gorm:"not null;index" json:"part_id"`
	PartName  string          `gorm:"not null" json:"part_name"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderLine model
func (OrderLine) TableName() string {
	return "order_lines"
}

// BeforeCreate assigns a random UUID when the caller did not set one
func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// NewOrderLine snapshots the part's current price into a line
func NewOrderLine(part CarPart, quantity int) OrderLine {
	return OrderLine{
		PartID:    part.ID,
		PartName:  part.Name,
		Quantity:  quantity,
		UnitPrice: part.Price,
		Subtotal:  part.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumSubtotals adds up the subtotals of lines
func SumSubtotals(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// OrderAttachment is a file uploaded together with an order
type OrderAttachment struct {
	ID        uuid.UUID `gorm:"primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"not null;index" json:"order_id"`
	Key       string    `gorm:"not null" json:"key"`
	Filename  string    `gorm:"not null" json:"filename"`
	URL       string    `gorm:"-" json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the OrderAttachment model
func (OrderAttachment) TableName() string {
	return "order_attachments"
}

// BeforeCreate assigns a random UUID when the caller did not set one
func (a *OrderAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
