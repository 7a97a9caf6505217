package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderPaymentFailed   OrderStatus = "payment_failed"
	OrderCancelled       OrderStatus = "cancelled"
	OrderShipped         OrderStatus = "shipped"
	OrderDelivered       OrderStatus = "delivered"
)

// PaymentTerminal reports whether payment processing for an order in this
// status is over: no new gateway order may be opened and no capture applied.
func (s OrderStatus) PaymentTerminal() bool {
	switch s {
	case OrderPaid, OrderPaymentFailed, OrderCancelled, OrderShipped, OrderDelivered:
		return true
	}
	return false
}

// PaymentStatus is the closed local payment vocabulary. Gateway-native
// strings (CREATED, COMPLETED, DECLINED, …) are mapped to these at the
// adapter boundary and never stored raw.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// ShippingAddress is embedded into Order; every field is required at
// checkout.
type ShippingAddress struct {
	Name    string `gorm:"size:255;not null" json:"name"    validate:"required,max=255"`
	Phone   string `gorm:"size:20;not null"  json:"phone"   validate:"required,digits=10"`
	Address string `gorm:"size:500;not null" json:"address" validate:"required,max=500"`
	City    string `gorm:"size:100;not null" json:"city"    validate:"required,max=100"`
	State   string `gorm:"size:100;not null" json:"state"   validate:"required,max=100"`
	Pincode string `gorm:"size:10;not null"  json:"pincode" validate:"required,digits=6"`
}

// OrderItem is a line of an order, snapshotted at creation time. It
// references the product only by id; name and price are frozen copies so
// catalogue edits never retroactively change historical orders.
type OrderItem struct {
	ID              uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         uint    `gorm:"not null;index"           json:"order_id"`
	ProductID       uint    `gorm:"not null;index"           json:"product_id"`
	Name            string  `gorm:"size:255;not null"        json:"name"`
	PriceAtPurchase float64 `gorm:"not null"                 json:"price_at_purchase"`
	Quantity        int     `gorm:"not null"                 json:"quantity"`
}

// Order is a single checkout transaction. Orders are never deleted; all
// lifecycle movement happens through conditional status updates in the
// order repository.
type Order struct {
	gorm.Model
	UserID   uint            `gorm:"not null;index" json:"user_id"`
	Items    []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Shipping ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	CharityTrust string `gorm:"size:255;not null" json:"charity_trust"`

	PaymentMethod    string        `gorm:"size:50"         json:"payment_method"`
	GatewayOrderID   string        `gorm:"size:64;index"   json:"gateway_order_id"`
	GatewayCaptureID string        `gorm:"size:64"         json:"gateway_capture_id"`
	PaymentStatus    PaymentStatus `gorm:"size:20;default:pending" json:"payment_status"`
	PaymentAttempts  int           `gorm:"not null;default:0"      json:"payment_attempts"`

	TotalAmount float64     `gorm:"not null"                json:"total_amount"`
	Status      OrderStatus `gorm:"size:30;not null;index"  json:"status"`
	ExpiresAt   time.Time   `gorm:"not null;index"          json:"expires_at"`
}

// Expired reports whether the payment window has closed.
func (o Order) Expired(now time.Time) bool { return now.After(o.ExpiresAt) }
