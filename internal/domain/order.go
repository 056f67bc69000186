package domain

import "time"

// OrderStatus is set by admin actions after checkout
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in display order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cod"
)

// PaymentInfo holds payment metadata. Card numbers are never stored, only the
// last four digits.
type PaymentInfo struct {
	Method     PaymentMethod `json:"method"`
	CardHolder string        `json:"card_holder,omitempty"`
	CardLast4  string        `json:"card_last4,omitempty"`
}

// Address is a shipping address
type Address struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// OrderItem is a snapshot of a cart line taken at checkout
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Category  string `json:"category"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
}

// Order is write-once from the client's side apart from the admin-managed
// status and shipping fields. Totals are never recomputed after creation.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Items           []OrderItem `json:"items"`
	TotalItems      int         `json:"total_items"`
	TotalPrice      int64       `json:"total_price"`
	Shipping        Address     `json:"shipping_address"`
	Payment         PaymentInfo `json:"payment"`
	Status          OrderStatus `json:"status"`
	ShippingID      string      `json:"shipping_id,omitempty"`
	ShippingCompany string      `json:"shipping_company,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
