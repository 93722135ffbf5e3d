package entity

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusUnpaid    = "unpaid"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"

	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusExpired = "expired"

	PaymentMethodQRIS = "qris"
	PaymentMethodCash = "cash"
)

// Order is the slice of an order row the payment subsystem works with. The
// subsystem never owns the order; it only annotates the payment fields and
// flips the status pair on settlement.
type Order struct {
	ID               int64
	OrderNumber      string
	CustomerName     string
	CustomerPhone    string
	OrderType        string
	Subtotal         int64
	Discount         int64
	Total            int64
	Status           string
	PaymentStatus    string
	PaymentMethod    string
	UniqueCode       int64
	FinalAmount      int64
	PaymentExpiresAt *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

// AwaitingPayment reports whether the order can still be matched against an
// incoming transfer: either status leg may hold the pending marker.
func (o Order) AwaitingPayment() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusUnpaid:
		return true
	}
	switch o.PaymentStatus {
	case PaymentStatusPending, PaymentStatusUnpaid:
		return true
	}
	return false
}
