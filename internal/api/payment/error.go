package payment

import (
	"KoffieePos/pkg/response"
)

var (
	ErrOrderNotFound        = response.NewError(404, "order not found")
	ErrOrderNotPayable      = response.NewError(409, "order is already paid or cancelled")
	ErrInvalidAmount        = response.NewError(400, "invalid amount")
	ErrInvalidTemplate      = response.NewError(500, "merchant QRIS template is invalid")
	ErrPaymentSlotExhausted = response.NewError(409, "no unique payment amount available, please retry")

	// ErrNoMatchingPayment marks the quiet miss path of reconciliation; the
	// service translates it into a matched=false result instead of failing.
	ErrNoMatchingPayment = response.NewError(404, "no matching pending payment")
)
