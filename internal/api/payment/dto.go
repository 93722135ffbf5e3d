package payment

import "time"

type GenerateQRISResponse struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	QRISString  string    `json:"qris_string"`
	QRISImage   string    `json:"qris_image"`
	FinalAmount int64     `json:"final_amount"`
	UniqueCode  int64     `json:"unique_code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PaymentCallbackRequest accepts either the structured form {"amount": 50123}
// or the raw text a notification forwarder relays from the banking app; the
// first non-empty of Message/Text/Body is scanned for a rupiah nominal.
type PaymentCallbackRequest struct {
	Amount  int64  `json:"amount" validate:"omitempty,gt=0"`
	Message string `json:"message" validate:"omitempty,max=1000"`
	Text    string `json:"text" validate:"omitempty,max=1000"`
	Body    string `json:"body" validate:"omitempty,max=1000"`
}

func (r PaymentCallbackRequest) RawText() string {
	if r.Message != "" {
		return r.Message
	}
	if r.Text != "" {
		return r.Text
	}
	return r.Body
}

type VerifyPaymentResult struct {
	Matched     bool   `json:"matched"`
	OrderID     int64  `json:"order_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

type PaymentStatusResponse struct {
	OrderID       int64      `json:"order_id"`
	OrderNumber   string     `json:"order_number"`
	PaymentStatus string     `json:"payment_status"`
	FinalAmount   int64      `json:"final_amount,omitempty"`
	UniqueCode    int64      `json:"unique_code,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
