package paymentService

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	payment "KoffieePos/internal/api/payment"
	"KoffieePos/internal/entity"
	contextPkg "KoffieePos/pkg/context"
	"KoffieePos/pkg/log"
	"KoffieePos/pkg/qrcode"
	"KoffieePos/pkg/qris"
	"KoffieePos/pkg/whatsapp"
	websocketPkg "KoffieePos/pkg/websocket"
)

// GeneratePaymentForOrder reserves a unique final amount for the order,
// converts the merchant's static QRIS into a dynamic one for that amount and
// returns the payload plus a renderable QR image. An order that already holds
// an unexpired code gets the same code back.
func (s *paymentService) GeneratePaymentForOrder(ctx context.Context, orderID int64) (*payment.GenerateQRISResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.orderRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	order, err := repo.Order.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.AwaitingPayment() {
		s.log.WithFields(log.Fields{
			"request_id":     requestID,
			"order_id":       orderID,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		}).Warn("Order is not awaiting payment")
		return nil, payment.ErrOrderNotPayable
	}

	if order.Total <= 0 {
		return nil, payment.ErrInvalidAmount
	}

	now := time.Now()

	if resp, ok := s.reuseActivePayment(ctx, order, now); ok {
		return resp, nil
	}

	for attempt := 1; attempt <= maxReservationAttempts; attempt++ {
		uniqueCode := int64(rand.Intn(uniqueCodeMax-uniqueCodeMin+1) + uniqueCodeMin)
		finalAmount := order.Total + uniqueCode
		expiresAt := now.Add(paymentWindow)

		// Build the payload before touching the order so a broken template
		// never leaves half-written payment fields behind.
		payload, err := qris.MakeDynamic(s.staticPayload, finalAmount)
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Merchant static QRIS template rejected")
			return nil, payment.ErrInvalidTemplate
		}

		reserved, err := repo.Order.ReservePaymentSlot(ctx, orderID, uniqueCode, finalAmount, expiresAt)
		if err != nil {
			return nil, err
		}
		if !reserved {
			s.log.WithFields(log.Fields{
				"request_id":   requestID,
				"order_id":     orderID,
				"final_amount": finalAmount,
				"attempt":      attempt,
			}).Warn("Final amount collides with an open payment, redrawing")
			continue
		}

		image, err := qrcode.DataURL(payload)
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to render QR image")
			return nil, err
		}

		s.cachePayload(ctx, orderID, payload, expiresAt.Sub(now))

		order.UniqueCode = uniqueCode
		order.FinalAmount = finalAmount
		order.PaymentExpiresAt = &expiresAt
		s.notifyPaymentInstructions(order, payload)
		s.broadcast("payment-created", payment.PaymentStatusResponse{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			PaymentStatus: entity.PaymentStatusPending,
			FinalAmount:   finalAmount,
			UniqueCode:    uniqueCode,
			ExpiresAt:     &expiresAt,
		})

		s.log.WithFields(log.Fields{
			"request_id":   requestID,
			"order_id":     orderID,
			"final_amount": finalAmount,
			"unique_code":  uniqueCode,
			"expires_at":   expiresAt,
		}).Info("Dynamic QRIS issued for order")

		return &payment.GenerateQRISResponse{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			QRISString:  payload,
			QRISImage:   image,
			FinalAmount: finalAmount,
			UniqueCode:  uniqueCode,
			ExpiresAt:   expiresAt,
		}, nil
	}

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"order_id":   orderID,
		"attempts":   maxReservationAttempts,
	}).Error("Exhausted unique code attempts for order")

	return nil, payment.ErrPaymentSlotExhausted
}

// VerifyIncomingPayment matches a notified transfer amount against exactly
// one open payment and settles it. Matching is on amount alone: the unique
// code keeps final amounts distinct inside the payment window, which is the
// deliberate trust assumption of this flow. A miss is a normal outcome and
// never an error.
func (s *paymentService) VerifyIncomingPayment(ctx context.Context, amount int64) (*payment.VerifyPaymentResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if amount <= 0 {
		return nil, payment.ErrInvalidAmount
	}

	repo, err := s.orderRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	order, err := repo.Order.FindPendingOrderByFinalAmount(ctx, amount)
	if err != nil {
		if errors.Is(err, payment.ErrNoMatchingPayment) {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"amount":     amount,
			}).Info("No pending payment matches notified amount")
			return &payment.VerifyPaymentResult{Matched: false}, nil
		}
		return nil, err
	}

	settled, err := repo.Order.MarkOrderPaid(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !settled {
		// Another notification settled it between lookup and update.
		return &payment.VerifyPaymentResult{Matched: false}, nil
	}

	if s.redisServer != nil {
		if err := s.redisServer.DeleteActivePayment(ctx, order.ID); err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"order_id":   order.ID,
			}).Warn("Failed to drop cached payment payload")
		}
	}

	s.notifyPaymentSuccess(order)
	s.broadcast("payment-settled", payment.VerifyPaymentResult{
		Matched:     true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	})

	s.log.WithFields(log.Fields{
		"request_id":   requestID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"amount":       amount,
	}).Info("Incoming payment matched and settled")

	return &payment.VerifyPaymentResult{
		Matched:     true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

func (s *paymentService) GetPaymentStatus(ctx context.Context, orderID int64) (*payment.PaymentStatusResponse, error) {
	repo, err := s.orderRepository.NewClient(false)
	if err != nil {
		return nil, err
	}

	order, err := repo.Order.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &payment.PaymentStatusResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		FinalAmount:   order.FinalAmount,
		UniqueCode:    order.UniqueCode,
		ExpiresAt:     order.PaymentExpiresAt,
	}, nil
}

// reuseActivePayment rebuilds the response for an order that already carries
// an unexpired code, so polling frontends and double-submitted generate calls
// never rotate the amount mid-window.
func (s *paymentService) reuseActivePayment(ctx context.Context, order entity.Order, now time.Time) (*payment.GenerateQRISResponse, bool) {
	if order.FinalAmount <= 0 || order.PaymentExpiresAt == nil || !order.PaymentExpiresAt.After(now) {
		return nil, false
	}

	payload := ""
	if s.redisServer != nil {
		if cached, err := s.redisServer.GetActivePayment(ctx, order.ID); err == nil {
			payload = cached
		}
	}
	if payload == "" {
		// MakeDynamic is deterministic, so the regenerated payload is
		// byte-identical to the one originally issued.
		rebuilt, err := qris.MakeDynamic(s.staticPayload, order.FinalAmount)
		if err != nil {
			return nil, false
		}
		payload = rebuilt
		s.cachePayload(ctx, order.ID, payload, order.PaymentExpiresAt.Sub(now))
	}

	image, err := qrcode.DataURL(payload)
	if err != nil {
		return nil, false
	}

	return &payment.GenerateQRISResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		QRISString:  payload,
		QRISImage:   image,
		FinalAmount: order.FinalAmount,
		UniqueCode:  order.UniqueCode,
		ExpiresAt:   *order.PaymentExpiresAt,
	}, true
}

func (s *paymentService) cachePayload(ctx context.Context, orderID int64, payload string, ttl time.Duration) {
	if s.redisServer == nil || ttl <= 0 {
		return
	}
	if err := s.redisServer.SetActivePayment(ctx, orderID, payload, ttl); err != nil {
		s.log.WithFields(log.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		}).Warn("Failed to cache payment payload")
	}
}

// Notification delivery is fire-and-forget: a WhatsApp outage must never fail
// payment generation or reconciliation.
func (s *paymentService) notifyPaymentInstructions(order entity.Order, payload string) {
	if s.whatsappClient == nil || order.CustomerPhone == "" {
		return
	}

	renderURL := fmt.Sprintf("%s/api/v1/payment/render?data=%s", s.renderBaseURL, url.QueryEscape(payload))
	message := whatsapp.FormatPaymentInstructions(order, renderURL)
	phone := s.utils.NormalizePhoneNumber(order.CustomerPhone)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.whatsappClient.SendMessage(ctx, phone, message); err != nil {
			s.log.WithFields(log.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			}).Warn("Failed to send payment instructions via WhatsApp")
		}
	}()
}

func (s *paymentService) notifyPaymentSuccess(order entity.Order) {
	if s.whatsappClient == nil || order.CustomerPhone == "" {
		return
	}

	message := whatsapp.FormatPaymentSuccess(order)
	phone := s.utils.NormalizePhoneNumber(order.CustomerPhone)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.whatsappClient.SendMessage(ctx, phone, message); err != nil {
			s.log.WithFields(log.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			}).Warn("Failed to send payment confirmation via WhatsApp")
		}
	}()
}

func (s *paymentService) broadcast(eventType string, data interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocketPkg.Event{Type: eventType, Data: data})
}
