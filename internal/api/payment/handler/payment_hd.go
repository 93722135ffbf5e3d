package paymentHandler

import (
	"strconv"
	"time"

	payment "KoffieePos/internal/api/payment"
	contextPkg "KoffieePos/pkg/context"
	"KoffieePos/pkg/handlerUtil"
	"KoffieePos/pkg/log"
	"KoffieePos/pkg/qrcode"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *PaymentHandler) GenerateQRIS(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	orderID, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return errHandler.Handle(ctx, requestID, payment.ErrOrderNotFound, ctx.Path(), "parse_order_id")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"order_id":   orderID,
		"path":       ctx.Path(),
	}).Debug("Processing QRIS generation request")

	response, err := h.paymentService.GeneratePaymentForOrder(c, orderID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "generate_qris")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, response)
	}
}

func (h *PaymentHandler) GetPaymentStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	orderID, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return errHandler.Handle(ctx, requestID, payment.ErrOrderNotFound, ctx.Path(), "parse_order_id")
	}

	response, err := h.paymentService.GetPaymentStatus(c, orderID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_payment_status")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

// PaymentCallback receives incoming mutation notifications, either as a bare
// amount or as forwarded banking-app text. An unmatched amount answers 404
// so the forwarder can tell a miss from a delivery failure; it is not an
// application error.
func (h *PaymentHandler) PaymentCallback(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req payment.PaymentCallbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	amount := req.Amount
	if amount == 0 {
		rawText := req.RawText()
		if rawText == "" {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Amount checking failed. No amount detected.",
			})
		}

		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"raw_text":   rawText,
		}).Debug("Parsing amount from forwarded notification text")

		parsed, err := h.utils.ParseRupiahAmount(rawText)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Amount checking failed. No amount detected.",
			})
		}
		amount = parsed
	}

	result, err := h.paymentService.VerifyIncomingPayment(c, amount)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "verify_payment")
	}

	if !result.Matched {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"amount":     amount,
		}).Info("Payment callback ignored, no matching pending order")
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "miss",
			"message": "No matching pending order found",
		})
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"message": "Payment verified",
		"order":   result.OrderNumber,
	})
}

// RenderQR serves a payload as a PNG so WhatsApp messages can link to a
// scannable image.
func (h *PaymentHandler) RenderQR(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)

	data := ctx.Query("data")
	if data == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing QRIS data",
		})
	}

	png, err := qrcode.PNG(data)
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to render QR image")
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error rendering QR",
		})
	}

	ctx.Set(fiber.HeaderContentType, "image/png")
	return ctx.Send(png)
}
