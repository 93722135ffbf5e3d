package paymentHandler

import (
	paymentService "KoffieePos/internal/api/payment/service"
	"KoffieePos/internal/middleware"
	websocketPkg "KoffieePos/pkg/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type PaymentHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	paymentService paymentService.IPaymentService
	hub            websocketPkg.IHub
	utils          utilsPkg
}

type utilsPkg interface {
	ParseRupiahAmount(text string) (int64, error)
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	ps paymentService.IPaymentService,
	hub websocketPkg.IHub,
	utils utilsPkg,
) *PaymentHandler {
	return &PaymentHandler{
		log:            log,
		validator:      validate,
		middleware:     middleware,
		paymentService: ps,
		hub:            hub,
		utils:          utils,
	}
}

func (h *PaymentHandler) Start(srv fiber.Router) {
	pay := srv.Group("/payment")

	pay.Post("/orders/:id/qris", h.middleware.NewTokenMiddleware, h.GenerateQRIS)
	pay.Get("/orders/:id/status", h.GetPaymentStatus)

	// The mutation checker and QR render stay public; the external notifier
	// cannot carry a cashier token, so they get rate limited instead.
	pay.Post("/callback", h.middleware.NewRateLimiter, h.PaymentCallback)
	pay.Get("/render", h.middleware.NewRateLimiter, h.RenderQR)

	pay.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	pay.Get("/ws", h.hub.Handler())
}
