package paymentService

import (
	"context"
	"os"
	"time"

	payment "KoffieePos/internal/api/payment"
	paymentRepository "KoffieePos/internal/api/payment/repository"
	redisPkg "KoffieePos/pkg/redis"
	"KoffieePos/pkg/utils"
	websocketPkg "KoffieePos/pkg/websocket"
	"KoffieePos/pkg/whatsapp"
	"github.com/sirupsen/logrus"
)

const (
	// Surcharge space for disambiguating concurrent payments; final amounts
	// stay within ~Rp 500 of the order total.
	uniqueCodeMin = 1
	uniqueCodeMax = 500

	maxReservationAttempts = 10

	paymentWindow = 15 * time.Minute
)

type IPaymentService interface {
	GeneratePaymentForOrder(ctx context.Context, orderID int64) (*payment.GenerateQRISResponse, error)
	VerifyIncomingPayment(ctx context.Context, amount int64) (*payment.VerifyPaymentResult, error)
	GetPaymentStatus(ctx context.Context, orderID int64) (*payment.PaymentStatusResponse, error)
	ExpireStalePayments(ctx context.Context) (int64, error)
	StartExpirySweeper(ctx context.Context, interval time.Duration)
}

type paymentService struct {
	log             *logrus.Logger
	orderRepository paymentRepository.Repository
	redisServer     redisPkg.IRedis
	whatsappClient  whatsapp.IWhatsappSender
	hub             websocketPkg.IHub
	utils           utils.IUtils

	// staticPayload is the merchant's static QRIS as decoded from the
	// counter standee; every dynamic code is derived from it.
	staticPayload string
	renderBaseURL string
}

func New(
	log *logrus.Logger,
	orderRepository paymentRepository.Repository,
	redisServer redisPkg.IRedis,
	whatsappClient whatsapp.IWhatsappSender,
	hub websocketPkg.IHub,
	utilsInstance utils.IUtils,
) IPaymentService {
	return &paymentService{
		log:             log,
		orderRepository: orderRepository,
		redisServer:     redisServer,
		whatsappClient:  whatsappClient,
		hub:             hub,
		utils:           utilsInstance,
		staticPayload:   os.Getenv("QRIS_STATIC_PAYLOAD"),
		renderBaseURL:   os.Getenv("APP_BASE_URL"),
	}
}
