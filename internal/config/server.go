package config

import (
	"fmt"
	"os"
	"time"

	"KoffieePos/database/postgres"
	paymentHandler "KoffieePos/internal/api/payment/handler"
	paymentRepository "KoffieePos/internal/api/payment/repository"
	paymentService "KoffieePos/internal/api/payment/service"
	"KoffieePos/internal/middleware"
	redisPkg "KoffieePos/pkg/redis"
	"KoffieePos/pkg/utils"
	websocketPkg "KoffieePos/pkg/websocket"
	"KoffieePos/pkg/whatsapp"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const expirySweepInterval = time.Minute

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisServer    redisPkg.IRedis
	whatsappClient whatsapp.IWhatsappSender
	websocketHub   websocketPkg.IHub
	paymentService paymentService.IPaymentService

	sweeperCancel context.CancelFunc
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redisPkg.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithWhatsappClient() ServerOption {
	return func(s *Server) error {
		client, err := whatsapp.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize WhatsApp client: %v", err)
			}
			return fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		s.whatsappClient = client
		return nil
	}
}

func WithWebsocketHub() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before websocket hub")
		}
		s.websocketHub = websocketPkg.NewHub(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Payment Domain
	paymentRepo := paymentRepository.New(s.db, s.log)
	paymentServices := paymentService.New(s.log, paymentRepo, s.redisServer, s.whatsappClient, s.websocketHub, s.utils)
	paymentHandlers := paymentHandler.New(s.log, s.validator, s.middleware, paymentServices, s.websocketHub, s.utils)

	s.paymentService = paymentServices

	s.setupHealthCheck()
	s.handlers = append(s.handlers, paymentHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	for _, h := range s.handlers {
		h.Start(router)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.sweeperCancel = cancel
	s.paymentService.StartExpirySweeper(sweepCtx, expirySweepInterval)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		s.Shutdown()
		return err
	}

	return nil
}

func (s *Server) Shutdown() {
	if s.sweeperCancel != nil {
		s.sweeperCancel()
	}
	if s.whatsappClient != nil {
		s.whatsappClient.Disconnect()
	}
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
