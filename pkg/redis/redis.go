package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// IRedis caches the active QRIS payload per order so a generate call inside
// the payment window hands back the same code instead of burning a fresh
// unique amount.
type IRedis interface {
	SetActivePayment(ctx context.Context, orderID int64, payload string, expiration time.Duration) error
	GetActivePayment(ctx context.Context, orderID int64) (string, error)
	DeleteActivePayment(ctx context.Context, orderID int64) error
}

var ErrNotFound = errors.New("redis: key not found")

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func paymentKey(orderID int64) string {
	return fmt.Sprintf("qris:order:%d", orderID)
}

func (r *redisClient) SetActivePayment(ctx context.Context, orderID int64, payload string, expiration time.Duration) error {
	if err := r.client.Set(ctx, paymentKey(orderID), payload, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching payment for order %d: %v", orderID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetActivePayment(ctx context.Context, orderID int64) (string, error) {
	val, err := r.client.Get(ctx, paymentKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading cached payment for order %d: %v", orderID, err))
		return "", err
	}
	return val, nil
}

func (r *redisClient) DeleteActivePayment(ctx context.Context, orderID int64) error {
	if err := r.client.Del(ctx, paymentKey(orderID)).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error deleting cached payment for order %d: %v", orderID, err))
		return err
	}
	return nil
}
