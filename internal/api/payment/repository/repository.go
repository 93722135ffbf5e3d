package paymentRepository

import (
	"time"

	"KoffieePos/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Order:    &orderRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Order interface {
		GetOrderByID(ctx context.Context, id int64) (entity.Order, error)
		// ReservePaymentSlot writes the payment fields only when no other
		// open payment already holds finalAmount; false means collision.
		ReservePaymentSlot(ctx context.Context, orderID, uniqueCode, finalAmount int64, expiresAt time.Time) (bool, error)
		FindPendingOrderByFinalAmount(ctx context.Context, amount int64) (entity.Order, error)
		// MarkOrderPaid settles the order; false means its status had
		// already moved on (e.g. a duplicate notification).
		MarkOrderPaid(ctx context.Context, orderID int64) (bool, error)
		ExpireStalePayments(ctx context.Context) (int64, error)
	}

	Commit   func() error
	Rollback func() error
}

type orderRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
