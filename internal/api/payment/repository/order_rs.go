package paymentRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	payment "KoffieePos/internal/api/payment"
	"KoffieePos/internal/entity"
	contextPkg "KoffieePos/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type OrderDB struct {
	ID               int64          `db:"id"`
	OrderNumber      sql.NullString `db:"order_number"`
	CustomerName     sql.NullString `db:"customer_name"`
	CustomerPhone    sql.NullString `db:"customer_phone"`
	OrderType        sql.NullString `db:"order_type"`
	Subtotal         sql.NullInt64  `db:"subtotal"`
	Discount         sql.NullInt64  `db:"discount"`
	Total            sql.NullInt64  `db:"total"`
	Status           sql.NullString `db:"status"`
	PaymentStatus    sql.NullString `db:"payment_status"`
	PaymentMethod    sql.NullString `db:"payment_method"`
	UniqueCode       sql.NullInt64  `db:"unique_code"`
	FinalAmount      sql.NullInt64  `db:"final_amount"`
	PaymentExpiresAt sql.NullTime   `db:"payment_expires_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (entity.Order, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var order OrderDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetOrderByID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetOrderByID named query preparation err")
		return entity.Order{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"order_id":   id,
			}).Warn("GetOrderByID no rows found")
			return entity.Order{}, payment.ErrOrderNotFound
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetOrderByID execution err")

		return entity.Order{}, err
	}

	return r.makeOrder(order), nil
}

func (r *orderRepository) ReservePaymentSlot(ctx context.Context, orderID, uniqueCode, finalAmount int64, expiresAt time.Time) (bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"id":           orderID,
		"unique_code":  uniqueCode,
		"final_amount": finalAmount,
		"expires_at":   expiresAt,
		"now":          time.Now(),
	}

	query, args, err := sqlx.Named(queryReservePaymentSlot, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ReservePaymentSlot named query preparation err")
		return false, err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		// Two reservations racing under read committed can both pass the
		// NOT EXISTS guard; the partial unique index on open final amounts
		// then rejects the loser, which is the same collision signal as
		// zero rows affected.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			r.log.WithFields(logrus.Fields{
				"request_id":   requestID,
				"order_id":     orderID,
				"final_amount": finalAmount,
			}).Warn("ReservePaymentSlot unique index rejected final amount")
			return false, nil
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ReservePaymentSlot execution err")
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ReservePaymentSlot rows affected err")
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *orderRepository) FindPendingOrderByFinalAmount(ctx context.Context, amount int64) (entity.Order, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var order OrderDB

	argsKV := map[string]interface{}{
		"final_amount": amount,
		"now":          time.Now(),
	}

	query, args, err := sqlx.Named(queryFindPendingOrderByFinalAmount, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("FindPendingOrderByFinalAmount named query preparation err")
		return entity.Order{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Order{}, payment.ErrNoMatchingPayment
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("FindPendingOrderByFinalAmount execution err")

		return entity.Order{}, err
	}

	return r.makeOrder(order), nil
}

func (r *orderRepository) MarkOrderPaid(ctx context.Context, orderID int64) (bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"id":           orderID,
		"completed_at": time.Now(),
	}

	query, args, err := sqlx.Named(queryMarkOrderPaid, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkOrderPaid named query preparation err")
		return false, err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkOrderPaid execution err")
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkOrderPaid rows affected err")
		return false, err
	}

	if rowsAffected == 0 {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"order_id":   orderID,
		}).Warn("MarkOrderPaid no rows affected, order already settled")
		return false, nil
	}

	return true, nil
}

func (r *orderRepository) ExpireStalePayments(ctx context.Context) (int64, error) {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"now": time.Now(),
	}

	query, args, err := sqlx.Named(queryExpireStalePayments, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ExpireStalePayments named query preparation err")
		return 0, err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ExpireStalePayments execution err")
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ExpireStalePayments rows affected err")
		return 0, err
	}

	return rowsAffected, nil
}

func (r *orderRepository) makeOrder(order OrderDB) entity.Order {
	out := entity.Order{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber.String,
		CustomerName:  order.CustomerName.String,
		CustomerPhone: order.CustomerPhone.String,
		OrderType:     order.OrderType.String,
		Subtotal:      order.Subtotal.Int64,
		Discount:      order.Discount.Int64,
		Total:         order.Total.Int64,
		Status:        order.Status.String,
		PaymentStatus: order.PaymentStatus.String,
		PaymentMethod: order.PaymentMethod.String,
		UniqueCode:    order.UniqueCode.Int64,
		FinalAmount:   order.FinalAmount.Int64,
		CreatedAt:     order.CreatedAt,
	}

	if order.PaymentExpiresAt.Valid {
		t := order.PaymentExpiresAt.Time
		out.PaymentExpiresAt = &t
	}
	if order.CompletedAt.Valid {
		t := order.CompletedAt.Time
		out.CompletedAt = &t
	}

	return out
}
