package paymentRepository

const (
	orderColumns = `
		id,
		order_number,
		customer_name,
		customer_phone,
		order_type,
		subtotal,
		discount,
		total,
		status,
		payment_status,
		payment_method,
		unique_code,
		final_amount,
		payment_expires_at,
		completed_at,
		created_at
	`

	queryGetOrderByID = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = :id
	`

	// The NOT EXISTS guard makes the reservation atomic: a concurrent
	// reservation of the same final amount leaves zero rows affected here,
	// which the caller treats as a collision and re-draws.
	queryReservePaymentSlot = `
		UPDATE orders
		SET
			unique_code = :unique_code,
			final_amount = :final_amount,
			payment_expires_at = :expires_at,
			payment_method = 'qris',
			payment_status = 'pending'
		WHERE id = :id
		  AND NOT EXISTS (
			SELECT 1
			FROM orders o
			WHERE o.id <> :id
			  AND o.final_amount = :final_amount
			  AND (o.status IN ('pending', 'unpaid') OR o.payment_status IN ('pending', 'unpaid'))
			  AND o.payment_expires_at > :now
		  )
	`

	queryFindPendingOrderByFinalAmount = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE final_amount = :final_amount
		  AND (status IN ('pending', 'unpaid') OR payment_status IN ('pending', 'unpaid'))
		  AND payment_expires_at > :now
		LIMIT 1
	`

	queryMarkOrderPaid = `
		UPDATE orders
		SET
			status = 'completed',
			payment_status = 'paid',
			completed_at = :completed_at
		WHERE id = :id
		  AND (status IN ('pending', 'unpaid') OR payment_status IN ('pending', 'unpaid'))
	`

	queryExpireStalePayments = `
		UPDATE orders
		SET payment_status = 'expired'
		WHERE payment_method = 'qris'
		  AND payment_status IN ('pending', 'unpaid')
		  AND payment_expires_at IS NOT NULL
		  AND payment_expires_at <= :now
	`
)
