package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

const paymentColumns = `p.id, p.order_id, p.method, p.status, p.amount,
       p.gateway_reference, p.paid_at, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount,
		&p.GatewayReference, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getPaymentByOrder = `SELECT ` + paymentColumns + `
FROM payments p
JOIN orders o ON o.id = p.order_id
WHERE p.order_id = $1 AND o.tenant_id = $2`

func (s *Scoped) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx, getPaymentByOrder, orderID, s.tenantID))
}

type CreatePaymentParams struct {
	OrderID uuid.UUID
	Method  enum.PaymentMethod
	Status  enum.PaymentStatus
	Amount  decimal.Decimal
	PaidAt  *time.Time
}

const createPayment = `INSERT INTO payments AS p (order_id, method, status, amount, paid_at)
SELECT o.id, $3, $4, $5, $6
FROM orders o
WHERE o.id = $1 AND o.tenant_id = $2
RETURNING ` + paymentColumns

func (s *Scoped) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx, createPayment,
		arg.OrderID, s.tenantID, arg.Method, arg.Status, arg.Amount, arg.PaidAt,
	))
}

const completePayment = `UPDATE payments p
SET method = $3, status = 'COMPLETED', amount = $4, paid_at = $5, updated_at = now()
FROM orders o
WHERE p.id = $1 AND p.order_id = o.id AND o.tenant_id = $2 AND p.status <> 'COMPLETED'
RETURNING ` + paymentColumns

// CompletePayment finalises a PENDING or FAILED payment.
func (s *Scoped) CompletePayment(ctx context.Context, id uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal, paidAt time.Time) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx, completePayment, id, s.tenantID, method, amount, paidAt))
}
