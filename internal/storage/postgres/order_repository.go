package postgres

import (
	"context"
	"errors"

	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *OrderRepository) GetOrder(ctx context.Context, key string) (domain.Order, error) {
	const query = `
SELECT order_key, total, payment_method, status, paid_at, created_at, updated_at
FROM orders
WHERE order_key = $1`

	var o domain.Order
	var method, status string
	err := conn(ctx, r.pool).QueryRow(ctx, query, key).
		Scan(&o.Key, &o.Total, &method, &status, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, storeError("get order", err)
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (order_key, total, payment_method, status, paid_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		order.Key, order.Total, string(order.PaymentMethod), string(order.Status),
		order.PaidAt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return storeError("create order", err)
	}
	return nil
}

// UpdateOrder applies upd only while the stored status is one of
// upd.ExpectStatus. A miss is resolved to ErrOrderNotFound or
// ErrConditionFailed inside the same transaction.
func (r *OrderRepository) UpdateOrder(ctx context.Context, key string, upd domain.OrderUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	const stmt = `
UPDATE orders
SET status = COALESCE($2, status),
	payment_method = COALESCE($3, payment_method),
	paid_at = COALESCE($4, paid_at),
	updated_at = NOW()
WHERE order_key = $1 AND status = ANY($5)`
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_key = $1)`

	var status, method *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	if upd.PaymentMethod != nil {
		m := string(*upd.PaymentMethod)
		method = &m
	}

	return withTx(ctx, r.pool, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		tag, err := q.Exec(ctx, stmt, key, status, method, upd.PaidAt, upd.ExpectStrings())
		if err != nil {
			return storeError("update order", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		var exists bool
		if err := q.QueryRow(ctx, existsQuery, key).Scan(&exists); err != nil {
			return storeError("check order", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrConditionFailed
	})
}
