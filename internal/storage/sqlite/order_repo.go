package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datkrb/resfood-payments/internal/domain"
)

func (s *Store) GetOrder(ctx context.Context, key string) (domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT order_key, total, payment_method, status, paid_at, created_at, updated_at
		FROM orders WHERE order_key = ?`, key)

	var o domain.Order
	var method, status, createdAt, updatedAt string
	var paidAt sql.NullString
	if err := row.Scan(&o.Key, &o.Total, &method, &status, &paidAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, storeError("get order", err)
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.OrderStatus(status)

	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Order{}, fmt.Errorf("parse created_at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if paidAt.Valid {
		t, err := parseTime(paidAt.String)
		if err != nil {
			return domain.Order{}, fmt.Errorf("parse paid_at: %w", err)
		}
		o.PaidAt = &t
	}
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (order_key, total, payment_method, status, paid_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		order.Key, order.Total, string(order.PaymentMethod), string(order.Status),
		formatNullableTime(order.PaidAt), formatTime(order.CreatedAt), formatTime(order.UpdatedAt),
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
// upd.ExpectStatus.
func (s *Store) UpdateOrder(ctx context.Context, key string, upd domain.OrderUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	var status, method any
	if upd.Status != nil {
		status = string(*upd.Status)
	}
	if upd.PaymentMethod != nil {
		method = string(*upd.PaymentMethod)
	}

	expect := upd.ExpectStrings()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(expect)), ",")
	stmt := `UPDATE orders
		SET status = COALESCE(?, status),
			payment_method = COALESCE(?, payment_method),
			paid_at = COALESCE(?, paid_at),
			updated_at = ?
		WHERE order_key = ? AND status IN (` + placeholders + `)`

	args := []any{status, method, formatNullableTime(upd.PaidAt), formatTime(time.Now()), key}
	for _, e := range expect {
		args = append(args, e)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return storeError("update order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("update order", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_key = ?)`, key).Scan(&exists); err != nil {
			return storeError("check order", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrConditionFailed
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
