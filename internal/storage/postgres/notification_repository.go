package postgres

import (
	"context"

	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// RecordNotification upserts on (rail, external_id). A redelivery bumps
// delivery_count and keeps the latest outcome.
func (r *NotificationRepository) RecordNotification(ctx context.Context, rec domain.NotificationRecord) error {
	const stmt = `
INSERT INTO payment_notifications (
	id, rail, external_id, order_key, amount, signature_valid, success, message,
	payload, delivery_count, received_at, last_received_at
)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, 1, $10, $10)
ON CONFLICT (rail, external_id) DO UPDATE SET
	order_key = COALESCE(EXCLUDED.order_key, payment_notifications.order_key),
	signature_valid = EXCLUDED.signature_valid,
	success = EXCLUDED.success,
	message = EXCLUDED.message,
	delivery_count = payment_notifications.delivery_count + 1,
	last_received_at = EXCLUDED.last_received_at`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		rec.ID, string(rec.Rail), rec.ExternalID, rec.OrderKey, rec.Amount,
		rec.SignatureValid, rec.Success, rec.Message, rec.Payload, rec.ReceivedAt,
	)
	if err != nil {
		return storeError("record notification", err)
	}
	return nil
}

func (r *NotificationRepository) ListNotifications(ctx context.Context, orderKey string) ([]domain.NotificationRecord, error) {
	const query = `
SELECT id, rail, external_id, COALESCE(order_key, ''), amount, signature_valid,
	success, message, payload, delivery_count, received_at, last_received_at
FROM payment_notifications
WHERE order_key = $1
ORDER BY received_at ASC, id ASC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, orderKey)
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	defer rows.Close()

	var out []domain.NotificationRecord
	for rows.Next() {
		var rec domain.NotificationRecord
		var rail string
		if err := rows.Scan(
			&rec.ID, &rail, &rec.ExternalID, &rec.OrderKey, &rec.Amount, &rec.SignatureValid,
			&rec.Success, &rec.Message, &rec.Payload, &rec.DeliveryCount, &rec.ReceivedAt, &rec.LastReceivedAt,
		); err != nil {
			return nil, storeError("scan notification", err)
		}
		rec.Rail = domain.Rail(rail)
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, storeError("iterate notifications", rows.Err())
	}
	return out, nil
}
