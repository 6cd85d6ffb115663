package sqlite

import (
	"context"
	"fmt"

	"github.com/datkrb/resfood-payments/internal/domain"
)

// RecordNotification upserts on (rail, external_id) and counts redeliveries.
func (s *Store) RecordNotification(ctx context.Context, rec domain.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_notifications
		(id, rail, external_id, order_key, amount, signature_valid, success, message,
		 payload, delivery_count, received_at, last_received_at)
		VALUES (?,?,?,NULLIF(?, ''),?,?,?,?,?,1,?,?)
		ON CONFLICT (rail, external_id) DO UPDATE SET
			order_key = COALESCE(excluded.order_key, payment_notifications.order_key),
			signature_valid = excluded.signature_valid,
			success = excluded.success,
			message = excluded.message,
			delivery_count = payment_notifications.delivery_count + 1,
			last_received_at = excluded.last_received_at`,
		rec.ID, string(rec.Rail), rec.ExternalID, rec.OrderKey, rec.Amount,
		rec.SignatureValid, rec.Success, rec.Message, rec.Payload,
		formatTime(rec.ReceivedAt), formatTime(rec.ReceivedAt),
	)
	if err != nil {
		return storeError("record notification", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, orderKey string) ([]domain.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rail, external_id, COALESCE(order_key, ''), amount, signature_valid,
			success, message, payload, delivery_count, received_at, last_received_at
		FROM payment_notifications
		WHERE order_key = ?
		ORDER BY received_at ASC, id ASC`, orderKey)
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	defer rows.Close()

	var out []domain.NotificationRecord
	for rows.Next() {
		var rec domain.NotificationRecord
		var rail, receivedAt, lastReceivedAt string
		if err := rows.Scan(
			&rec.ID, &rail, &rec.ExternalID, &rec.OrderKey, &rec.Amount, &rec.SignatureValid,
			&rec.Success, &rec.Message, &rec.Payload, &rec.DeliveryCount, &receivedAt, &lastReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.Rail = domain.Rail(rail)
		if rec.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, fmt.Errorf("parse received_at: %w", err)
		}
		if rec.LastReceivedAt, err = parseTime(lastReceivedAt); err != nil {
			return nil, fmt.Errorf("parse last_received_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
