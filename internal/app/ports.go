package app

import (
	"context"

	"github.com/datkrb/resfood-payments/internal/domain"
)

// OrderStore is the keyed document store the payment core reads and
// conditionally writes. Implementations return domain.ErrOrderNotFound and
// domain.ErrConditionFailed.
type OrderStore interface {
	GetOrder(ctx context.Context, key string) (domain.Order, error)
	UpdateOrder(ctx context.Context, key string, upd domain.OrderUpdate) error
}

// NotificationLog stores one row per inbound delivery for operators.
type NotificationLog interface {
	RecordNotification(ctx context.Context, rec domain.NotificationRecord) error
}
