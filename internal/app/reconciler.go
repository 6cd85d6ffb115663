package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/domain"
)

const (
	defaultStoreTimeout = 3 * time.Second

	// One local retry after losing a conditional write race.
	maxTransitionAttempts = 2

	MessagePaymentConfirmed = "Payment confirmed"
	MessageAlreadyPaid      = "Order already paid"
)

// Reconciler matches verified notifications to orders and applies the
// WAITING_PAYMENT/CREATED -> PAID transition exactly once.
type Reconciler struct {
	store        OrderStore
	log          NotificationLog
	clock        clock.Clock
	logger       *slog.Logger
	storeTimeout time.Duration
}

type ReconcilerOption func(*Reconciler)

// WithNotificationLog records every processed delivery to l.
func WithNotificationLog(l NotificationLog) ReconcilerOption {
	return func(r *Reconciler) {
		r.log = l
	}
}

// WithReconcilerLogger overrides the discard logger.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStoreTimeout bounds every order store call.
func WithStoreTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

func NewReconciler(store OrderStore, clk clock.Clock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:        store,
		clock:        clk,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply runs reference extraction, order resolution, the amount guard and the
// idempotent transition for an authenticated notification. It never returns a
// fault; the outcome is always a Result. Processing is detached from ctx
// cancellation so a started notification runs to completion.
func (r *Reconciler) Apply(ctx context.Context, n domain.Notification) domain.Result {
	ctx = context.WithoutCancel(ctx)
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = r.clock.Now()
	}

	res := r.apply(ctx, n)
	r.finish(ctx, n, res)
	return res
}

// Reject produces the negative Result for a notification that failed before
// reconciliation (authentication or decoding). The store is not touched.
func (r *Reconciler) Reject(ctx context.Context, n domain.Notification, err error) domain.Result {
	ctx = context.WithoutCancel(ctx)
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = r.clock.Now()
	}
	res := failure("", err)
	r.finish(ctx, n, res)
	return res
}

// Ignore acknowledges a notification that carries no credit for us.
func (r *Reconciler) Ignore(ctx context.Context, n domain.Notification, message string) domain.Result {
	ctx = context.WithoutCancel(ctx)
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = r.clock.Now()
	}
	res := domain.Result{Success: true, Message: message}
	r.finish(ctx, n, res)
	return res
}

func (r *Reconciler) apply(ctx context.Context, n domain.Notification) domain.Result {
	key, err := ExtractOrderKey(n.Content)
	if err != nil {
		return failure("", err)
	}

	var res domain.Result
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		res = r.transition(ctx, key, n)
		if !errors.Is(res.Err, domain.ErrConditionFailed) {
			return res
		}
		r.logger.Info("conditional write lost, re-reading order",
			"rail", n.Rail, "order_key", key, "attempt", attempt)
	}
	return res
}

func (r *Reconciler) transition(ctx context.Context, key string, n domain.Notification) domain.Result {
	order, err := boundedCall(ctx, r.storeTimeout, func(ctx context.Context) (domain.Order, error) {
		return r.store.GetOrder(ctx, key)
	})
	if err != nil {
		return failure(key, err)
	}

	if n.Amount != order.Total {
		return failure(key, domain.ErrAmountMismatch)
	}

	switch order.Status {
	case domain.OrderStatusPaid:
		return domain.Result{Success: true, Message: MessageAlreadyPaid, OrderKey: key}
	case domain.OrderStatusFailed:
		return failure(key, domain.ErrInvalidTransition)
	}

	now := r.clock.Now()
	paid := domain.OrderStatusPaid
	upd := domain.OrderUpdate{
		ExpectStatus: []domain.OrderStatus{order.Status},
		Status:       &paid,
		PaidAt:       &now,
	}
	if order.PaymentMethod == "" || order.PaymentMethod == domain.PaymentMethodNone {
		method := n.Rail.PaymentMethod()
		upd.PaymentMethod = &method
	}

	err = boundedExec(ctx, r.storeTimeout, func(ctx context.Context) error {
		return r.store.UpdateOrder(ctx, key, upd)
	})
	if err != nil {
		return failure(key, err)
	}
	return domain.Result{Success: true, Message: MessagePaymentConfirmed, OrderKey: key, Applied: true}
}

func (r *Reconciler) finish(ctx context.Context, n domain.Notification, res domain.Result) {
	attrs := []any{
		"rail", n.Rail,
		"external_id", n.ExternalID,
		"order_key", res.OrderKey,
		"amount", n.Amount,
		"trusted", n.Trusted,
	}
	switch {
	case res.Applied:
		r.logger.Info("payment reconciled", attrs...)
	case res.Success:
		r.logger.Info("notification acknowledged without change", append(attrs, "message", res.Message)...)
	case domain.IsRetryable(res.Err):
		r.logger.Error("notification processing failed", append(attrs, "error", res.Err)...)
	case isRejection(res.Err):
		r.logger.Warn("notification rejected", append(attrs, "error", res.Err)...)
	default:
		r.logger.Error("notification processing failed", append(attrs, "error", res.Err)...)
	}

	if r.log == nil {
		return
	}
	rec := domain.NotificationRecord{
		ID:             newID(),
		Rail:           n.Rail,
		ExternalID:     externalID(n),
		OrderKey:       res.OrderKey,
		Amount:         n.Amount,
		SignatureValid: n.Trusted,
		Success:        res.Success,
		Message:        res.Message,
		Payload:        n.Payload,
		DeliveryCount:  1,
		ReceivedAt:     n.ReceivedAt,
		LastReceivedAt: n.ReceivedAt,
	}
	err := boundedExec(ctx, r.storeTimeout, func(ctx context.Context) error {
		return r.log.RecordNotification(ctx, rec)
	})
	if err != nil {
		r.logger.Warn("record notification failed", "rail", n.Rail, "external_id", rec.ExternalID, "error", err)
	}
}

// externalID falls back to a payload digest so unsigned redeliveries of the
// same body collapse onto one log row.
func externalID(n domain.Notification) string {
	if n.ExternalID != "" {
		return n.ExternalID
	}
	sum := sha256.Sum256(n.Payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// isRejection reports outcomes expected from adversarial or mistyped input.
func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrMalformedReference,
		domain.ErrOrderNotFound,
		domain.ErrAmountMismatch,
		domain.ErrInvalidSignature,
		domain.ErrInvalidPayload,
		domain.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func failure(key string, err error) domain.Result {
	return domain.Result{Success: false, Message: ResultMessage(err), OrderKey: key, Err: err}
}

// ResultMessage maps a taxonomy error to the acknowledgment message.
func ResultMessage(err error) string {
	switch {
	case err == nil:
		return MessagePaymentConfirmed
	case errors.Is(err, domain.ErrAmountMismatch):
		return "Amount mismatch"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, domain.ErrMalformedReference):
		return "Malformed reference"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "Invalid signature"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "Invalid payload"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Order is not payable"
	case errors.Is(err, domain.ErrConditionFailed):
		return "Concurrent update, retry later"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "Order store unavailable"
	default:
		return "Internal error"
	}
}
