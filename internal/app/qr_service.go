package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/datkrb/resfood-payments/internal/vietqr"
)

const (
	qrTransactionPrefix      = "QR"
	DefaultDescriptionPrefix = "Thanh toan don hang"

	MessageIgnoredOutbound = "Ignored outbound transfer"
)

// QRPayment is what the client renders for a bank-transfer payment.
type QRPayment struct {
	Intent domain.PaymentIntent
	QRURL  string
}

// QRService issues bank-transfer QR payment requests and reconciles the
// bank's transfer webhooks.
type QRService struct {
	store             OrderStore
	builder           vietqr.Builder
	verifier          vietqr.APIKeyVerifier
	reconciler        *Reconciler
	clock             clock.Clock
	logger            *slog.Logger
	storeTimeout      time.Duration
	descriptionPrefix string
	ids               transactionIDs
}

type QRServiceConfig struct {
	Builder           vietqr.Builder
	WebhookAPIKey     string
	DescriptionPrefix string
	StoreTimeout      time.Duration
	Logger            *slog.Logger
}

func NewQRService(store OrderStore, reconciler *Reconciler, clk clock.Clock, cfg QRServiceConfig) *QRService {
	s := &QRService{
		store:             store,
		builder:           cfg.Builder,
		verifier:          vietqr.NewAPIKeyVerifier(cfg.WebhookAPIKey),
		reconciler:        reconciler,
		clock:             clk,
		logger:            cfg.Logger,
		storeTimeout:      cfg.StoreTimeout,
		descriptionPrefix: cfg.DescriptionPrefix,
	}
	if s.logger == nil {
		s.logger = reconciler.logger
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.descriptionPrefix == "" {
		s.descriptionPrefix = DefaultDescriptionPrefix
	}
	return s
}

// CreatePayment builds the QR payload for orderKey and moves a CREATED order
// to WAITING_PAYMENT. WAITING_PAYMENT and PAID orders get the payload again
// unchanged; FAILED orders can no longer be paid.
func (s *QRService) CreatePayment(ctx context.Context, orderKey string) (QRPayment, error) {
	if !ValidOrderKey(orderKey) {
		return QRPayment{}, domain.ErrOrderNotFound
	}

	order, err := boundedCall(ctx, s.storeTimeout, func(ctx context.Context) (domain.Order, error) {
		return s.store.GetOrder(ctx, orderKey)
	})
	if err != nil {
		return QRPayment{}, err
	}
	if order.Status == domain.OrderStatusFailed {
		return QRPayment{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	description := Reference(s.descriptionPrefix, order.Key)
	payment := QRPayment{
		Intent: domain.PaymentIntent{
			TransactionID: s.ids.next(qrTransactionPrefix, now, order.Key),
			Rail:          domain.RailBankQR,
			OrderKey:      order.Key,
			Amount:        order.Total,
			Description:   description,
		},
		QRURL: s.builder.ImageURL(order.Total, description),
	}

	if order.Status != domain.OrderStatusCreated {
		return payment, nil
	}

	waiting := domain.OrderStatusWaitingPayment
	method := domain.PaymentMethodBankQR
	err = boundedExec(ctx, s.storeTimeout, func(ctx context.Context) error {
		return s.store.UpdateOrder(ctx, order.Key, domain.OrderUpdate{
			ExpectStatus:  []domain.OrderStatus{domain.OrderStatusCreated},
			Status:        &waiting,
			PaymentMethod: &method,
		})
	})
	// A concurrent request or payment already moved the order forward.
	if errors.Is(err, domain.ErrConditionFailed) {
		return payment, nil
	}
	if err != nil {
		return QRPayment{}, err
	}
	return payment, nil
}

// HandleWebhook authenticates, decodes and reconciles one bank webhook body.
// The result is always well formed.
func (s *QRService) HandleWebhook(ctx context.Context, body []byte, authorization string) domain.Result {
	n := domain.Notification{
		Rail:       domain.RailBankQR,
		Payload:    body,
		ReceivedAt: s.clock.Now(),
	}

	trusted, err := s.verifier.Verify(authorization)
	if err != nil {
		return s.reconciler.Reject(ctx, n, err)
	}
	n.Trusted = trusted
	if !trusted {
		s.logger.Warn("bank webhook accepted without authentication; configure QR_WEBHOOK_API_KEY")
	}

	hook, err := vietqr.ParseWebhook(body)
	if err != nil {
		return s.reconciler.Reject(ctx, n, err)
	}
	n.ExternalID = string(hook.ID)
	n.Content = hook.Content
	n.Amount = hook.TransferAmount

	if hook.Outbound() {
		return s.reconciler.Ignore(ctx, n, MessageIgnoredOutbound)
	}
	return s.reconciler.Apply(ctx, n)
}
