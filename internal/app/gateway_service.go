package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/datkrb/resfood-payments/internal/zalopay"
)

// gatewayTransactionPrefix is the date layout the gateway requires at the
// start of app_trans_id.
const gatewayTransactionPrefix = "060102"

// GatewayClient is the wallet gateway as seen by the payment core.
type GatewayClient interface {
	CreateOrder(ctx context.Context, req zalopay.CreateOrderRequest) (zalopay.CreateOrderResponse, error)
	QueryOrder(ctx context.Context, appTransID string) (zalopay.QueryResponse, error)
	VerifyCallback(cb zalopay.Callback) (zalopay.CallbackData, error)
}

// GatewaySession is returned to the client to open the wallet payment.
type GatewaySession struct {
	Intent       domain.PaymentIntent
	OrderURL     string
	ZPTransToken string
	OrderToken   string
	QRCode       string
}

// StatusReconciliation is a status query plus, when the gateway reported
// the payment as settled, the reconciliation outcome.
type StatusReconciliation struct {
	Status zalopay.QueryResponse
	Result *domain.Result
}

type GatewayService struct {
	store             OrderStore
	client            GatewayClient
	reconciler        *Reconciler
	clock             clock.Clock
	logger            *slog.Logger
	storeTimeout      time.Duration
	descriptionPrefix string
	redirectURL       string
	ids               transactionIDs
}

type GatewayServiceConfig struct {
	DescriptionPrefix string
	RedirectURL       string
	StoreTimeout      time.Duration
	Logger            *slog.Logger
}

func NewGatewayService(store OrderStore, client GatewayClient, reconciler *Reconciler, clk clock.Clock, cfg GatewayServiceConfig) *GatewayService {
	s := &GatewayService{
		store:             store,
		client:            client,
		reconciler:        reconciler,
		clock:             clk,
		logger:            cfg.Logger,
		storeTimeout:      cfg.StoreTimeout,
		descriptionPrefix: cfg.DescriptionPrefix,
		redirectURL:       cfg.RedirectURL,
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

// InitiatePayment opens a gateway session for orderKey. Order state is not
// written; the callback is the source of truth for success.
func (s *GatewayService) InitiatePayment(ctx context.Context, orderKey string) (GatewaySession, error) {
	if !ValidOrderKey(orderKey) {
		return GatewaySession{}, domain.ErrOrderNotFound
	}

	order, err := boundedCall(ctx, s.storeTimeout, func(ctx context.Context) (domain.Order, error) {
		return s.store.GetOrder(ctx, orderKey)
	})
	if err != nil {
		return GatewaySession{}, err
	}
	if order.Status.Terminal() {
		return GatewaySession{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	description := Reference(s.descriptionPrefix, order.Key)
	intent := domain.PaymentIntent{
		TransactionID: s.ids.next(now.Format(gatewayTransactionPrefix), now, order.Key),
		Rail:          domain.RailWallet,
		OrderKey:      order.Key,
		Amount:        order.Total,
		Description:   description,
	}
	if len(intent.TransactionID) > zalopay.MaxAppTransIDLength {
		return GatewaySession{}, fmt.Errorf("%w: order key too long for gateway transaction id", domain.ErrInvalidID)
	}

	resp, err := s.client.CreateOrder(ctx, zalopay.CreateOrderRequest{
		AppTransID:  intent.TransactionID,
		AppUser:     order.Key,
		AppTime:     now.UnixMilli(),
		Amount:      order.Total,
		Description: description,
		EmbedData: zalopay.EmbedData{
			RedirectURL: s.redirectURL,
			Reference:   description,
		},
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		s.logger.Error("gateway create order failed", "order_key", order.Key, "transaction_id", intent.TransactionID, "error", err)
		return GatewaySession{}, err
	}

	s.logger.Info("gateway session opened", "order_key", order.Key, "transaction_id", intent.TransactionID)
	return GatewaySession{
		Intent:       intent,
		OrderURL:     resp.OrderURL,
		ZPTransToken: resp.ZPTransToken,
		OrderToken:   resp.OrderToken,
		QRCode:       resp.QRCode,
	}, nil
}

// HandleCallback verifies the gateway MAC and reconciles the payment.
func (s *GatewayService) HandleCallback(ctx context.Context, cb zalopay.Callback) domain.Result {
	n := domain.Notification{
		Rail:       domain.RailWallet,
		Payload:    []byte(cb.Data),
		ReceivedAt: s.clock.Now(),
	}

	data, err := s.client.VerifyCallback(cb)
	if err != nil {
		return s.reconciler.Reject(ctx, n, err)
	}
	n.Trusted = true
	n.ExternalID = callbackExternalID(data)
	n.Content = data.Reference()
	n.Amount = data.Amount

	return s.reconciler.Apply(ctx, n)
}

// QueryStatus proxies the gateway status for a previously issued transaction.
func (s *GatewayService) QueryStatus(ctx context.Context, transactionID string) (zalopay.QueryResponse, error) {
	if _, err := OrderKeyFromTransactionID(transactionID); err != nil {
		return zalopay.QueryResponse{}, err
	}
	return s.client.QueryOrder(ctx, transactionID)
}

// ReconcileStatus queries the gateway and, when it reports the payment as
// settled, feeds the result through the same reconciliation as callbacks.
func (s *GatewayService) ReconcileStatus(ctx context.Context, transactionID string) (StatusReconciliation, error) {
	orderKey, err := OrderKeyFromTransactionID(transactionID)
	if err != nil {
		return StatusReconciliation{}, err
	}
	status, err := s.client.QueryOrder(ctx, transactionID)
	if err != nil {
		return StatusReconciliation{}, err
	}
	out := StatusReconciliation{Status: status}
	if !status.Paid() {
		return out, nil
	}

	externalID := "query:" + transactionID
	if status.ZPTransID != 0 {
		externalID = strconv.FormatInt(status.ZPTransID, 10)
	}
	res := s.reconciler.Apply(ctx, domain.Notification{
		Rail:       domain.RailWallet,
		ExternalID: externalID,
		Content:    Reference("", orderKey),
		Amount:     status.Amount,
		Trusted:    true,
		Payload:    status.Raw,
		ReceivedAt: s.clock.Now(),
	})
	out.Result = &res
	return out, nil
}

func callbackExternalID(d zalopay.CallbackData) string {
	if d.ZPTransID != 0 {
		return strconv.FormatInt(d.ZPTransID, 10)
	}
	return d.AppTransID
}

// CallbackAck maps a callback Result to the gateway acknowledgment. Retryable
// faults answer 0 so the gateway redelivers; other failures answer -1.
func CallbackAck(res domain.Result) zalopay.Ack {
	switch {
	case res.Success:
		return zalopay.Ack{ReturnCode: zalopay.AckSuccess, ReturnMessage: "success"}
	case errors.Is(res.Err, domain.ErrInvalidSignature):
		return zalopay.Ack{ReturnCode: zalopay.AckReject, ReturnMessage: "mac not equal"}
	case domain.IsRetryable(res.Err):
		return zalopay.Ack{ReturnCode: zalopay.AckRetry, ReturnMessage: res.Message}
	default:
		return zalopay.Ack{ReturnCode: zalopay.AckReject, ReturnMessage: res.Message}
	}
}
