package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// QRPaymentService is the bank QR rail as used by the router.
type QRPaymentService interface {
	QRPaymentCreator
	BankWebhookProcessor
}

// GatewayPaymentService is the wallet gateway rail as used by the router.
type GatewayPaymentService interface {
	GatewayInitiator
	GatewayStatusChecker
	GatewayCallbackProcessor
}

// RouterDeps collects handler dependencies. Nil services leave their
// routes unmounted.
type RouterDeps struct {
	Logger      *slog.Logger
	Health      Pinger
	QR          QRPaymentService
	Gateway     GatewayPaymentService
	Admin       AdminOrderService
	CORSOrigins []string
}

// NewRouter wires the HTTP routes exposed by the payment service.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return RequestLogger(next, logger) })
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.CORSOrigins))

	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HealthHandler(deps.Health, logger))

	if deps.QR != nil {
		r.Post("/payments/qr", HandleCreateQRPayment(deps.QR))
		r.Post("/webhooks/bank-qr", HandleBankQRWebhook(deps.QR, logger))
	}
	if deps.Gateway != nil {
		r.Post("/payments/gateway/orders", HandleCreateGatewayOrder(deps.Gateway))
		r.Post("/payments/gateway/status", HandleGatewayStatus(deps.Gateway))
		r.Post("/webhooks/gateway/callback", HandleGatewayCallback(deps.Gateway, logger))
	}
	if deps.Admin != nil {
		r.Route("/admin/orders", func(r chi.Router) {
			r.Post("/", HandleAdminCreateOrder(deps.Admin))
			r.Get("/{id}", HandleAdminGetOrder(deps.Admin))
			r.Get("/{id}/notifications", HandleAdminListNotifications(deps.Admin))
		})
	}

	return r
}
