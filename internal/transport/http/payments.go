package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/datkrb/resfood-payments/internal/zalopay"
)

// QRPaymentCreator is the minimal interface needed to issue a bank QR payment.
type QRPaymentCreator interface {
	CreatePayment(ctx context.Context, orderKey string) (app.QRPayment, error)
}

// GatewayInitiator is the minimal interface needed to open a wallet session.
type GatewayInitiator interface {
	InitiatePayment(ctx context.Context, orderKey string) (app.GatewaySession, error)
}

// GatewayStatusChecker queries, and optionally reconciles, a gateway transaction.
type GatewayStatusChecker interface {
	QueryStatus(ctx context.Context, transactionID string) (zalopay.QueryResponse, error)
	ReconcileStatus(ctx context.Context, transactionID string) (app.StatusReconciliation, error)
}

type paymentRequest struct {
	OrderID string `json:"order_id"`
}

type qrPaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	QRURL         string `json:"qr_url"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
}

type gatewayOrderResponse struct {
	TransactionID string `json:"transaction_id"`
	OrderURL      string `json:"order_url"`
	ZPTransToken  string `json:"zp_trans_token"`
	OrderToken    string `json:"order_token"`
	QRCode        string `json:"qr_code"`
}

type gatewayStatusRequest struct {
	TransactionID string `json:"transaction_id"`
	Apply         bool   `json:"apply"`
}

type gatewayStatusResponse struct {
	TransactionID  string          `json:"transaction_id"`
	Paid           bool            `json:"paid"`
	Status         json.RawMessage `json:"status"`
	Reconciliation *domain.Result  `json:"reconciliation,omitempty"`
}

// HandleCreateQRPayment returns an HTTP handler for POST /payments/qr.
func HandleCreateQRPayment(svc QRPaymentCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.OrderID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "order_id is required")
			return
		}

		p, err := svc.CreatePayment(r.Context(), req.OrderID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, qrPaymentResponse{
			TransactionID: p.Intent.TransactionID,
			QRURL:         p.QRURL,
			Amount:        p.Intent.Amount,
			Description:   p.Intent.Description,
		})
	}
}

// HandleCreateGatewayOrder returns an HTTP handler for POST /payments/gateway/orders.
func HandleCreateGatewayOrder(svc GatewayInitiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.OrderID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "order_id is required")
			return
		}

		s, err := svc.InitiatePayment(r.Context(), req.OrderID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, gatewayOrderResponse{
			TransactionID: s.Intent.TransactionID,
			OrderURL:      s.OrderURL,
			ZPTransToken:  s.ZPTransToken,
			OrderToken:    s.OrderToken,
			QRCode:        s.QRCode,
		})
	}
}

// HandleGatewayStatus returns an HTTP handler for POST /payments/gateway/status.
func HandleGatewayStatus(svc GatewayStatusChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gatewayStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.TransactionID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "transaction_id is required")
			return
		}

		var out app.StatusReconciliation
		var err error
		if req.Apply {
			out, err = svc.ReconcileStatus(r.Context(), req.TransactionID)
		} else {
			out.Status, err = svc.QueryStatus(r.Context(), req.TransactionID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		raw := out.Status.Raw
		if len(raw) == 0 {
			raw, _ = json.Marshal(out.Status)
		}
		writeJSON(w, http.StatusOK, gatewayStatusResponse{
			TransactionID:  req.TransactionID,
			Paid:           out.Status.Paid(),
			Status:         raw,
			Reconciliation: out.Result,
		})
	}
}
