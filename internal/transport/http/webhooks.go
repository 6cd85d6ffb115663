package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/datkrb/resfood-payments/internal/zalopay"
)

// BankWebhookProcessor reconciles one raw bank webhook delivery.
type BankWebhookProcessor interface {
	HandleWebhook(ctx context.Context, body []byte, authorization string) domain.Result
}

// GatewayCallbackProcessor reconciles one gateway callback.
type GatewayCallbackProcessor interface {
	HandleCallback(ctx context.Context, cb zalopay.Callback) domain.Result
}

// HandleBankQRWebhook answers every delivery with HTTP 200 and a
// {success, message} body, whatever happened while processing it.
func HandleBankQRWebhook(svc BankWebhookProcessor, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("bank webhook panic", "panic", p)
				writeJSON(w, http.StatusOK, domain.Result{Success: false, Message: "Internal error"})
			}
		}()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.Warn("bank webhook body unreadable", "error", err)
			writeJSON(w, http.StatusOK, domain.Result{Success: false, Message: app.ResultMessage(domain.ErrInvalidPayload)})
			return
		}

		res := svc.HandleWebhook(r.Context(), body, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, res)
	}
}

// HandleGatewayCallback answers every delivery with HTTP 200 and the gateway
// acknowledgment envelope. A panic answers "retry".
func HandleGatewayCallback(svc GatewayCallbackProcessor, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("gateway callback panic", "panic", p)
				writeJSON(w, http.StatusOK, zalopay.Ack{ReturnCode: zalopay.AckRetry, ReturnMessage: "internal error"})
			}
		}()

		var cb zalopay.Callback
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cb); err != nil {
			logger.Warn("gateway callback body invalid", "error", err)
			writeJSON(w, http.StatusOK, zalopay.Ack{ReturnCode: zalopay.AckReject, ReturnMessage: app.ResultMessage(domain.ErrInvalidPayload)})
			return
		}

		res := svc.HandleCallback(r.Context(), cb)
		writeJSON(w, http.StatusOK, app.CallbackAck(res))
	}
}
