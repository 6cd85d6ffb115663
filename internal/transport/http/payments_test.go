package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/datkrb/resfood-payments/internal/zalopay"
)

type fakeQRCreator struct {
	payment app.QRPayment
	err     error
	gotKey  string
}

func (f *fakeQRCreator) CreatePayment(ctx context.Context, orderKey string) (app.QRPayment, error) {
	f.gotKey = orderKey
	return f.payment, f.err
}

func TestHandleCreateQRPayment(t *testing.T) {
	t.Parallel()

	success := app.QRPayment{
		Intent: domain.PaymentIntent{TransactionID: "QR_1_o1", OrderKey: "o1", Amount: 150000, Description: "Thanh toan don hang #o1"},
		QRURL:  "https://img.vietqr.io/image/970422-0123456789-compact2.png?amount=150000",
	}

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{name: "success", body: `{"order_id":"o1"}`, expectedStatus: http.StatusCreated, expectedSubstr: `"transaction_id":"QR_1_o1"`},
		{name: "invalid json", body: `{"order_id":`, expectedStatus: http.StatusBadRequest, expectedSubstr: codeInvalidRequestBody},
		{name: "unknown field", body: `{"order_id":"o1","tip":5}`, expectedStatus: http.StatusBadRequest, expectedSubstr: codeInvalidRequestBody},
		{name: "missing order", body: `{}`, expectedStatus: http.StatusBadRequest, expectedSubstr: codeMissingRequiredField},
		{name: "failed order", body: `{"order_id":"o1"}`, serviceErr: domain.ErrInvalidTransition, expectedStatus: http.StatusConflict, expectedSubstr: codeOrderNotPayable},
		{name: "order not found", body: `{"order_id":"o1"}`, serviceErr: domain.ErrOrderNotFound, expectedStatus: http.StatusNotFound, expectedSubstr: codeOrderNotFound},
		{name: "store down", body: `{"order_id":"o1"}`, serviceErr: fmt.Errorf("get: %w", domain.ErrStoreUnavailable), expectedStatus: http.StatusServiceUnavailable, expectedSubstr: codeStoreUnavailable},
		{name: "internal error", body: `{"order_id":"o1"}`, serviceErr: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedSubstr: codeInternalError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeQRCreator{payment: success, err: tt.serviceErr}

			req := httptest.NewRequest(http.MethodPost, "/payments/qr", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			HandleCreateQRPayment(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleCreateQRPayment_BodyTooLarge(t *testing.T) {
	t.Parallel()

	body := `{"order_id":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/qr", strings.NewReader(body))
	rec := httptest.NewRecorder()
	HandleCreateQRPayment(&fakeQRCreator{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

type fakeGatewayHandlers struct {
	session   app.GatewaySession
	status    zalopay.QueryResponse
	reconcile app.StatusReconciliation
	err       error
	applied   bool
}

func (f *fakeGatewayHandlers) InitiatePayment(ctx context.Context, orderKey string) (app.GatewaySession, error) {
	return f.session, f.err
}

func (f *fakeGatewayHandlers) QueryStatus(ctx context.Context, transactionID string) (zalopay.QueryResponse, error) {
	return f.status, f.err
}

func (f *fakeGatewayHandlers) ReconcileStatus(ctx context.Context, transactionID string) (app.StatusReconciliation, error) {
	f.applied = true
	return f.reconcile, f.err
}

func TestHandleCreateGatewayOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{name: "success", expectedStatus: http.StatusCreated, expectedSubstr: `"order_url":"https://qcgateway.zalopay.vn/openinapp?order=abc"`},
		{name: "gateway down", serviceErr: fmt.Errorf("%w: timeout", domain.ErrGatewayUnavailable), expectedStatus: http.StatusBadGateway, expectedSubstr: codeGatewayUnavailable},
		{name: "paid order", serviceErr: domain.ErrInvalidTransition, expectedStatus: http.StatusConflict, expectedSubstr: codeOrderNotPayable},
		{name: "unknown order", serviceErr: domain.ErrOrderNotFound, expectedStatus: http.StatusNotFound, expectedSubstr: codeOrderNotFound},
		{name: "key too long", serviceErr: fmt.Errorf("%w: order key too long", domain.ErrInvalidID), expectedStatus: http.StatusBadRequest, expectedSubstr: codeInvalidID},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeGatewayHandlers{
				session: app.GatewaySession{
					Intent:   domain.PaymentIntent{TransactionID: "250314_1_o1"},
					OrderURL: "https://qcgateway.zalopay.vn/openinapp?order=abc",
				},
				err: tt.serviceErr,
			}

			req := httptest.NewRequest(http.MethodPost, "/payments/gateway/orders", strings.NewReader(`{"order_id":"o1"}`))
			rec := httptest.NewRecorder()
			HandleCreateGatewayOrder(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleGatewayStatus(t *testing.T) {
	t.Parallel()

	t.Run("query returns raw gateway body", func(t *testing.T) {
		t.Parallel()
		svc := &fakeGatewayHandlers{status: zalopay.QueryResponse{
			ReturnCode:   zalopay.ReturnCodeProcessing,
			IsProcessing: true,
			Raw:          json.RawMessage(`{"return_code":3,"is_processing":true}`),
		}}

		req := httptest.NewRequest(http.MethodPost, "/payments/gateway/status", strings.NewReader(`{"transaction_id":"250314_1_o1"}`))
		rec := httptest.NewRecorder()
		HandleGatewayStatus(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var resp gatewayStatusResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Paid || resp.Reconciliation != nil || svc.applied {
			t.Fatalf("expected plain query, got %+v", resp)
		}
		if !bytes.Contains(resp.Status, []byte(`"is_processing":true`)) {
			t.Fatalf("expected raw status, got %s", resp.Status)
		}
	})

	t.Run("apply reconciles", func(t *testing.T) {
		t.Parallel()
		svc := &fakeGatewayHandlers{reconcile: app.StatusReconciliation{
			Status: zalopay.QueryResponse{ReturnCode: zalopay.ReturnCodeSuccess, Amount: 100},
			Result: &domain.Result{Success: true, Message: app.MessagePaymentConfirmed},
		}}

		req := httptest.NewRequest(http.MethodPost, "/payments/gateway/status", strings.NewReader(`{"transaction_id":"250314_1_o1","apply":true}`))
		rec := httptest.NewRecorder()
		HandleGatewayStatus(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		if !svc.applied || !strings.Contains(body, `"reconciliation":{"success":true,"message":"Payment confirmed"}`) {
			t.Fatalf("expected reconciliation in body, got %s", body)
		}
		if !strings.Contains(body, `"paid":true`) {
			t.Fatalf("expected paid flag, got %s", body)
		}
	})

	t.Run("bad transaction id", func(t *testing.T) {
		t.Parallel()
		svc := &fakeGatewayHandlers{err: domain.ErrInvalidTransaction}

		req := httptest.NewRequest(http.MethodPost, "/payments/gateway/status", strings.NewReader(`{"transaction_id":"nope"}`))
		rec := httptest.NewRecorder()
		HandleGatewayStatus(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}
