package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/datkrb/resfood-payments/internal/logging"
	"github.com/datkrb/resfood-payments/internal/storage/memory"
	"github.com/datkrb/resfood-payments/internal/vietqr"
	"github.com/datkrb/resfood-payments/internal/zalopay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	routerAPIKey = "webhook-secret"
	routerKey1   = "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL"
	routerKey2   = "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz"
)

// fakeZaloPay serves /v2/create and /v2/query and remembers created orders.
type fakeZaloPay struct {
	mu      sync.Mutex
	amounts map[string]int64
	paid    map[string]bool
}

func (z *fakeZaloPay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	z.mu.Lock()
	defer z.mu.Unlock()

	txID := r.PostForm.Get("app_trans_id")
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v2/create":
		amount, _ := strconv.ParseInt(r.PostForm.Get("amount"), 10, 64)
		z.amounts[txID] = amount
		_ = json.NewEncoder(w).Encode(map[string]any{
			"return_code":    zalopay.ReturnCodeSuccess,
			"return_message": "Giao dịch thành công",
			"order_url":      "https://qcgateway.zalopay.vn/openinapp?order=" + url.QueryEscape(txID),
			"zp_trans_token": "tok-" + txID,
		})
	case "/v2/query":
		code, processing := zalopay.ReturnCodeProcessing, true
		if z.paid[txID] {
			code, processing = zalopay.ReturnCodeSuccess, false
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"return_code":   code,
			"is_processing": processing,
			"amount":        z.amounts[txID],
			"zp_trans_id":   240314000001,
		})
	default:
		http.NotFound(w, r)
	}
}

type testServer struct {
	router http.Handler
	store  *memory.Store
	zp     *fakeZaloPay
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clk := clock.NewStepping(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), time.Millisecond)
	store := memory.NewStore(memory.WithClock(clk))
	logger := logging.Discard()

	zp := &fakeZaloPay{amounts: map[string]int64{}, paid: map[string]bool{}}
	srv := httptest.NewServer(zp)
	t.Cleanup(srv.Close)

	reconciler := app.NewReconciler(store, clk,
		app.WithNotificationLog(store),
		app.WithReconcilerLogger(logger),
		app.WithStoreTimeout(time.Second),
	)
	qr := app.NewQRService(store, reconciler, clk, app.QRServiceConfig{
		Builder:       vietqr.Builder{BankID: "970422", AccountNo: "0123456789"},
		WebhookAPIKey: routerAPIKey,
		Logger:        logger,
	})
	client := zalopay.NewClient(zalopay.Config{
		AppID:    2553,
		Key1:     routerKey1,
		Key2:     routerKey2,
		Endpoint: srv.URL,
		Timeout:  2 * time.Second,
	})
	gateway := app.NewGatewayService(store, client, reconciler, clk, app.GatewayServiceConfig{Logger: logger})
	admin := app.NewAdminService(store, clk)

	return &testServer{
		router: NewRouter(RouterDeps{
			Logger:  logger,
			Health:  store,
			QR:      qr,
			Gateway: gateway,
			Admin:   admin,
		}),
		store: store,
		zp:    zp,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) order(t *testing.T, key string) orderResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/admin/orders/"+key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var o orderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
	return o
}

func bankWebhook(id, content string, amount int64) string {
	body, _ := json.Marshal(map[string]any{
		"id":             id,
		"gateway":        "MBBank",
		"content":        content,
		"transferType":   "in",
		"transferAmount": amount,
		"referenceCode":  "FT25073" + id,
	})
	return string(body)
}

func TestRouter_BankQRFlow(t *testing.T) {
	s := newTestServer(t)
	auth := map[string]string{"Authorization": "Apikey " + routerAPIKey}

	rec := s.do(t, http.MethodPost, "/admin/orders", `{"order_id":"o1","total":150000}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/payments/qr", `{"order_id":"o1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var qr qrPaymentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&qr))
	assert.Equal(t, "Thanh toan don hang #o1", qr.Description)
	assert.True(t, strings.HasPrefix(qr.TransactionID, "QR_"))
	assert.Equal(t, "WAITING_PAYMENT", s.order(t, "o1").Status)

	rec = s.do(t, http.MethodPost, "/webhooks/bank-qr", bankWebhook("1", "MBVCB.123 Thanh toan don hang #o1 FT25", 100000), auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Amount mismatch"}`, rec.Body.String())
	assert.Equal(t, "WAITING_PAYMENT", s.order(t, "o1").Status)

	rec = s.do(t, http.MethodPost, "/webhooks/bank-qr", bankWebhook("2", "Thanh toan don hang #o1", 150000), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid signature"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/webhooks/bank-qr", bankWebhook("3", "Thanh toan don hang #o1", 150000), auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Payment confirmed"}`, rec.Body.String())

	o := s.order(t, "o1")
	assert.Equal(t, "PAID", o.Status)
	assert.Equal(t, "BANK_QR", o.PaymentMethod)
	require.NotNil(t, o.PaidAt)

	rec = s.do(t, http.MethodPost, "/webhooks/bank-qr", bankWebhook("3", "Thanh toan don hang #o1", 150000), auth)
	assert.JSONEq(t, `{"success":true,"message":"Order already paid"}`, rec.Body.String())
	assert.Equal(t, *o.PaidAt, *s.order(t, "o1").PaidAt)

	rec = s.do(t, http.MethodGet, "/admin/orders/o1/notifications", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.NotificationRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 2, "rejected deliveries carry no order key")
	byID := map[string]domain.NotificationRecord{}
	for _, r := range records {
		byID[r.ExternalID] = r
	}
	assert.False(t, byID["1"].Success)
	assert.Equal(t, "Amount mismatch", byID["1"].Message)
	assert.Equal(t, 2, byID["3"].DeliveryCount)
	assert.True(t, byID["3"].SignatureValid)
}

func TestRouter_GatewayFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/admin/orders", `{"order_id":"o2","total":99000}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/payments/gateway/orders", `{"order_id":"o2"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session gatewayOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.True(t, strings.HasSuffix(session.TransactionID, "_o2"))
	assert.Equal(t, "tok-"+session.TransactionID, session.ZPTransToken)
	s.zp.mu.Lock()
	assert.Equal(t, int64(99000), s.zp.amounts[session.TransactionID])
	s.zp.mu.Unlock()

	rec = s.do(t, http.MethodPost, "/payments/gateway/status", `{"transaction_id":"`+session.TransactionID+`","apply":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status gatewayStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.False(t, status.Paid)
	assert.Nil(t, status.Reconciliation)
	assert.Equal(t, "CREATED", s.order(t, "o2").Status)

	embed, _ := json.Marshal(zalopay.EmbedData{Reference: app.Reference(app.DefaultDescriptionPrefix, "o2")})
	data, _ := json.Marshal(zalopay.CallbackData{
		AppID:      2553,
		AppTransID: session.TransactionID,
		Amount:     99000,
		EmbedData:  string(embed),
		ZPTransID:  240314000001,
	})
	forged, _ := json.Marshal(zalopay.Callback{Data: string(data), MAC: zalopay.Sign("wrong", string(data))})
	rec = s.do(t, http.MethodPost, "/webhooks/gateway/callback", string(forged), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"return_code":-1,"return_message":"mac not equal"}`, rec.Body.String())
	assert.Equal(t, "CREATED", s.order(t, "o2").Status)

	signed, _ := json.Marshal(zalopay.Callback{Data: string(data), MAC: zalopay.Sign(routerKey2, string(data))})
	rec = s.do(t, http.MethodPost, "/webhooks/gateway/callback", string(signed), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"return_code":1,"return_message":"success"}`, rec.Body.String())

	o := s.order(t, "o2")
	assert.Equal(t, "PAID", o.Status)
	assert.Equal(t, "WALLET_GATEWAY", o.PaymentMethod)

	s.zp.mu.Lock()
	s.zp.paid[session.TransactionID] = true
	s.zp.mu.Unlock()
	rec = s.do(t, http.MethodPost, "/payments/gateway/status", `{"transaction_id":"`+session.TransactionID+`","apply":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.Paid)
	require.NotNil(t, status.Reconciliation)
	assert.Equal(t, app.MessageAlreadyPaid, status.Reconciliation.Message)

	rec = s.do(t, http.MethodPost, "/payments/gateway/orders", `{"order_id":"o2"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_HealthAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/payments/qr", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_GatewayRoutesUnmountedWithoutGateway(t *testing.T) {
	router := NewRouter(RouterDeps{Logger: logging.Discard(), Health: memory.NewStore()})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/callback", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
