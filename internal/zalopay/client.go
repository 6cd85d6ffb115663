// Package zalopay is a client for the ZaloPay v2 order API and its
// callback signature scheme.
package zalopay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/datkrb/resfood-payments/internal/domain"
)

const (
	DefaultEndpoint = "https://sb-openapi.zalopay.vn"
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

type Config struct {
	AppID       int
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// CreateOrder opens a payment session. Any transport failure or non-success
// return code is reported as domain.ErrGatewayUnavailable.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	embed, err := json.Marshal(req.EmbedData)
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("encode embed_data: %w", err)
	}
	item := req.Item
	if item == "" {
		item = "[]"
	}
	appID := strconv.Itoa(c.cfg.AppID)
	amount := strconv.FormatInt(req.Amount, 10)
	appTime := strconv.FormatInt(req.AppTime, 10)

	form := url.Values{}
	form.Set("app_id", appID)
	form.Set("app_user", req.AppUser)
	form.Set("app_trans_id", req.AppTransID)
	form.Set("app_time", appTime)
	form.Set("amount", amount)
	form.Set("item", item)
	form.Set("description", req.Description)
	form.Set("embed_data", string(embed))
	form.Set("bank_code", req.BankCode)
	if c.cfg.CallbackURL != "" {
		form.Set("callback_url", c.cfg.CallbackURL)
	}
	form.Set("mac", Sign(c.cfg.Key1, joinFields(appID, req.AppTransID, req.AppUser, amount, appTime, string(embed), item)))

	var resp CreateOrderResponse
	if _, err := c.post(ctx, "/v2/create", form, &resp); err != nil {
		return CreateOrderResponse{}, err
	}
	if resp.ReturnCode != ReturnCodeSuccess {
		return resp, fmt.Errorf("%w: create order: %s (%d)", domain.ErrGatewayUnavailable, resp.SubReturnMessage, resp.SubReturnCode)
	}
	return resp, nil
}

// QueryOrder returns the gateway's view of appTransID.
func (c *Client) QueryOrder(ctx context.Context, appTransID string) (QueryResponse, error) {
	appID := strconv.Itoa(c.cfg.AppID)
	form := url.Values{}
	form.Set("app_id", appID)
	form.Set("app_trans_id", appTransID)
	form.Set("mac", Sign(c.cfg.Key1, joinFields(appID, appTransID, c.cfg.Key1)))

	var resp QueryResponse
	raw, err := c.post(ctx, "/v2/query", form, &resp)
	if err != nil {
		return QueryResponse{}, err
	}
	resp.Raw = raw
	return resp, nil
}

// VerifyCallback authenticates cb with key2 and decodes its data.
func (c *Client) VerifyCallback(cb Callback) (CallbackData, error) {
	if !VerifyMAC(c.cfg.Key2, cb.Data, cb.MAC) {
		return CallbackData{}, domain.ErrInvalidSignature
	}
	var data CallbackData
	if err := json.Unmarshal([]byte(cb.Data), &data); err != nil {
		return CallbackData{}, fmt.Errorf("%w: decode callback data: %v", domain.ErrInvalidPayload, err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrGatewayUnavailable, path, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: http status %d", domain.ErrGatewayUnavailable, path, res.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", domain.ErrGatewayUnavailable, path, err)
	}
	return json.RawMessage(body), nil
}
