package zalopay

import "encoding/json"

const (
	ReturnCodeSuccess    = 1
	ReturnCodeFailed     = 2
	ReturnCodeProcessing = 3

	// MaxAppTransIDLength is the longest app_trans_id the gateway accepts.
	MaxAppTransIDLength = 40

	AckSuccess = 1
	AckRetry   = 0
	AckReject  = -1
)

// EmbedData is the merchant payload echoed back in callbacks.
type EmbedData struct {
	RedirectURL string `json:"redirecturl,omitempty"`
	Reference   string `json:"reference"`
}

type CreateOrderRequest struct {
	AppTransID  string
	AppUser     string
	AppTime     int64
	Amount      int64
	Description string
	Item        string
	EmbedData   EmbedData
	BankCode    string
}

type CreateOrderResponse struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	OrderURL         string `json:"order_url"`
	ZPTransToken     string `json:"zp_trans_token"`
	OrderToken       string `json:"order_token"`
	QRCode           string `json:"qr_code"`
}

// QueryResponse is the status of one app_trans_id. Raw keeps the gateway body.
type QueryResponse struct {
	ReturnCode       int             `json:"return_code"`
	ReturnMessage    string          `json:"return_message"`
	SubReturnCode    int             `json:"sub_return_code"`
	SubReturnMessage string          `json:"sub_return_message"`
	IsProcessing     bool            `json:"is_processing"`
	Amount           int64           `json:"amount"`
	DiscountAmount   int64           `json:"discount_amount"`
	ZPTransID        int64           `json:"zp_trans_id"`
	ServerTime       int64           `json:"server_time"`
	Raw              json.RawMessage `json:"-"`
}

// Paid reports whether the gateway settled the payment.
func (q QueryResponse) Paid() bool {
	return q.ReturnCode == ReturnCodeSuccess && !q.IsProcessing
}

// Callback is the body posted to the merchant callback URL.
type Callback struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

// CallbackData is the decoded Callback.Data.
type CallbackData struct {
	AppID          int    `json:"app_id"`
	AppTransID     string `json:"app_trans_id"`
	AppTime        int64  `json:"app_time"`
	AppUser        string `json:"app_user"`
	Amount         int64  `json:"amount"`
	EmbedData      string `json:"embed_data"`
	Item           string `json:"item"`
	ZPTransID      int64  `json:"zp_trans_id"`
	ServerTime     int64  `json:"server_time"`
	Channel        int    `json:"channel"`
	MerchantUserID string `json:"merchant_user_id"`
	UserFeeAmount  int64  `json:"user_fee_amount"`
	DiscountAmount int64  `json:"discount_amount"`
}

// Reference returns the order reference carried in embed_data, or "".
func (d CallbackData) Reference() string {
	var ed EmbedData
	if err := json.Unmarshal([]byte(d.EmbedData), &ed); err != nil {
		return ""
	}
	return ed.Reference
}

// Ack is the acknowledgment envelope the gateway expects from a callback.
type Ack struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}
