package vietqr

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

const (
	TransferIn  = "in"
	TransferOut = "out"
)

const webhookSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "content", "transferAmount"],
  "properties": {
    "id": { "type": ["string", "integer"] },
    "content": { "type": "string" },
    "transferAmount": { "type": "integer", "minimum": 0 },
    "transferType": { "type": "string", "enum": ["in", "out"] }
  }
}`

var webhookSchemaLoader = gojsonschema.NewStringLoader(webhookSchema)

// Webhook is the transfer notification posted by the bank integration.
type Webhook struct {
	ID              WebhookID `json:"id"`
	Gateway         string    `json:"gateway"`
	TransactionDate string    `json:"transactionDate"`
	AccountNumber   string    `json:"accountNumber"`
	Code            *string   `json:"code"`
	Content         string    `json:"content"`
	TransferType    string    `json:"transferType"`
	TransferAmount  int64     `json:"transferAmount"`
	Accumulated     int64     `json:"accumulated"`
	SubAccount      *string   `json:"subAccount"`
	ReferenceCode   string    `json:"referenceCode"`
	Description     string    `json:"description"`
}

// Outbound reports whether the transfer left the account.
func (w Webhook) Outbound() bool {
	return strings.EqualFold(w.TransferType, TransferOut)
}

// WebhookID accepts both numeric and string ids.
type WebhookID string

func (id *WebhookID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = WebhookID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = WebhookID(n.String())
	return nil
}

// ParseWebhook validates body against the webhook schema and decodes it.
// Any structural problem is reported as domain.ErrInvalidPayload.
func ParseWebhook(body []byte) (Webhook, error) {
	result, err := gojsonschema.Validate(webhookSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Webhook{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Webhook{}, fmt.Errorf("%w: %s", domain.ErrInvalidPayload, strings.Join(msgs, "; "))
	}

	var w Webhook
	if err := json.Unmarshal(body, &w); err != nil {
		return Webhook{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return w, nil
}

const apiKeyScheme = "Apikey"

// APIKeyVerifier checks the "Authorization: Apikey <key>" header.
type APIKeyVerifier struct {
	key string
}

func NewAPIKeyVerifier(key string) APIKeyVerifier {
	return APIKeyVerifier{key: strings.TrimSpace(key)}
}

// Enabled reports whether a key is configured.
func (v APIKeyVerifier) Enabled() bool {
	return v.key != ""
}

// Verify returns true when the header carries the configured key. With no
// key configured every request passes unauthenticated (false, nil).
func (v APIKeyVerifier) Verify(authorization string) (bool, error) {
	if !v.Enabled() {
		return false, nil
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, apiKeyScheme) {
		return false, domain.ErrInvalidSignature
	}
	token = strings.TrimSpace(token)
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.key)) != 1 {
		return false, domain.ErrInvalidSignature
	}
	return true, nil
}
