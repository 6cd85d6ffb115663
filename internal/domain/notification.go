package domain

import "time"

// Notification is an inbound money-movement event after rail specific
// decoding. Trusted is set only when a signature or token was verified.
type Notification struct {
	Rail       Rail
	ExternalID string
	Content    string
	Amount     int64
	Trusted    bool
	Payload    []byte
	ReceivedAt time.Time
}

// Result is the outcome of processing one notification. It never carries a
// transport fault; Err holds the taxonomy error for logging and mapping.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	OrderKey string `json:"-"`
	Applied  bool   `json:"-"`
	Err      error  `json:"-"`
}

// NotificationRecord is one logged delivery of a notification.
type NotificationRecord struct {
	ID             string    `json:"id"`
	Rail           Rail      `json:"rail"`
	ExternalID     string    `json:"external_id"`
	OrderKey       string    `json:"order_key,omitempty"`
	Amount         int64     `json:"amount"`
	SignatureValid bool      `json:"signature_valid"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Payload        []byte    `json:"-"`
	DeliveryCount  int       `json:"delivery_count"`
	ReceivedAt     time.Time `json:"received_at"`
	LastReceivedAt time.Time `json:"last_received_at"`
}
