package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "CREATED"
	OrderStatusWaitingPayment OrderStatus = "WAITING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusFailed         OrderStatus = "FAILED"
)

// rank orders statuses along the only allowed direction of travel.
// PAID and FAILED share a rank: neither may move to the other.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusCreated:
		return 0
	case OrderStatusWaitingPayment:
		return 1
	case OrderStatusPaid, OrderStatusFailed:
		return 2
	default:
		return -1
	}
}

func (s OrderStatus) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// CanTransition reports whether moving from s to next keeps status monotonic.
// Staying in place is allowed for non-terminal statuses only.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

type PaymentMethod string

const (
	PaymentMethodNone          PaymentMethod = "NONE"
	PaymentMethodBankQR        PaymentMethod = "BANK_QR"
	PaymentMethodWalletGateway PaymentMethod = "WALLET_GATEWAY"
)

// Order is the payable record owned by the order store. Total is in the
// smallest currency unit.
type Order struct {
	Key           string
	Total         int64
	PaymentMethod PaymentMethod
	Status        OrderStatus
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderUpdate is a conditional partial write. The write only applies when the
// stored status is one of ExpectStatus.
type OrderUpdate struct {
	ExpectStatus  []OrderStatus
	Status        *OrderStatus
	PaymentMethod *PaymentMethod
	PaidAt        *time.Time
}

// Validate rejects updates without a precondition and any update that could
// move status backward from one of the expected statuses.
func (u OrderUpdate) Validate() error {
	if len(u.ExpectStatus) == 0 {
		return ErrInvalidUpdate
	}
	for _, from := range u.ExpectStatus {
		if !from.Valid() {
			return ErrInvalidUpdate
		}
		if u.Status != nil && !from.CanTransition(*u.Status) {
			return ErrInvalidTransition
		}
		if u.Status == nil && from.Terminal() {
			return ErrInvalidTransition
		}
	}
	return nil
}

// Allows reports whether status satisfies the update precondition.
func (u OrderUpdate) Allows(status OrderStatus) bool {
	for _, s := range u.ExpectStatus {
		if s == status {
			return true
		}
	}
	return false
}

// Apply returns a copy of o with the update fields set.
func (u OrderUpdate) Apply(o Order, now time.Time) Order {
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentMethod != nil {
		o.PaymentMethod = *u.PaymentMethod
	}
	if u.PaidAt != nil {
		paidAt := *u.PaidAt
		o.PaidAt = &paidAt
	}
	o.UpdatedAt = now
	return o
}

// ExpectStrings renders ExpectStatus for SQL parameters.
func (u OrderUpdate) ExpectStrings() []string {
	out := make([]string, 0, len(u.ExpectStatus))
	for _, s := range u.ExpectStatus {
		out = append(out, string(s))
	}
	return out
}
