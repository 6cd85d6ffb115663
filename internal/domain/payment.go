package domain

// Rail identifies the payment channel a request or notification belongs to.
type Rail string

const (
	RailBankQR Rail = "bank_qr"
	RailWallet Rail = "wallet_gateway"
)

// PaymentMethod returns the order payment method recorded for the rail.
func (r Rail) PaymentMethod() PaymentMethod {
	switch r {
	case RailBankQR:
		return PaymentMethodBankQR
	case RailWallet:
		return PaymentMethodWalletGateway
	default:
		return PaymentMethodNone
	}
}

// PaymentIntent is the ephemeral description of a payment request handed to
// the user. Only the order key inside it is used for matching later.
type PaymentIntent struct {
	TransactionID string
	Rail          Rail
	OrderKey      string
	Amount        int64
	Description   string
}
