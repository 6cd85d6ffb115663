package domain

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrMalformedReference = errors.New("malformed reference")
	ErrAmountMismatch     = errors.New("amount mismatch")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrStoreUnavailable   = errors.New("order store unavailable")
	ErrConditionFailed    = errors.New("condition failed")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidUpdate      = errors.New("update requires an expected status")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidID          = errors.New("invalid id")
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrInvalidTransaction = errors.New("invalid transaction id")
)

// IsRetryable reports whether the caller may retry the same request later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConditionFailed)
}
