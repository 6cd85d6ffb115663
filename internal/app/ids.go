package app

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/google/uuid"
)

const maxOrderKeyLength = 64

var orderKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidOrderKey reports whether key can travel inside a payment reference.
func ValidOrderKey(key string) bool {
	return len(key) <= maxOrderKeyLength && orderKeyPattern.MatchString(key)
}

func newID() string {
	return uuid.NewString()
}

// transactionIDs issues "<prefix>_<millis>_<orderKey>" ids. The millisecond
// component never repeats within one generator, so two calls in the same
// millisecond still yield distinct ids.
type transactionIDs struct {
	mu   sync.Mutex
	last int64
}

func (g *transactionIDs) next(prefix string, now time.Time, orderKey string) string {
	g.mu.Lock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return fmt.Sprintf("%s_%d_%s", prefix, ms, orderKey)
}

// OrderKeyFromTransactionID recovers the order key embedded in a transaction id.
func OrderKeyFromTransactionID(id string) (string, error) {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", domain.ErrInvalidTransaction
	}
	if !ValidOrderKey(parts[2]) {
		return "", domain.ErrInvalidTransaction
	}
	return parts[2], nil
}
