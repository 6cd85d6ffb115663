// Package memory is a process-scoped store for demos and tests. It has no
// native conditional writes, so each order key gets its own mutex and the
// read-check-write runs under it.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/domain"
)

type Store struct {
	clock clock.Clock

	mu     sync.RWMutex
	orders map[string]domain.Order

	// locks holds one mutex per order that can still change. The entry is
	// dropped once the order reaches a terminal status.
	locks map[string]*sync.Mutex

	logMu         sync.Mutex
	notifications map[notificationKey]domain.NotificationRecord
}

type notificationKey struct {
	rail       domain.Rail
	externalID string
}

type Option func(*Store)

// WithClock sets the clock used for UpdatedAt stamps. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:         clock.NewSystem(),
		orders:        map[string]domain.Order{},
		locks:         map[string]*sync.Mutex{},
		notifications: map[notificationKey]domain.NotificationRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) GetOrder(ctx context.Context, key string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[key]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.Key]; ok {
		return domain.ErrOrderAlreadyExists
	}
	s.orders[order.Key] = cloneOrder(order)
	return nil
}

func (s *Store) UpdateOrder(ctx context.Context, key string, upd domain.OrderUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	o, ok := s.orders[key]
	s.mu.RUnlock()
	if !ok {
		s.forget(key)
		return domain.ErrOrderNotFound
	}
	if !upd.Allows(o.Status) {
		if o.Status.Terminal() {
			s.forget(key)
		}
		return domain.ErrConditionFailed
	}

	next := upd.Apply(o, s.clock.Now().UTC())
	s.mu.Lock()
	s.orders[key] = next
	// Writers still queued on the old mutex see a terminal status and fail
	// the precondition, so a fresh mutex for the key cannot admit a second write.
	if next.Status.Terminal() {
		delete(s.locks, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) forget(key string) {
	s.mu.Lock()
	delete(s.locks, key)
	s.mu.Unlock()
}

func (s *Store) RecordNotification(ctx context.Context, rec domain.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()

	k := notificationKey{rail: rec.Rail, externalID: rec.ExternalID}
	prev, ok := s.notifications[k]
	if !ok {
		rec.DeliveryCount = 1
		rec.LastReceivedAt = rec.ReceivedAt
		rec.Payload = append([]byte(nil), rec.Payload...)
		s.notifications[k] = rec
		return nil
	}

	if rec.OrderKey != "" {
		prev.OrderKey = rec.OrderKey
	}
	prev.SignatureValid = rec.SignatureValid
	prev.Success = rec.Success
	prev.Message = rec.Message
	prev.DeliveryCount++
	prev.LastReceivedAt = rec.ReceivedAt
	s.notifications[k] = prev
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, orderKey string) ([]domain.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()

	var out []domain.NotificationRecord
	for _, rec := range s.notifications {
		if rec.OrderKey == orderKey {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneOrder(o domain.Order) domain.Order {
	if o.PaidAt != nil {
		paidAt := *o.PaidAt
		o.PaidAt = &paidAt
	}
	return o
}
