package app

import (
	"context"
	"sync"
	"time"

	"github.com/datkrb/resfood-payments/internal/domain"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeOrderStore is a conditional-write store guarded by one mutex.
type fakeOrderStore struct {
	mu         sync.Mutex
	orders     map[string]domain.Order
	gets       int
	updates    []domain.OrderUpdate
	updateErrs []error
	getErr     error

	// block, when set, holds GetOrder until it is closed or ctx ends.
	block chan struct{}
}

func newFakeOrderStore(orders ...domain.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: map[string]domain.Order{}}
	for _, o := range orders {
		s.orders[o.Key] = o
	}
	return s
}

func (s *fakeOrderStore) GetOrder(ctx context.Context, key string) (domain.Order, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return domain.Order{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return domain.Order{}, s.getErr
	}
	o, ok := s.orders[key]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) UpdateOrder(ctx context.Context, key string, upd domain.OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, upd)
	if len(s.updateErrs) > 0 {
		err := s.updateErrs[0]
		s.updateErrs = s.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	if err := upd.Validate(); err != nil {
		return err
	}
	o, ok := s.orders[key]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if !upd.Allows(o.Status) {
		return domain.ErrConditionFailed
	}
	s.orders[key] = upd.Apply(o, testNow)
	return nil
}

func (s *fakeOrderStore) order(key string) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[key]
}

func (s *fakeOrderStore) counts() (gets, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, len(s.updates)
}

type fakeNotificationLog struct {
	mu      sync.Mutex
	records []domain.NotificationRecord
	err     error
}

func (l *fakeNotificationLog) RecordNotification(ctx context.Context, rec domain.NotificationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return l.err
}

func (l *fakeNotificationLog) all() []domain.NotificationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.NotificationRecord(nil), l.records...)
}

func waitingOrder(key string, total int64) domain.Order {
	return domain.Order{
		Key:           key,
		Total:         total,
		PaymentMethod: domain.PaymentMethodBankQR,
		Status:        domain.OrderStatusWaitingPayment,
		CreatedAt:     testNow.Add(-time.Hour),
		UpdatedAt:     testNow.Add(-time.Hour),
	}
}
