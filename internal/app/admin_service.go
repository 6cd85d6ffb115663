package app

import (
	"context"

	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/domain"
)

type AdminRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, key string) (domain.Order, error)
	ListNotifications(ctx context.Context, orderKey string) ([]domain.NotificationRecord, error)
}

type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
}

func NewAdminService(repo AdminRepository, clk clock.Clock) *AdminService {
	return &AdminService{
		repo:  repo,
		clock: clk,
	}
}

type CreateOrderInput struct {
	OrderID string
	Total   int64
}

func (s *AdminService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.Total <= 0 {
		return domain.Order{}, domain.ErrInvalidAmount
	}
	key := in.OrderID
	if key == "" {
		key = newID()
	}
	if !ValidOrderKey(key) {
		return domain.Order{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	order := domain.Order{
		Key:           key,
		Total:         in.Total,
		PaymentMethod: domain.PaymentMethodNone,
		Status:        domain.OrderStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *AdminService) GetOrder(ctx context.Context, key string) (domain.Order, error) {
	if !ValidOrderKey(key) {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.repo.GetOrder(ctx, key)
}

func (s *AdminService) ListNotifications(ctx context.Context, orderKey string) ([]domain.NotificationRecord, error) {
	if !ValidOrderKey(orderKey) {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListNotifications(ctx, orderKey)
}
