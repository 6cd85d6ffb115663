package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminRepository serves the operator endpoints from the order table and the
// notification log.
type AdminRepository struct {
	*OrderRepository
	*NotificationRepository
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{
		OrderRepository:        NewOrderRepository(pool),
		NotificationRepository: NewNotificationRepository(pool),
	}
}
