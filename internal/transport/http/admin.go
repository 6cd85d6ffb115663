package http

import (
	"context"
	"net/http"
	"time"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AdminOrderService is the minimal interface needed for admin order endpoints.
type AdminOrderService interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, key string) (domain.Order, error)
	ListNotifications(ctx context.Context, orderKey string) ([]domain.NotificationRecord, error)
}

type createOrderRequest struct {
	OrderID string `json:"order_id"`
	Total   int64  `json:"total"`
}

type orderResponse struct {
	OrderID       string     `json:"order_id"`
	Total         int64      `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:       o.Key,
		Total:         o.Total,
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// HandleAdminCreateOrder returns an HTTP handler for POST /admin/orders.
func HandleAdminCreateOrder(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		order, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			OrderID: req.OrderID,
			Total:   req.Total,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrderResponse(order))
	}
}

// HandleAdminGetOrder returns an HTTP handler for GET /admin/orders/{id}.
func HandleAdminGetOrder(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

// HandleAdminListNotifications returns an HTTP handler for
// GET /admin/orders/{id}/notifications.
func HandleAdminListNotifications(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ListNotifications(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if records == nil {
			records = []domain.NotificationRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}
