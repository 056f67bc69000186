package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderUpdate carries the admin-managed fields of an order. Nil fields are
// left unchanged.
type OrderUpdate struct {
	Status          *domain.OrderStatus `json:"status,omitempty"`
	ShippingID      *string             `json:"shipping_id,omitempty"`
	ShippingCompany *string             `json:"shipping_company,omitempty"`
}

// OrderRepository defines the interface for order access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	Update(ctx context.Context, id string, update OrderUpdate) error
	Delete(ctx context.Context, id string) error
}

type orderRepository struct {
	client *backend.Client
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(client *backend.Client) OrderRepository {
	return &orderRepository{client: client}
}

// Create posts a new order. The client assigns the id before calling.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.client.Post(ctx, "/orders", order, nil); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// ListByUser returns the order history of one user
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders := []domain.Order{}
	query := url.Values{"user_id": []string{userID}}
	if err := r.client.Get(ctx, "/orders", query, &orders); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order (admin)
func (r *orderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders := []domain.Order{}
	if err := r.client.Get(ctx, "/orders", nil, &orders); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Update patches status and shipping fields
func (r *orderRepository) Update(ctx context.Context, id string, update OrderUpdate) error {
	if err := r.client.Patch(ctx, "/orders/"+url.PathEscape(id), update, nil); err != nil {
		if backend.IsNotFound(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// Delete removes an order (admin)
func (r *orderRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Delete(ctx, "/orders/"+url.PathEscape(id)); err != nil {
		if backend.IsNotFound(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}
