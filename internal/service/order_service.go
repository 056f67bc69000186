package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutInput is what the shopper submits at checkout
type CheckoutInput struct {
	Shipping domain.Address
	Payment  domain.PaymentInfo
}

// OrderService places orders from a session cart and serves order history
// and the admin back-office
type OrderService struct {
	orders repository.OrderRepository
	carts  *CartService
	logger *zap.Logger

	now   func() time.Time
	newID func(time.Time) string
}

// NewOrderService creates a new OrderService
func NewOrderService(orders repository.OrderRepository, carts *CartService, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		carts:  carts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  NewOrderID,
	}
}

// NewOrderID builds an id like ORD-20261019-1A2B3C4D
func NewOrderID(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + t.UTC().Format("20060102") + "-" + suffix
}

// Checkout snapshots the cart into a new order and clears the cart once the
// order is stored. Only signed-in sessions can check out.
func (s *OrderService) Checkout(ctx context.Context, st *Store, in CheckoutInput) (*domain.Order, error) {
	owner := st.Identity()
	if owner.Kind != domain.IdentityUser {
		return nil, ErrSignInRequired
	}

	cart := st.Cart()
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now()
	order := &domain.Order{
		ID:         s.newID(now),
		UserID:     owner.ID,
		Items:      make([]domain.OrderItem, 0, len(cart.Items)),
		TotalItems: cart.TotalItems,
		TotalPrice: cart.TotalPrice,
		Shipping:   in.Shipping,
		Payment:    in.Payment,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
	}
	for _, item := range cart.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Category:  item.Category,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}

	st.SetLoading(SliceOrders, true)
	err := s.orders.Create(ctx, order)
	st.SetLoading(SliceOrders, false)
	if err != nil {
		st.SetError(SliceOrders, err)
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	st.SetError(SliceOrders, nil)

	if _, err := s.carts.Clear(ctx, st); err != nil {
		s.logger.Warn("Order placed but cart not cleared", zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("items", order.TotalItems),
		zap.Int64("total", order.TotalPrice),
	)
	return order, nil
}

// ListMine returns the signed-in user's orders
func (s *OrderService) ListMine(ctx context.Context, st *Store) ([]domain.Order, error) {
	owner := st.Identity()
	if owner.Kind != domain.IdentityUser {
		return nil, ErrSignInRequired
	}

	st.SetLoading(SliceOrders, true)
	orders, err := s.orders.ListByUser(ctx, owner.ID)
	st.SetLoading(SliceOrders, false)
	st.SetError(SliceOrders, err)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAll returns every order (admin)
func (s *OrderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAll(ctx)
}

// Update changes status and shipping details (admin)
func (s *OrderService) Update(ctx context.Context, id string, update repository.OrderUpdate) error {
	if update.Status != nil && !update.Status.Valid() {
		return ErrInvalidStatus
	}
	if err := s.orders.Update(ctx, id, update); err != nil {
		return err
	}

	fields := []zap.Field{zap.String("order_id", id)}
	if update.Status != nil {
		fields = append(fields, zap.String("status", string(*update.Status)))
	}
	if update.ShippingCompany != nil {
		fields = append(fields, zap.String("shipping_company", *update.ShippingCompany))
	}
	s.logger.Info("Order updated", fields...)
	return nil
}

// Delete removes an order (admin)
func (s *OrderService) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.String("order_id", id))
	return nil
}

// Dashboard computes back-office statistics over all orders
func (s *OrderService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := BuildDashboard(orders, s.now())
	return &stats, nil
}
