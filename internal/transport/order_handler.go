package transport

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddressRequest is the shipping address submitted at checkout
type AddressRequest struct {
	FullName   string `json:"full_name" validate:"required,max=100"`
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,min=5,max=20"`
}

// PaymentRequest carries the payment choice. A card number is only checked
// and reduced to its last four digits; it is never forwarded.
type PaymentRequest struct {
	Method     string `json:"method" validate:"required,oneof=card cod"`
	CardHolder string `json:"card_holder" validate:"required_if=Method card,max=100"`
	CardNumber string `json:"card_number" validate:"required_if=Method card,omitempty,credit_card"`
}

// CheckoutRequest is the checkout form
type CheckoutRequest struct {
	Shipping AddressRequest `json:"shipping_address" validate:"required"`
	Payment  PaymentRequest `json:"payment" validate:"required"`
}

func (c CheckoutRequest) toInput() service.CheckoutInput {
	in := service.CheckoutInput{
		Shipping: domain.Address{
			FullName:   c.Shipping.FullName,
			Street:     c.Shipping.Street,
			City:       c.Shipping.City,
			PostalCode: c.Shipping.PostalCode,
			Country:    c.Shipping.Country,
			Phone:      c.Shipping.Phone,
		},
		Payment: domain.PaymentInfo{Method: domain.PaymentMethod(c.Payment.Method)},
	}
	if in.Payment.Method == domain.PaymentCard {
		in.Payment.CardHolder = c.Payment.CardHolder
		in.Payment.CardLast4 = lastFourDigits(c.Payment.CardNumber)
	}
	return in
}

func lastFourDigits(number string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// UpdateOrderRequest is the admin payload for changing an order
type UpdateOrderRequest struct {
	Status          *string `json:"status" validate:"omitempty,order_status"`
	ShippingID      *string `json:"shipping_id" validate:"omitempty,max=100"`
	ShippingCompany *string `json:"shipping_company" validate:"omitempty,max=100"`
}

func (u UpdateOrderRequest) toUpdate() repository.OrderUpdate {
	update := repository.OrderUpdate{
		ShippingID:      u.ShippingID,
		ShippingCompany: u.ShippingCompany,
	}
	if u.Status != nil {
		status := domain.OrderStatus(*u.Status)
		update.Status = &status
	}
	return update
}

// OrderHandler serves checkout, order history and the admin back-office
type OrderHandler struct {
	sessionResolver
	orders     *service.OrderService
	migrations *service.MigrationService
	logger     *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(
	sessions *service.SessionManager,
	orders *service.OrderService,
	migrations *service.MigrationService,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		sessionResolver: sessionResolver{sessions: sessions, logger: logger},
		orders:          orders,
		migrations:      migrations,
		logger:          logger,
	}
}

// RegisterRoutes registers order routes and the admin back-office
func (h *OrderHandler) RegisterRoutes(r chi.Router, sessionMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)

		r.Route("/api/orders", func(r chi.Router) {
			r.Use(middleware.RequireSignedIn(h.logger))
			r.Post("/", h.Checkout)
			r.Get("/", h.ListMine)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Get("/api/admin/orders", h.ListAll)
			r.Patch("/api/admin/orders/{orderID}", h.Update)
			r.Delete("/api/admin/orders/{orderID}", h.Delete)
			r.Get("/api/admin/dashboard", h.Dashboard)
			r.Get("/api/admin/migrations", h.Migrations)
		})
	})
}

// Checkout places an order from the session cart
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Checkout validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	order, err := h.orders.Checkout(r.Context(), sess.Store, req.toInput())
	if err != nil {
		h.logger.Warn("Checkout failed", zap.String("session_id", sess.ID), zap.Error(err))
		respondWithServiceError(w, sess, err)
		return
	}

	respondWithSession(w, http.StatusCreated, sess, order)
}

// ListMine returns the signed-in user's orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListMine(r.Context(), sess.Store)
	if err != nil {
		respondWithServiceError(w, sess, err)
		return
	}
	respondWithSession(w, http.StatusOK, sess, orders)
}

// ListAll returns every order (admin)
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// Update changes an order's status or shipping details (admin)
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	id := chi.URLParam(r, "orderID")
	if err := h.orders.Update(r.Context(), id, req.toUpdate()); err != nil {
		h.logger.Warn("Failed to update order", zap.String("order_id", id), zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "order updated"})
}

// Delete removes an order (admin)
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.logger.Warn("Failed to delete order", zap.String("order_id", id), zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard returns order statistics (admin)
func (h *OrderHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("Failed to build dashboard", zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// Migrations lists recent cart migrations of a user (admin)
func (h *OrderHandler) Migrations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			middleware.RespondWithError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.migrations.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list migrations", zap.String("user_id", userID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "migration journal unavailable")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, runs)
}
