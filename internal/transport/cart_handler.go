package transport

import (
	"context"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddItemRequest adds units of a product to the cart
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=99"`
}

// CartHandler exposes the optimistic cart operations of a session
type CartHandler struct {
	sessionResolver
	carts  *service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(sessions *service.SessionManager, carts *service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessionResolver: sessionResolver{sessions: sessions, logger: logger},
		carts:           carts,
		logger:          logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router, sessionMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Post("/items/{productID}/increment", h.itemAction(h.carts.Increment))
		r.Post("/items/{productID}/decrement", h.itemAction(h.carts.Decrement))
		r.Delete("/items/{productID}", h.itemAction(h.carts.Remove))
	})
}

// Get loads the active owner's cart from the API
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Load(r.Context(), sess.Store)
	if err != nil {
		h.logger.Warn("Failed to load cart", zap.String("session_id", sess.ID), zap.Error(err))
		respondWithServiceError(w, sess, err)
		return
	}
	respondWithSession(w, http.StatusOK, sess, cart)
}

// AddItem puts a product into the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	cart, err := h.carts.Add(r.Context(), sess.Store, req.ProductID, req.Quantity)
	if err != nil {
		h.logger.Debug("Add to cart rejected",
			zap.String("session_id", sess.ID),
			zap.String("product_id", req.ProductID),
			zap.Error(err),
		)
		respondWithServiceError(w, sess, err)
		return
	}
	respondWithSession(w, http.StatusOK, sess, cart)
}

// itemAction adapts a per-line cart operation to a handler
func (h *CartHandler) itemAction(op func(context.Context, *service.Store, string) (domain.Cart, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.resolve(w, r)
		if !ok {
			return
		}

		productID := chi.URLParam(r, "productID")
		cart, err := op(r.Context(), sess.Store, productID)
		if err != nil {
			h.logger.Debug("Cart change rejected",
				zap.String("session_id", sess.ID),
				zap.String("product_id", productID),
				zap.Error(err),
			)
			respondWithServiceError(w, sess, err)
			return
		}
		respondWithSession(w, http.StatusOK, sess, cart)
	}
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Clear(r.Context(), sess.Store)
	if err != nil {
		respondWithServiceError(w, sess, err)
		return
	}
	respondWithSession(w, http.StatusOK, sess, cart)
}
