package transport

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductRequest is the admin payload for creating or replacing a product
type ProductRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Price         int64  `json:"price" validate:"gt=0"`
	Category      string `json:"category" validate:"required,max=100"`
	Image         string `json:"image" validate:"omitempty,max=500"`
	StockQuantity int    `json:"stock_quantity" validate:"gte=0"`
}

func (p ProductRequest) toDomain(id string) *domain.Product {
	return &domain.Product{
		ID:            id,
		Name:          p.Name,
		Price:         p.Price,
		Category:      p.Category,
		Image:         p.Image,
		StockQuantity: p.StockQuantity,
	}
}

// CatalogResponse is a filtered view of the session's catalog mirror
type CatalogResponse struct {
	Products   []domain.Product `json:"products"`
	Categories []string         `json:"categories"`
	Cart       *domain.Cart     `json:"cart,omitempty"`
}

// CatalogHandler serves the catalog and its admin management
type CatalogHandler struct {
	sessionResolver
	catalog *service.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(sessions *service.SessionManager, catalog *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		sessionResolver: sessionResolver{sessions: sessions, logger: logger},
		catalog:         catalog,
		logger:          logger,
	}
}

// RegisterRoutes registers catalog routes; admin routes sit behind adminMiddleware
func (h *CatalogHandler) RegisterRoutes(r chi.Router, sessionMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Get("/api/products", h.List)
		r.Post("/api/products/refresh", h.Refresh)

		r.Route("/api/admin/products", func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{productID}", h.Update)
			r.Delete("/{productID}", h.Delete)
		})
	})
}

func filterFromQuery(r *http.Request) service.ProductFilter {
	q := r.URL.Query()
	inStock, _ := strconv.ParseBool(q.Get("in_stock"))
	return service.ProductFilter{
		Category:    q.Get("category"),
		Query:       q.Get("q"),
		Sort:        service.SortKey(q.Get("sort")),
		InStockOnly: inStock,
	}
}

// List returns the catalog, loading it into the session on first use
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	products, err := h.catalog.Ensure(r.Context(), sess.Store)
	if err != nil {
		h.logger.Warn("Failed to load catalog", zap.String("session_id", sess.ID), zap.Error(err))
		respondWithServiceError(w, sess, err)
		return
	}

	respondWithSession(w, http.StatusOK, sess, CatalogResponse{
		Products:   service.FilterProducts(products, filterFromQuery(r)),
		Categories: service.Categories(products),
	})
}

// Refresh reloads the catalog from the API and reconciles the cart against it
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	products, err := h.catalog.Refresh(r.Context(), sess.Store, true)
	if err != nil {
		h.logger.Warn("Failed to refresh catalog", zap.String("session_id", sess.ID), zap.Error(err))
		respondWithServiceError(w, sess, err)
		return
	}

	cart := sess.Store.Cart()
	respondWithSession(w, http.StatusOK, sess, CatalogResponse{
		Products:   service.FilterProducts(products, filterFromQuery(r)),
		Categories: service.Categories(products),
		Cart:       &cart,
	})
}

// Create adds a product (admin)
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	product := req.toDomain("")
	if err := h.catalog.Create(r.Context(), product); err != nil {
		h.logger.Error("Failed to create product", zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces a product (admin)
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	product := req.toDomain(chi.URLParam(r, "productID"))
	if err := h.catalog.Update(r.Context(), product); err != nil {
		h.logger.Warn("Failed to update product", zap.String("product_id", product.ID), zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product (admin)
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.logger.Warn("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		respondWithServiceError(w, nil, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
