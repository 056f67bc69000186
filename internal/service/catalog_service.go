package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/session"

	"go.uber.org/zap"
)

// SortKey orders a filtered product list
type SortKey string

const (
	SortNone      SortKey = ""
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortNameAsc   SortKey = "name_asc"
	SortNameDesc  SortKey = "name_desc"
)

// ProductFilter narrows the catalog for display
type ProductFilter struct {
	Category    string
	Query       string
	Sort        SortKey
	InStockOnly bool
}

// CatalogService keeps each session's catalog mirror fresh
type CatalogService struct {
	products repository.ProductRepository
	sessions session.Store
	logger   *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(products repository.ProductRepository, sessions session.Store, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		sessions: sessions,
		logger:   logger,
	}
}

// Ensure loads the catalog into the store unless it already holds one
func (s *CatalogService) Ensure(ctx context.Context, st *Store) ([]domain.Product, error) {
	if catalog := st.Catalog(); len(catalog) > 0 {
		return catalog, nil
	}
	return s.Refresh(ctx, st, false)
}

// Refresh loads the catalog into the store. Without force, the session's
// cached copy is used when present. A forced refresh always hits the API and
// runs a reconciliation pass afterwards.
func (s *CatalogService) Refresh(ctx context.Context, st *Store, force bool) ([]domain.Product, error) {
	if !force {
		cached, ok, err := s.sessions.CachedCatalog(ctx, st.SessionID())
		if err != nil {
			s.logger.Warn("Failed to read cached catalog", zap.String("session_id", st.SessionID()), zap.Error(err))
		} else if ok && len(cached) > 0 {
			st.SetCatalog(ctx, cached)
			return cached, nil
		}
	}

	st.SetLoading(SliceProducts, true)
	products, err := s.products.List(ctx)
	st.SetLoading(SliceProducts, false)
	if err != nil {
		st.SetError(SliceProducts, err)
		return nil, fmt.Errorf("failed to refresh catalog: %w", err)
	}
	st.SetError(SliceProducts, nil)

	st.SetCatalog(ctx, products)
	if force {
		st.Reconcile(ctx)
	}

	if err := s.sessions.CacheCatalog(ctx, st.SessionID(), products); err != nil {
		s.logger.Warn("Failed to cache catalog", zap.String("session_id", st.SessionID()), zap.Error(err))
	}

	s.logger.Debug("Catalog refreshed",
		zap.String("session_id", st.SessionID()),
		zap.Int("products", len(products)),
	)
	return products, nil
}

// Create adds a product (admin)
func (s *CatalogService) Create(ctx context.Context, product *domain.Product) error {
	if err := s.products.Create(ctx, product); err != nil {
		return err
	}
	s.logger.Info("Product created", zap.String("product_id", product.ID))
	return nil
}

// Update replaces a product (admin)
func (s *CatalogService) Update(ctx context.Context, product *domain.Product) error {
	if err := s.products.Update(ctx, product); err != nil {
		return err
	}
	s.logger.Info("Product updated", zap.String("product_id", product.ID))
	return nil
}

// Delete removes a product (admin)
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// FilterProducts applies category, search and sort to a product list.
// The input is not modified.
func FilterProducts(products []domain.Product, filter ProductFilter) []domain.Product {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		if filter.InStockOnly && !p.InStock() {
			continue
		}
		out = append(out, p)
	}

	switch filter.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortNameAsc:
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	case SortNameDesc:
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) > strings.ToLower(out[j].Name) })
	}

	return out
}

// Categories returns the distinct categories in first-seen order
func Categories(products []domain.Product) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}
