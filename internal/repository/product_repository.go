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
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for catalog access
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
}

// productDTO is the product shape on the wire. The API capitalizes some
// fields and calls stock "Quantity".
type productDTO struct {
	ID       backend.ID `json:"id,omitempty"`
	Name     string     `json:"name"`
	Price    int64      `json:"Price"`
	Category string     `json:"Category"`
	Image    string     `json:"Image"`
	Quantity int        `json:"Quantity"`
}

func (d productDTO) toDomain() domain.Product {
	return domain.Product{
		ID:            d.ID.String(),
		Name:          d.Name,
		Price:         d.Price,
		Category:      d.Category,
		Image:         d.Image,
		StockQuantity: d.Quantity,
	}
}

func productToDTO(p *domain.Product) productDTO {
	return productDTO{
		ID:       backend.ID(p.ID),
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
		Image:    p.Image,
		Quantity: p.StockQuantity,
	}
}

type productRepository struct {
	client *backend.Client
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(client *backend.Client) ProductRepository {
	return &productRepository{client: client}
}

// List fetches the full catalog
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	var rows []productDTO
	if err := r.client.Get(ctx, "/products", nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

// Create adds a product and stores the id the API assigned
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	var created productDTO
	if err := r.client.Post(ctx, "/products", productToDTO(product), &created); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	if created.ID != "" {
		product.ID = created.ID.String()
	}
	return nil
}

// Update replaces a product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	err := r.client.Put(ctx, "/products/"+url.PathEscape(product.ID), productToDTO(product), nil)
	if err != nil {
		if backend.IsNotFound(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// Delete removes a product
func (r *productRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Delete(ctx, "/products/"+url.PathEscape(id)); err != nil {
		if backend.IsNotFound(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
