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
	ErrCartItemNotFound = errors.New("cart item not found")
)

// AddAction tells whether an add created a new row or bumped an existing one
type AddAction string

const (
	AddActionAdded   AddAction = "added"
	AddActionUpdated AddAction = "updated"
)

// AddResult is the API's answer to an add-to-cart call
type AddResult struct {
	Action     AddAction
	CartItemID string
	Quantity   int
}

// CartRepository defines the interface for server-side cart rows.
// ownerID is either a guest session identifier or a user identifier.
type CartRepository interface {
	List(ctx context.Context, ownerID string) ([]domain.CartItem, error)
	Add(ctx context.Context, ownerID string, item domain.CartItem) (*AddResult, error)
	UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error
	Delete(ctx context.Context, cartItemID string) error
	Clear(ctx context.Context, ownerID string) error
}

type cartRowDTO struct {
	ID              backend.ID `json:"id"`
	ProductID       backend.ID `json:"product_id"`
	ProductName     string     `json:"product_name"`
	ProductPrice    int64      `json:"product_price"`
	ProductCategory string     `json:"product_category"`
	ProductImage    string     `json:"product_image"`
	Quantity        int        `json:"quantity"`
}

type addCartRequest struct {
	UserID          string `json:"user_id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	ProductPrice    int64  `json:"product_price"`
	ProductCategory string `json:"product_category"`
	ProductImage    string `json:"product_image"`
	Quantity        int    `json:"quantity"`
}

type addCartResponse struct {
	Action     AddAction  `json:"action"`
	CartItemID backend.ID `json:"cart_item_id"`
	Quantity   int        `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartRepository struct {
	client *backend.Client
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(client *backend.Client) CartRepository {
	return &cartRepository{client: client}
}

// List fetches the cart rows of one owner. Stock is not part of a cart row;
// CachedStock is left at zero for the caller to fill from the catalog.
func (r *cartRepository) List(ctx context.Context, ownerID string) ([]domain.CartItem, error) {
	var rows []cartRowDTO
	query := url.Values{"user_id": []string{ownerID}}
	if err := r.client.Get(ctx, "/cart", query, &rows); err != nil {
		if backend.IsNotFound(err) {
			return []domain.CartItem{}, nil
		}
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}

	items := make([]domain.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.CartItem{
			ProductID:  row.ProductID.String(),
			CartItemID: row.ID.String(),
			Name:       row.ProductName,
			Price:      row.ProductPrice,
			Category:   row.ProductCategory,
			Image:      row.ProductImage,
			Quantity:   row.Quantity,
		})
	}
	return items, nil
}

// Add posts one line to the owner's cart
func (r *cartRepository) Add(ctx context.Context, ownerID string, item domain.CartItem) (*AddResult, error) {
	req := addCartRequest{
		UserID:          ownerID,
		ProductID:       item.ProductID,
		ProductName:     item.Name,
		ProductPrice:    item.Price,
		ProductCategory: item.Category,
		ProductImage:    item.Image,
		Quantity:        item.Quantity,
	}

	var resp addCartResponse
	if err := r.client.Post(ctx, "/cart", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	return &AddResult{
		Action:     resp.Action,
		CartItemID: resp.CartItemID.String(),
		Quantity:   resp.Quantity,
	}, nil
}

// UpdateQuantity sets the quantity of a synced row
func (r *cartRepository) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	err := r.client.Put(ctx, "/cart/"+url.PathEscape(cartItemID), updateQuantityRequest{Quantity: quantity}, nil)
	if err != nil {
		if backend.IsNotFound(err) {
			return ErrCartItemNotFound
		}
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

// Delete removes a synced row
func (r *cartRepository) Delete(ctx context.Context, cartItemID string) error {
	if err := r.client.Delete(ctx, "/cart/"+url.PathEscape(cartItemID)); err != nil {
		if backend.IsNotFound(err) {
			return ErrCartItemNotFound
		}
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return nil
}

// Clear removes every row of an owner's cart
func (r *cartRepository) Clear(ctx context.Context, ownerID string) error {
	if err := r.client.Delete(ctx, "/cart/user/"+url.PathEscape(ownerID)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
