package service

import (
	"context"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// syncFailedMessage is shown when the server could not confirm a cart change
const syncFailedMessage = "Could not save your cart change to the server; it is kept on this device"

// CartService applies cart changes locally first and then confirms them with
// the API. A failed confirmation never reverts the local change: from then on
// the local cart is authoritative until the next full load.
type CartService struct {
	carts   repository.CartRepository
	catalog *CatalogService
	logger  *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(carts repository.CartRepository, catalog *CatalogService, logger *zap.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		logger:  logger,
	}
}

// Load fetches the active owner's cart from the API and installs it. The
// catalog is loaded first so stock can be attached to each line.
func (s *CartService) Load(ctx context.Context, st *Store) (domain.Cart, error) {
	if _, err := s.catalog.Ensure(ctx, st); err != nil {
		s.logger.Warn("Loading cart without a catalog", zap.String("session_id", st.SessionID()), zap.Error(err))
	}

	owner := st.Identity()
	st.SetLoading(SliceCart, true)
	items, err := s.carts.List(ctx, owner.ID)
	st.SetLoading(SliceCart, false)
	if err != nil {
		st.SetError(SliceCart, err)
		return st.Cart(), fmt.Errorf("failed to load cart: %w", err)
	}
	st.SetError(SliceCart, nil)

	return st.ReplaceItems(ctx, items), nil
}

// Add puts quantity units of a catalog product into the cart, merging with an
// existing line. The request is capped at the cached stock.
func (s *CartService) Add(ctx context.Context, st *Store, productID string, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return st.Cart(), ErrInvalidQuantity
	}

	if _, err := s.catalog.Ensure(ctx, st); err != nil {
		return st.Cart(), err
	}

	product, ok := st.Product(productID)
	if !ok {
		return st.Cart(), ErrProductUnavailable
	}
	if !product.InStock() {
		st.Notify(ctx, notify.Warning(product.Name+" is out of stock", product.ID))
		return st.Cart(), ErrOutOfStock
	}

	var added domain.CartItem
	_, err := st.Mutate(ctx, func(cart *domain.Cart) error {
		i := cart.Find(productID)
		if i < 0 {
			cart.Items = append(cart.Items, domain.CartItem{
				ProductID:   product.ID,
				Name:        product.Name,
				Price:       product.Price,
				Category:    product.Category,
				Image:       product.Image,
				CachedStock: product.StockQuantity,
			})
			i = len(cart.Items) - 1
		}

		item := &cart.Items[i]
		remaining := item.CachedStock - item.Quantity
		if remaining <= 0 {
			return ErrStockLimit
		}
		if quantity > remaining {
			quantity = remaining
		}
		item.Quantity += quantity

		// An unsynced line is unknown to the server, so the whole local
		// quantity is sent; a synced one only needs the new units.
		added = *item
		if item.Synced() {
			added.Quantity = quantity
		}
		return nil
	})
	if err != nil {
		if err == ErrStockLimit {
			st.Notify(ctx, notify.Warning(fmt.Sprintf("Only %d of %s in stock", product.StockQuantity, product.Name), product.ID))
		}
		return st.Cart(), err
	}

	result, err := s.carts.Add(ctx, st.Identity().ID, added)
	if err != nil {
		s.keepLocal(ctx, st, "add", productID, err)
		return st.Cart(), nil
	}

	return st.Mutate(ctx, func(cart *domain.Cart) error {
		i := cart.Find(productID)
		if i < 0 {
			return nil
		}
		item := &cart.Items[i]
		if result.CartItemID != "" {
			item.CartItemID = result.CartItemID
		}
		// The local line stays authoritative: the server count only raises it
		if result.Quantity > item.Quantity {
			item.Quantity = result.Quantity
			if item.CachedStock > 0 && item.Quantity > item.CachedStock {
				item.Quantity = item.CachedStock
			}
		}
		return nil
	})
}

// Increment adds one unit. At the stock ceiling nothing changes, a warning
// is shown and no request is sent.
func (s *CartService) Increment(ctx context.Context, st *Store, productID string) (domain.Cart, error) {
	var updated domain.CartItem
	cart, err := st.Mutate(ctx, func(cart *domain.Cart) error {
		i := cart.Find(productID)
		if i < 0 {
			return ErrItemNotInCart
		}
		item := &cart.Items[i]
		if item.Quantity >= item.CachedStock {
			updated = *item
			return ErrStockLimit
		}
		item.Quantity++
		updated = *item
		return nil
	})
	if err != nil {
		if err == ErrStockLimit {
			st.Notify(ctx, notify.Warning(
				fmt.Sprintf("Only %d of %s in stock", updated.CachedStock, updated.Name),
				productID,
			))
		}
		return cart, err
	}

	if updated.Synced() {
		if err := s.carts.UpdateQuantity(ctx, updated.CartItemID, updated.Quantity); err != nil {
			s.keepLocal(ctx, st, "increment", productID, err)
		}
	}
	return st.Cart(), nil
}

// Decrement removes one unit; the last unit removes the line
func (s *CartService) Decrement(ctx context.Context, st *Store, productID string) (domain.Cart, error) {
	var updated domain.CartItem
	var removed bool
	cart, err := st.Mutate(ctx, func(cart *domain.Cart) error {
		i := cart.Find(productID)
		if i < 0 {
			return ErrItemNotInCart
		}
		item := cart.Items[i]
		if item.Quantity <= 1 {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			updated, removed = item, true
			return nil
		}
		cart.Items[i].Quantity--
		updated = cart.Items[i]
		return nil
	})
	if err != nil {
		return cart, err
	}

	if updated.Synced() {
		var confirmErr error
		if removed {
			confirmErr = s.carts.Delete(ctx, updated.CartItemID)
		} else {
			confirmErr = s.carts.UpdateQuantity(ctx, updated.CartItemID, updated.Quantity)
		}
		if confirmErr != nil {
			s.keepLocal(ctx, st, "decrement", productID, confirmErr)
		}
	}
	return st.Cart(), nil
}

// Remove drops a line entirely
func (s *CartService) Remove(ctx context.Context, st *Store, productID string) (domain.Cart, error) {
	var removed domain.CartItem
	cart, err := st.Mutate(ctx, func(cart *domain.Cart) error {
		i := cart.Find(productID)
		if i < 0 {
			return ErrItemNotInCart
		}
		removed = cart.Items[i]
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		return nil
	})
	if err != nil {
		return cart, err
	}

	if removed.Synced() {
		if err := s.carts.Delete(ctx, removed.CartItemID); err != nil {
			s.keepLocal(ctx, st, "remove", productID, err)
		}
	}
	return st.Cart(), nil
}

// Clear empties the cart. The server cart is cleared when any line was synced.
func (s *CartService) Clear(ctx context.Context, st *Store) (domain.Cart, error) {
	var anySynced bool
	cart, err := st.Mutate(ctx, func(cart *domain.Cart) error {
		for _, item := range cart.Items {
			if item.Synced() {
				anySynced = true
				break
			}
		}
		cart.Items = []domain.CartItem{}
		return nil
	})
	if err != nil {
		return cart, err
	}

	if anySynced {
		if err := s.carts.Clear(ctx, st.Identity().ID); err != nil {
			s.keepLocal(ctx, st, "clear", "", err)
		}
	}
	return st.Cart(), nil
}

// keepLocal handles a failed confirmation: the optimistic change stays, the
// error is recorded on the cart slice and the shopper is told.
func (s *CartService) keepLocal(ctx context.Context, st *Store, op, productID string, err error) {
	s.logger.Warn("Cart change not confirmed by server, keeping local state",
		zap.String("session_id", st.SessionID()),
		zap.String("op", op),
		zap.String("product_id", productID),
		zap.Error(err),
	)
	st.SetError(SliceCart, err)
	st.Notify(ctx, notify.Notification{
		Level:     notify.LevelError,
		Message:   syncFailedMessage,
		ProductID: productID,
	})
}
