package service

import (
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/notify"
)

// ReconcileResult is the outcome of one stock reconciliation pass
type ReconcileResult struct {
	// Items are the surviving lines, in their original order
	Items []domain.CartItem
	// Removed are lines whose product vanished or sold out
	Removed []domain.CartItem
	// Clamped counts lines whose quantity was lowered to the available stock
	Clamped int
	// Changed is true when Items differs from the input in any field
	Changed bool
}

// Notifications returns one out-of-stock warning per removed line
func (r ReconcileResult) Notifications() []notify.Notification {
	out := make([]notify.Notification, 0, len(r.Removed))
	for _, item := range r.Removed {
		out = append(out, notify.Warning(
			fmt.Sprintf("%s is out of stock and was removed from your cart", item.Name),
			item.ProductID,
		))
	}
	return out
}

// ReconcileStock checks cart lines against a catalog snapshot. Lines whose
// product is missing or has no stock are dropped; the rest get their cached
// stock refreshed and their quantity clamped to it. It never talks to the
// backend and never fails. Running it again on its own output changes nothing.
func ReconcileStock(products []domain.Product, items []domain.CartItem) ReconcileResult {
	index := domain.ProductIndex(products)
	result := ReconcileResult{Items: make([]domain.CartItem, 0, len(items))}

	for _, item := range items {
		product, ok := index[item.ProductID]
		if !ok || !product.InStock() {
			result.Removed = append(result.Removed, item)
			result.Changed = true
			continue
		}

		// A zero-quantity line cannot exist after reconciliation; it is
		// dropped without a notification since the product is in stock.
		if item.Quantity <= 0 {
			result.Changed = true
			continue
		}

		updated := item
		updated.CachedStock = product.StockQuantity
		if updated.Quantity > updated.CachedStock {
			updated.Quantity = updated.CachedStock
			result.Clamped++
		}
		if updated != item {
			result.Changed = true
		}
		result.Items = append(result.Items, updated)
	}

	return result
}
