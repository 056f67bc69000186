package domain

// IdentityKind distinguishes anonymous sessions from signed-in accounts
type IdentityKind string

const (
	IdentityGuest IdentityKind = "guest"
	IdentityUser  IdentityKind = "user"
)

// Identity is the owner of a cart. Exactly one identity is active per session.
type Identity struct {
	Kind IdentityKind `json:"kind"`
	ID   string       `json:"id"`
}

// IsGuest reports whether the identity belongs to an anonymous session
func (i Identity) IsGuest() bool {
	return i.Kind == IdentityGuest
}

// CartItem is a single cart line. ProductID is a weak reference: the product
// may disappear from the catalog at any time.
type CartItem struct {
	ProductID string `json:"product_id"`
	// CartItemID is empty until the backend has assigned one.
	CartItemID  string `json:"cart_item_id,omitempty"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	Quantity    int    `json:"quantity"`
	CachedStock int    `json:"cached_stock"`
}

// Synced reports whether the line has a server-side counterpart
func (i CartItem) Synced() bool {
	return i.CartItemID != ""
}

// Subtotal returns price times quantity
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Cart holds the line items of one owner plus aggregates derived from them
type Cart struct {
	Owner      Identity   `json:"owner"`
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice int64      `json:"total_price"`
}

// Recalculate recomputes the aggregates as a fold over Items.
// Aggregates are never mutated any other way.
func (c *Cart) Recalculate() {
	c.TotalItems, c.TotalPrice = Totals(c.Items)
}

// SetItems replaces the line items and recomputes aggregates
func (c *Cart) SetItems(items []CartItem) {
	c.Items = items
	c.Recalculate()
}

// Find returns the index of the line for productID, or -1
func (c *Cart) Find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand out of a lock
func (c Cart) Clone() Cart {
	out := c
	out.Items = append([]CartItem(nil), c.Items...)
	if out.Items == nil {
		out.Items = []CartItem{}
	}
	return out
}

// Totals folds items into total quantity and total price
func Totals(items []CartItem) (totalItems int, totalPrice int64) {
	for _, item := range items {
		totalItems += item.Quantity
		totalPrice += item.Subtotal()
	}
	return totalItems, totalPrice
}
