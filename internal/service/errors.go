package service

import "errors"

var (
	ErrProductUnavailable = errors.New("product is not in the catalog")
	ErrOutOfStock         = errors.New("product is out of stock")
	ErrStockLimit         = errors.New("no more stock available for this item")
	ErrItemNotInCart      = errors.New("item is not in the cart")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrSignInRequired     = errors.New("sign in required")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAlreadySignedIn    = errors.New("session is already signed in")
)
