package service

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// Slice names a piece of session state with its own loading flag and last error
type Slice string

const (
	SliceProducts Slice = "products"
	SliceCart     Slice = "cart"
	SliceOrders   Slice = "orders"
	SliceSession  Slice = "session"
)

// SliceStatus is the loading flag and last error message of one slice
type SliceStatus struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Store is the state of one storefront session: the catalog mirror, the
// cart and the active identity. It is created when the session starts and
// dropped when it ends. All methods are safe for concurrent use; no method
// performs network I/O.
type Store struct {
	mu sync.Mutex

	sessionID string
	identity  domain.Identity
	catalog   []domain.Product
	cart      domain.Cart
	status    map[Slice]SliceStatus
	lastSeen  time.Time

	// lineCount is the number of cart lines as of the last trigger check
	lineCount int

	notifier notify.Notifier
	logger   *zap.Logger
}

// NewStore creates an empty store owned by identity
func NewStore(sessionID string, identity domain.Identity, notifier notify.Notifier, logger *zap.Logger) *Store {
	return &Store{
		sessionID: sessionID,
		identity:  identity,
		cart:      domain.Cart{Owner: identity, Items: []domain.CartItem{}},
		status:    make(map[Slice]SliceStatus),
		lastSeen:  time.Now(),
		notifier:  notifier,
		logger:    logger,
	}
}

// SessionID returns the id of the owning session
func (s *Store) SessionID() string {
	return s.sessionID
}

// Identity returns the active cart owner
func (s *Store) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentity switches the active owner. The local cart is emptied; callers
// load the new owner's cart afterwards.
func (s *Store) SetIdentity(identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.cart = domain.Cart{Owner: identity, Items: []domain.CartItem{}}
	s.lineCount = 0
}

// Catalog returns a copy of the catalog mirror
func (s *Store) Catalog() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.catalog...)
}

// Product looks up a product in the catalog mirror
func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// SetCatalog replaces the catalog mirror. Reconciliation runs when the
// mirror goes from empty to non-empty.
func (s *Store) SetCatalog(ctx context.Context, products []domain.Product) {
	s.mu.Lock()
	wasEmpty := len(s.catalog) == 0
	s.catalog = append([]domain.Product(nil), products...)

	var pending []notify.Notification
	if wasEmpty && len(s.catalog) > 0 {
		pending = s.reconcileLocked()
	}
	s.mu.Unlock()

	s.notify(ctx, pending)
}

// Cart returns a copy of the cart
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Item returns a copy of the line for productID
func (s *Store) Item(productID string) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.cart.Find(productID); i >= 0 {
		return s.cart.Items[i], true
	}
	return domain.CartItem{}, false
}

// ReplaceItems installs a freshly fetched item list. Cached stock is filled
// from the catalog mirror and quantities above it are lowered, then the
// trigger policy applies.
func (s *Store) ReplaceItems(ctx context.Context, items []domain.CartItem) domain.Cart {
	s.mu.Lock()
	index := domain.ProductIndex(s.catalog)
	hydrated := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if p, ok := index[item.ProductID]; ok {
			item.CachedStock = p.StockQuantity
			// Sold-out lines are left for reconciliation to drop
			if item.CachedStock > 0 && item.Quantity > item.CachedStock {
				item.Quantity = item.CachedStock
			}
		}
		hydrated = append(hydrated, item)
	}
	s.cart.SetItems(hydrated)
	pending := s.afterItemsChangedLocked()
	cart := s.cart.Clone()
	s.mu.Unlock()

	s.notify(ctx, pending)
	return cart
}

// Mutate applies fn to the cart under the lock, recomputes aggregates and
// applies the trigger policy. fn must not block.
func (s *Store) Mutate(ctx context.Context, fn func(cart *domain.Cart) error) (domain.Cart, error) {
	s.mu.Lock()
	if err := fn(&s.cart); err != nil {
		cart := s.cart.Clone()
		s.mu.Unlock()
		return cart, err
	}
	s.cart.Recalculate()
	pending := s.afterItemsChangedLocked()
	cart := s.cart.Clone()
	s.mu.Unlock()

	s.notify(ctx, pending)
	return cart, nil
}

// Reconcile runs a reconciliation pass regardless of the trigger policy
func (s *Store) Reconcile(ctx context.Context) domain.Cart {
	s.mu.Lock()
	pending := s.reconcileLocked()
	cart := s.cart.Clone()
	s.mu.Unlock()

	s.notify(ctx, pending)
	return cart
}

// afterItemsChangedLocked reconciles only when the number of lines changed
// since the last check. Quantity edits alone do not trigger a pass.
func (s *Store) afterItemsChangedLocked() []notify.Notification {
	if len(s.cart.Items) == s.lineCount {
		return nil
	}
	return s.reconcileLocked()
}

func (s *Store) reconcileLocked() []notify.Notification {
	// An empty mirror means "not loaded yet", not "everything sold out".
	if len(s.catalog) == 0 {
		s.lineCount = len(s.cart.Items)
		return nil
	}

	result := ReconcileStock(s.catalog, s.cart.Items)
	if result.Changed {
		s.cart.SetItems(result.Items)
		s.logger.Debug("Cart reconciled",
			zap.String("session_id", s.sessionID),
			zap.Int("removed", len(result.Removed)),
			zap.Int("clamped", result.Clamped),
		)
	}
	s.lineCount = len(s.cart.Items)
	return result.Notifications()
}

func (s *Store) notify(ctx context.Context, pending []notify.Notification) {
	for _, n := range pending {
		s.notifier.Notify(ctx, n)
	}
}

// Notify forwards a notification to the session's notifier
func (s *Store) Notify(ctx context.Context, n notify.Notification) {
	s.notifier.Notify(ctx, n)
}

// SetLoading sets the loading flag of a slice
func (s *Store) SetLoading(slice Slice, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[slice]
	st.Loading = loading
	s.status[slice] = st
}

// SetError records the last error of a slice; nil clears it
func (s *Store) SetError(slice Slice, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[slice]
	st.Error = ""
	if err != nil {
		st.Error = err.Error()
	}
	s.status[slice] = st
}

// Status returns a copy of every slice status
func (s *Store) Status() map[Slice]SliceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Slice]SliceStatus, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// Touch marks the store as used now
func (s *Store) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// IdleSince reports when the store was last used
func (s *Store) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
