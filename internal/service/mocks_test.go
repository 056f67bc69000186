package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errBackendDown = errors.New("backend unavailable")

// Mock repositories for testing

type mockProductRepository struct {
	products []domain.Product
	listErr  error
	calls    int
}

func (m *mockProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Product(nil), m.products...), nil
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	product.ID = strconv.Itoa(len(m.products) + 1)
	m.products = append(m.products, *product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	for i, p := range m.products {
		if p.ID == product.ID {
			m.products[i] = *product
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

// mockCartRepository keeps server-side carts per owner and records every
// call in order, e.g. "add:user-1:p1".
type mockCartRepository struct {
	mu     sync.Mutex
	carts  map[string][]domain.CartItem
	nextID int
	calls  []string

	// failOn makes the named operation fail ("add", "update", "delete",
	// "clear", "list"); failAfter lets that many calls succeed first
	failOn    string
	failAfter int
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string][]domain.CartItem)}
}

func (m *mockCartRepository) seed(ownerID string, items ...domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.nextID++
		item.CartItemID = strconv.Itoa(m.nextID)
		m.carts[ownerID] = append(m.carts[ownerID], item)
	}
}

func (m *mockCartRepository) shouldFail(op string) bool {
	if m.failOn != op {
		return false
	}
	if m.failAfter > 0 {
		m.failAfter--
		return false
	}
	return true
}

func (m *mockCartRepository) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCartRepository) List(ctx context.Context, ownerID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list:"+ownerID)
	if m.shouldFail("list") {
		return nil, errBackendDown
	}
	return append([]domain.CartItem{}, m.carts[ownerID]...), nil
}

func (m *mockCartRepository) Add(ctx context.Context, ownerID string, item domain.CartItem) (*repository.AddResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "add:"+ownerID+":"+item.ProductID)
	if m.shouldFail("add") {
		return nil, errBackendDown
	}

	lines := m.carts[ownerID]
	for i := range lines {
		if lines[i].ProductID == item.ProductID {
			lines[i].Quantity += item.Quantity
			return &repository.AddResult{
				Action:     repository.AddActionUpdated,
				CartItemID: lines[i].CartItemID,
				Quantity:   lines[i].Quantity,
			}, nil
		}
	}

	m.nextID++
	item.CartItemID = strconv.Itoa(m.nextID)
	item.CachedStock = 0
	m.carts[ownerID] = append(lines, item)
	return &repository.AddResult{
		Action:     repository.AddActionAdded,
		CartItemID: item.CartItemID,
		Quantity:   item.Quantity,
	}, nil
}

func (m *mockCartRepository) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("update:%s:%d", cartItemID, quantity))
	if m.shouldFail("update") {
		return errBackendDown
	}
	for owner, lines := range m.carts {
		for i := range lines {
			if lines[i].CartItemID == cartItemID {
				m.carts[owner][i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) Delete(ctx context.Context, cartItemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+cartItemID)
	if m.shouldFail("delete") {
		return errBackendDown
	}
	for owner, lines := range m.carts {
		for i := range lines {
			if lines[i].CartItemID == cartItemID {
				m.carts[owner] = append(lines[:i], lines[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) Clear(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "clear:"+ownerID)
	if m.shouldFail("clear") {
		return errBackendDown
	}
	delete(m.carts, ownerID)
	return nil
}

type mockOrderRepository struct {
	orders    map[string]domain.Order
	createErr error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]domain.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	out := []domain.Order{}
	for _, o := range m.sorted() {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return m.sorted(), nil
}

func (m *mockOrderRepository) sorted() []domain.Order {
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockOrderRepository) Update(ctx context.Context, id string, update repository.OrderUpdate) error {
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if update.Status != nil {
		order.Status = *update.Status
	}
	if update.ShippingID != nil {
		order.ShippingID = *update.ShippingID
	}
	if update.ShippingCompany != nil {
		order.ShippingCompany = *update.ShippingCompany
	}
	m.orders[id] = order
	return nil
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

// mockJournal records run state transitions in memory
type mockJournal struct {
	mu       sync.Mutex
	runs     []*domain.MigrationRun
	replays  []string
	statuses []domain.MigrationStatus
}

func (m *mockJournal) Start(ctx context.Context, run *domain.MigrationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repository.NewNopMigrationJournal().Start(ctx, run)
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockJournal) RecordReplay(ctx context.Context, runID uuid.UUID, item domain.CartItem, cartItemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays = append(m.replays, item.ProductID)
	for _, run := range m.runs {
		if run.ID == runID {
			run.Replayed++
		}
	}
	return nil
}

func (m *mockJournal) Finish(ctx context.Context, runID uuid.UUID, status domain.MigrationStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	for _, run := range m.runs {
		if run.ID == runID {
			run.Status = status
			run.Error = errMsg
		}
	}
	return nil
}

func (m *mockJournal) FindByID(ctx context.Context, id uuid.UUID) (*domain.MigrationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, repository.ErrMigrationRunNotFound
}

func (m *mockJournal) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.MigrationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.MigrationRun{}
	for _, run := range m.runs {
		if run.UserID == userID && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

// recordingNotifier captures notifications in order
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

func (r *recordingNotifier) count(level notify.Level) int {
	n := 0
	for _, sent := range r.all() {
		if sent.Level == level {
			n++
		}
	}
	return n
}

// fixture wires the services against the mocks
type fixture struct {
	products  *mockProductRepository
	carts     *mockCartRepository
	orders    *mockOrderRepository
	journal   *mockJournal
	state     session.Store
	catalog   *CatalogService
	cart      *CartService
	migration *MigrationService
	order     *OrderService
}

func newFixture(products ...domain.Product) *fixture {
	logger := zap.NewNop()
	f := &fixture{
		products: &mockProductRepository{products: products},
		carts:    newMockCartRepository(),
		orders:   newMockOrderRepository(),
		journal:  &mockJournal{},
		state:    session.NewMemoryStore(),
	}
	f.catalog = NewCatalogService(f.products, f.state, logger)
	f.cart = NewCartService(f.carts, f.catalog, logger)
	f.migration = NewMigrationService(f.carts, f.state, f.journal, logger)
	f.order = NewOrderService(f.orders, f.cart, logger)
	return f
}

func (f *fixture) guestStore(sessionID, guestID string) (*Store, *recordingNotifier) {
	notes := &recordingNotifier{}
	st := NewStore(sessionID, domain.Identity{Kind: domain.IdentityGuest, ID: guestID}, notes, zap.NewNop())
	return st, notes
}

func (f *fixture) userStore(sessionID, userID string) (*Store, *recordingNotifier) {
	notes := &recordingNotifier{}
	st := NewStore(sessionID, domain.Identity{Kind: domain.IdentityUser, ID: userID}, notes, zap.NewNop())
	return st, notes
}

func product(id, name string, price int64, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: price, Category: "pizza", StockQuantity: stock}
}

func line(p domain.Product, quantity int) domain.CartItem {
	return domain.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Category:  p.Category,
		Quantity:  quantity,
	}
}
