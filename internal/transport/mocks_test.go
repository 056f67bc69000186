package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "transport-test-secret"

// Mock repositories for testing
type mockProductRepository struct {
	mu       sync.Mutex
	products []domain.Product
	nextID   int
}

func (m *mockProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Product(nil), m.products...), nil
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	product.ID = "new-" + strconv.Itoa(m.nextID)
	m.products = append(m.products, *product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == product.ID {
			m.products[i] = *product
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) setStock(id string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products[i].StockQuantity = stock
		}
	}
}

type mockCartRepository struct {
	mu     sync.Mutex
	rows   map[string][]domain.CartItem
	nextID int
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{rows: make(map[string][]domain.CartItem)}
}

func (m *mockCartRepository) List(ctx context.Context, ownerID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CartItem(nil), m.rows[ownerID]...), nil
}

func (m *mockCartRepository) Add(ctx context.Context, ownerID string, item domain.CartItem) (*repository.AddResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows[ownerID] {
		if row.ProductID == item.ProductID {
			m.rows[ownerID][i].Quantity += item.Quantity
			return &repository.AddResult{
				Action:     repository.AddActionUpdated,
				CartItemID: row.CartItemID,
				Quantity:   m.rows[ownerID][i].Quantity,
			}, nil
		}
	}
	m.nextID++
	item.CartItemID = strconv.Itoa(m.nextID)
	m.rows[ownerID] = append(m.rows[ownerID], item)
	return &repository.AddResult{Action: repository.AddActionAdded, CartItemID: item.CartItemID, Quantity: item.Quantity}, nil
}

func (m *mockCartRepository) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, rows := range m.rows {
		for i := range rows {
			if rows[i].CartItemID == cartItemID {
				m.rows[owner][i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) Delete(ctx context.Context, cartItemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, rows := range m.rows {
		for i := range rows {
			if rows[i].CartItemID == cartItemID {
				m.rows[owner] = append(rows[:i], rows[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) Clear(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, ownerID)
	return nil
}

type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = *order
	return nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrderRepository) Update(ctx context.Context, id string, update repository.OrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.ShippingID != nil {
		o.ShippingID = *update.ShippingID
	}
	if update.ShippingCompany != nil {
		o.ShippingCompany = *update.ShippingCompany
	}
	m.orders[id] = o
	return nil
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

// testAPI is the full storefront router over in-memory repositories
type testAPI struct {
	handler  http.Handler
	products *mockProductRepository
	carts    *mockCartRepository
	orders   *mockOrderRepository
}

func newTestAPI(t *testing.T, products ...domain.Product) *testAPI {
	t.Helper()
	logger := zap.NewNop()

	api := &testAPI{
		products: &mockProductRepository{products: products},
		carts:    newMockCartRepository(),
		orders:   &mockOrderRepository{orders: make(map[string]domain.Order)},
	}

	state := session.NewMemoryStore()
	catalog := service.NewCatalogService(api.products, state, logger)
	carts := service.NewCartService(api.carts, catalog, logger)
	migration := service.NewMigrationService(api.carts, state, repository.NewNopMigrationJournal(), logger)
	orders := service.NewOrderService(api.orders, carts, logger)
	sessions := service.NewSessionManager(state, catalog, carts, migration, testSecret, time.Hour, []string{"admin-1"}, logger)

	r := chi.NewRouter()
	sessionMiddleware := middleware.SessionMiddleware(testSecret, logger)
	adminMiddleware := middleware.RequireAdmin(logger)

	NewSessionHandler(sessions, logger).RegisterRoutes(r, sessionMiddleware)
	NewCatalogHandler(sessions, catalog, logger).RegisterRoutes(r, sessionMiddleware, adminMiddleware)
	NewCartHandler(sessions, carts, logger).RegisterRoutes(r, sessionMiddleware)
	NewOrderHandler(sessions, orders, migration, logger).RegisterRoutes(r, sessionMiddleware, adminMiddleware)

	api.handler = r
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

// startSession opens a guest session and returns its token
func (a *testAPI) startSession(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

// signIn starts a session and signs it in as userID
func (a *testAPI) signIn(t *testing.T, userID string) string {
	t.Helper()
	guest := a.startSession(t)
	w := a.do(t, http.MethodPost, "/api/session/login", guest, LoginRequest{UserID: userID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env struct {
		Data SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data.Token
}

type cartEnvelope struct {
	Data          domain.Cart `json:"data"`
	Notifications []struct {
		Level     string `json:"level"`
		Message   string `json:"message"`
		ProductID string `json:"product_id"`
	} `json:"notifications"`
}

type errorEnvelope struct {
	Error middleware.ErrorDetail `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func product(id, name string, price int64, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: price, Category: "pizza", StockQuantity: stock}
}
