package transport

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"storefront/internal/backend"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStart_IssuesGuestToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp SessionResponse
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, service.RoleGuest, resp.Role)
	assert.True(t, resp.Identity.IsGuest())
}

func TestCartEndpoints_RequireToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProducts_FilterAndSort(t *testing.T) {
	api := newTestAPI(t,
		product("1", "Margherita", 900, 5),
		product("2", "Diavola", 1200, 0),
		product("3", "Calzone", 1100, 3),
	)
	token := api.startSession(t)

	w := api.do(t, http.MethodGet, "/api/products?sort=price_desc&in_stock=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data CatalogResponse `json:"data"`
	}
	decode(t, w, &env)
	require.Len(t, env.Data.Products, 2)
	assert.Equal(t, "Calzone", env.Data.Products[0].Name)
	assert.Equal(t, "Margherita", env.Data.Products[1].Name)
	assert.Equal(t, []string{"pizza"}, env.Data.Categories)
}

func TestAddItem_CapsAtStockAndSyncs(t *testing.T) {
	api := newTestAPI(t, product("7", "Quattro Formaggi", 1000, 2))
	token := api.startSession(t)

	w := api.do(t, http.MethodPost, "/api/cart/items", token, AddItemRequest{ProductID: "7", Quantity: 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env cartEnvelope
	decode(t, w, &env)
	require.Len(t, env.Data.Items, 1)
	assert.Equal(t, 2, env.Data.Items[0].Quantity)
	assert.Equal(t, int64(2000), env.Data.TotalPrice)
	assert.True(t, env.Data.Items[0].Synced())
}

func TestIncrement_AtStockLimitReturnsConflictWithWarning(t *testing.T) {
	api := newTestAPI(t, product("7", "Quattro Formaggi", 1000, 2))
	token := api.startSession(t)

	w := api.do(t, http.MethodPost, "/api/cart/items", token, AddItemRequest{ProductID: "7", Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/cart/items/7/increment", token, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var errResp errorEnvelope
	decode(t, w, &errResp)
	assert.Equal(t, service.ErrStockLimit.Error(), errResp.Error.Message)
	require.Contains(t, errResp.Error.Details, "notifications")

	w = api.do(t, http.MethodGet, "/api/session", token, nil)
	var env cartEnvelope
	decode(t, w, &env)
	assert.Empty(t, env.Notifications, "notifications are drained once delivered")
}

func TestItemActions_UnknownLineIsNotFound(t *testing.T) {
	api := newTestAPI(t, product("7", "Quattro Formaggi", 1000, 2))
	token := api.startSession(t)

	for _, path := range []string{"/api/cart/items/7/increment", "/api/cart/items/7/decrement"} {
		w := api.do(t, http.MethodPost, path, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := api.do(t, http.MethodDelete, "/api/cart/items/7", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddItem_ValidationErrors(t *testing.T) {
	api := newTestAPI(t, product("7", "Quattro Formaggi", 1000, 2))
	token := api.startSession(t)

	w := api.do(t, http.MethodPost, "/api/cart/items", token, map[string]interface{}{"quantity": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp errorEnvelope
	decode(t, w, &errResp)
	assert.Equal(t, "validation failed", errResp.Error.Message)
	assert.Contains(t, errResp.Error.Details, "validation_errors")
}

func TestRefresh_RemovesSoldOutLineAndWarns(t *testing.T) {
	api := newTestAPI(t,
		product("7", "Quattro Formaggi", 1000, 2),
		product("8", "Marinara", 800, 4),
	)
	token := api.startSession(t)

	api.do(t, http.MethodPost, "/api/cart/items", token, AddItemRequest{ProductID: "7", Quantity: 1})
	api.do(t, http.MethodPost, "/api/cart/items", token, AddItemRequest{ProductID: "8", Quantity: 1})
	api.products.setStock("7", 0)

	w := api.do(t, http.MethodPost, "/api/products/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data          CatalogResponse `json:"data"`
		Notifications []struct {
			Level     string `json:"level"`
			ProductID string `json:"product_id"`
		} `json:"notifications"`
	}
	decode(t, w, &env)
	require.NotNil(t, env.Data.Cart)
	require.Len(t, env.Data.Cart.Items, 1)
	assert.Equal(t, "8", env.Data.Cart.Items[0].ProductID)
	require.Len(t, env.Notifications, 1)
	assert.Equal(t, "warning", env.Notifications[0].Level)
	assert.Equal(t, "7", env.Notifications[0].ProductID)
}

func TestLogin_MergesGuestCart(t *testing.T) {
	api := newTestAPI(t, product("7", "Quattro Formaggi", 1000, 5))
	token := api.startSession(t)

	w := api.do(t, http.MethodPost, "/api/cart/items", token, AddItemRequest{ProductID: "7", Quantity: 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/session/login", token, LoginRequest{UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env struct {
		Data SessionResponse `json:"data"`
	}
	decode(t, w, &env)
	assert.Equal(t, service.RoleUser, env.Data.Role)
	require.NotNil(t, env.Data.Cart)
	require.Len(t, env.Data.Cart.Items, 1)
	assert.Equal(t, 1, env.Data.Cart.Items[0].Quantity)
	assert.Len(t, api.carts.rows["u1"], 1)

	w = api.do(t, http.MethodPost, "/api/session/login", env.Data.Token, LoginRequest{UserID: "u1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogout_EndsSession(t *testing.T) {
	api := newTestAPI(t)
	token := api.startSession(t)

	w := api.do(t, http.MethodPost, "/api/session/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/cart", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrStockLimit, http.StatusConflict},
		{service.ErrOutOfStock, http.StatusConflict},
		{service.ErrEmptyCart, http.StatusConflict},
		{service.ErrAlreadySignedIn, http.StatusConflict},
		{service.ErrProductUnavailable, http.StatusNotFound},
		{fmt.Errorf("failed to update order: %w", repository.ErrOrderNotFound), http.StatusNotFound},
		{service.ErrInvalidQuantity, http.StatusBadRequest},
		{service.ErrInvalidStatus, http.StatusBadRequest},
		{service.ErrSignInRequired, http.StatusUnauthorized},
		{&backend.Error{StatusCode: http.StatusInternalServerError, Message: "boom"}, http.StatusBadGateway},
		{errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, message := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
			if got == http.StatusBadGateway {
				assert.NotContains(t, message, "boom")
			}
		})
	}
}
