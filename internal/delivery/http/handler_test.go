package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/cart"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/catalog"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/pricing"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/reconcile"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/session"
)

type backend struct {
	products map[string]entity.Product
	orders   []entity.OrderRequest
}

func (b *backend) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := b.products[id]
	if !ok {
		return nil, &entity.NotFoundError{Kind: "product", Ref: id}
	}
	return &p, nil
}

func (b *backend) CreateOrder(ctx context.Context, req entity.OrderRequest, token, key string) (*entity.Order, error) {
	b.orders = append(b.orders, req)
	return &entity.Order{ID: "ord-1", Total: req.Total, Status: entity.OrderPending}, nil
}

func (b *backend) ListCategories(ctx context.Context) ([]entity.Category, error) {
	return []entity.Category{{ID: "1", Name: "Cocina"}, {ID: "2", Name: "Ropa"}}, nil
}

func (b *backend) OrdersByEmail(ctx context.Context, email, token string) ([]entity.Order, error) {
	return []entity.Order{{ID: "ord-0", Buyer: entity.Buyer{Email: email}, Total: 1500}}, nil
}

func testProducts() []entity.Product {
	return []entity.Product{
		{ID: "mug", Name: "Taza", BasePrice: 150000, Stock: 3, Category: entity.Category{Name: "Cocina"}},
		{ID: "p-1", Name: "Remera", BasePrice: 1000000, Category: entity.Category{Name: "Ropa"}, Variants: []entity.Variant{
			{ID: "v-1", SKU: "RED-M-123", Color: "Rojo", Size: "M", Stock: 0, Available: true},
			{ID: "v-2", SKU: "BLUE-M-123", Color: "Azul", Size: "M", Stock: 5, Available: true, PriceModifier: 50000},
		}},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *backend, *session.MemoryStore) {
	t.Helper()
	be := &backend{products: map[string]entity.Product{}}
	for _, p := range testProducts() {
		be.products[p.ID] = p
	}

	cat := catalog.New()
	cat.Load(testProducts())
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	require.NoError(t, err)

	carts := cart.NewService(memory.NewEventStore(), cat, nil)
	checkoutSvc := checkout.NewService(carts, reconcile.New(be), be, memory.NewSubmissionRepository(), nil)
	auth := session.AuthFunc(func(ctx context.Context, email, password string) (string, entity.User, error) {
		if password != "secret" {
			return "", entity.User{}, entity.ErrUnauthorized
		}
		return "tok", entity.User{ID: "3", Email: email, FirstName: "Ana", LastName: "Paz", Role: entity.RoleSuperAdmin}, nil
	})
	store := session.NewMemoryStore()
	sessions := session.NewManager(store, auth, 0)

	mux := http.NewServeMux()
	NewHandler(cat, engine, carts, checkoutSvc, sessions, be).RegisterRoutes(mux)
	srv := httptest.NewServer(EnableCORS(mux))
	t.Cleanup(srv.Close)
	return srv, be, store
}

type client struct {
	t         *testing.T
	base      string
	sessionID string
}

func (c *client) do(method, path, body string, out any) *http.Response {
	c.t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if id := resp.Header.Get(SessionHeader); id != "" {
		c.sessionID = id
	}
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestProductEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	var list []map[string]any
	resp := c.do(http.MethodGet, "/api/products?category=ropa&colors=azul", "", &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "p-1", list[0]["id"])

	resp = c.do(http.MethodGet, "/api/products?minPrice=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var detail struct {
		ID             string          `json:"id"`
		DefaultVariant *entity.Variant `json:"defaultVariant"`
		Colors         []colorSwatch   `json:"colors"`
		Pricing        pricing.PriceView
	}
	resp = c.do(http.MethodGet, "/api/products/p-1", "", &detail)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, detail.DefaultVariant)
	assert.Equal(t, "BLUE-M-123", detail.DefaultVariant.SKU, "first purchasable variant")
	assert.Equal(t, entity.Money(1050000), detail.Pricing.Price)
	assert.Equal(t, "$10.500", detail.Pricing.Display)
	require.Len(t, detail.Colors, 2)
	assert.Equal(t, "Rojo", detail.Colors[0].Name)

	resp = c.do(http.MethodGet, "/api/products/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var categories []entity.Category
	resp = c.do(http.MethodGet, "/api/categories", "", &categories)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, categories, 2)
}

func TestCartFlow(t *testing.T) {
	srv, be, _ := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	var cr cartResponse
	resp := c.do(http.MethodPost, "/api/cart/items", `{"productId":"mug","quantity":2}`, &cr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, c.sessionID)
	assert.Equal(t, 2, cr.Quote.Items)
	assert.Equal(t, entity.Money(300000), cr.Quote.Total)

	var errResp errorResponse
	resp = c.do(http.MethodPost, "/api/cart/items", `{"productId":"mug","quantity":2}`, &errResp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Len(t, errResp.Lines, 1)
	assert.Equal(t, 3, errResp.Lines[0].Available)

	resp = c.do(http.MethodPost, "/api/cart/items", `{"productId":"p-1"}`, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "sku", errResp.Field)

	resp = c.do(http.MethodPost, "/api/cart/items", `{"productId":"p-1","sku":"BLUE-M-123","quantity":1}`, &cr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, cr.Cart.Lines, 2)

	resp = c.do(http.MethodDelete, "/api/cart/items/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = c.do(http.MethodDelete, "/api/cart/items/BLUE-M-123", "", &cr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, cr.Cart.Lines, 1)

	var validation map[string]any
	resp = c.do(http.MethodPost, "/api/checkout/validate", "", &validation)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, validation["valid"])

	resp = c.do(http.MethodPost, "/api/checkout", `{"firstName":"Ana","lastName":"Paz","email":"bad"}`, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email", errResp.Field)

	var res checkout.Result
	resp = c.do(http.MethodPost, "/api/checkout", `{"firstName":"Ana","lastName":"Paz","email":"ana@example.com","phone":"1155550000"}`, &res)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ord-1", res.Order.ID)
	require.Len(t, be.orders, 1)

	resp = c.do(http.MethodGet, "/api/cart", "", &cr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, cr.Cart.Empty())

	resp = c.do(http.MethodDelete, "/api/cart", "", &cr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadOnlyRoutesDoNotStartSessions(t *testing.T) {
	srv, _, store := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	var cr cartResponse
	for i := 0; i < 3; i++ {
		resp := c.do(http.MethodGet, "/api/cart", "", &cr)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, cr.Cart.Empty())
	}
	resp := c.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = c.do(http.MethodPost, "/api/session/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = c.do(http.MethodPost, "/api/checkout/validate", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, c.sessionID)
	assert.Equal(t, 0, store.Len())

	resp = c.do(http.MethodPost, "/api/cart/items", `{"productId":"mug"}`, &cr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, c.sessionID)
	assert.Equal(t, 1, store.Len())
}

func TestCheckoutRejectsUnderstockedCart(t *testing.T) {
	srv, be, _ := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	resp := c.do(http.MethodPost, "/api/cart/items", `{"productId":"mug","quantity":3}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p := be.products["mug"]
	p.Stock = 1
	be.products["mug"] = p

	var errResp errorResponse
	resp = c.do(http.MethodPost, "/api/checkout/validate", "", &errResp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Len(t, errResp.Lines, 1)
	assert.Equal(t, "mug", errResp.Lines[0].Key)
	assert.Equal(t, 1, errResp.Lines[0].Available)
}

func TestSessionEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	resp := c.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/session/login", `{"email":"ana@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var login map[string]any
	resp = c.do(http.MethodPost, "/api/session/login", `{"email":"ana@example.com","password":"secret"}`, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, login["isSuperAdmin"])

	var orders []entity.Order
	resp = c.do(http.MethodGet, "/api/orders", "", &orders)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, orders, 1)
	assert.Equal(t, "ana@example.com", orders[0].Buyer.Email)

	resp = c.do(http.MethodPost, "/api/session/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/cart", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), SessionHeader)
}
