package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/cart"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/catalog"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/pricing"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/session"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "X-Session-ID"

// Backend is the part of the storefront backend served through as is.
type Backend interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	OrdersByEmail(ctx context.Context, email, token string) ([]entity.Order, error)
}

// Handler handles HTTP requests for the application.
type Handler struct {
	catalog  *catalog.Catalog
	pricing  *pricing.Engine
	carts    *cart.Service
	checkout *checkout.Service
	sessions *session.Manager
	backend  Backend
}

func NewHandler(
	cat *catalog.Catalog,
	engine *pricing.Engine,
	carts *cart.Service,
	checkoutSvc *checkout.Service,
	sessions *session.Manager,
	backend Backend,
) *Handler {
	return &Handler{
		catalog:  cat,
		pricing:  engine,
		carts:    carts,
		checkout: checkoutSvc,
		sessions: sessions,
		backend:  backend,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
	mux.HandleFunc("GET /api/products/{id}", h.handleGetProduct)
	mux.HandleFunc("GET /api/categories", h.handleGetCategories)

	mux.HandleFunc("GET /api/cart", h.handleGetCart)
	mux.HandleFunc("POST /api/cart/items", h.handleAddItem)
	mux.HandleFunc("DELETE /api/cart/items/{ref}", h.handleRemoveItem)
	mux.HandleFunc("DELETE /api/cart", h.handleClearCart)

	mux.HandleFunc("POST /api/checkout/validate", h.handleValidateCheckout)
	mux.HandleFunc("POST /api/checkout", h.handleCheckout)

	mux.HandleFunc("POST /api/session/login", h.handleLogin)
	mux.HandleFunc("POST /api/session/logout", h.handleLogout)
	mux.HandleFunc("GET /api/orders", h.handleGetOrders)
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Colors:   splitList(q.Get("colors")),
		Tags:     splitList(q.Get("tags")),
		SortBy:   q.Get("sort"),
	}
	var err error
	if f.MinPrice, err = parsePrice(q.Get("minPrice")); err != nil {
		writeError(w, &entity.ValidationError{Field: "minPrice", Reason: "must be a number"})
		return
	}
	if f.MaxPrice, err = parsePrice(q.Get("maxPrice")); err != nil {
		writeError(w, &entity.ValidationError{Field: "maxPrice", Reason: "must be a number"})
		return
	}

	products := catalog.Apply(h.catalog.Products(), f)
	out := make([]productSummary, 0, len(products))
	for i := range products {
		out = append(out, h.summarize(&products[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type colorSwatch struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

type productSummary struct {
	entity.Product
	TotalStock int               `json:"totalStock"`
	Colors     []colorSwatch     `json:"colors"`
	Pricing    pricing.PriceView `json:"pricing"`
}

type productDetail struct {
	productSummary
	DefaultVariant *entity.Variant `json:"defaultVariant,omitempty"`
}

func (h *Handler) summarize(p *entity.Product) productSummary {
	colors := make([]colorSwatch, 0, len(p.Variants))
	for _, c := range p.Colors() {
		colors = append(colors, colorSwatch{Name: c, Hex: catalog.ColorHex(c)})
	}
	return productSummary{
		Product:    *p,
		TotalStock: p.TotalStock(),
		Colors:     colors,
		Pricing:    h.pricing.Product(p, nil),
	}
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	v, ok, err := h.catalog.DefaultVariant(p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	detail := productDetail{productSummary: h.summarize(p)}
	if ok {
		detail.DefaultVariant = &v
		detail.Pricing = h.pricing.Product(p, &v)
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.backend.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

type cartResponse struct {
	Cart  entity.CartSnapshot `json:"cart"`
	Quote pricing.Quote       `json:"quote"`
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, snap entity.CartSnapshot) {
	writeJSON(w, status, cartResponse{Cart: snap, Quote: h.pricing.Quote(snap)})
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if sess == nil {
		h.writeCart(w, http.StatusOK, entity.CartSnapshot{Lines: []entity.CartLine{}})
		return
	}
	snap, err := h.carts.GetCart(r.Context(), sess.CartID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		writeError(w, &entity.ValidationError{Field: "productId", Reason: "is required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := h.carts.AddItem(r.Context(), sess.CartID, req.ProductID, req.SKU, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, removed, err := h.carts.RemoveItem(r.Context(), sess.CartID, r.PathValue("ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("Cart line removed", "cart_id", sess.CartID, "quantity", removed)
	h.writeCart(w, http.StatusOK, snap)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := h.carts.Clear(r.Context(), sess.CartID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

func (h *Handler) handleValidateCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if sess == nil {
		writeError(w, &entity.ValidationError{Field: "cart", Reason: "cart is empty"})
		return
	}
	report, err := h.checkout.Begin(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":         report.Valid(),
		"authenticated": sess.Authenticated(),
		"report":        report,
	})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var contact checkout.Contact
	// Logged-in shoppers may post no body at all.
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := h.checkout.Finalize(r.Context(), sess, contact)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Login(r.Context(), sess, strings.TrimSpace(req.Email), req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         sess.User,
		"isAdmin":      sess.IsAdmin(),
		"isSuperAdmin": sess.IsSuperAdmin(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.sessions.Logout(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if sess == nil || !sess.Authenticated() {
		writeError(w, entity.ErrUnauthorized)
		return
	}
	orders, err := h.backend.OrdersByEmail(r.Context(), sess.User.Email, sess.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// session restores the caller's session and echoes its id back.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Restore(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		slog.Error("Failed to restore session", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set(SessionHeader, sess.ID)
	return sess, true
}

// existingSession is session for routes that only read: without a session
// header it returns nil instead of starting a session.
func (h *Handler) existingSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if r.Header.Get(SessionHeader) == "" {
		return nil, true
	}
	return h.session(w, r)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePrice(s string) (entity.Money, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return entity.MoneyFromDecimal(d), nil
}

// EnableCORS is a middleware to allow the React frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
