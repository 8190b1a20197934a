package storeapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// flexID accepts ids sent as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexMoney accepts prices sent as numbers or numeric strings, in major units.
type flexMoney struct {
	set   bool
	value entity.Money
}

func (f *flexMoney) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	f.set = true
	f.value = entity.MoneyFromDecimal(d)
	return nil
}

// flexCategory accepts a category object or a bare category name.
type flexCategory struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

func (f *flexCategory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.Name)
	}
	type plain flexCategory
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = flexCategory(p)
	return nil
}

type variantDTO struct {
	ID            flexID    `json:"id"`
	SKU           string    `json:"sku"`
	Color         string    `json:"color"`
	Size          string    `json:"size"`
	Stock         int       `json:"stock"`
	PriceModifier flexMoney `json:"priceModifier"`
	Available     *bool     `json:"available"`
	ImageURL      string    `json:"imageUrl"`
}

type productDTO struct {
	ID          flexID        `json:"id"`
	Name        string        `json:"name"`
	Nombre      string        `json:"nombre"`
	Description string        `json:"description"`
	Descripcion string        `json:"descripcion"`
	Price       flexMoney     `json:"price"`
	Precio      flexMoney     `json:"precio"`
	Images      []string      `json:"images"`
	Image       string        `json:"image"`
	Imagen      string        `json:"imagen"`
	Category    *flexCategory `json:"category"`
	Categoria   *flexCategory `json:"categoria"`
	Tags        []string      `json:"tags"`
	Variants    []variantDTO  `json:"variants"`
	Stock       int           `json:"stock"`
}

func (d productDTO) toEntity() entity.Product {
	p := entity.Product{
		ID:          string(d.ID),
		Name:        firstNonEmpty(d.Name, d.Nombre),
		Description: firstNonEmpty(d.Description, d.Descripcion),
		BasePrice:   d.Price.value,
		Images:      d.Images,
		Tags:        d.Tags,
		Stock:       max(d.Stock, 0),
	}
	if !d.Price.set {
		p.BasePrice = d.Precio.value
	}
	if len(p.Images) == 0 {
		if img := firstNonEmpty(d.Image, d.Imagen); img != "" {
			p.Images = []string{img}
		}
	}
	cat := d.Category
	if cat == nil {
		cat = d.Categoria
	}
	if cat != nil {
		p.Category = entity.Category{ID: string(cat.ID), Name: cat.Name}
	}
	for _, v := range d.Variants {
		available := true
		if v.Available != nil {
			available = *v.Available
		}
		p.Variants = append(p.Variants, entity.Variant{
			ID:            string(v.ID),
			SKU:           v.SKU,
			Color:         strings.TrimSpace(v.Color),
			Size:          v.Size,
			Stock:         max(v.Stock, 0),
			PriceModifier: v.PriceModifier.value,
			Available:     available,
			ImageURL:      v.ImageURL,
		})
	}
	return p
}

type categoryDTO struct {
	ID     flexID `json:"id"`
	Name   string `json:"name"`
	Nombre string `json:"nombre"`
}

// orderItemPayload and orderPayload are the order body the backend accepts.
type orderItemPayload struct {
	ID        string       `json:"id"`
	VariantID string       `json:"variantId,omitempty"`
	SKU       string       `json:"sku,omitempty"`
	Name      string       `json:"name"`
	Cantidad  int          `json:"cantidad"`
	Precio    entity.Money `json:"precio"`
	Color     string       `json:"color,omitempty"`
	Size      string       `json:"size,omitempty"`
}

type orderPayload struct {
	Nombre    string             `json:"nombre"`
	Apellido  string             `json:"apellido"`
	Email     string             `json:"email"`
	Telefono  string             `json:"telefono"`
	Productos []orderItemPayload `json:"productos"`
	Total     entity.Money       `json:"total"`
	Fecha     string             `json:"fecha"`
}

func newOrderPayload(req entity.OrderRequest) orderPayload {
	p := orderPayload{
		Nombre:    req.Buyer.FirstName,
		Apellido:  req.Buyer.LastName,
		Email:     req.Buyer.Email,
		Telefono:  req.Buyer.Phone,
		Productos: make([]orderItemPayload, 0, len(req.Lines)),
		Total:     req.Total,
		Fecha:     req.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	for _, l := range req.Lines {
		p.Productos = append(p.Productos, orderItemPayload{
			ID:        l.ProductID,
			VariantID: l.VariantID,
			SKU:       l.SKU,
			Name:      l.Name,
			Cantidad:  l.Quantity,
			Precio:    l.UnitPrice,
			Color:     l.Color,
			Size:      l.Size,
		})
	}
	return p
}

type orderItemDTO struct {
	ProductID flexID    `json:"id"`
	VariantID flexID    `json:"variantId"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Cantidad  int       `json:"cantidad"`
	Precio    flexMoney `json:"precio"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
}

type orderDTO struct {
	ID             flexID         `json:"id"`
	Nombre         string         `json:"nombre"`
	Apellido       string         `json:"apellido"`
	Email          string         `json:"email"`
	Telefono       string         `json:"telefono"`
	Estado         string         `json:"estado"`
	Status         string         `json:"status"`
	Fecha          string         `json:"fecha"`
	Total          flexMoney      `json:"total"`
	DetallesPedido []orderItemDTO `json:"detallesPedido"`
	Productos      []orderItemDTO `json:"productos"`
}

func (d orderDTO) toEntity() entity.Order {
	o := entity.Order{
		ID:     string(d.ID),
		Buyer:  entity.Buyer{FirstName: d.Nombre, LastName: d.Apellido, Email: d.Email, Phone: d.Telefono},
		Total:  d.Total.value,
		Status: strings.ToUpper(firstNonEmpty(d.Estado, d.Status, entity.OrderPending)),
	}
	if t, err := time.Parse(time.RFC3339Nano, d.Fecha); err == nil {
		o.CreatedAt = t
	}
	items := d.DetallesPedido
	if len(items) == 0 {
		items = d.Productos
	}
	for _, it := range items {
		o.Lines = append(o.Lines, entity.OrderLine{
			ProductID: string(it.ProductID),
			VariantID: string(it.VariantID),
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Cantidad,
			UnitPrice: it.Precio.value,
			Color:     it.Color,
			Size:      it.Size,
		})
	}
	return o
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    *userDTO `json:"user"`
}

type userDTO struct {
	ID       flexID   `json:"id"`
	Email    string   `json:"email"`
	Nombre   string   `json:"nombre"`
	Apellido string   `json:"apellido"`
	Phone    string   `json:"phone"`
	Role     string   `json:"role"`
	Roles    []string `json:"roles"`
}

func (d userDTO) toEntity() entity.User {
	return entity.User{
		ID:        string(d.ID),
		Email:     d.Email,
		FirstName: d.Nombre,
		LastName:  d.Apellido,
		Phone:     d.Phone,
		Role:      d.Role,
		Roles:     d.Roles,
	}
}

// errorBody is the error shape the backend uses for 4xx responses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
