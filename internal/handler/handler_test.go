package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
	"github.com/xenking/kart-group-discount/internal/domain/customer"
	"github.com/xenking/kart-group-discount/internal/domain/discount"
	"github.com/xenking/kart-group-discount/internal/domain/order"
	"github.com/xenking/kart-group-discount/internal/domain/pricing"
	"github.com/xenking/kart-group-discount/internal/domain/product"
)

// --- In-memory repositories ---

type memCarts struct {
	mu    sync.Mutex
	carts map[string]cart.Cart
}

func (m *memCarts) Get(_ context.Context, token string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[token]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return &c, nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.Token] = *c
	return nil
}

func (m *memCarts) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, token)
	return nil
}

type memProducts map[string]product.Product

func (m memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m memProducts) Upsert(_ context.Context, p product.Product) error {
	m[p.ID] = p
	return nil
}

type memCustomers map[string]customer.Customer

func (m memCustomers) FindByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (m memCustomers) Upsert(_ context.Context, c customer.Customer) error {
	m[c.ID] = c
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) Update(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) FindByOrder(_ context.Context, orderID string) ([]order.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.LineItem(nil), m.orders[orderID].Lines...), nil
}

func (m *memOrders) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for orderID, o := range m.orders {
		kept := make([]order.LineItem, 0, len(o.Lines))
		for _, l := range o.Lines {
			if l.ID != id {
				kept = append(kept, l)
			}
		}
		o.Lines = kept
		m.orders[orderID] = o
	}
	return nil
}

// --- Helpers ---

type testServer struct {
	*httptest.Server
	orders *memOrders
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	carts := &memCarts{carts: map[string]cart.Cart{}}
	orders := &memOrders{orders: map[string]order.Order{}}
	products := memProducts{
		"p40": {ID: "p40", Name: "Helmet", Price: decimal.NewFromInt(40)},
		"p60": {ID: "p60", Name: "Gloves", Price: decimal.NewFromInt(60)},
	}
	products[discount.Identifier] = product.Product{ID: discount.Identifier, Name: "Clashing id", Price: decimal.NewFromInt(40)}
	customers := memCustomers{
		"staff-1": {ID: "staff-1", GroupID: "staff"},
		"guest-1": {ID: "guest-1", GroupID: "retail"},
	}

	processor, err := discount.NewProcessor(
		discount.NewApplicator(discount.Config{
			Active:                  true,
			DiscountedCustomerGroup: []string{"staff"},
		}, pricing.NewPercentageCalculator(pricing.DefaultPrecision)),
		discount.NewReconciler(orders),
		tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(),
	)
	require.NoError(t, err)

	cartSvc := cart.NewService(carts, products, customers, processor)
	orderSvc := order.NewService(carts, cartSvc, orders)

	mux := http.NewServeMux()
	NewHandler(cartSvc, orderSvc).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, orders: orders}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, jx.Raw) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := jx.Decode(resp.Body, 1024).Raw()
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	return resp.StatusCode, append(jx.Raw(nil), raw...)
}

// cartView is the subset of the cart response the tests look at.
type cartView struct {
	Token string
	Total float64
	Lines []lineView
}

type lineView struct {
	ID        string
	Type      string
	Label     string
	Quantity  int
	Total     float64
	Operator  string
	TargetIDs []string
}

func decodeCart(t *testing.T, raw jx.Raw) cartView {
	t.Helper()

	var v cartView
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			s, err := d.Str()
			v.Token = s
			return err
		case "total":
			f, err := d.Float64()
			v.Total = f
			return err
		case "lineItems":
			return d.Arr(func(d *jx.Decoder) error {
				li, err := decodeLine(d)
				v.Lines = append(v.Lines, li)
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return v
}

func decodeLine(d *jx.Decoder) (lineView, error) {
	var li lineView
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			li.ID, err = d.Str()
		case "type":
			li.Type, err = d.Str()
		case "label":
			li.Label, err = d.Str()
		case "quantity":
			li.Quantity, err = d.Int()
		case "totalPrice":
			li.Total, err = d.Float64()
		case "priceDefinition":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				if key != "rule" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "operator":
						op, err := d.Str()
						li.Operator = op
						return err
					case "ids":
						return d.Arr(func(d *jx.Decoder) error {
							id, err := d.Str()
							li.TargetIDs = append(li.TargetIDs, id)
							return err
						})
					default:
						return d.Skip()
					}
				})
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return li, err
}

func decodeStr(t *testing.T, raw jx.Raw, field string) string {
	t.Helper()

	var out string
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		s, err := d.Str()
		out = s
		return err
	})
	require.NoError(t, err)
	return out
}

func (s *testServer) newCart(t *testing.T, customerID string, products ...string) cartView {
	t.Helper()

	status, raw := s.do(t, http.MethodPost, "/api/carts", `{"customerId":"`+customerID+`"}`)
	require.Equal(t, http.StatusCreated, status)
	c := decodeCart(t, raw)

	for _, id := range products {
		status, raw = s.do(t, http.MethodPost, "/api/carts/"+c.Token+"/items", `{"productId":"`+id+`","quantity":1}`)
		require.Equal(t, http.StatusOK, status, string(raw))
		c = decodeCart(t, raw)
	}
	return c
}

func findLine(c cartView, typ string) (lineView, bool) {
	for _, li := range c.Lines {
		if li.Type == typ {
			return li, true
		}
	}
	return lineView{}, false
}

// --- Tests ---

func TestCart_EligibleCustomerGetsDiscount(t *testing.T) {
	s := newTestServer(t)

	c := s.newCart(t, "staff-1", "p40", "p60")

	require.Len(t, c.Lines, 3)
	li, ok := findLine(c, discount.LineItemType)
	require.True(t, ok)
	assert.Equal(t, discount.Identifier, li.ID)
	assert.Equal(t, discount.Label, li.Label)
	assert.Equal(t, 1, li.Quantity)
	assert.InDelta(t, -100, li.Total, 0.001)
	assert.Equal(t, "=", li.Operator)
	assert.ElementsMatch(t, []string{"p40", "p60"}, li.TargetIDs)
	assert.InDelta(t, 0, c.Total, 0.001)
}

func TestCart_IneligibleCustomerPaysFullPrice(t *testing.T) {
	s := newTestServer(t)

	for _, customerID := range []string{"guest-1", "unknown", ""} {
		t.Run(customerID, func(t *testing.T) {
			c := s.newCart(t, customerID, "p40", "p60")

			_, ok := findLine(c, discount.LineItemType)
			assert.False(t, ok)
			assert.Len(t, c.Lines, 2)
			assert.InDelta(t, 100, c.Total, 0.001)
		})
	}
}

func TestCart_RecalculateKeepsSingleDiscount(t *testing.T) {
	s := newTestServer(t)
	c := s.newCart(t, "staff-1", "p40")

	for range 3 {
		status, raw := s.do(t, http.MethodPost, "/api/carts/"+c.Token+"/recalculate", "")
		require.Equal(t, http.StatusOK, status)
		c = decodeCart(t, raw)
	}

	require.Len(t, c.Lines, 2)
	li, ok := findLine(c, discount.LineItemType)
	require.True(t, ok)
	assert.InDelta(t, -40, li.Total, 0.001)
	assert.Equal(t, []string{"p40"}, li.TargetIDs)
}

func TestCart_RemoveItemUpdatesDiscount(t *testing.T) {
	s := newTestServer(t)
	c := s.newCart(t, "staff-1", "p40", "p60")

	status, raw := s.do(t, http.MethodDelete, "/api/carts/"+c.Token+"/items/p60", "")
	require.Equal(t, http.StatusOK, status)
	c = decodeCart(t, raw)

	li, ok := findLine(c, discount.LineItemType)
	require.True(t, ok)
	assert.InDelta(t, -40, li.Total, 0.001)
	assert.Equal(t, []string{"p40"}, li.TargetIDs)

	// Removing the last product leaves nothing to discount.
	status, raw = s.do(t, http.MethodDelete, "/api/carts/"+c.Token+"/items/p40", "")
	require.Equal(t, http.StatusOK, status)
	c = decodeCart(t, raw)
	assert.Empty(t, c.Lines)
}

func TestCart_Errors(t *testing.T) {
	s := newTestServer(t)
	c := s.newCart(t, "staff-1", "p40")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown cart", http.MethodGet, "/api/carts/missing", "", http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"productId":`, http.StatusBadRequest},
		{"missing product id", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"quantity":1}`, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"productId":"nope","quantity":1}`, http.StatusNotFound},
		{"trailing data", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"productId":"p40"} garbage`, http.StatusBadRequest},
		{"two objects", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"productId":"p40"}{"productId":"p60"}`, http.StatusBadRequest},
		{"invalid quantity", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"productId":"p40","quantity":0}`, http.StatusUnprocessableEntity},
		{"quantity above limit", http.MethodPost, "/api/carts/" + c.Token + "/items", `{"productId":"p40","quantity":20000}`, http.StatusUnprocessableEntity},
		{"unknown line", http.MethodDelete, "/api/carts/" + c.Token + "/items/nope", "", http.StatusNotFound},
		{"discount line", http.MethodDelete, "/api/carts/" + c.Token + "/items/" + discount.Identifier, "", http.StatusUnprocessableEntity},
		{"unknown order", http.MethodPost, "/api/orders/missing/edit", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, decodeStr(t, raw, "message"))
		})
	}
}

func TestOrder_PlaceEmptyCart(t *testing.T) {
	s := newTestServer(t)
	c := s.newCart(t, "staff-1")

	status, _ := s.do(t, http.MethodPost, "/api/carts/"+c.Token+"/order", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestOrder_EditReconcilesDiscount(t *testing.T) {
	s := newTestServer(t)
	c := s.newCart(t, "staff-1", "p40", "p60")

	status, raw := s.do(t, http.MethodPost, "/api/carts/"+c.Token+"/order", "")
	require.Equal(t, http.StatusCreated, status)
	orderID := decodeStr(t, raw, "id")
	require.NotEmpty(t, orderID)

	placed, err := s.orders.Get(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, placed.Lines, 3)
	assert.True(t, placed.Total.IsZero())

	status, raw = s.do(t, http.MethodPost, "/api/orders/"+orderID+"/edit", "")
	require.Equal(t, http.StatusOK, status)
	edit := decodeCart(t, raw)

	// The persisted discount row is gone and the edit cart carries a fresh one.
	lines, err := s.orders.FindByOrder(context.Background(), orderID)
	require.NoError(t, err)
	for _, l := range lines {
		assert.NotEqual(t, discount.Identifier, l.Identifier)
	}
	require.Len(t, edit.Lines, 3)
	li, ok := findLine(edit, discount.LineItemType)
	require.True(t, ok)
	assert.InDelta(t, -100, li.Total, 0.001)

	status, raw = s.do(t, http.MethodPost, "/api/carts/"+edit.Token+"/order", "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, orderID, decodeStr(t, raw, "id"))

	updated, err := s.orders.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Len(t, updated.Lines, 3)
}

func TestCart_ProductWithReservedID(t *testing.T) {
	s := newTestServer(t)
	body := `{"productId":"` + discount.Identifier + `","quantity":1}`

	staff := s.newCart(t, "staff-1", "p60")
	status, raw := s.do(t, http.MethodPost, "/api/carts/"+staff.Token+"/items", body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, decodeStr(t, raw, "message"), "reserved")

	// The stored cart keeps its previous state.
	status, raw = s.do(t, http.MethodGet, "/api/carts/"+staff.Token, "")
	require.Equal(t, http.StatusOK, status)
	c := decodeCart(t, raw)
	require.Len(t, c.Lines, 2)
	assert.InDelta(t, 0, c.Total, 0.001)

	// Customers without the discount can still buy it.
	guest := s.newCart(t, "guest-1", "p60")
	status, raw = s.do(t, http.MethodPost, "/api/carts/"+guest.Token+"/items", body)
	require.Equal(t, http.StatusOK, status)
	c = decodeCart(t, raw)
	assert.Len(t, c.Lines, 2)
	assert.InDelta(t, 100, c.Total, 0.001)
}
