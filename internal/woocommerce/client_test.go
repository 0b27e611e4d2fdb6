package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"plausible-bridge/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		StoreURL:   server.URL + "/",
		APIKey:     "ck_test",
		APISecret:  "cs_test",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing store URL", Config{APIKey: "k", APISecret: "s", HTTPClient: http.DefaultClient}},
		{"missing credentials", Config{StoreURL: "https://shop.example", HTTPClient: http.DefaultClient}},
		{"missing HTTP client", Config{StoreURL: "https://shop.example", APIKey: "k", APISecret: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestCart_MinorUnits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/store/v1/cart" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Cart-Token"); got != "tok-1" {
			t.Errorf("Cart-Token = %q, want tok-1", got)
		}
		w.Write([]byte(`{
			"items": [
				{"key": "abc", "id": 12, "type": "simple", "name": "Blue Shirt", "quantity": 2,
				 "prices": {"price": "1000", "currency_code": "EUR", "currency_minor_unit": 2},
				 "totals": {"line_subtotal": "2000", "line_total": "2000"}},
				{"key": "def", "id": 31, "type": "variation", "name": "Mug - Red", "quantity": 1,
				 "prices": {"price": "550", "currency_code": "EUR", "currency_minor_unit": 2},
				 "totals": {"line_subtotal": "550", "line_total": "550"}}
			],
			"totals": {"currency_code": "EUR", "currency_minor_unit": 2,
				"total_items": "2550", "total_shipping": "495", "total_tax": "0", "total_price": "3045"}
		}`))
	})

	cart, err := client.Cart(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Cart() error = %v", err)
	}

	if got := cart.Total.StringFixed(2); got != "30.45" {
		t.Errorf("Total = %s, want 30.45", got)
	}
	if got := cart.Shipping.StringFixed(2); got != "4.95" {
		t.Errorf("Shipping = %s, want 4.95", got)
	}
	if cart.Currency != "EUR" {
		t.Errorf("Currency = %s, want EUR", cart.Currency)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(cart.Items))
	}
	if got := cart.Items[0].Price.StringFixed(2); got != "10.00" {
		t.Errorf("Items[0].Price = %s, want 10.00", got)
	}
	if cart.Items[0].VariationID != 0 {
		t.Errorf("Items[0].VariationID = %d, want 0", cart.Items[0].VariationID)
	}
	if cart.Items[1].VariationID != 31 {
		t.Errorf("Items[1].VariationID = %d, want 31", cart.Items[1].VariationID)
	}
}

func TestCart_RequiresToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	_, err := client.Cart(context.Background(), "")
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestOrder_PurchaseTrackedMeta(t *testing.T) {
	tests := []struct {
		name string
		meta string
		want bool
	}{
		{"absent", `[]`, false},
		{"string one", `[{"key":"_plausible_analytics_purchase_tracked","value":"1"}]`, true},
		{"boolean true", `[{"key":"_plausible_analytics_purchase_tracked","value":true}]`, true},
		{"empty string", `[{"key":"_plausible_analytics_purchase_tracked","value":""}]`, false},
		{"other key", `[{"key":"_billing_vat","value":"1"}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				if !ok || user != "ck_test" || pass != "cs_test" {
					t.Errorf("basic auth = %q/%q", user, pass)
				}
				w.Write([]byte(`{"id": 42, "status": "processing", "currency": "USD", "total": "10", "meta_data": ` + tt.meta + `}`))
			})

			order, err := client.Order(context.Background(), 42)
			if err != nil {
				t.Fatalf("Order() error = %v", err)
			}
			if order.PurchaseTracked != tt.want {
				t.Errorf("PurchaseTracked = %v, want %v", order.PurchaseTracked, tt.want)
			}
			if got := order.Total.StringFixed(2); got != "10.00" {
				t.Errorf("Total = %s, want 10.00", got)
			}
		})
	}
}

func TestMarkPurchaseTracked(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody WooOrderUpdate

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Write([]byte(`{"id": 42}`))
	})

	if err := client.MarkPurchaseTracked(context.Background(), 42); err != nil {
		t.Fatalf("MarkPurchaseTracked() error = %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/wp-json/wc/v3/orders/42" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if len(gotBody.MetaData) != 1 || gotBody.MetaData[0].Key != PurchaseTrackedMeta {
		t.Errorf("meta_data = %+v", gotBody.MetaData)
	}
}

func TestCurrency(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/v3/settings/general/woocommerce_currency" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"id": "woocommerce_currency", "value": "eur"}`))
	})

	got, err := client.Currency(context.Background())
	if err != nil {
		t.Fatalf("Currency() error = %v", err)
	}
	if got != "EUR" {
		t.Errorf("Currency = %q, want EUR", got)
	}
}

func TestParseErrorResponse(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{404, `{"code":"woocommerce_rest_shop_order_invalid_id","message":"Invalid ID."}`, model.ErrNotFound},
		{401, `{"code":"woocommerce_rest_cannot_view","message":"Sorry"}`, model.ErrInvalidToken},
		{403, ``, model.ErrInvalidToken},
		{400, `{"message":"bad"}`, model.ErrInvalidRequest},
		{429, ``, model.ErrRateLimited},
		{502, `<html>bad gateway</html>`, model.ErrRemoteUnavailable},
	}

	for _, tt := range tests {
		err := parseErrorResponse(tt.status, []byte(tt.body), "order")
		if !errors.Is(err, tt.want) {
			t.Errorf("parseErrorResponse(%d) = %v, want %v", tt.status, err, tt.want)
		}
	}
}
