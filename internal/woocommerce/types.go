// Package woocommerce reads shop state from a WooCommerce store and turns
// shop lifecycle hooks into analytics events. Cart data comes from the Store
// API (keyed by Cart-Token), products, orders and store settings from the
// authenticated REST v3 API.
package woocommerce

import (
	"encoding/json"
	"strings"
)

// === Store API Types ===

// WooCartResponse represents the WooCommerce Store API cart response.
type WooCartResponse struct {
	Items      []WooCartItem `json:"items"`
	Totals     WooTotals     `json:"totals"`
	ItemsCount int           `json:"items_count"`
}

// WooCartItem represents an item in the cart response.
type WooCartItem struct {
	Key      string            `json:"key"` // Cart item key (not numeric ID)
	ID       int64             `json:"id"`  // Product or variation ID
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Quantity int               `json:"quantity"`
	Prices   WooCartItemPrices `json:"prices"`
	Totals   WooCartItemTotals `json:"totals"`
}

// WooCartItemPrices contains price info for a cart item.
type WooCartItemPrices struct {
	Price             string `json:"price"` // Current unit price in minor units
	RegularPrice      string `json:"regular_price"`
	SalePrice         string `json:"sale_price"`
	CurrencyCode      string `json:"currency_code"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
}

// WooCartItemTotals contains line totals for a cart item, in minor units.
type WooCartItemTotals struct {
	LineSubtotal    string `json:"line_subtotal"` // price * quantity
	LineSubtotalTax string `json:"line_subtotal_tax"`
	LineTotal       string `json:"line_total"` // After discounts
	LineTotalTax    string `json:"line_total_tax"`
}

// WooTotals contains the cart totals. Amounts are in minor units as
// indicated by CurrencyMinorUnit.
type WooTotals struct {
	CurrencyCode      string `json:"currency_code"`
	CurrencySymbol    string `json:"currency_symbol"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
	TotalItems        string `json:"total_items"`
	TotalItemsTax     string `json:"total_items_tax"`
	TotalShipping     string `json:"total_shipping"`
	TotalShippingTax  string `json:"total_shipping_tax"`
	TotalPrice        string `json:"total_price"`
	TotalTax          string `json:"total_tax"`
}

// === REST v3 Types ===

// WooProduct is the subset of the REST v3 product resource the tracker uses.
// Prices are decimal strings in major units.
type WooProduct struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	TaxClass string `json:"tax_class"`
}

// WooOrder is the subset of the REST v3 order resource the tracker uses.
type WooOrder struct {
	ID       int64         `json:"id"`
	Status   string        `json:"status"`
	Currency string        `json:"currency"`
	Total    string        `json:"total"`
	MetaData []WooMetaData `json:"meta_data"`
}

// WooMetaData is one order meta entry. Values are arbitrary JSON.
type WooMetaData struct {
	ID    int64           `json:"id,omitempty"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// meta returns the value stored under key as a string, or "" when absent.
func (o *WooOrder) meta(key string) string {
	for _, m := range o.MetaData {
		if m.Key != key {
			continue
		}
		var s string
		if err := json.Unmarshal(m.Value, &s); err == nil {
			return s
		}
		return strings.Trim(string(m.Value), `"`)
	}
	return ""
}

// WooOrderUpdate is the PUT body for order meta updates.
type WooOrderUpdate struct {
	MetaData []WooMetaData `json:"meta_data"`
}

// WooSetting is one entry of the REST v3 settings API.
type WooSetting struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// WooErrorResponse represents a WooCommerce API error.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
