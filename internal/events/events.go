// Package events carries host lifecycle notifications to the components that
// react to them. Each message type has at most one handler; Dispatch runs it
// synchronously in the caller's goroutine and returns its Result.
package events

import (
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/script"
	"plausible-bridge/internal/settings"
)

// Message is a host notification.
type Message interface {
	// Kind names the message type for routing and logs.
	Kind() string
}

// SettingsChanged fires after a settings save was persisted.
type SettingsChanged struct {
	Old settings.Settings
	New settings.Settings
}

func (SettingsChanged) Kind() string { return "settings_changed" }

// ScriptTagRendering fires when the host prints the tracking script tag.
type ScriptTagRendering struct {
	Tag     string
	Context script.RequestContext
}

func (ScriptTagRendering) Kind() string { return "script_tag_rendering" }

// CartItemAdded fires after a product was added to a cart.
type CartItemAdded struct {
	ProductID   int64
	VariationID int64
	Quantity    int
	CartToken   string
	Origin      model.Origin
}

func (CartItemAdded) Kind() string { return "cart_item_added" }

// CartItemRemoved fires before a cart line is removed.
type CartItemRemoved struct {
	CartItemKey string
	CartToken   string
	Origin      model.Origin
}

func (CartItemRemoved) Kind() string { return "cart_item_removed" }

// CheckoutRendered fires while the checkout page head is rendered.
type CheckoutRendered struct {
	CartToken string
}

func (CheckoutRendered) Kind() string { return "checkout_rendered" }

// OrderCompleted fires when the order confirmation page is rendered.
// It may fire many times for the same order.
type OrderCompleted struct {
	OrderID int64
	Locale  string
}

func (OrderCompleted) Kind() string { return "order_completed" }

// ProductPageRendered fires after the add-to-cart form of a product page.
type ProductPageRendered struct {
	ProductID int64
}

func (ProductPageRendered) Kind() string { return "product_page_rendered" }

// Result is what a handler hands back to the host.
type Result struct {
	HTML string `json:"html,omitempty"` // Markup to print, if any
	Data any    `json:"data,omitempty"` // Handler specific payload
}
