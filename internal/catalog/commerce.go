package catalog

import (
	"strings"

	"plausible-bridge/internal/model"
)

// CommerceEvent identifies a shop interaction that is tracked as a goal.
type CommerceEvent string

const (
	ViewProduct    CommerceEvent = "view-product"
	AddToCart      CommerceEvent = "add-to-cart"
	RemoveFromCart CommerceEvent = "remove-from-cart"
	Checkout       CommerceEvent = "checkout"
	Purchase       CommerceEvent = "purchase"
)

// PurchaseFunnelName is the display name of the provisioned purchase funnel.
const PurchaseFunnelName = "Woo Purchase Funnel"

// ProductPagePath matches every product page.
const ProductPagePath = "/product*"

var commerceGoals = []struct {
	event CommerceEvent
	def   GoalDefinition
}{
	{ViewProduct, GoalDefinition{Feature: FeatureRevenue, DisplayName: "Visit " + ProductPagePath, Kind: model.GoalPageview, Path: ProductPagePath}},
	{AddToCart, GoalDefinition{Feature: FeatureRevenue, DisplayName: "Woo Add to Cart", Kind: model.GoalCustomEvent}},
	{RemoveFromCart, GoalDefinition{Feature: FeatureRevenue, DisplayName: "Woo Remove from Cart", Kind: model.GoalCustomEvent}},
	{Checkout, GoalDefinition{Feature: FeatureRevenue, DisplayName: "Woo Start Checkout", Kind: model.GoalCustomEvent}},
	{Purchase, GoalDefinition{Feature: FeatureRevenue, DisplayName: "Woo Complete Purchase", Kind: model.GoalRevenue}},
}

// CommerceGoal returns the goal definition of a commerce event.
func CommerceGoal(e CommerceEvent) GoalDefinition {
	for _, g := range commerceGoals {
		if g.event == e {
			return g.def
		}
	}
	return GoalDefinition{}
}

// Label returns the event name sent to the tracker, e.g. "Woo Add to Cart".
func (e CommerceEvent) Label() string {
	return CommerceGoal(e).DisplayName
}

// CommerceLabels returns the labels of all commerce events in declaration order.
func CommerceLabels() []string {
	out := make([]string, 0, len(commerceGoals))
	for _, g := range commerceGoals {
		out = append(out, g.def.DisplayName)
	}
	return out
}

// PurchaseFunnel builds the funnel request: view product, add to cart,
// start checkout, complete purchase.
// Remove-from-cart is not a funnel step; see StandaloneCommerceGoals.
func PurchaseFunnel(currency string) model.FunnelRequest {
	steps := []CommerceEvent{ViewProduct, AddToCart, Checkout, Purchase}
	req := model.FunnelRequest{Name: PurchaseFunnelName}
	for _, e := range steps {
		req.Steps = append(req.Steps, CommerceGoal(e).Request(currency))
	}
	return req
}

// StandaloneCommerceGoals lists commerce goals created outside the funnel.
func StandaloneCommerceGoals() []model.GoalRequest {
	return []model.GoalRequest{CommerceGoal(RemoveFromCart).Request("")}
}

// IsCommerceGoal reports whether a remote goal name belongs to a commerce
// event: after stripping the currency suffix, the name contains one of the
// commerce labels. Other remote-appended suffixes still match.
func IsCommerceGoal(name string) bool {
	name = StripCurrencySuffix(name)
	if name == "" {
		return false
	}
	for _, label := range CommerceLabels() {
		if strings.Contains(name, label) {
			return true
		}
	}
	return false
}

// EventProperties returns the property keys a commerce event may carry.
// Events without properties get an empty, non-nil list.
func EventProperties(e CommerceEvent) []string {
	switch e {
	case AddToCart:
		return CommerceProperties
	case RemoveFromCart:
		return append(append([]string(nil), CommerceProperties...), "removed_item")
	case Checkout:
		return []string{"subtotal", "shipping", "tax", "total"}
	default:
		return []string{}
	}
}

// CommerceProperties are the custom property keys used by commerce events.
// Event props outside this list are dropped before emission.
var CommerceProperties = []string{
	"cart_total",
	"cart_total_items",
	"id",
	"name",
	"price",
	"product_id",
	"product_name",
	"quantity",
	"shipping",
	"subtotal",
	"subtotal_tax",
	"tax_class",
	"total",
	"total_tax",
	"variation_id",
}
