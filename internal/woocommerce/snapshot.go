package woocommerce

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"plausible-bridge/internal/model"
)

// PurchaseTrackedMeta is the order meta key that marks a purchase as tracked.
const PurchaseTrackedMeta = "_plausible_analytics_purchase_tracked"

// ProductSnapshot is the product state at hook time.
type ProductSnapshot struct {
	ID       int64
	Name     string
	Type     string
	Price    decimal.Decimal
	TaxClass string
}

// CartItem is one cart line.
type CartItem struct {
	Key         string
	ProductID   int64
	VariationID int64
	Name        string
	Quantity    int
	Price       decimal.Decimal
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
}

// Data returns the line as a property map. Keys outside the commerce
// property list are included and filtered by the caller.
func (i CartItem) Data() model.Props {
	return model.Props{
		"key":          i.Key,
		"product_id":   i.ProductID,
		"variation_id": i.VariationID,
		"name":         i.Name,
		"quantity":     i.Quantity,
		"price":        i.Price.StringFixed(2),
		"subtotal":     i.Subtotal.StringFixed(2),
		"total":        i.Total.StringFixed(2),
	}
}

// CartSnapshot is the cart state at hook time. Amounts are in major units.
type CartSnapshot struct {
	Items    []CartItem
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

// Item returns the line with the given cart item key.
func (c *CartSnapshot) Item(key string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.Key == key {
			return it, true
		}
	}
	return CartItem{}, false
}

// OrderSnapshot is the order state at hook time.
type OrderSnapshot struct {
	ID              int64
	Status          string
	Total           decimal.Decimal
	Currency        string
	PurchaseTracked bool
}

// Accessor reads shop state. Implementations must be safe for concurrent use.
type Accessor interface {
	Product(ctx context.Context, id int64) (*ProductSnapshot, error)
	Cart(ctx context.Context, cartToken string) (*CartSnapshot, error)
	Order(ctx context.Context, id int64) (*OrderSnapshot, error)
	// MarkPurchaseTracked persists the purchase-tracked marker on the order.
	MarkPurchaseTracked(ctx context.Context, orderID int64) error
	// Currency returns the store currency code.
	Currency(ctx context.Context) (string, error)
}

func toCartSnapshot(cart *WooCartResponse) *CartSnapshot {
	unit := cart.Totals.CurrencyMinorUnit
	snap := &CartSnapshot{
		Subtotal: model.FromMinorUnits(cart.Totals.TotalItems, unit),
		Shipping: model.FromMinorUnits(cart.Totals.TotalShipping, unit),
		Tax:      model.FromMinorUnits(cart.Totals.TotalTax, unit),
		Total:    model.FromMinorUnits(cart.Totals.TotalPrice, unit),
		Currency: cart.Totals.CurrencyCode,
	}
	for _, it := range cart.Items {
		itemUnit := it.Prices.CurrencyMinorUnit
		if it.Prices.CurrencyCode == "" {
			itemUnit = unit
		}
		item := CartItem{
			Key:       it.Key,
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     model.FromMinorUnits(it.Prices.Price, itemUnit),
			Subtotal:  model.FromMinorUnits(it.Totals.LineSubtotal, itemUnit),
			Total:     model.FromMinorUnits(it.Totals.LineTotal, itemUnit),
		}
		if it.Type == "variation" {
			item.VariationID = it.ID
		}
		snap.Items = append(snap.Items, item)
	}
	return snap
}

func toProductSnapshot(p *WooProduct) *ProductSnapshot {
	return &ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Type:     p.Type,
		Price:    model.ParseAmount(p.Price),
		TaxClass: p.TaxClass,
	}
}

func toOrderSnapshot(o *WooOrder) *OrderSnapshot {
	return &OrderSnapshot{
		ID:              o.ID,
		Status:          o.Status,
		Total:           model.ParseAmount(o.Total),
		Currency:        o.Currency,
		PurchaseTracked: isTruthy(o.meta(PurchaseTrackedMeta)),
	}
}

func isTruthy(v string) bool {
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v != "0"
}
