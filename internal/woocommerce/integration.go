package woocommerce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"plausible-bridge/internal/catalog"
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/settings"
	"plausible-bridge/internal/tracking"
)

// ErrInactive is returned by the tracking hooks when revenue tracking is off
// or no shop is connected. Callers treat it as a no-op.
var ErrInactive = errors.New("commerce tracking is not active")

// Integration emits commerce events for shop lifecycle hooks.
type Integration struct {
	shop     Accessor
	emitter  *tracking.Emitter
	logger   *slog.Logger
	currency string
}

// NewIntegration wires shop to emitter. shop may be nil when no store is
// configured; currency overrides the store currency setting when non-empty.
func NewIntegration(shop Accessor, emitter *tracking.Emitter, logger *slog.Logger, currency string) *Integration {
	return &Integration{
		shop:     shop,
		emitter:  emitter,
		logger:   logger,
		currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
}

// Active reports whether a shop is connected.
func (i *Integration) Active(ctx context.Context) bool {
	return i.shop != nil
}

// Currency returns the store currency, or "" when it cannot be determined.
func (i *Integration) Currency(ctx context.Context) string {
	if i.currency != "" {
		return i.currency
	}
	if i.shop == nil {
		return ""
	}
	c, err := i.shop.Currency(ctx)
	if err != nil {
		i.logger.Warn("reading store currency failed", slog.String("error", err.Error()))
		return ""
	}
	return c
}

func (i *Integration) enabled(s settings.Settings) bool {
	return i.shop != nil && s.Enabled(catalog.FeatureRevenue)
}

// AddToCart describes an add-to-cart hook.
type AddToCart struct {
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
	CartToken   string `json:"cart_token"`
}

// TrackAddToCart sends the add-to-cart event from the server. The cart
// snapshot is read after the item was added.
func (i *Integration) TrackAddToCart(ctx context.Context, s settings.Settings, req AddToCart, origin model.Origin) error {
	if !i.enabled(s) {
		return ErrInactive
	}
	if req.ProductID == 0 {
		return model.NewValidationError("product_id", "required")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	product, err := i.shop.Product(ctx, req.ProductID)
	if err != nil {
		return fmt.Errorf("loading product %d: %w", req.ProductID, err)
	}
	cart, err := i.shop.Cart(ctx, req.CartToken)
	if err != nil {
		return fmt.Errorf("loading cart: %w", err)
	}

	props := model.Props{
		"product_name":     product.Name,
		"product_id":       req.ProductID,
		"quantity":         req.Quantity,
		"price":            product.Price.StringFixed(2),
		"tax_class":        product.TaxClass,
		"cart_total_items": len(cart.Items),
		"cart_total":       cart.Total.StringFixed(2),
	}
	if req.VariationID != 0 {
		props["variation_id"] = req.VariationID
	}

	ev := model.TrackedEvent{Label: catalog.AddToCart.Label(), Props: props, Allow: catalog.EventProperties(catalog.AddToCart)}
	_, err = i.emitter.Emit(ctx, s, ev, tracking.Proxied, origin)
	return err
}

// RemoveFromCart describes a remove-from-cart hook. It fires before the item
// leaves the cart, so the snapshot still contains it.
type RemoveFromCart struct {
	CartItemKey string `json:"cart_item_key"`
	CartToken   string `json:"cart_token"`
}

// TrackRemoveFromCart sends the remove-from-cart event from the server.
func (i *Integration) TrackRemoveFromCart(ctx context.Context, s settings.Settings, req RemoveFromCart, origin model.Origin) error {
	if !i.enabled(s) {
		return ErrInactive
	}
	if req.CartItemKey == "" {
		return model.NewValidationError("cart_item_key", "required")
	}

	cart, err := i.shop.Cart(ctx, req.CartToken)
	if err != nil {
		return fmt.Errorf("loading cart: %w", err)
	}
	item, ok := cart.Item(req.CartItemKey)
	if !ok {
		return model.NewNotFoundError("cart item")
	}

	removed := tracking.FilterProps(item.Data(), catalog.CommerceProperties)
	ev := model.TrackedEvent{
		Label: catalog.RemoveFromCart.Label(),
		Allow: catalog.EventProperties(catalog.RemoveFromCart),
		Props: model.Props{
			"product_id":       item.ProductID,
			"variation_id":     item.VariationID,
			"quantity":         item.Quantity,
			"removed_item":     removed,
			"cart_total_items": len(cart.Items),
			"cart_total":       cart.Total.StringFixed(2),
		},
	}
	_, err = i.emitter.Emit(ctx, s, ev, tracking.Proxied, origin)
	return err
}

// TrackEnteredCheckout returns the inline script block for a checkout page view.
func (i *Integration) TrackEnteredCheckout(ctx context.Context, s settings.Settings, cartToken string) (string, error) {
	if !i.enabled(s) {
		return "", ErrInactive
	}

	cart, err := i.shop.Cart(ctx, cartToken)
	if err != nil {
		return "", fmt.Errorf("loading cart: %w", err)
	}

	ev := model.TrackedEvent{
		Label: catalog.Checkout.Label(),
		Allow: catalog.EventProperties(catalog.Checkout),
		Props: model.Props{
			"subtotal": cart.Subtotal.StringFixed(2),
			"shipping": cart.Shipping.StringFixed(2),
			"tax":      cart.Tax.StringFixed(2),
			"total":    cart.Total.StringFixed(2),
		},
	}
	out, err := i.emitter.Emit(ctx, s, ev, tracking.Inline, model.Origin{})
	if err != nil {
		return "", err
	}
	return out.HTML, nil
}

// TrackPurchase returns the inline revenue script for an order confirmation page.
// An order is emitted at most once: the tracked marker is checked first and
// written after the script was rendered. It returns "" for tracked orders.
func (i *Integration) TrackPurchase(ctx context.Context, s settings.Settings, orderID int64, locale string) (string, error) {
	if !i.enabled(s) {
		return "", ErrInactive
	}

	order, err := i.shop.Order(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("loading order %d: %w", orderID, err)
	}
	if order.PurchaseTracked {
		i.logger.Debug("purchase already tracked", slog.Int64("order_id", orderID))
		return "", nil
	}

	ev := model.TrackedEvent{
		Label: catalog.Purchase.Label(),
		Allow: catalog.EventProperties(catalog.Purchase),
		Revenue: &model.Revenue{
			Amount:   model.FormatAmount(order.Total, locale),
			Currency: order.Currency,
		},
	}
	out, err := i.emitter.Emit(ctx, s, ev, tracking.Inline, model.Origin{})
	if err != nil {
		return "", err
	}

	if err := i.shop.MarkPurchaseTracked(ctx, orderID); err != nil {
		// The page still gets the script; a reload may count the order again.
		i.logger.Error("marking purchase tracked failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
	return out.HTML, nil
}

var productFormTemplate = template.Must(template.New("product-form").
	Funcs(template.FuncMap{"class": classValue}).
	Parse(`<script>
	let form = document.querySelector('form.cart');
	let quantity = document.querySelector('input[name="quantity"]');

	form.classList.add('plausible-event-name={{class .Label}}');
	form.classList.add('plausible-event-quantity=' + quantity.value);
	form.classList.add('plausible-event-product_id={{.ProductID}}');
	form.classList.add('plausible-event-product_name={{class .ProductName}}');
	form.classList.add('plausible-event-price={{class .Price}}');

	quantity.addEventListener('change', function (e) {
		let target = e.target;
		form.className = form.className.replace(/(plausible-event-quantity=)\S+/, "$1" + target.value);
	});
</script>`))

// classValue encodes a value for a plausible-event-* class: spaces become
// plus signs and the result is safe inside a single quoted JS string.
func classValue(s string) string {
	return template.JSEscapeString(strings.ReplaceAll(s, " ", "+"))
}

// ProductFormScript returns the script that tags the add-to-cart form of a product
// page, so that the tracker sends the add-to-cart event when it is submitted.
func (i *Integration) ProductFormScript(ctx context.Context, s settings.Settings, productID int64) (string, error) {
	if !i.enabled(s) {
		return "", ErrInactive
	}

	product, err := i.shop.Product(ctx, productID)
	if err != nil {
		return "", fmt.Errorf("loading product %d: %w", productID, err)
	}

	var buf bytes.Buffer
	err = productFormTemplate.Execute(&buf, struct {
		Label       string
		ProductID   int64
		ProductName string
		Price       string
	}{
		Label:       catalog.AddToCart.Label(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       product.Price.StringFixed(2),
	})
	if err != nil {
		return "", fmt.Errorf("rendering product form script: %w", err)
	}
	return buf.String(), nil
}
