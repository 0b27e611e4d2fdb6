// Package hooks binds host lifecycle events to the provisioning reconciler,
// the script builder and the commerce integration.
package hooks

import (
	"context"
	"errors"
	"log/slog"

	"plausible-bridge/internal/events"
	"plausible-bridge/internal/provisioning"
	"plausible-bridge/internal/script"
	"plausible-bridge/internal/settings"
	"plausible-bridge/internal/woocommerce"
)

// Deps are the components hooks delegate to. Commerce may be nil.
type Deps struct {
	Reconciler *provisioning.Reconciler
	Scripts    script.Builder
	Commerce   *woocommerce.Integration
	Logger     *slog.Logger
}

// Register installs a handler for every message type on d.
//
// Rendering hooks never fail the page: errors are logged and the result is
// empty. Proxied commerce events return their error to the caller.
func Register(d *events.Dispatcher, deps Deps) {
	h := &handlers{Deps: deps}

	events.On(d, h.settingsChanged)
	events.On(d, h.scriptTag)
	events.On(d, h.cartItemAdded)
	events.On(d, h.cartItemRemoved)
	events.On(d, h.checkoutRendered)
	events.On(d, h.orderCompleted)
	events.On(d, h.productPage)
}

type handlers struct {
	Deps
}

func (h *handlers) settingsChanged(ctx context.Context, s settings.Settings, msg events.SettingsChanged) (events.Result, error) {
	report := h.Reconciler.OnSettingsChanged(ctx, msg.Old, msg.New)
	return events.Result{Data: report}, nil
}

func (h *handlers) scriptTag(ctx context.Context, s settings.Settings, msg events.ScriptTagRendering) (events.Result, error) {
	if s.DomainName == "" {
		return events.Result{HTML: msg.Tag}, nil
	}
	attrs := h.Scripts.Build(s, msg.Context)
	return events.Result{HTML: script.RewriteTag(msg.Tag, attrs)}, nil
}

func (h *handlers) cartItemAdded(ctx context.Context, s settings.Settings, msg events.CartItemAdded) (events.Result, error) {
	if h.Commerce == nil {
		return events.Result{}, nil
	}
	err := h.Commerce.TrackAddToCart(ctx, s, woocommerce.AddToCart{
		ProductID:   msg.ProductID,
		VariationID: msg.VariationID,
		Quantity:    msg.Quantity,
		CartToken:   msg.CartToken,
	}, msg.Origin)
	return events.Result{}, ignoreInactive(err)
}

func (h *handlers) cartItemRemoved(ctx context.Context, s settings.Settings, msg events.CartItemRemoved) (events.Result, error) {
	if h.Commerce == nil {
		return events.Result{}, nil
	}
	err := h.Commerce.TrackRemoveFromCart(ctx, s, woocommerce.RemoveFromCart{
		CartItemKey: msg.CartItemKey,
		CartToken:   msg.CartToken,
	}, msg.Origin)
	return events.Result{}, ignoreInactive(err)
}

func (h *handlers) checkoutRendered(ctx context.Context, s settings.Settings, msg events.CheckoutRendered) (events.Result, error) {
	if h.Commerce == nil {
		return events.Result{}, nil
	}
	html, err := h.Commerce.TrackEnteredCheckout(ctx, s, msg.CartToken)
	return h.render(msg, html, err), nil
}

func (h *handlers) orderCompleted(ctx context.Context, s settings.Settings, msg events.OrderCompleted) (events.Result, error) {
	if h.Commerce == nil {
		return events.Result{}, nil
	}
	html, err := h.Commerce.TrackPurchase(ctx, s, msg.OrderID, msg.Locale)
	return h.render(msg, html, err), nil
}

func (h *handlers) productPage(ctx context.Context, s settings.Settings, msg events.ProductPageRendered) (events.Result, error) {
	if h.Commerce == nil {
		return events.Result{}, nil
	}
	html, err := h.Commerce.ProductFormScript(ctx, s, msg.ProductID)
	return h.render(msg, html, err), nil
}

// render degrades failed rendering to empty output.
func (h *handlers) render(msg events.Message, html string, err error) events.Result {
	if err = ignoreInactive(err); err != nil {
		h.Logger.Warn("rendering tracking markup failed",
			slog.String("event", msg.Kind()),
			slog.String("error", err.Error()),
		)
		return events.Result{}
	}
	return events.Result{HTML: html}
}

func ignoreInactive(err error) error {
	if errors.Is(err, woocommerce.ErrInactive) {
		return nil
	}
	return err
}
