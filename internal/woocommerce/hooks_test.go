package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plausible-bridge/internal/catalog"
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/settings"
	"plausible-bridge/internal/tracking"
)

type recordingSender struct {
	calls   int
	url     string
	payload map[string]any
	origin  model.Origin
}

func (r *recordingSender) Send(ctx context.Context, collectorURL string, payload []byte, origin model.Origin) error {
	r.calls++
	r.url = collectorURL
	r.origin = origin
	return json.Unmarshal(payload, &r.payload)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func revenueSettings() settings.Settings {
	return settings.Settings{
		DomainName:           "shop.example.com",
		EnhancedMeasurements: settings.Measurements{catalog.FeatureRevenue},
	}
}

func testCart() *CartSnapshot {
	return &CartSnapshot{
		Items: []CartItem{
			{Key: "abc", ProductID: 12, Name: "Blue Shirt", Quantity: 2, Price: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(20), Total: decimal.NewFromInt(20)},
			{Key: "def", ProductID: 30, VariationID: 31, Name: "Mug - Red", Quantity: 1, Price: decimal.RequireFromString("5.5"), Subtotal: decimal.RequireFromString("5.5"), Total: decimal.RequireFromString("5.5")},
		},
		Subtotal: decimal.RequireFromString("25.50"),
		Shipping: decimal.RequireFromString("4.95"),
		Tax:      decimal.Zero,
		Total:    decimal.RequireFromString("30.45"),
		Currency: "EUR",
	}
}

func newTestIntegration(shop Accessor, sender tracking.Sender) *Integration {
	return NewIntegration(shop, tracking.NewEmitter(sender, testLogger()), testLogger(), "")
}

func TestPurchase_EmittedAtMostOnce(t *testing.T) {
	tracked := false
	marks := 0
	shop := &Mock{
		OrderFunc: func(ctx context.Context, id int64) (*OrderSnapshot, error) {
			return &OrderSnapshot{ID: id, Total: decimal.NewFromInt(10), Currency: "USD", PurchaseTracked: tracked}, nil
		},
		MarkPurchaseTrackedFunc: func(ctx context.Context, orderID int64) error {
			marks++
			tracked = true
			return nil
		},
	}
	integ := newTestIntegration(shop, nil)
	ctx := context.Background()

	first, err := integ.TrackPurchase(ctx, revenueSettings(), 42, "en_US")
	require.NoError(t, err)
	assert.Contains(t, first, `window.plausible( 'Woo Complete Purchase', {"revenue":{"amount":"10.00","currency":"USD"}} )`)

	second, err := integ.TrackPurchase(ctx, revenueSettings(), 42, "en_US")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, marks)
}

func TestPurchase_MarkerFailureStillRenders(t *testing.T) {
	shop := &Mock{
		OrderFunc: func(ctx context.Context, id int64) (*OrderSnapshot, error) {
			return &OrderSnapshot{ID: id, Total: decimal.NewFromInt(10), Currency: "USD"}, nil
		},
		MarkPurchaseTrackedFunc: func(ctx context.Context, orderID int64) error {
			return model.NewRemoteUnavailableError("WooCommerce", errors.New("timeout"))
		},
	}

	html, err := newTestIntegration(shop, nil).TrackPurchase(context.Background(), revenueSettings(), 42, "")
	require.NoError(t, err)
	assert.Contains(t, html, "Woo Complete Purchase")
}

func TestPurchase_Inactive(t *testing.T) {
	integ := newTestIntegration(&Mock{}, nil)

	_, err := integ.TrackPurchase(context.Background(), settings.Settings{DomainName: "shop.example.com"}, 42, "")
	assert.ErrorIs(t, err, ErrInactive)

	_, err = NewIntegration(nil, tracking.NewEmitter(nil, testLogger()), testLogger(), "").
		TrackPurchase(context.Background(), revenueSettings(), 42, "")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestEnteredCheckout(t *testing.T) {
	shop := &Mock{
		CartFunc: func(ctx context.Context, cartToken string) (*CartSnapshot, error) {
			assert.Equal(t, "tok-1", cartToken)
			return testCart(), nil
		},
	}

	html, err := newTestIntegration(shop, nil).TrackEnteredCheckout(context.Background(), revenueSettings(), "tok-1")
	require.NoError(t, err)
	assert.Contains(t, html,
		`window.plausible( 'Woo Start Checkout', {"props":{"shipping":"4.95","subtotal":"25.50","tax":"0.00","total":"30.45"}} )`)
}

func TestTrackAddToCart(t *testing.T) {
	shop := &Mock{
		ProductFunc: func(ctx context.Context, id int64) (*ProductSnapshot, error) {
			return &ProductSnapshot{ID: id, Name: "Blue Shirt", Price: decimal.NewFromInt(10), TaxClass: "standard"}, nil
		},
		CartFunc: func(ctx context.Context, cartToken string) (*CartSnapshot, error) {
			return testCart(), nil
		},
	}
	sender := &recordingSender{}
	origin := model.Origin{URL: "https://shop.example.com/product/blue-shirt/", UserAgent: "Mozilla/5.0", ClientIP: "203.0.113.7"}

	err := newTestIntegration(shop, sender).TrackAddToCart(context.Background(), revenueSettings(),
		AddToCart{ProductID: 12, Quantity: 2, CartToken: "tok-1"}, origin)
	require.NoError(t, err)

	require.Equal(t, 1, sender.calls)
	assert.Equal(t, "https://plausible.io/api/event", sender.url)
	assert.Equal(t, origin, sender.origin)
	assert.Equal(t, "Woo Add to Cart", sender.payload["name"])
	assert.Equal(t, "shop.example.com", sender.payload["domain"])

	props := sender.payload["props"].(map[string]any)
	assert.Equal(t, "Blue Shirt", props["product_name"])
	assert.Equal(t, float64(12), props["product_id"])
	assert.Equal(t, float64(2), props["quantity"])
	assert.Equal(t, "10.00", props["price"])
	assert.Equal(t, "standard", props["tax_class"])
	assert.Equal(t, float64(2), props["cart_total_items"])
	assert.Equal(t, "30.45", props["cart_total"])
	assert.NotContains(t, props, "variation_id")
}

func TestTrackAddToCart_DefaultsQuantity(t *testing.T) {
	shop := &Mock{
		ProductFunc: func(ctx context.Context, id int64) (*ProductSnapshot, error) {
			return &ProductSnapshot{ID: id, Name: "Blue Shirt", Price: decimal.NewFromInt(10)}, nil
		},
	}
	sender := &recordingSender{}

	err := newTestIntegration(shop, sender).TrackAddToCart(context.Background(), revenueSettings(),
		AddToCart{ProductID: 12, CartToken: "tok-1"}, model.Origin{})
	require.NoError(t, err)

	props := sender.payload["props"].(map[string]any)
	assert.Equal(t, float64(1), props["quantity"])
}

func TestTrackRemoveFromCart(t *testing.T) {
	shop := &Mock{
		CartFunc: func(ctx context.Context, cartToken string) (*CartSnapshot, error) {
			return testCart(), nil
		},
	}
	sender := &recordingSender{}

	err := newTestIntegration(shop, sender).TrackRemoveFromCart(context.Background(), revenueSettings(),
		RemoveFromCart{CartItemKey: "def", CartToken: "tok-1"}, model.Origin{})
	require.NoError(t, err)

	assert.Equal(t, "Woo Remove from Cart", sender.payload["name"])
	props := sender.payload["props"].(map[string]any)
	assert.Equal(t, float64(30), props["product_id"])
	assert.Equal(t, float64(31), props["variation_id"])
	assert.Equal(t, float64(2), props["cart_total_items"])

	removed := props["removed_item"].(map[string]any)
	assert.Equal(t, "Mug - Red", removed["name"])
	assert.Equal(t, "5.50", removed["price"])
	assert.Equal(t, "5.50", removed["subtotal"])
	assert.NotContains(t, removed, "key")
}

func TestTrackRemoveFromCart_UnknownItem(t *testing.T) {
	shop := &Mock{
		CartFunc: func(ctx context.Context, cartToken string) (*CartSnapshot, error) {
			return testCart(), nil
		},
	}
	sender := &recordingSender{}

	err := newTestIntegration(shop, sender).TrackRemoveFromCart(context.Background(), revenueSettings(),
		RemoveFromCart{CartItemKey: "zzz", CartToken: "tok-1"}, model.Origin{})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, sender.calls)
}

func TestProductForm(t *testing.T) {
	shop := &Mock{
		ProductFunc: func(ctx context.Context, id int64) (*ProductSnapshot, error) {
			return &ProductSnapshot{ID: id, Name: "Blue Shirt", Price: decimal.NewFromInt(20)}, nil
		},
	}

	script, err := newTestIntegration(shop, nil).ProductFormScript(context.Background(), revenueSettings(), 12)
	require.NoError(t, err)

	assert.Contains(t, script, "plausible-event-name=Woo+Add+to+Cart")
	assert.Contains(t, script, "plausible-event-product_id=12")
	assert.Contains(t, script, "plausible-event-product_name=Blue+Shirt")
	assert.Contains(t, script, "plausible-event-price=20.00")
	assert.Contains(t, script, "quantity.addEventListener('change'")
}

func TestProductForm_EscapesName(t *testing.T) {
	shop := &Mock{
		ProductFunc: func(ctx context.Context, id int64) (*ProductSnapshot, error) {
			return &ProductSnapshot{ID: id, Name: "Bob's </script>", Price: decimal.NewFromInt(20)}, nil
		},
	}

	script, err := newTestIntegration(shop, nil).ProductFormScript(context.Background(), revenueSettings(), 12)
	require.NoError(t, err)
	assert.NotContains(t, script, "Bob's")
	assert.NotContains(t, script, "</script>'")
}

func TestCurrencyOverride(t *testing.T) {
	shop := &Mock{CurrencyFunc: func(ctx context.Context) (string, error) { return "EUR", nil }}
	ctx := context.Background()

	assert.Equal(t, "EUR", newTestIntegration(shop, nil).Currency(ctx))
	assert.Equal(t, "GBP", NewIntegration(shop, nil, testLogger(), " gbp ").Currency(ctx))

	failing := &Mock{CurrencyFunc: func(ctx context.Context) (string, error) { return "", errors.New("boom") }}
	assert.Empty(t, newTestIntegration(failing, nil).Currency(ctx))
}
