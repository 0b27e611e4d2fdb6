package woocommerce

import (
	"context"

	"plausible-bridge/internal/model"
)

// Mock implements Accessor for testing.
// Each method can be configured via function fields.
type Mock struct {
	ProductFunc             func(ctx context.Context, id int64) (*ProductSnapshot, error)
	CartFunc                func(ctx context.Context, cartToken string) (*CartSnapshot, error)
	OrderFunc               func(ctx context.Context, id int64) (*OrderSnapshot, error)
	MarkPurchaseTrackedFunc func(ctx context.Context, orderID int64) error
	CurrencyFunc            func(ctx context.Context) (string, error)
}

var _ Accessor = (*Mock)(nil)

// Product calls the configured ProductFunc or returns not found.
func (m *Mock) Product(ctx context.Context, id int64) (*ProductSnapshot, error) {
	if m.ProductFunc != nil {
		return m.ProductFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

// Cart calls the configured CartFunc or returns an empty cart.
func (m *Mock) Cart(ctx context.Context, cartToken string) (*CartSnapshot, error) {
	if m.CartFunc != nil {
		return m.CartFunc(ctx, cartToken)
	}
	return &CartSnapshot{}, nil
}

// Order calls the configured OrderFunc or returns not found.
func (m *Mock) Order(ctx context.Context, id int64) (*OrderSnapshot, error) {
	if m.OrderFunc != nil {
		return m.OrderFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("order")
}

// MarkPurchaseTracked calls the configured MarkPurchaseTrackedFunc or succeeds.
func (m *Mock) MarkPurchaseTracked(ctx context.Context, orderID int64) error {
	if m.MarkPurchaseTrackedFunc != nil {
		return m.MarkPurchaseTrackedFunc(ctx, orderID)
	}
	return nil
}

// Currency calls the configured CurrencyFunc or returns USD.
func (m *Mock) Currency(ctx context.Context) (string, error) {
	if m.CurrencyFunc != nil {
		return m.CurrencyFunc(ctx)
	}
	return "USD", nil
}
