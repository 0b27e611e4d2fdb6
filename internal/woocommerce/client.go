package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"plausible-bridge/internal/model"
)

const (
	storeAPIPath = "/wp-json/wc/store/v1"
	restAPIPath  = "/wp-json/wc/v3"
	userAgent    = "plausible-bridge/1.0"
)

// Config holds WooCommerce connection settings.
type Config struct {
	StoreURL   string
	APIKey     string // REST v3 consumer key
	APISecret  string // REST v3 consumer secret
	HTTPClient *http.Client
}

// Client implements Accessor against a live store.
//
// Cart reads go through the public Store API with the visitor's Cart-Token.
// Product, order and settings reads use REST v3 with basic auth, which
// WooCommerce only accepts over HTTPS.
type Client struct {
	httpClient *http.Client
	storeURL   string
	apiKey     string
	apiSecret  string
}

var _ Accessor = (*Client)(nil)

// New creates a WooCommerce client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("API credentials are required")
	}
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("HTTP client is required")
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		storeURL:   strings.TrimSuffix(cfg.StoreURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
	}, nil
}

// Product fetches a product by ID.
func (c *Client) Product(ctx context.Context, id int64) (*ProductSnapshot, error) {
	var p WooProduct
	if err := c.doREST(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, &p, "product"); err != nil {
		return nil, err
	}
	return toProductSnapshot(&p), nil
}

// Cart fetches the cart bound to cartToken.
func (c *Client) Cart(ctx context.Context, cartToken string) (*CartSnapshot, error) {
	if cartToken == "" {
		return nil, model.NewValidationError("cart_token", "required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storeURL+storeAPIPath+"/cart", nil)
	if err != nil {
		return nil, fmt.Errorf("creating cart request: %w", err)
	}
	c.setStoreAPIHeaders(req, cartToken)

	var cart WooCartResponse
	if err := c.send(req, &cart, "cart"); err != nil {
		return nil, err
	}
	return toCartSnapshot(&cart), nil
}

// Order fetches an order by ID.
func (c *Client) Order(ctx context.Context, id int64) (*OrderSnapshot, error) {
	var o WooOrder
	if err := c.doREST(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, &o, "order"); err != nil {
		return nil, err
	}
	return toOrderSnapshot(&o), nil
}

// MarkPurchaseTracked writes the purchase-tracked meta entry on the order.
func (c *Client) MarkPurchaseTracked(ctx context.Context, orderID int64) error {
	body := WooOrderUpdate{MetaData: []WooMetaData{
		{Key: PurchaseTrackedMeta, Value: json.RawMessage(`"1"`)},
	}}
	return c.doREST(ctx, http.MethodPut, "/orders/"+strconv.FormatInt(orderID, 10), body, nil, "order")
}

// Currency reads the woocommerce_currency general setting.
func (c *Client) Currency(ctx context.Context) (string, error) {
	var s WooSetting
	if err := c.doREST(ctx, http.MethodGet, "/settings/general/woocommerce_currency", nil, &s, "setting"); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(s.Value)), nil
}

// doREST performs an authenticated REST v3 call.
func (c *Client) doREST(ctx context.Context, method, path string, body, out any, resource string) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.storeURL+restAPIPath+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out, resource)
}

func (c *Client) send(req *http.Request, out any, resource string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewRemoteUnavailableError("WooCommerce", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewRemoteUnavailableError("WooCommerce", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, respBody, resource)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", resource, err)
	}
	return nil
}

// setStoreAPIHeaders sets headers for WooCommerce Store API requests.
func (c *Client) setStoreAPIHeaders(req *http.Request, cartToken string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if cartToken != "" {
		req.Header.Set("Cart-Token", cartToken)
	}
}

// parseErrorResponse converts WooCommerce error to APIError.
func parseErrorResponse(statusCode int, body []byte, resource string) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError(resource)
	case 401, 403:
		return model.NewInvalidTokenError("WooCommerce authentication failed")
	case 400:
		msg := wcErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError(resource, msg)
	case 429:
		return model.NewRateLimitError("WooCommerce")
	default:
		return model.NewRemoteUnavailableError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}
