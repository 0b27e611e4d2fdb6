// Package plausible is a client for the Plausible Plugins API, which manages
// goals, funnels, custom properties and shared links for one site.
package plausible

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

// DefaultBaseURL is the hosted Plausible instance.
const DefaultBaseURL = "https://plausible.io"

const apiPath = "/api/plugins/v1"

// SharedLinkName is the name of the dashboard link created for WordPress.
const SharedLinkName = "WordPress - Shared Dashboard"

// Client is the set of Plugins API operations provisioning needs.
type Client interface {
	// ValidateToken checks the token and returns what it may access.
	// An unauthorized token yields an error matching model.ErrInvalidToken.
	ValidateToken(ctx context.Context) (*model.Capabilities, error)

	// CreateGoals gets or creates goals in bulk. The response may list fewer
	// goals than requested.
	CreateGoals(ctx context.Context, goals []model.GoalRequest) ([]model.Goal, error)

	DeleteGoal(ctx context.Context, id int64) error

	// CreateFunnel gets or creates a funnel, creating missing step goals.
	CreateFunnel(ctx context.Context, req model.FunnelRequest) (*model.Funnel, error)

	EnableCustomProperties(ctx context.Context, keys []string) error

	CreateSharedLink(ctx context.Context, name string) (*model.SharedLink, error)
}

// Config holds Plugins API client configuration.
type Config struct {
	BaseURL    string // Default: DefaultBaseURL
	Token      string
	HTTPClient *http.Client
	UserAgent  string
}

// HTTPClient implements Client over HTTPS with bearer token auth.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
}

var _ Client = (*HTTPClient)(nil)

// New creates a Plugins API client.
func New(cfg Config) (*HTTPClient, error) {
	if cfg.Token == "" {
		return nil, model.NewMissingPrerequisiteError("API token")
	}
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPClient{
		httpClient: cfg.HTTPClient,
		baseURL:    base,
		token:      cfg.Token,
		userAgent:  ua,
	}, nil
}

const defaultUserAgent = "plausible-bridge/1.0"

func (c *HTTPClient) ValidateToken(ctx context.Context) (*model.Capabilities, error) {
	var caps model.Capabilities
	if err := c.do(ctx, http.MethodGet, "/capabilities", nil, &caps); err != nil {
		return nil, err
	}
	if !caps.Authorized {
		return &caps, model.NewInvalidTokenError("token is not authorized for this site")
	}
	return &caps, nil
}

func (c *HTTPClient) CreateGoals(ctx context.Context, goals []model.GoalRequest) ([]model.Goal, error) {
	if len(goals) == 0 {
		return nil, nil
	}
	for _, g := range goals {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}

	var resp goalListResponse
	if err := c.do(ctx, http.MethodPut, "/goals", goalBulkRequest{Goals: goals}, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Goal, 0, len(resp.Goals))
	for _, g := range resp.Goals {
		goal, err := g.toModel()
		if err != nil {
			return nil, fmt.Errorf("parsing goal response: %w", err)
		}
		out = append(out, goal)
	}
	return out, nil
}

func (c *HTTPClient) DeleteGoal(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/goals/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *HTTPClient) CreateFunnel(ctx context.Context, req model.FunnelRequest) (*model.Funnel, error) {
	if req.Name == "" {
		return nil, model.NewValidationError("funnel", "name is required")
	}
	if len(req.Steps) < 2 {
		return nil, model.NewValidationError("funnel", "at least two steps are required")
	}

	var resp funnelResponse
	if err := c.do(ctx, http.MethodPut, "/funnels", funnelCreateRequest{Funnel: req}, &resp); err != nil {
		return nil, err
	}
	funnel := &model.Funnel{ID: resp.Funnel.ID, Name: resp.Funnel.Name}
	for _, step := range resp.Funnel.Steps {
		goal, err := step.toModel()
		if err != nil {
			return nil, fmt.Errorf("parsing funnel step: %w", err)
		}
		funnel.Steps = append(funnel.Steps, goal)
	}
	return funnel, nil
}

func (c *HTTPClient) EnableCustomProperties(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	req := customPropBulkRequest{CustomProps: make([]customPropEntry, 0, len(keys))}
	for _, k := range keys {
		req.CustomProps = append(req.CustomProps, customPropEntry{CustomProp: customProp{Key: k}})
	}
	return c.do(ctx, http.MethodPut, "/custom_props", req, nil)
}

func (c *HTTPClient) CreateSharedLink(ctx context.Context, name string) (*model.SharedLink, error) {
	if name == "" {
		name = SharedLinkName
	}
	var resp sharedLinkResponse
	req := sharedLinkRequest{SharedLink: sharedLinkName{Name: name}}
	if err := c.do(ctx, http.MethodPut, "/shared_links", req, &resp); err != nil {
		return nil, err
	}
	if resp.SharedLink.Href == "" {
		return nil, model.NewRemoteUnavailableError("Plausible", fmt.Errorf("shared link response without href"))
	}
	return &resp.SharedLink, nil
}

// do sends one API request. out may be nil for responses without a body.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewRemoteUnavailableError("Plausible", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewRemoteUnavailableError("Plausible", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// parseErrorResponse converts an API error body to an APIError.
func parseErrorResponse(statusCode int, body []byte) error {
	var apiErr errorResponse
	json.Unmarshal(body, &apiErr) // Best effort parse
	msg := apiErr.message()

	switch {
	case statusCode == 401 || statusCode == 403:
		if msg == "" {
			msg = "token rejected"
		}
		return model.NewInvalidTokenError(msg)
	case statusCode == 404:
		return model.NewNotFoundError("resource")
	case statusCode == 400 || statusCode == 422:
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case statusCode == 429:
		return model.NewRateLimitError("Plausible")
	default:
		return model.NewRemoteUnavailableError("Plausible", fmt.Errorf("status %d: %s", statusCode, msg))
	}
}
