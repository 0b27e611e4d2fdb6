// Package handler provides the HTTP surface of the bridge: the settings API
// and lifecycle hooks used by the host plugin, the first-party proxy for the
// tracker script and its events, and an MCP endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"plausible-bridge/internal/events"
	"plausible-bridge/internal/hostinfo"
	"plausible-bridge/internal/middleware"
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/proxy"
	"plausible-bridge/internal/script"
	"plausible-bridge/internal/settings"
	"plausible-bridge/internal/tracking"
)

// ScriptFetcher returns the upstream tracker script. proxy.ScriptCache implements it.
type ScriptFetcher interface {
	Get(ctx context.Context, url string) (proxy.Script, error)
}

var _ ScriptFetcher = (*proxy.ScriptCache)(nil)

// Options configures a Handler.
type Options struct {
	Store      settings.Store
	Dispatcher *events.Dispatcher
	Scripts    script.Builder

	// Beacon forwards proxied tracker events. Nil disables the event proxy.
	Beacon tracking.Sender
	// ScriptCache serves the proxied tracker script. Nil disables the script proxy.
	ScriptCache ScriptFetcher

	// MinHostVersion is the oldest host plugin version accepted on hook routes.
	MinHostVersion string
	// AuthToken protects the settings, hook and MCP routes when set.
	AuthToken string

	Logger *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store       settings.Store
	dispatcher  *events.Dispatcher
	scripts     script.Builder
	beacon      tracking.Sender
	scriptCache ScriptFetcher
	minVersion  string
	authToken   string
	logger      *slog.Logger
}

// New creates a Handler.
func New(opts Options) *Handler {
	return &Handler{
		store:       opts.Store,
		dispatcher:  opts.Dispatcher,
		scripts:     opts.Scripts,
		beacon:      opts.Beacon,
		scriptCache: opts.ScriptCache,
		minVersion:  opts.MinHostVersion,
		authToken:   opts.AuthToken,
		logger:      opts.Logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	auth := middleware.RequireToken(h.authToken)

	// Settings API
	mux.Handle("GET /settings", auth(http.HandlerFunc(h.handleGetSettings)))
	mux.Handle("PUT /settings", auth(http.HandlerFunc(h.handleUpdateSettings)))

	// Host lifecycle hooks; every hook identifies its host
	hooks := http.NewServeMux()
	hooks.HandleFunc("POST /hooks/script-tag", h.handleScriptTag)
	hooks.HandleFunc("POST /hooks/cart/added", h.handleCartAdded)
	hooks.HandleFunc("POST /hooks/cart/removed", h.handleCartRemoved)
	hooks.HandleFunc("POST /hooks/checkout", h.handleCheckout)
	hooks.HandleFunc("POST /hooks/thankyou/{order_id}", h.handleThankYou)
	hooks.HandleFunc("GET /hooks/product-form/{product_id}", h.handleProductForm)
	mux.Handle("/hooks/", middleware.Chain(auth, hostinfo.Middleware(h.minVersion, h.logger))(hooks))

	// First-party proxy for the tracker, under randomized paths
	if res := h.scripts.Resources; res.Valid() {
		if h.beacon != nil {
			mux.HandleFunc("POST "+res.EndpointPath(), h.handleBeacon)
		}
		if h.scriptCache != nil {
			mux.HandleFunc("GET "+res.ScriptPath(), h.handleScript)
		}
	}

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", auth(h.NewMCPHandler()))

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		// Wrap unexpected errors
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
