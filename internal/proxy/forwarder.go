package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"plausible-bridge/internal/model"
)

// ForwardTimeout bounds a single collector request.
const ForwardTimeout = 10 * time.Second

// Forwarder posts events to the collector on behalf of a visitor.
type Forwarder struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewForwarder creates a Forwarder. A nil client gets a default one with ForwardTimeout.
func NewForwarder(httpClient *http.Client, logger *slog.Logger) *Forwarder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: ForwardTimeout}
	}
	return &Forwarder{httpClient: httpClient, logger: logger}
}

// Send posts a JSON event payload to collectorURL. The visitor's User-Agent
// is copied and its IP appended to X-Forwarded-For so that the collector
// attributes the event to the visitor and not to this server.
func (f *Forwarder) Send(ctx context.Context, collectorURL string, payload []byte, origin model.Origin) error {
	ctx, cancel := context.WithTimeout(ctx, ForwardTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, collectorURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	SetVisitorHeaders(req.Header, origin)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return model.NewRemoteUnavailableError("collector", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return model.NewRemoteUnavailableError("collector", fmt.Errorf("status %d", resp.StatusCode))
	}

	f.logger.Debug("event forwarded",
		slog.String("collector", collectorURL),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

// SetVisitorHeaders copies the visitor identity onto an outbound request.
// The first X-Forwarded-For entry stays the original client.
func SetVisitorHeaders(h http.Header, origin model.Origin) {
	if origin.UserAgent != "" {
		h.Set("User-Agent", origin.UserAgent)
	}
	switch {
	case origin.ForwardedFor != "" && origin.ClientIP != "":
		h.Set("X-Forwarded-For", origin.ForwardedFor+", "+origin.ClientIP)
	case origin.ForwardedFor != "":
		h.Set("X-Forwarded-For", origin.ForwardedFor)
	case origin.ClientIP != "":
		h.Set("X-Forwarded-For", origin.ClientIP)
	}
	if origin.Referrer != "" {
		h.Set("Referer", origin.Referrer)
	}
}
