package hostinfo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// Error codes written by Middleware.
const (
	CodeHostRequired  = "host_required"
	CodeVersionTooOld = "host_version_unsupported"
)

// Middleware parses the Plausible-Host header and stores the Host in the
// request context. Requests without a valid header, or from hosts older than
// minVersion, are rejected with 400.
func Middleware(minVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			if header == "" {
				writeHostError(w, http.StatusBadRequest, CodeHostRequired,
					Header+" header is required")
				return
			}

			host, err := Parse(header)
			if err != nil {
				logger.Warn("invalid host header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeHostError(w, http.StatusBadRequest, CodeHostRequired,
					"Invalid "+Header+" header: "+err.Error())
				return
			}

			if !host.AtLeast(minVersion) {
				logger.Warn("host version unsupported",
					slog.String("site", host.Site),
					slog.String("version", host.Version),
					slog.String("minimum", minVersion))
				writeHostError(w, http.StatusBadRequest, CodeVersionTooOld,
					"Host version "+host.Version+" is older than the minimum supported version "+minVersion)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithHost(r.Context(), host)))
		})
	}
}

// writeHostError writes the standard error envelope.
func writeHostError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}

// WithHost returns a context carrying h.
func WithHost(ctx context.Context, h Host) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

// FromContext returns the Host stored by Middleware.
func FromContext(ctx context.Context) (Host, bool) {
	h, ok := ctx.Value(contextKey{}).(Host)
	return h, ok
}
