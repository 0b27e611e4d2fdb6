package handler

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"plausible-bridge/internal/model"
	"plausible-bridge/internal/proxy"
	"plausible-bridge/internal/script"
)

// maxBeaconSize bounds a single tracker event body.
const maxBeaconSize = 64 << 10

// handleBeacon forwards a tracker event posted by the browser to the
// collector, on behalf of the visitor.
// POST /{namespace}/v1/{base}/{endpoint}
func (h *Handler) handleBeacon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBeaconSize))
	if err != nil {
		h.writeError(w, model.NewValidationError("body", "event too large"))
		return
	}
	if len(payload) == 0 {
		h.writeError(w, model.NewValidationError("body", "empty event"))
		return
	}

	s, err := h.store.Get(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.beacon.Send(ctx, proxy.CollectorURL(s), payload, visitorOrigin(r)); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	io.WriteString(w, "ok")
}

// handleScript serves the tracker script variant for the current settings.
// GET /js/{alias}.js
func (h *Handler) handleScript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.store.Get(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sc, err := h.scriptCache.Get(ctx, script.UpstreamScriptURL(s))
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			h.logger.ErrorContext(ctx, "fetching tracker script failed", slog.String("error", err.Error()))
		}
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", sc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(sc.Body)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Last-Modified", sc.FetchedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(sc.Body)
}

// visitorOrigin describes the browser request for the forwarder.
func visitorOrigin(r *http.Request) model.Origin {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return model.Origin{
		Referrer:     r.Referer(),
		UserAgent:    r.UserAgent(),
		ClientIP:     ip,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
	}
}
