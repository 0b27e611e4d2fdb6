package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"plausible-bridge/internal/events"
	"plausible-bridge/internal/provisioning"
	"plausible-bridge/internal/settings"
)

// settingsResponse is returned by the settings endpoints. The API token is
// always redacted.
type settingsResponse struct {
	Settings     settings.Settings    `json:"settings"`
	Provisioning *provisioning.Report `json:"provisioning,omitempty"`
}

// handleGetSettings returns the current settings.
// GET /settings
func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, settingsResponse{Settings: s.Redacted()})
}

// handleUpdateSettings applies a partial settings document and provisions
// remote resources for the change. Provisioning failures are reported in the
// response but never fail the save.
// PUT /settings
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.updateSettings(r.Context(), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateSettings(ctx context.Context, patch map[string]json.RawMessage) (*settingsResponse, error) {
	// Reject malformed values before anything is written.
	if _, err := (settings.Settings{}).Apply(patch); err != nil {
		return nil, validationError("settings", err)
	}

	before, after, err := h.store.Update(ctx, func(s *settings.Settings) {
		next, err := s.Apply(patch)
		if err != nil {
			return
		}
		*s = next
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "settings saved",
		slog.Int("keys", len(patch)),
		slog.Int("measurements", len(after.EnhancedMeasurements)),
	)

	resp := &settingsResponse{Settings: after.Redacted()}
	res, err := h.dispatcher.Dispatch(ctx, events.SettingsChanged{Old: before, New: after})
	if err != nil {
		h.logger.WarnContext(ctx, "settings change not handled", slog.String("error", err.Error()))
		return resp, nil
	}
	if report, ok := res.Data.(*provisioning.Report); ok {
		resp.Provisioning = report

		// The reconciler may have stored a shared link.
		if report.SharedLink != "" {
			resp.Settings.SharedLink = report.SharedLink
		}
	}
	return resp, nil
}
