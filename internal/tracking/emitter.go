// Package tracking turns tracked events into tracker calls: an inline
// script for server rendered pages, or a server side request to the
// collector when no page is rendered.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"plausible-bridge/internal/model"
	"plausible-bridge/internal/proxy"
	"plausible-bridge/internal/settings"
)

// Destination selects how an event leaves the server.
type Destination int

const (
	// Inline renders a script block into the current page.
	Inline Destination = iota
	// Proxied posts the event to the collector from the server.
	Proxied
)

func (d Destination) String() string {
	switch d {
	case Inline:
		return "inline"
	case Proxied:
		return "proxied"
	default:
		return fmt.Sprintf("destination(%d)", int(d))
	}
}

// ScriptID is the id attribute of inline tracking blocks.
const ScriptID = "plausible-analytics-integration-tracking"

// scriptWrapper defers the call until the tracker script has loaded.
const scriptWrapper = `<script defer id="` + ScriptID + `">document.addEventListener("DOMContentLoaded", () => { %s });</script>`

// Sender delivers a collector payload. proxy.Forwarder implements it.
type Sender interface {
	Send(ctx context.Context, collectorURL string, payload []byte, origin model.Origin) error
}

var _ Sender = (*proxy.Forwarder)(nil)

// Output is the result of one emission.
type Output struct {
	HTML string // Inline only
	Sent bool   // Proxied only
}

// Emitter emits tracked events.
type Emitter struct {
	sender Sender
	logger *slog.Logger
}

// NewEmitter creates an Emitter. sender may be nil if only Inline is used.
func NewEmitter(sender Sender, logger *slog.Logger) *Emitter {
	return &Emitter{sender: sender, logger: logger}
}

var errNoSender = errors.New("no sender configured for proxied events")

// Emit renders or sends ev. s is the settings snapshot of the current request.
func (e *Emitter) Emit(ctx context.Context, s settings.Settings, ev model.TrackedEvent, dest Destination, origin model.Origin) (Output, error) {
	if ev.Label == "" {
		return Output{}, model.NewValidationError("event", "label is required")
	}
	if ev.Allow != nil {
		ev.Props = FilterProps(ev.Props, ev.Allow)
	}

	switch dest {
	case Inline:
		html, err := RenderInline(ev)
		if err != nil {
			return Output{}, err
		}
		return Output{HTML: html}, nil

	case Proxied:
		if e.sender == nil {
			return Output{}, errNoSender
		}
		payload, err := json.Marshal(collectorEvent{
			Name:     ev.Label,
			Domain:   s.DomainName,
			URL:      origin.URL,
			Referrer: origin.Referrer,
			Props:    ev.Props,
			Revenue:  ev.Revenue,
		})
		if err != nil {
			return Output{}, fmt.Errorf("encoding event: %w", err)
		}
		if err := e.sender.Send(ctx, proxy.CollectorURL(s), payload, origin); err != nil {
			e.logger.Warn("proxied event failed",
				slog.String("event", ev.Label),
				slog.String("error", err.Error()),
			)
			return Output{}, err
		}
		e.logger.Debug("proxied event sent", slog.String("event", ev.Label))
		return Output{Sent: true}, nil

	default:
		return Output{}, fmt.Errorf("unknown destination %s", dest)
	}
}

// collectorEvent is the body of POST /api/event.
type collectorEvent struct {
	Name     string         `json:"name"`
	Domain   string         `json:"domain"`
	URL      string         `json:"url"`
	Referrer string         `json:"referrer,omitempty"`
	Props    model.Props    `json:"props,omitempty"`
	Revenue  *model.Revenue `json:"revenue,omitempty"`
}

// RenderInline returns the script block calling window.plausible(label, options).
// The options object is JSON with HTML-sensitive characters escaped.
func RenderInline(ev model.TrackedEvent) (string, error) {
	opts, err := json.Marshal(ev.Options())
	if err != nil {
		return "", fmt.Errorf("encoding event options: %w", err)
	}
	call := fmt.Sprintf("window.plausible( '%s', %s )", escapeJSString(ev.Label), opts)
	return fmt.Sprintf(scriptWrapper, call), nil
}

var jsStringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"<", `\x3c`,
	">", `\x3e`,
)

func escapeJSString(s string) string {
	return jsStringEscaper.Replace(s)
}

// FilterProps keeps only the keys in allow. Unknown keys are dropped silently.
func FilterProps(props model.Props, allow []string) model.Props {
	out := make(model.Props, len(props))
	for _, k := range allow {
		if v, ok := props[k]; ok {
			out[k] = v
		}
	}
	return out
}
