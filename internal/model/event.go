package model

// Props holds custom event properties. Values are scalars or nested Props.
type Props map[string]any

// Revenue attaches a monetary value to an event.
// Amount is preformatted (see FormatAmount) because the tracker sends it verbatim.
type Revenue struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// TrackedEvent is one analytics event ready for emission.
type TrackedEvent struct {
	Label   string   `json:"name"`
	Props   Props    `json:"props,omitempty"`
	Revenue *Revenue `json:"revenue,omitempty"`
	// Allow, when non-nil, lists the property keys kept on emission.
	Allow []string `json:"-"`
}

// Options returns the second argument of the browser call window.plausible(label, options).
func (e TrackedEvent) Options() map[string]any {
	opts := map[string]any{}
	if len(e.Props) > 0 {
		opts["props"] = e.Props
	}
	if e.Revenue != nil {
		opts["revenue"] = e.Revenue
	}
	return opts
}

// Origin describes the visitor request an event is attributed to.
// Proxied dispatch copies these onto the outbound request.
type Origin struct {
	URL          string `json:"url"`
	Referrer     string `json:"referrer,omitempty"`
	UserAgent    string `json:"user_agent"`
	ClientIP     string `json:"client_ip"`
	ForwardedFor string `json:"forwarded_for,omitempty"`
	Locale       string `json:"locale,omitempty"`
}
