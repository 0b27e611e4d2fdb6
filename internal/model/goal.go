// Package model defines the data structures shared by the provisioning,
// tracking and proxy layers: goal and funnel requests, tracked events,
// revenue amounts and error types.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GoalKind discriminates the three goal variants the analytics API accepts.
type GoalKind string

const (
	GoalCustomEvent GoalKind = "CustomEvent"
	GoalPageview    GoalKind = "Pageview"
	GoalRevenue     GoalKind = "Revenue"
)

// GoalType returns the wire name, e.g. "Goal.CustomEvent".
func (k GoalKind) GoalType() string {
	return "Goal." + string(k)
}

// ParseGoalType converts a wire name ("Goal.Revenue") back to a GoalKind.
func ParseGoalType(s string) (GoalKind, error) {
	kind := GoalKind(strings.TrimPrefix(s, "Goal."))
	switch kind {
	case GoalCustomEvent, GoalPageview, GoalRevenue:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown goal type %q", s)
	}
}

// GoalRequest is a request to get-or-create one goal.
// The zero value is invalid; build one with CustomEventGoal, PageviewGoal or
// RevenueGoal so that only the fields valid for the variant are set.
type GoalRequest struct {
	kind      GoalKind
	eventName string
	path      string
	currency  string
}

// CustomEventGoal builds a goal matched by custom event name.
func CustomEventGoal(eventName string) GoalRequest {
	return GoalRequest{kind: GoalCustomEvent, eventName: eventName}
}

// PageviewGoal builds a goal matched by page path pattern, e.g. "/product*".
func PageviewGoal(path string) GoalRequest {
	return GoalRequest{kind: GoalPageview, path: path}
}

// RevenueGoal builds a custom event goal that carries monetary value.
// Currency is an ISO 4217 code.
func RevenueGoal(eventName, currency string) GoalRequest {
	return GoalRequest{kind: GoalRevenue, eventName: eventName, currency: currency}
}

// Kind returns the goal variant.
func (g GoalRequest) Kind() GoalKind { return g.kind }

// EventName returns the event name; empty for pageview goals.
func (g GoalRequest) EventName() string { return g.eventName }

// Path returns the page path; empty unless the goal is a pageview goal.
func (g GoalRequest) Path() string { return g.path }

// Currency returns the currency; empty unless the goal is a revenue goal.
func (g GoalRequest) Currency() string { return g.currency }

// Validate checks the variant invariants.
func (g GoalRequest) Validate() error {
	switch g.kind {
	case GoalCustomEvent:
		if g.eventName == "" {
			return NewValidationError("goal", "custom event goal requires event_name")
		}
	case GoalPageview:
		if g.path == "" {
			return NewValidationError("goal", "pageview goal requires path")
		}
	case GoalRevenue:
		if g.eventName == "" {
			return NewValidationError("goal", "revenue goal requires event_name")
		}
		if g.currency == "" {
			return NewValidationError("goal", "revenue goal requires currency")
		}
	default:
		return NewValidationError("goal", "unknown goal type")
	}
	return nil
}

// goalRequestWire is the API envelope: {"goal_type": "...", "goal": {...}}.
type goalRequestWire struct {
	GoalType string          `json:"goal_type"`
	Goal     goalRequestBody `json:"goal"`
}

type goalRequestBody struct {
	EventName string `json:"event_name,omitempty"`
	Path      string `json:"path,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// MarshalJSON encodes the request with exactly the fields of its variant.
func (g GoalRequest) MarshalJSON() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(goalRequestWire{
		GoalType: g.kind.GoalType(),
		Goal: goalRequestBody{
			EventName: g.eventName,
			Path:      g.path,
			Currency:  g.currency,
		},
	})
}

// UnmarshalJSON decodes a goal request, rejecting fields invalid for the variant.
func (g *GoalRequest) UnmarshalJSON(data []byte) error {
	var wire goalRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	kind, err := ParseGoalType(wire.GoalType)
	if err != nil {
		return err
	}
	switch kind {
	case GoalCustomEvent:
		*g = CustomEventGoal(wire.Goal.EventName)
	case GoalPageview:
		*g = PageviewGoal(wire.Goal.Path)
	case GoalRevenue:
		*g = RevenueGoal(wire.Goal.EventName, wire.Goal.Currency)
	}
	return g.Validate()
}

// Goal is a goal as reported back by the analytics API.
type Goal struct {
	ID          int64    `json:"id"`
	DisplayName string   `json:"display_name"`
	Kind        GoalKind `json:"kind"`
	EventName   string   `json:"event_name,omitempty"`
	Path        string   `json:"path,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}

// FunnelRequest asks for a funnel over ordered goal steps.
// Missing step goals are created by the API.
type FunnelRequest struct {
	Name  string        `json:"name"`
	Steps []GoalRequest `json:"steps"`
}

// Funnel is a funnel as reported back by the analytics API, with resolved step goals.
type Funnel struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Steps []Goal `json:"steps"`
}

// SharedLink is a public dashboard link.
type SharedLink struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Href              string `json:"href"`
	PasswordProtected bool   `json:"password_protected"`
}

// Capabilities describes what the API token is allowed to do.
type Capabilities struct {
	Authorized bool            `json:"authorized"`
	DataDomain string          `json:"data_domain"`
	Features   map[string]bool `json:"features"`
}
