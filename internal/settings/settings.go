// Package settings holds the plugin configuration snapshot and its persistence.
//
// Settings are stored as one JSON document under OptionSettings. The
// reconciler and the render paths receive immutable snapshots; the only way
// to change settings is Store.Update, which returns the (old, new) pair that
// drives provisioning.
package settings

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"plausible-bridge/internal/catalog"
)

// Option names in the key-value store.
const (
	OptionSettings       = "plausible_analytics_settings"
	OptionGoalIDs        = "plausible_analytics_enhanced_measurements_goal_ids"
	OptionProxyResources = "plausible_analytics_proxy_resources"
)

// Settings is the plugin configuration. Option names the bridge does not know
// are kept in Extra and written back unchanged.
type Settings struct {
	DomainName               string
	APIToken                 string
	EnhancedMeasurements     Measurements
	EnableAnalyticsDashboard bool
	ExcludedPages            string
	SharedLink               string
	ProxyEnabled             bool
	SelfHostedDomain         string
	Version                  string

	Extra map[string]json.RawMessage
}

// Enabled reports whether an enhanced measurement is on.
func (s Settings) Enabled(f catalog.Feature) bool {
	return s.EnhancedMeasurements.Has(f)
}

// Clone returns a deep copy so snapshots never share slices or maps.
func (s Settings) Clone() Settings {
	c := s
	if s.EnhancedMeasurements != nil {
		c.EnhancedMeasurements = append(Measurements(nil), s.EnhancedMeasurements...)
	}
	if s.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

var knownKeys = map[string]bool{
	"domain_name":                true,
	"api_token":                  true,
	"enhanced_measurements":      true,
	"enable_analytics_dashboard": true,
	"excluded_pages":             true,
	"shared_link":                true,
	"proxy_enabled":              true,
	"self_hosted_domain":         true,
	"version":                    true,
}

// MarshalJSON writes known fields and Extra into one flat object.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(knownKeys)+len(s.Extra))
	for k, v := range s.Extra {
		if !knownKeys[k] {
			out[k] = v
		}
	}
	measurements := s.EnhancedMeasurements
	if measurements == nil {
		measurements = Measurements{}
	}
	out["domain_name"] = s.DomainName
	out["api_token"] = s.APIToken
	out["enhanced_measurements"] = measurements
	out["enable_analytics_dashboard"] = s.EnableAnalyticsDashboard
	out["excluded_pages"] = s.ExcludedPages
	out["shared_link"] = s.SharedLink
	out["proxy_enabled"] = s.ProxyEnabled
	out["self_hosted_domain"] = s.SelfHostedDomain
	out["version"] = s.Version
	return json.Marshal(out)
}

// UnmarshalJSON accepts the option document as WordPress stores it:
// checkboxes may be "on"/"" strings as well as booleans.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Settings
	var err error
	if out.DomainName, err = decodeString(raw, "domain_name"); err != nil {
		return err
	}
	if out.APIToken, err = decodeString(raw, "api_token"); err != nil {
		return err
	}
	if out.ExcludedPages, err = decodeString(raw, "excluded_pages"); err != nil {
		return err
	}
	if out.SharedLink, err = decodeString(raw, "shared_link"); err != nil {
		return err
	}
	if out.SelfHostedDomain, err = decodeString(raw, "self_hosted_domain"); err != nil {
		return err
	}
	if out.Version, err = decodeString(raw, "version"); err != nil {
		return err
	}
	if out.EnableAnalyticsDashboard, err = decodeToggle(raw, "enable_analytics_dashboard"); err != nil {
		return err
	}
	if out.ProxyEnabled, err = decodeToggle(raw, "proxy_enabled"); err != nil {
		return err
	}
	if v, ok := raw["enhanced_measurements"]; ok {
		if err := json.Unmarshal(v, &out.EnhancedMeasurements); err != nil {
			return fmt.Errorf("enhanced_measurements: %w", err)
		}
	}

	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = v
	}

	*s = out
	return nil
}

func decodeString(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return strings.TrimSpace(s), nil
}

func decodeToggle(raw map[string]json.RawMessage, key string) (bool, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return false, fmt.Errorf("%s: expected boolean or string", key)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "off", "false":
		return false, nil
	default:
		return true, nil
	}
}

// Measurements is the ordered set of enabled enhanced measurement keys.
type Measurements []catalog.Feature

// Has reports whether f is in the set.
func (m Measurements) Has(f catalog.Feature) bool {
	for _, v := range m {
		if v == f {
			return true
		}
	}
	return false
}

// Without returns the members of m absent from other, in m's order.
func (m Measurements) Without(other Measurements) Measurements {
	var out Measurements
	for _, v := range m {
		if !other.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// UnmarshalJSON accepts a list, a checkbox map ({"404": "404", "search": ""})
// or a comma separated string. Empty entries are dropped and duplicates
// collapse to their first occurrence.
func (m *Measurements) UnmarshalJSON(data []byte) error {
	var values []string

	var list []string
	var form map[string]string
	var scalar string
	switch {
	case string(data) == "null":
	case json.Unmarshal(data, &list) == nil:
		values = list
	case json.Unmarshal(data, &form) == nil:
		for k, v := range form {
			if strings.TrimSpace(v) != "" {
				values = append(values, k)
			}
		}
		slices.Sort(values)
	case json.Unmarshal(data, &scalar) == nil:
		values = strings.Split(scalar, ",")
	default:
		return fmt.Errorf("unsupported enhanced measurements value %s", string(data))
	}

	out := Measurements{}
	for _, v := range values {
		f := catalog.Feature(strings.TrimSpace(v))
		if f == "" || out.Has(f) {
			continue
		}
		out = append(out, f)
	}
	*m = out
	return nil
}

// GoalIDCache maps remote goal IDs to their display names. It lists the
// remote goals this install created and has not deleted.
type GoalIDCache map[int64]string

// Clone returns an independent copy.
func (c GoalIDCache) Clone() GoalIDCache {
	out := make(GoalIDCache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// RedactedToken replaces the API token in settings shown to clients.
const RedactedToken = "********"

// Redacted returns a copy with the API token masked.
func (s Settings) Redacted() Settings {
	c := s.Clone()
	if c.APIToken != "" {
		c.APIToken = RedactedToken
	}
	return c
}

// Apply returns s with the option keys in patch overwritten. Keys absent from
// patch keep their value. The schema version cannot be patched and a redacted
// token leaves the stored token in place.
func (s Settings) Apply(patch map[string]json.RawMessage) (Settings, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Settings{}, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Settings{}, err
	}

	for k, v := range patch {
		switch k {
		case "version":
			continue
		case "api_token":
			var tok string
			if json.Unmarshal(v, &tok) == nil && tok == RedactedToken {
				continue
			}
		}
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return Settings{}, err
	}
	var out Settings
	if err := json.Unmarshal(merged, &out); err != nil {
		return Settings{}, err
	}
	return out, nil
}
