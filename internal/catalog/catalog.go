// Package catalog maps enhanced measurement features and commerce events to
// the goals and custom properties they need on the analytics side.
package catalog

import (
	"regexp"
	"strings"

	"plausible-bridge/internal/model"
)

// Feature is an enhanced measurement key as stored in settings.
type Feature string

const (
	Feature404           Feature = "404"
	FeatureOutboundLinks Feature = "outbound-links"
	FeatureFileDownloads Feature = "file-downloads"
	FeatureSearch        Feature = "search"
	FeatureRevenue       Feature = "revenue"
	FeaturePageviewProps Feature = "pageview-props"
	FeatureTaggedEvents  Feature = "tagged-events"
	FeatureHashRouting   Feature = "hash-based-routing"
	FeatureCompatibility Feature = "compat"
)

// GoalDefinition describes the goal a feature provisions.
type GoalDefinition struct {
	Feature     Feature
	DisplayName string
	Kind        model.GoalKind
	Path        string // pageview goals only
}

// Request builds the API request for this goal.
// currency is only consulted for revenue goals.
func (d GoalDefinition) Request(currency string) model.GoalRequest {
	switch d.Kind {
	case model.GoalPageview:
		return model.PageviewGoal(d.Path)
	case model.GoalRevenue:
		return model.RevenueGoal(d.DisplayName, currency)
	default:
		return model.CustomEventGoal(d.DisplayName)
	}
}

// measurementGoals lists features that are backed by a single custom event goal.
// Order is the order goals are submitted in.
var measurementGoals = []GoalDefinition{
	{Feature: Feature404, DisplayName: "404", Kind: model.GoalCustomEvent},
	{Feature: FeatureOutboundLinks, DisplayName: "Outbound Link: Click", Kind: model.GoalCustomEvent},
	{Feature: FeatureFileDownloads, DisplayName: "File Download", Kind: model.GoalCustomEvent},
	{Feature: FeatureSearch, DisplayName: "WP Search Queries", Kind: model.GoalCustomEvent},
}

// MeasurementGoal returns the goal for a feature, if it has one.
func MeasurementGoal(f Feature) (GoalDefinition, bool) {
	for _, d := range measurementGoals {
		if d.Feature == f {
			return d, true
		}
	}
	return GoalDefinition{}, false
}

// MeasurementGoals returns all feature goals in submission order.
func MeasurementGoals() []GoalDefinition {
	out := make([]GoalDefinition, len(measurementGoals))
	copy(out, measurementGoals)
	return out
}

// FeatureForGoalName finds the feature whose goal carries the given remote
// display name. Currency suffixes appended by the API are ignored.
func FeatureForGoalName(name string) (Feature, bool) {
	name = StripCurrencySuffix(name)
	for _, d := range measurementGoals {
		if d.DisplayName == name {
			return d.Feature, true
		}
	}
	return "", false
}

// Custom property keys enabled per feature.
var (
	PageviewProperties = []string{"author", "category"}
	SearchProperties   = []string{"search_query", "result_count"}
)

// currencySuffix matches the " (USD)" suffix the API appends to revenue goal names.
var currencySuffix = regexp.MustCompile(` \([A-Z]*?\)`)

// StripCurrencySuffix turns "Woo Complete Purchase (USD)" into "Woo Complete Purchase".
func StripCurrencySuffix(name string) string {
	return strings.TrimSpace(currencySuffix.ReplaceAllString(name, ""))
}
