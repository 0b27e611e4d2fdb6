// Package reconcile computes the delta between two settings snapshots and
// plans which cached remote goals have to go. It performs no I/O; the
// provisioning reconciler executes the plans.
package reconcile

import (
	"slices"

	"plausible-bridge/internal/catalog"
	"plausible-bridge/internal/model"
)

// FeatureDiff describes how the enabled enhanced measurements changed.
type FeatureDiff struct {
	Enabled  []catalog.Feature // In new but not old
	Disabled []catalog.Feature // In old but not new
}

// IsEmpty returns true if no feature was toggled.
func (d *FeatureDiff) IsEmpty() bool {
	return len(d.Enabled) == 0 && len(d.Disabled) == 0
}

// WasDisabled reports whether f moved from on to off.
func (d *FeatureDiff) WasDisabled(f catalog.Feature) bool {
	return slices.Contains(d.Disabled, f)
}

// DiffFeatures computes the set difference in both directions. Output keeps
// the order of the input it was taken from; duplicates are ignored.
func DiffFeatures(old, desired []catalog.Feature) *FeatureDiff {
	diff := &FeatureDiff{}

	oldSet := make(map[catalog.Feature]bool, len(old))
	for _, f := range old {
		oldSet[f] = true
	}
	desiredSet := make(map[catalog.Feature]bool, len(desired))
	for _, f := range desired {
		desiredSet[f] = true
	}

	seen := make(map[catalog.Feature]bool)
	for _, f := range desired {
		if !oldSet[f] && !seen[f] {
			diff.Enabled = append(diff.Enabled, f)
			seen[f] = true
		}
	}
	for _, f := range old {
		if !desiredSet[f] && !seen[f] {
			diff.Disabled = append(diff.Disabled, f)
			seen[f] = true
		}
	}

	return diff
}

// GoalDeletion is one cached goal scheduled for removal.
type GoalDeletion struct {
	ID   int64
	Name string
}

// NameMatcher decides whether a cached goal display name is to be deleted.
type NameMatcher func(name string) bool

// PlanGoalDeletions lists the cached goals whose name matches, ordered by ID
// so that repeated runs issue deletes in the same order.
func PlanGoalDeletions(cache map[int64]string, match NameMatcher) []GoalDeletion {
	var plan []GoalDeletion
	for id, name := range cache {
		if match(name) {
			plan = append(plan, GoalDeletion{ID: id, Name: name})
		}
	}
	slices.SortFunc(plan, func(a, b GoalDeletion) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return plan
}

// MatchDisabledFeatures matches goals whose suffix-stripped name equals the
// catalog display name of one of the disabled features.
func MatchDisabledFeatures(disabled []catalog.Feature) NameMatcher {
	names := make(map[string]bool)
	for _, f := range disabled {
		if def, ok := catalog.MeasurementGoal(f); ok {
			names[def.DisplayName] = true
		}
	}
	return func(name string) bool {
		return names[catalog.StripCurrencySuffix(name)]
	}
}

// MatchCommerceGoals matches goals belonging to commerce events.
func MatchCommerceGoals() NameMatcher {
	return catalog.IsCommerceGoal
}

// MergeGoals records created goals in cache and returns how many IDs were new.
// Goals without an ID are ignored.
func MergeGoals(cache map[int64]string, goals []model.Goal) int {
	added := 0
	for _, g := range goals {
		if g.ID == 0 {
			continue
		}
		if _, exists := cache[g.ID]; !exists {
			added++
		}
		cache[g.ID] = g.DisplayName
	}
	return added
}

// UnionKeys concatenates key lists, dropping duplicates and empty keys.
func UnionKeys(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, k := range list {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
