package settings

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"

	"plausible-bridge/internal/catalog"
)

// CurrentVersion is the settings schema version written by this release.
const CurrentVersion = "2.1.0"

var knownFeatures = []catalog.Feature{
	catalog.Feature404,
	catalog.FeatureOutboundLinks,
	catalog.FeatureFileDownloads,
	catalog.FeatureSearch,
	catalog.FeatureRevenue,
	catalog.FeaturePageviewProps,
	catalog.FeatureTaggedEvents,
	catalog.FeatureHashRouting,
	catalog.FeatureCompatibility,
}

// canonicalVersion turns "2.0.3" into "v2.0.3". Invalid versions become "".
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// Migrate brings a snapshot up to CurrentVersion and reports whether it changed.
//
// Before 2.1.0 enhanced measurements could hold the checkbox placeholder "on"
// instead of feature keys; unknown keys are dropped.
func Migrate(s *Settings) bool {
	from := canonicalVersion(s.Version)
	if from != "" && semver.Compare(from, "v"+CurrentVersion) >= 0 {
		return false
	}

	if from == "" || semver.Compare(from, "v2.1.0") < 0 {
		kept := Measurements{}
		for _, f := range s.EnhancedMeasurements {
			for _, known := range knownFeatures {
				if f == known {
					kept = append(kept, f)
					break
				}
			}
		}
		s.EnhancedMeasurements = kept
	}

	s.Version = CurrentVersion
	return true
}

// Upgrade migrates the stored settings in place. It is run once at startup.
func Upgrade(ctx context.Context, store Store, logger *slog.Logger) error {
	current, err := store.Get(ctx)
	if err != nil {
		return err
	}
	probe := current.Clone()
	if !Migrate(&probe) {
		return nil
	}

	_, next, err := store.Update(ctx, func(s *Settings) { Migrate(s) })
	if err != nil {
		return err
	}
	logger.Info("settings upgraded",
		slog.String("from", current.Version),
		slog.String("to", next.Version),
	)
	return nil
}
