// Package script builds the tracking script tag: its attributes, the script
// variant filename and the URL it is loaded from.
package script

import (
	"html"
	"regexp"
	"strings"

	"plausible-bridge/internal/catalog"
	"plausible-bridge/internal/proxy"
	"plausible-bridge/internal/settings"
)

// Term is one taxonomy term attached to the rendered content item.
type Term struct {
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
}

// RequestContext describes the page being rendered.
type RequestContext struct {
	SingleContent bool   `json:"single_content"` // a single post, page or product
	Author        string `json:"author,omitempty"`
	Terms         []Term `json:"terms,omitempty"`
}

// Builder computes script attributes for one site.
type Builder struct {
	SiteURL   string
	Resources proxy.Resources
}

// Build returns the attribute string for the tracking script tag.
//
// It always starts with defer, data-domain, data-api and data-cfasync. The
// exclusion list follows when configured. With pageview properties enabled on
// a single content item, event-author and one event-<taxonomy> attribute per
// term are appended; multiple terms of a taxonomy repeat the attribute.
func (b Builder) Build(s settings.Settings, rc RequestContext) string {
	var sb strings.Builder
	sb.WriteString("defer data-domain='")
	sb.WriteString(attr(s.DomainName))
	sb.WriteString("' data-api='")
	sb.WriteString(attr(proxy.DataAPIURL(s, b.SiteURL, b.Resources)))
	sb.WriteString("' data-cfasync='false'")

	if s.ExcludedPages != "" {
		sb.WriteString(" data-exclude='")
		sb.WriteString(attr(s.ExcludedPages))
		sb.WriteString("'")
	}

	if s.Enabled(catalog.FeaturePageviewProps) && rc.SingleContent {
		if rc.Author != "" {
			sb.WriteString(" event-author='")
			sb.WriteString(attr(rc.Author))
			sb.WriteString("'")
		}
		for _, t := range rc.Terms {
			if t.Taxonomy == "" || t.Name == "" {
				continue
			}
			sb.WriteString(" event-")
			sb.WriteString(attrName(t.Taxonomy))
			sb.WriteString("='")
			sb.WriteString(attr(t.Name))
			sb.WriteString("'")
		}
	}

	return sb.String()
}

func attr(v string) string {
	return html.EscapeString(v)
}

var unsafeAttrName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// attrName keeps taxonomy slugs usable as attribute names.
func attrName(v string) string {
	return unsafeAttrName.ReplaceAllString(v, "-")
}

var scriptID = regexp.MustCompile(`\sid=(['"])plausible-analytics-js(['"])`)

// RewriteTag renames the enqueued script id to "plausible" and inserts attrs
// before the src attribute. Tags without src are returned with only the id rewritten.
func RewriteTag(tag, attrs string) string {
	tag = scriptID.ReplaceAllString(tag, " id=${1}plausible${2}")
	return strings.Replace(tag, " src", " "+attrs+" src", 1)
}

// Filename returns the script variant for the enabled features, e.g.
// "plausible.outbound-links.file-downloads".
func Filename(s settings.Settings) string {
	parts := []string{"plausible"}
	if s.ExcludedPages != "" {
		parts = append(parts, "exclusions")
	}
	if s.Enabled(catalog.FeatureOutboundLinks) {
		parts = append(parts, "outbound-links")
	}
	if s.Enabled(catalog.FeatureFileDownloads) {
		parts = append(parts, "file-downloads")
	}
	// Commerce events rely on tagged form classes.
	if s.Enabled(catalog.FeatureTaggedEvents) || s.Enabled(catalog.FeatureRevenue) {
		parts = append(parts, "tagged-events")
	}
	if s.Enabled(catalog.FeaturePageviewProps) {
		parts = append(parts, "pageview-props")
	}
	if s.Enabled(catalog.FeatureRevenue) {
		parts = append(parts, "revenue")
	}
	if s.Enabled(catalog.FeatureHashRouting) {
		parts = append(parts, "hash")
	}
	if s.Enabled(catalog.FeatureCompatibility) {
		parts = append(parts, "compat")
	}
	// 404 and search pageviews are triggered by the page itself.
	if s.Enabled(catalog.Feature404) || s.Enabled(catalog.FeatureSearch) {
		parts = append(parts, "manual")
	}
	return strings.Join(parts, ".")
}

// UpstreamScriptURL is where the script variant is fetched from.
func UpstreamScriptURL(s settings.Settings) string {
	return proxy.UpstreamHost(s) + "/js/" + Filename(s) + ".js"
}

// ScriptURL is the src of the tracking script tag: the proxied alias on the
// site when proxying, the upstream variant otherwise.
func (b Builder) ScriptURL(s settings.Settings) string {
	if s.ProxyEnabled && b.Resources.Valid() {
		return strings.TrimSuffix(b.SiteURL, "/") + b.Resources.ScriptPath()
	}
	return UpstreamScriptURL(s)
}
