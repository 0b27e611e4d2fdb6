package proxy

import (
	"strings"

	"plausible-bridge/internal/settings"
)

// DefaultHost is the hosted collector and script origin.
const DefaultHost = "https://plausible.io"

// UpstreamHost returns the analytics origin: the self-hosted domain when one
// is configured, the hosted service otherwise.
func UpstreamHost(s settings.Settings) string {
	if d := strings.TrimSpace(s.SelfHostedDomain); d != "" {
		d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
		return "https://" + strings.TrimSuffix(d, "/")
	}
	return DefaultHost
}

// CollectorURL is the upstream event endpoint.
func CollectorURL(s settings.Settings) string {
	return UpstreamHost(s) + "/api/event"
}

// DataAPIURL is the event endpoint the browser script posts to.
//
// With the proxy enabled it is the site's own REST route,
// <site>/index.php?rest_route=/<ns>/v1/<base>/<endpoint>. Otherwise it is
// the collector.
func DataAPIURL(s settings.Settings, siteURL string, res Resources) string {
	if s.ProxyEnabled && res.Valid() {
		return strings.TrimSuffix(siteURL, "/") + "/index.php?rest_route=" + res.EndpointPath()
	}
	return CollectorURL(s)
}
