// Package transport builds the HTTP clients used for outbound calls to the
// analytics API, the event collector and the shop.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Fingerprint selects the TLS client hello presented to upstream servers.
type Fingerprint string

const (
	// FingerprintStandard uses Go's crypto/tls.
	FingerprintStandard Fingerprint = "standard"

	// FingerprintChrome presents Chrome's client hello through uTLS. Some
	// shop hosts sit behind CDNs that rate limit Go's JA3 fingerprint.
	FingerprintChrome Fingerprint = "chrome"
)

// ParseFingerprint maps a config value to a Fingerprint. Empty means standard.
func ParseFingerprint(s string) (Fingerprint, error) {
	switch Fingerprint(strings.ToLower(strings.TrimSpace(s))) {
	case "", FingerprintStandard:
		return FingerprintStandard, nil
	case FingerprintChrome:
		return FingerprintChrome, nil
	default:
		return "", fmt.Errorf("unknown TLS fingerprint %q", s)
	}
}

// NewClient returns an http.Client with the given fingerprint and timeout.
func NewClient(fp Fingerprint, timeout time.Duration) *http.Client {
	var rt http.RoundTripper
	if fp == FingerprintChrome {
		rt = NewChromeTransport(timeout)
	} else {
		rt = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout: timeout,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint. HTTP/2 is used when ALPN negotiates it, HTTP/1.1 otherwise.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1Transport := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &chromeTransport{h2: h2Transport, h1: h1Transport}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip sends plain HTTP over HTTP/1.1 and tries HTTP/2 first for HTTPS.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
