package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"plausible-bridge/internal/model"
	"plausible-bridge/internal/settings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRandomName(t *testing.T) {
	re := regexp.MustCompile(`^[a-z0-9]{8}$`)
	for i := 0; i < 20; i++ {
		name, err := RandomName(8)
		if err != nil {
			t.Fatalf("RandomName: %v", err)
		}
		if !re.MatchString(name) {
			t.Errorf("RandomName(8) = %q", name)
		}
	}
}

func TestLoadResources_CreatedOnce(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore(settings.Settings{})

	first, err := LoadResources(ctx, store)
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}
	if len(first.Namespace) != 6 || len(first.Base) != 4 || len(first.Endpoint) != 8 || len(first.FileAlias) != 8 {
		t.Errorf("resources = %+v", first)
	}

	second, err := LoadResources(ctx, store)
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}
	if first != second {
		t.Errorf("second load = %+v, want %+v", second, first)
	}
}

func TestDataAPIURL(t *testing.T) {
	res := Resources{Namespace: "abcdef", Base: "ghij", Endpoint: "klmnopqr", FileAlias: "stuvwxyz"}

	tests := []struct {
		name string
		s    settings.Settings
		want string
	}{
		{"default", settings.Settings{}, "https://plausible.io/api/event"},
		{"self hosted", settings.Settings{SelfHostedDomain: "stats.example.org"}, "https://stats.example.org/api/event"},
		{"self hosted with scheme", settings.Settings{SelfHostedDomain: "https://stats.example.org/"}, "https://stats.example.org/api/event"},
		{"proxy", settings.Settings{ProxyEnabled: true}, "https://example.org/index.php?rest_route=/abcdef/v1/ghij/klmnopqr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DataAPIURL(tt.s, "https://example.org/", res); got != tt.want {
				t.Errorf("DataAPIURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForwarder_Send(t *testing.T) {
	var gotUA, gotXFF, gotCT string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotXFF = r.Header.Get("X-Forwarded-For")
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	f := NewForwarder(nil, testLogger())
	err := f.Send(context.Background(), server.URL+"/api/event", []byte(`{"name":"Woo Add to Cart"}`), model.Origin{
		UserAgent:    "Mozilla/5.0",
		ClientIP:     "203.0.113.7",
		ForwardedFor: "198.51.100.1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotUA != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotXFF != "198.51.100.1, 203.0.113.7" {
		t.Errorf("X-Forwarded-For = %q", gotXFF)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if string(gotBody) != `{"name":"Woo Add to Cart"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestForwarder_SendUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewForwarder(nil, testLogger()).Send(context.Background(), server.URL, []byte(`{}`), model.Origin{})
	if !errors.Is(err, model.ErrRemoteUnavailable) {
		t.Errorf("Send error = %v, want ErrRemoteUnavailable", err)
	}
}

func TestScriptCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte("!function(){}()"))
	}))
	defer server.Close()

	cache := NewScriptCache(nil, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		s, err := cache.Get(context.Background(), server.URL+"/js/plausible.js")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(s.Body) != "!function(){}()" {
			t.Errorf("Body = %q", s.Body)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}

	now = now.Add(2 * time.Hour)
	if _, err := cache.Get(context.Background(), server.URL+"/js/plausible.js"); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("upstream hits after expiry = %d, want 2", hits.Load())
	}
}

func TestScriptCache_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewScriptCache(nil, time.Minute).Get(context.Background(), server.URL+"/js/missing.js")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}
