// Package proxy routes the tracking script and event beacons through the
// site's own domain. Endpoint names are random per install so that filter
// lists cannot target them.
package proxy

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"plausible-bridge/internal/settings"
)

// Resources holds the randomized names of the proxy endpoints.
type Resources struct {
	Namespace string `json:"namespace"`
	Base      string `json:"base"`
	Endpoint  string `json:"endpoint"`
	FileAlias string `json:"file_alias"`
}

// Valid reports whether every name is set.
func (r Resources) Valid() bool {
	return r.Namespace != "" && r.Base != "" && r.Endpoint != "" && r.FileAlias != ""
}

// EndpointPath is the route the beacon is posted to: /{namespace}/v1/{base}/{endpoint}.
func (r Resources) EndpointPath() string {
	return "/" + r.Namespace + "/v1/" + r.Base + "/" + r.Endpoint
}

// ScriptPath is the route the proxied script is served from.
func (r Resources) ScriptPath() string {
	return "/js/" + r.FileAlias + ".js"
}

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomName returns n random lowercase alphanumeric characters.
func RandomName(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating proxy name: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// NewResources generates a fresh set of names.
func NewResources() (Resources, error) {
	var r Resources
	var err error
	if r.Namespace, err = RandomName(6); err != nil {
		return Resources{}, err
	}
	if r.Base, err = RandomName(4); err != nil {
		return Resources{}, err
	}
	if r.Endpoint, err = RandomName(8); err != nil {
		return Resources{}, err
	}
	if r.FileAlias, err = RandomName(8); err != nil {
		return Resources{}, err
	}
	return r, nil
}

// LoadResources returns the stored names, creating and storing them on first use.
func LoadResources(ctx context.Context, store settings.Store) (Resources, error) {
	var r Resources
	ok, err := store.Option(ctx, settings.OptionProxyResources, &r)
	if err != nil {
		return Resources{}, err
	}
	if ok && r.Valid() {
		return r, nil
	}

	r, err = NewResources()
	if err != nil {
		return Resources{}, err
	}
	if err := store.SetOption(ctx, settings.OptionProxyResources, r); err != nil {
		return Resources{}, err
	}
	return r, nil
}
