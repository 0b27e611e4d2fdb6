// Package hostinfo identifies the host installation calling the bridge.
// Hosts describe themselves in the Plausible-Host request header, an RFC 8941
// dictionary such as:
//
//	Plausible-Host: site="example.org", version="2.1.0", locale="de_DE"
package hostinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// Header is the request header carrying the host description.
const Header = "Plausible-Host"

// Host describes the calling installation.
type Host struct {
	Site    string // Site URL or domain
	Version string // Host plugin version, e.g. "2.1.0"
	Locale  string // Site locale, e.g. "de_DE"; may be empty
}

// Parse decodes a Plausible-Host header value. site and version are
// required; locale is optional. Unknown keys and parameters are ignored.
func Parse(header string) (Host, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Host{}, errors.New("empty " + Header + " header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return Host{}, fmt.Errorf("invalid %s header: %w", Header, err)
	}

	var h Host
	if h.Site, err = stringMember(dict, "site", true); err != nil {
		return Host{}, err
	}
	if h.Version, err = stringMember(dict, "version", true); err != nil {
		return Host{}, err
	}
	if h.Locale, err = stringMember(dict, "locale", false); err != nil {
		return Host{}, err
	}
	return h, nil
}

func stringMember(dict *httpsfv.Dictionary, key string, required bool) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		if required {
			return "", fmt.Errorf("%s key not found in %s header", key, Header)
		}
		return "", nil
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}

	s, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// AtLeast reports whether the host version is min or newer. Versions that are
// not semver-like never satisfy a minimum.
func (h Host) AtLeast(min string) bool {
	if min == "" {
		return true
	}
	hv, mv := normalizeVersion(h.Version), normalizeVersion(min)
	if !semver.IsValid(hv) || !semver.IsValid(mv) {
		return false
	}
	return semver.Compare(hv, mv) >= 0
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
func normalizeVersion(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
