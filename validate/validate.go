// Package validate holds the pure well-formedness checks applied to RPC and
// explorer URLs before they enter a network record or a custom endpoint list.
package validate

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrEmptyURL          = errors.New("rpc url is empty")
	ErrUnsupportedScheme = errors.New("rpc url must start with http:// or https://")
	ErrMalformedURL      = errors.New("invalid url format")
	ErrEmptyName         = errors.New("rpc name is empty")
)

// RPCURL trims and checks an RPC URL, returning the cleaned value.
func RPCURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrEmptyURL
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", errors.Wrapf(ErrUnsupportedScheme, "got %q", u)
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "", errors.Wrapf(ErrMalformedURL, "%q", u)
	}
	return u, nil
}

// IsHTTP reports whether s would be accepted by RPCURL.
func IsHTTP(s string) bool {
	_, err := RPCURL(s)
	return err == nil
}

// HasHTTPPrefix is the loose check used on registry data: anything starting with "http".
func HasHTTPPrefix(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "http")
}

func IsWebSocket(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
}

// CleanRPCURLs keeps the valid entries of urls in order and collects one error per rejected index.
func CleanRPCURLs(urls []string) ([]string, []error) {
	out := make([]string, 0, len(urls))
	var errs []error
	for i, raw := range urls {
		u, err := RPCURL(raw)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "index %d", i))
			continue
		}
		out = append(out, u)
	}
	return out, errs
}

// RPCDescriptor validates a user supplied endpoint (url + display name).
// An empty name is allowed when allowEmptyName is set; callers then derive one.
func RPCDescriptor(rawURL, name string, allowEmptyName bool) (string, error) {
	u, err := RPCURL(rawURL)
	if err != nil {
		return "", err
	}
	if !allowEmptyName && strings.TrimSpace(name) == "" {
		return "", ErrEmptyName
	}
	return u, nil
}

// ExplorerURL accepts http(s) explorer links; anything else is rejected.
func ExplorerURL(raw string) (string, error) {
	return RPCURL(raw)
}

// SameURL compares two endpoint URLs ignoring surrounding space, case and a trailing slash.
func SameURL(a, b string) bool {
	return normalizeForCompare(a) == normalizeForCompare(b)
}

func normalizeForCompare(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), "/")
}
