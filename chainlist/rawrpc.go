package chainlist

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/quantumauth-io/quantum-chain-config/validate"
)

type RPCKind uint8

const (
	RPCKindUnknown RPCKind = iota
	RPCKindString
	RPCKindObject
)

func (k RPCKind) String() string {
	switch k {
	case RPCKindString:
		return "string"
	case RPCKindObject:
		return "object"
	default:
		return "unknown"
	}
}

// RawRPC is one entry of a registry "rpc" array, which is either a bare URL
// string or an object carrying a url field. It only lives at the parse boundary;
// records store the normalized []string.
type RawRPC struct {
	Kind     RPCKind
	URL      string
	Tracking string
}

func rawRPCFromResult(v gjson.Result) RawRPC {
	switch {
	case v.Type == gjson.String:
		return RawRPC{Kind: RPCKindString, URL: v.Str}
	case v.IsObject():
		u := v.Get("url")
		if u.Type != gjson.String {
			return RawRPC{Kind: RPCKindUnknown}
		}
		return RawRPC{Kind: RPCKindObject, URL: u.Str, Tracking: v.Get("tracking").String()}
	default:
		return RawRPC{Kind: RPCKindUnknown}
	}
}

func (r *RawRPC) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return errors.New("invalid rpc entry")
	}
	*r = rawRPCFromResult(gjson.ParseBytes(b))
	return nil
}

// HTTPURL returns the URL when the entry is usable over HTTP(S).
func (r RawRPC) HTTPURL() (string, bool) {
	if r.Kind == RPCKindUnknown || !validate.HasHTTPPrefix(r.URL) {
		return "", false
	}
	return r.URL, true
}

// NormalizeRPCs flattens entries into the HTTP(S) URL list, dropping everything else.
func NormalizeRPCs(entries []RawRPC) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if u, ok := e.HTTPURL(); ok {
			out = append(out, u)
		}
	}
	return out
}
