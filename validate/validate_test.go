package validate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRPCURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "https", in: "https://rpc.ankr.com/eth", want: "https://rpc.ankr.com/eth"},
		{name: "trimmed", in: "  http://localhost:8545 ", want: "http://localhost:8545"},
		{name: "empty", in: "   ", wantErr: ErrEmptyURL},
		{name: "websocket", in: "wss://eth.example.org", wantErr: ErrUnsupportedScheme},
		{name: "no host", in: "https://", wantErr: ErrMalformedURL},
		{name: "garbage", in: "http://[::1", wantErr: ErrMalformedURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RPCURL(tt.in)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanRPCURLs(t *testing.T) {
	got, errs := CleanRPCURLs([]string{"https://a.io", "ws://b.io", "", "http://c.io"})
	assert.Equal(t, []string{"https://a.io", "http://c.io"}, got)
	assert.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "index 1")
}

func TestRPCDescriptor(t *testing.T) {
	_, err := RPCDescriptor("https://a.io", "", false)
	assert.ErrorIs(t, err, ErrEmptyName)

	u, err := RPCDescriptor("https://a.io", "", true)
	assert.NoError(t, err)
	assert.Equal(t, "https://a.io", u)
}

func TestURLHelpers(t *testing.T) {
	assert.True(t, IsWebSocket("WSS://x.io"))
	assert.False(t, IsWebSocket("https://x.io"))
	assert.True(t, HasHTTPPrefix("httpfoo"))
	assert.False(t, IsHTTP("httpfoo"))
	assert.True(t, SameURL("https://A.io/", "https://a.io"))
}
