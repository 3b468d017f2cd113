package proxy

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	methodImplementation    = "implementation"
	methodTarget            = "target"
	methodGetImplementation = "getImplementation"
	methodProxiableUUID     = "proxiableUUID"
)

// Tried in order when the implementation slot is empty.
var implementationGetters = []string{methodImplementation, methodTarget, methodGetImplementation}

const gettersJSON = `[
	{"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"target","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getImplementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"proxiableUUID","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

var gettersABI = mustParseABI(gettersJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func callMethod(ctx context.Context, r Reader, to common.Address, method string) (any, bool) {
	data, err := gettersABI.Pack(method)
	if err != nil {
		return nil, false
	}
	out, err := r.CallContract(ctx, to, data)
	if err != nil || len(out) == 0 {
		return nil, false
	}
	vals, err := gettersABI.Unpack(method, out)
	if err != nil || len(vals) != 1 {
		return nil, false
	}
	return vals[0], true
}

// callAddress reports false for reverts, empty returns and the zero address.
func callAddress(ctx context.Context, r Reader, to common.Address, method string) (common.Address, bool) {
	v, ok := callMethod(ctx, r, to, method)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

func callBytes32(ctx context.Context, r Reader, to common.Address, method string) ([32]byte, bool) {
	v, ok := callMethod(ctx, r, to, method)
	if !ok {
		return [32]byte{}, false
	}
	word, ok := v.([32]byte)
	return word, ok
}
