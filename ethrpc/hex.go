package ethrpc

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

type BlockTag string

const (
	BlockLatest   BlockTag = "latest"
	BlockPending  BlockTag = "pending"
	BlockEarliest BlockTag = "earliest"
)

// HexQuantity is a JSON-RPC quantity such as "0x1a". Leading zeros are tolerated.
type HexQuantity string

func (h HexQuantity) Big() (*big.Int, error) {
	s := strings.TrimSpace(string(h))
	if s == "" {
		return nil, errors.New("empty hex quantity")
	}
	s = Strip0x(s)
	if s == "" {
		return big.NewInt(0), nil
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return nil, errors.Errorf("invalid hex quantity: %q", string(h))
	}
	return n, nil
}

func (h HexQuantity) Uint64() (uint64, error) {
	n, err := h.Big()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, errors.Errorf("hex quantity out of range: %q", string(h))
	}
	return n.Uint64(), nil
}

func BigToHexQuantity(n *big.Int) string {
	if n == nil || n.Sign() == 0 {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

func Strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
