package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReturnWordCode is runtime bytecode that answers every call with word:
// PUSH32 word, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0, RETURN.
func ReturnWordCode(word common.Hash) []byte {
	code := make([]byte, 0, 41)
	code = append(code, 0x7f)
	code = append(code, word.Bytes()...)
	return append(code, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3)
}

// ReturnAddressCode answers every call with addr ABI-encoded as a word.
func ReturnAddressCode(addr common.Address) []byte {
	return ReturnWordCode(common.BytesToHash(addr.Bytes()))
}

// Alloc builds a genesis allocation one account at a time.
type Alloc types.GenesisAlloc

func (a Alloc) Storage(account common.Address, slot, value common.Hash) Alloc {
	acc := a[account]
	if acc.Storage == nil {
		acc.Storage = make(map[common.Hash]common.Hash)
	}
	acc.Storage[slot] = value
	if len(acc.Code) == 0 {
		// STOP, so the account is never treated as empty.
		acc.Code = []byte{0x00}
	}
	a[account] = acc
	return a
}

func (a Alloc) Code(account common.Address, code []byte) Alloc {
	acc := a[account]
	acc.Code = code
	a[account] = acc
	return a
}

func (a Alloc) Genesis() types.GenesisAlloc {
	return types.GenesisAlloc(a)
}
