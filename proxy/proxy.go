// Package proxy recognises upgradeable proxy contracts by their EIP-1967
// storage slots and, failing that, by common implementation getters.
package proxy

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quantumauth-io/quantum-chain-config/ethrpc"
	"github.com/quantumauth-io/quantum-chain-config/metrics"
)

var (
	ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	AdminSlot          = common.HexToHash("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103")
	BeaconSlot         = common.HexToHash("0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50")
)

var (
	ErrProxyDetection = errors.New("proxy detection failed")
	ErrNoEndpoint     = errors.New("no rpc endpoint available")
)

type Type string

const (
	TypeNone        Type = ""
	TypeEIP1967     Type = "EIP1967"
	TypeTransparent Type = "Transparent"
	TypeUUPS        Type = "UUPS"
	TypeCustom      Type = "Custom"
)

const DefaultCallTimeout = 10 * time.Second

// Info is the result of one detection. It is never merged with earlier
// results for the same address.
type Info struct {
	Address        common.Address  `json:"address"`
	IsProxy        bool            `json:"isProxy"`
	Type           Type            `json:"proxyType,omitempty"`
	Implementation *common.Address `json:"implementationAddress,omitempty"`
	Admin          *common.Address `json:"adminAddress,omitempty"`
	Beacon         *common.Address `json:"beaconAddress,omitempty"`
	RPCURL         string          `json:"rpcUrl,omitempty"`
	Err            error           `json:"-"`
}

// Reader is the chain access the detector needs. ethrpc.Client and the evm
// clients satisfy it.
type Reader interface {
	StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

type DialFunc func(rpcURL string) Reader

func HTTPDialer(d *ethrpc.Dialer) DialFunc {
	return func(rpcURL string) Reader { return d.Dial(rpcURL) }
}

// Scope is the network and endpoints a detection runs against. Selected is
// tried first, then the rest of RPCs, then Defaults.
type Scope struct {
	ChainID  int64
	Selected string
	RPCs     []string
	Defaults []string
}

// Candidates returns the endpoints in try order without duplicates.
func (s Scope) Candidates() []string {
	seen := make(map[string]struct{}, len(s.RPCs)+len(s.Defaults)+1)
	out := make([]string, 0, len(s.RPCs)+len(s.Defaults)+1)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	add(s.Selected)
	for _, u := range s.RPCs {
		add(u)
	}
	for _, u := range s.Defaults {
		add(u)
	}
	return out
}

// ScopeFunc resolves the current scope. On error it may still return the
// chain id it resolved so far.
type ScopeFunc func(ctx context.Context) (Scope, error)

type Option func(*Detector)

// WithCallTimeout bounds every slot read and view call on its own.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

type Detector struct {
	scope       ScopeFunc
	dial        DialFunc
	recorder    metrics.Recorder
	logger      *zap.Logger
	callTimeout time.Duration

	mu        sync.Mutex
	lastKnown map[string]bool
}

func NewDetector(scope ScopeFunc, dial DialFunc, recorder metrics.Recorder, logger *zap.Logger, opts ...Option) *Detector {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{
		scope:       scope,
		dial:        dial,
		recorder:    recorder,
		logger:      logger,
		callTimeout: DefaultCallTimeout,
		lastKnown:   make(map[string]bool),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DetectProxy inspects address on the currently selected network.
func (d *Detector) DetectProxy(ctx context.Context, address common.Address) Info {
	scope, err := d.scope(ctx)
	if err != nil {
		return d.failed(scope.ChainID, address, errors.Wrap(ErrProxyDetection, err.Error()))
	}
	return d.Detect(ctx, scope, address)
}

// Detect inspects address against an explicit scope.
func (d *Detector) Detect(ctx context.Context, scope Scope, address common.Address) Info {
	candidates := scope.Candidates()
	if len(candidates) == 0 {
		return d.failed(scope.ChainID, address, errors.Wrapf(ErrProxyDetection, "%s: %v", address.Hex(), ErrNoEndpoint))
	}

	var lastErr error
	for _, rpcURL := range candidates {
		reader := timedReader{Reader: d.dial(rpcURL), timeout: d.callTimeout}
		s, err := readSlots(ctx, reader, address)
		if err != nil {
			d.logger.Warn("proxy slot read failed",
				zap.Int64("chainId", scope.ChainID),
				zap.String("rpc", rpcURL),
				zap.String("address", address.Hex()),
				zap.Error(err))
			lastErr = err
			continue
		}

		info := classify(ctx, reader, address, s)
		info.RPCURL = rpcURL
		d.remember(scope.ChainID, address, info.IsProxy)
		d.recorder.ObserveProxyDetection(scope.ChainID, resultLabel(info.Type))
		return info
	}

	err := errors.Wrapf(ErrProxyDetection, "%s: %d endpoints failed, last: %v", address.Hex(), len(candidates), lastErr)
	return d.failed(scope.ChainID, address, err)
}

func (d *Detector) failed(chainID int64, address common.Address, err error) Info {
	d.recorder.ObserveProxyDetection(chainID, "error")
	d.logger.Error("proxy detection failed", zap.String("address", address.Hex()), zap.Error(err))
	return Info{
		Address: address,
		IsProxy: d.known(chainID, address),
		Err:     err,
	}
}

func knownKey(chainID int64, address common.Address) string {
	return strconv.FormatInt(chainID, 10) + ":" + address.Hex()
}

func (d *Detector) remember(chainID int64, address common.Address, isProxy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastKnown[knownKey(chainID, address)] = isProxy
}

func (d *Detector) known(chainID int64, address common.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastKnown[knownKey(chainID, address)]
}

type timedReader struct {
	Reader
	timeout time.Duration
}

func (r timedReader) StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.Reader.StorageAt(ctx, account, slot)
}

func (r timedReader) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.Reader.CallContract(ctx, to, data)
}

type slots struct {
	implementation common.Hash
	admin          common.Hash
	beacon         common.Hash
}

func readSlots(ctx context.Context, r Reader, address common.Address) (slots, error) {
	var s slots
	for _, read := range []struct {
		slot common.Hash
		into *common.Hash
	}{
		{ImplementationSlot, &s.implementation},
		{AdminSlot, &s.admin},
		{BeaconSlot, &s.beacon},
	} {
		raw, err := r.StorageAt(ctx, address, read.slot)
		if err != nil {
			return slots{}, errors.Wrapf(err, "read slot %s", read.slot.Hex())
		}
		*read.into = common.BytesToHash(raw)
	}
	return s, nil
}

// classify checks the implementation slot, then the implementation getters on
// the contract itself, then the beacon slot. A beacon proxy without a getter
// is reported as Custom with the implementation its beacon names.
func classify(ctx context.Context, r Reader, address common.Address, s slots) Info {
	info := Info{Address: address, Beacon: slotAddress(s.beacon)}

	if impl := slotAddress(s.implementation); impl != nil {
		info.IsProxy = true
		info.Type = TypeEIP1967
		info.Implementation = impl
		if admin := slotAddress(s.admin); admin != nil {
			info.Type = TypeTransparent
			info.Admin = admin
		} else if isUUPS(ctx, r, *impl) {
			info.Type = TypeUUPS
		}
		return info
	}

	for _, method := range implementationGetters {
		if impl, ok := callAddress(ctx, r, address, method); ok {
			info.IsProxy = true
			info.Type = TypeCustom
			info.Implementation = &impl
			return info
		}
	}

	if info.Beacon != nil {
		info.IsProxy = true
		info.Type = TypeCustom
		if impl, ok := callAddress(ctx, r, *info.Beacon, methodImplementation); ok {
			info.Implementation = &impl
		}
	}
	return info
}

func slotAddress(word common.Hash) *common.Address {
	if word == (common.Hash{}) {
		return nil
	}
	addr := common.BytesToAddress(word.Bytes())
	if addr == (common.Address{}) {
		return nil
	}
	return &addr
}

func isUUPS(ctx context.Context, r Reader, implementation common.Address) bool {
	uuid, ok := callBytes32(ctx, r, implementation, methodProxiableUUID)
	return ok && bytes.Equal(uuid[:], ImplementationSlot.Bytes())
}

func resultLabel(t Type) string {
	if t == TypeNone {
		return "none"
	}
	return strings.ToLower(string(t))
}
