package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainFamily names the ledger model an adapter talks to.
type ChainFamily string

const (
	// ChainFamilyAxon is an account/contract chain with BFT finality.
	ChainFamilyAxon ChainFamily = "axon"
	// ChainFamilyCkb is a cell (UTXO) chain.
	ChainFamilyCkb ChainFamily = "ckb"
)

func (f ChainFamily) String() string {
	return string(f)
}

// ChainIdentity is the immutable identity of an adapter, fixed at construction.
type ChainIdentity struct {
	ChainID     string
	Family      ChainFamily
	RPCURL      string
	WSURL       string
	StorePrefix []byte
}

// ByteSlice is hex encoded in JSON, e.g. in proof debug dumps. A nil slice
// encodes as null.
type ByteSlice []byte

func (h ByteSlice) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("null"), nil
	}
	return json.Marshal(h.String())
}

func (h *ByteSlice) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid ByteSlice: %w", err)
	}
	if s == "" || s == "0x" {
		*h = ByteSlice{}
		return nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid ByteSlice %q: %w", s, err)
	}
	*h = b
	return nil
}

func (h ByteSlice) String() string {
	return hexutil.Encode(h)
}

// Bytes32 is a transaction hash or state root of either ledger.
type Bytes32 [32]byte

// NewBytes32FromString parses a 0x prefixed hex string of at most 32 bytes.
// Shorter input fills the leading bytes.
func NewBytes32FromString(s string) (Bytes32, error) {
	var res Bytes32
	if !strings.HasPrefix(s, "0x") {
		return res, fmt.Errorf("Bytes32 must start with '0x' prefix: %s", s)
	}
	if len(s) > 2+2*len(res) {
		return res, fmt.Errorf("Bytes32 must be at most 32 bytes long: %s", s)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return res, fmt.Errorf("failed to decode %s: %w", s, err)
	}
	copy(res[:], b)
	return res, nil
}

func (b Bytes32) String() string {
	return hexutil.Encode(b[:])
}

func (b Bytes32) IsEmpty() bool {
	return b == Bytes32{}
}

func (b Bytes32) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Bytes32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid Bytes32: %w", err)
	}
	parsed, err := NewBytes32FromString(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
