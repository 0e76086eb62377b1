package commitment

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CommitmentsSlot is the storage slot of the handler's
// mapping(bytes32 => bytes32) commitments.
const CommitmentsSlot = 0

// Key is the mapping key the handler stores a path's commitment under.
func Key(p Path) common.Hash {
	return crypto.Keccak256Hash(p.Bytes())
}

// Slot is the storage slot of p's commitment:
// keccak256(keccak256(path) ++ uint256(CommitmentsSlot)).
func Slot(p Path) common.Hash {
	return MappingSlot(Key(p), CommitmentsSlot)
}

// MappingSlot returns the storage slot of key in a Solidity mapping declared
// at slot.
func MappingSlot(key common.Hash, slot uint64) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), common.BigToHash(new(big.Int).SetUint64(slot)).Bytes())
}
