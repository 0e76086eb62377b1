// Package finality models the BFT finality of the account chain: blocks,
// the proofs validators sign over them and the weighted validator set
// those proofs are checked against.
package finality

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Header is the consensus-relevant part of a block header.
type Header struct {
	PrevHash         common.Hash
	Proposer         common.Address
	StateRoot        common.Hash
	TransactionsRoot common.Hash
	SignedTxsHash    common.Hash
	ReceiptsRoot     common.Hash
	Timestamp        uint64
	Number           uint64
	GasUsed          uint64
	GasLimit         uint64
	ChainID          uint64
}

// Block is a header plus the hashes of the transactions it orders.
type Block struct {
	Header   Header
	TxHashes []common.Hash
}

// Proof finalizes the block at Number. It is published in the header of
// block Number+1.
type Proof struct {
	Number    uint64
	Round     uint64
	BlockHash common.Hash
	// Bitmap has bit i set (most significant bit first) when validator i of
	// the sorted validator set signed.
	Bitmap []byte
	// Signatures holds one 65-byte secp256k1 signature per set bit, in
	// validator order.
	Signatures [][]byte
}

// Signed reports whether validator index i is marked in the bitmap.
func (p Proof) Signed(i int) bool {
	if i/8 >= len(p.Bitmap) {
		return false
	}
	return p.Bitmap[i/8]&(0x80>>(uint(i)%8)) != 0
}

// Validator is a consensus participant with its weights.
type Validator struct {
	Address       common.Address
	PubKey        []byte
	ProposeWeight uint32
	VoteWeight    uint32
}

// ValidatorSet is the validator list ordered by address, the order bitmaps
// refer to.
type ValidatorSet struct {
	Validators []Validator
}

// NewValidatorSet copies vals and sorts them by address.
func NewValidatorSet(vals []Validator) ValidatorSet {
	sorted := make([]Validator, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address.Bytes(), sorted[j].Address.Bytes()) < 0
	})
	return ValidatorSet{Validators: sorted}
}

func (vs ValidatorSet) Size() int {
	return len(vs.Validators)
}

// TotalVoteWeight sums the vote weight of every validator.
func (vs ValidatorSet) TotalVoteWeight() uint64 {
	var total uint64
	for _, v := range vs.Validators {
		total += uint64(v.VoteWeight)
	}
	return total
}

// proposal is what validators agree on for a block: the header with the
// state root it was executed on, plus its transactions.
type proposal struct {
	PrevHash         common.Hash
	Proposer         common.Address
	PrevStateRoot    common.Hash
	TransactionsRoot common.Hash
	SignedTxsHash    common.Hash
	Timestamp        uint64
	Number           uint64
	GasLimit         uint64
	ChainID          uint64
	TxHashes         []common.Hash
}

// ProposalHash is the hash a finality proof for block must carry, given the
// state root of the block before it.
func ProposalHash(block Block, prevStateRoot common.Hash) (common.Hash, error) {
	p := proposal{
		PrevHash:         block.Header.PrevHash,
		Proposer:         block.Header.Proposer,
		PrevStateRoot:    prevStateRoot,
		TransactionsRoot: block.Header.TransactionsRoot,
		SignedTxsHash:    block.Header.SignedTxsHash,
		Timestamp:        block.Header.Timestamp,
		Number:           block.Header.Number,
		GasLimit:         block.Header.GasLimit,
		ChainID:          block.Header.ChainID,
		TxHashes:         block.TxHashes,
	}
	enc, err := rlp.EncodeToBytes(&p)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// VoteTypePrecommit is the vote stage a finality proof aggregates.
const VoteTypePrecommit uint8 = 2

type vote struct {
	Height    uint64
	Round     uint64
	VoteType  uint8
	BlockHash common.Hash
}

// VoteDigest is the message each validator signs for proof.
func VoteDigest(proof Proof) (common.Hash, error) {
	enc, err := rlp.EncodeToBytes(&vote{
		Height:    proof.Number,
		Round:     proof.Round,
		VoteType:  VoteTypePrecommit,
		BlockHash: proof.BlockHash,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}
