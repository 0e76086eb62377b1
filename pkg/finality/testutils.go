package finality

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RandValidatorSet returns a validator set of n validators with equal vote
// weight and their keys, indexed like the sorted set.
// EXPOSED FOR TESTING.
func RandValidatorSet(n int, voteWeight uint32) (ValidatorSet, []*ecdsa.PrivateKey, error) {
	byAddr := make(map[common.Address]*ecdsa.PrivateKey, n)
	vals := make([]Validator, 0, n)
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			return ValidatorSet{}, nil, err
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		byAddr[addr] = key
		vals = append(vals, Validator{
			Address:       addr,
			PubKey:        crypto.FromECDSAPub(&key.PublicKey),
			ProposeWeight: 1,
			VoteWeight:    voteWeight,
		})
	}
	set := NewValidatorSet(vals)
	keys := make([]*ecdsa.PrivateKey, n)
	for i, v := range set.Validators {
		keys[i] = byAddr[v.Address]
	}
	return set, keys, nil
}

// SignProof builds a finality proof for block signed by the validators at the
// given indexes.
// EXPOSED FOR TESTING.
func SignProof(block Block, prevStateRoot common.Hash, keys []*ecdsa.PrivateKey, signers ...int) (Proof, error) {
	blockHash, err := ProposalHash(block, prevStateRoot)
	if err != nil {
		return Proof{}, err
	}
	proof := Proof{
		Number:    block.Header.Number,
		BlockHash: blockHash,
		Bitmap:    make([]byte, (len(keys)+7)/8),
	}
	digest, err := VoteDigest(proof)
	if err != nil {
		return Proof{}, err
	}

	marked := make(map[int]bool, len(signers))
	for _, i := range signers {
		if i < 0 || i >= len(keys) {
			return Proof{}, fmt.Errorf("signer index %d out of range", i)
		}
		marked[i] = true
	}
	for i, key := range keys {
		if !marked[i] {
			continue
		}
		sig, err := crypto.Sign(digest.Bytes(), key)
		if err != nil {
			return Proof{}, err
		}
		proof.Bitmap[i/8] |= 0x80 >> (uint(i) % 8)
		proof.Signatures = append(proof.Signatures, sig)
	}
	return proof, nil
}
