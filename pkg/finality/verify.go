package finality

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrEmptyValidatorSet = errors.New("empty validator set")
	ErrWrongBlockHash    = errors.New("proof does not commit to the block")
	ErrInvalidSignature  = errors.New("invalid validator signature")
)

// ErrWrongProofHeight is returned when a proof finalizes another block.
type ErrWrongProofHeight struct {
	Expected uint64
	Actual   uint64
}

func (e ErrWrongProofHeight) Error() string {
	return fmt.Sprintf("proof for wrong height: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInsufficientWeight is returned when the signers do not form a quorum.
type ErrInsufficientWeight struct {
	Signed uint64
	Total  uint64
}

func (e ErrInsufficientWeight) Error() string {
	return fmt.Sprintf("insufficient vote weight: signed %d of %d, need more than two thirds", e.Signed, e.Total)
}

// Verify checks that proof finalizes block, given the state root of the block
// before it, against vals. More than two thirds of the total vote weight must
// have signed.
func Verify(block Block, prevStateRoot common.Hash, proof Proof, vals ValidatorSet) error {
	if vals.Size() == 0 {
		return ErrEmptyValidatorSet
	}
	if proof.Number != block.Header.Number {
		return ErrWrongProofHeight{Expected: block.Header.Number, Actual: proof.Number}
	}

	blockHash, err := ProposalHash(block, prevStateRoot)
	if err != nil {
		return fmt.Errorf("failed to hash proposal: %w", err)
	}
	if blockHash != proof.BlockHash {
		return fmt.Errorf("%w: want %s, got %s", ErrWrongBlockHash, blockHash, proof.BlockHash)
	}

	digest, err := VoteDigest(proof)
	if err != nil {
		return fmt.Errorf("failed to hash vote: %w", err)
	}

	var signed uint64
	next := 0
	for i, val := range vals.Validators {
		if !proof.Signed(i) {
			continue
		}
		if next >= len(proof.Signatures) {
			return fmt.Errorf("%w: bitmap marks more signers than the %d signatures present",
				ErrInvalidSignature, len(proof.Signatures))
		}
		sig := proof.Signatures[next]
		next++

		pub, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			return fmt.Errorf("%w: validator %s: %w", ErrInvalidSignature, val.Address, err)
		}
		if crypto.PubkeyToAddress(*pub) != val.Address {
			return fmt.Errorf("%w: validator %s signature recovers another key", ErrInvalidSignature, val.Address)
		}
		signed += uint64(val.VoteWeight)
	}
	if next != len(proof.Signatures) {
		return fmt.Errorf("%w: %d signatures for %d marked signers", ErrInvalidSignature, len(proof.Signatures), next)
	}

	total := vals.TotalVoteWeight()
	if signed*3 <= total*2 {
		return ErrInsufficientWeight{Signed: signed, Total: total}
	}
	return nil
}
