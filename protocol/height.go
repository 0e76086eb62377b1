package protocol

import (
	"fmt"

	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
)

// Height is the IBC (revision number, revision height) pair. The zero value
// is the "unknown" sentinel and never a real chain height.
type Height = clienttypes.Height

// NewHeight returns a height in revision 0, which is the only revision the
// supported ledgers use.
func NewHeight(blockNumber uint64) Height {
	return clienttypes.NewHeight(0, blockNumber)
}

// QueryHeight scopes a query to the latest state or to a specific height.
type QueryHeight struct {
	specific *Height
}

// LatestHeight queries the tip of the chain.
func LatestHeight() QueryHeight {
	return QueryHeight{}
}

// SpecificHeight queries the state committed at h.
func SpecificHeight(h Height) QueryHeight {
	return QueryHeight{specific: &h}
}

// IsLatest reports whether the query targets the chain tip.
func (q QueryHeight) IsLatest() bool {
	return q.specific == nil
}

// Height returns the specific height and true, or the zero height and false
// for latest queries.
func (q QueryHeight) Height() (Height, bool) {
	if q.specific == nil {
		return Height{}, false
	}
	return *q.specific, true
}

func (q QueryHeight) String() string {
	if q.specific == nil {
		return "latest"
	}
	return q.specific.String()
}

// IncludeProof selects whether a query should also build a membership proof.
type IncludeProof bool

const (
	IncludeProofNo  IncludeProof = false
	IncludeProofYes IncludeProof = true
)

// QualifiedHeight bounds a range query on event heights.
type QualifiedHeight struct {
	Height QueryHeight
	// SmallerEqual selects every height up to and including Height. When false
	// only Height itself is queried.
	SmallerEqual bool
}

// BlockRange resolves the qualified height into an inclusive [from, to]
// block range, using tip for latest queries.
func (q QualifiedHeight) BlockRange(tip uint64) (uint64, uint64, error) {
	to := tip
	if h, ok := q.Height.Height(); ok {
		to = h.GetRevisionHeight()
	}
	if to > tip {
		return 0, 0, fmt.Errorf("%w: height %d is above chain tip %d", ErrInvalidHeight, to, tip)
	}
	if q.SmallerEqual {
		return 0, to, nil
	}
	return to, to, nil
}
