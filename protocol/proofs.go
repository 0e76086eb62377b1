package protocol

// NotApplicableProof marks a sub-proof the ledger has no concept of. The
// counterparty expects three proof fields, so the marker is sent instead of
// leaving the field empty.
var NotApplicableProof = []byte{0}

// ConsensusProof proves a consensus state stored at a given height.
type ConsensusProof struct {
	Proof  []byte
	Height Height
}

// Proofs is the opaque bundle handed to the counterparty's client verifier.
type Proofs struct {
	ObjectProof    []byte
	ClientProof    []byte
	ConsensusProof *ConsensusProof
	// OtherProof carries an additional proof some messages need, e.g. the
	// channel end proof of a timeout-on-close.
	OtherProof []byte
	Height     Height
}

// NewProofs builds a proof bundle whose client and consensus proofs are the
// not-applicable marker.
func NewProofs(objectProof []byte, height Height) *Proofs {
	return &Proofs{
		ObjectProof: objectProof,
		ClientProof: NotApplicableProof,
		ConsensusProof: &ConsensusProof{
			Proof: NotApplicableProof,
		},
		Height: height,
	}
}
