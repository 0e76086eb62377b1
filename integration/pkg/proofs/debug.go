package proofs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Flouse/forcerelay/pkg/finality"
	"github.com/Flouse/forcerelay/protocol"
)

type debugProof struct {
	Number     uint64               `json:"number"`
	Round      uint64               `json:"round"`
	BlockHash  protocol.Bytes32     `json:"block_hash"`
	Bitmap     protocol.ByteSlice   `json:"bitmap"`
	Signatures []protocol.ByteSlice `json:"signatures"`
}

type debugDump struct {
	BlockNumber   uint64           `json:"block_number"`
	PrevStateRoot protocol.Bytes32 `json:"prev_state_root"`
	Block         finality.Block   `json:"block"`
	Proof         debugProof       `json:"proof"`
	Validators    []string         `json:"validators"`
	Error         string           `json:"error"`
}

// DumpPath is where the diagnostic dump of a block that failed verification is written.
func DumpPath(dir string, blockNumber uint64) string {
	return filepath.Join(dir, fmt.Sprintf("axon_block_%d.log", blockNumber))
}

// dump writes a diagnostic file for offline inspection. Failures are logged
// and never change the outcome of the call.
func (p *Pipeline) dump(in *Ingredients, verifyErr error) {
	d := debugDump{
		BlockNumber:   in.Block.Header.Number,
		PrevStateRoot: protocol.Bytes32(in.PrevStateRoot),
		Block:         in.Block,
		Proof: debugProof{
			Number:    in.Proof.Number,
			Round:     in.Proof.Round,
			BlockHash: protocol.Bytes32(in.Proof.BlockHash),
			Bitmap:    in.Proof.Bitmap,
		},
		Error: verifyErr.Error(),
	}
	for _, s := range in.Proof.Signatures {
		d.Proof.Signatures = append(d.Proof.Signatures, s)
	}
	for _, v := range in.Validators.Validators {
		d.Validators = append(d.Validators, v.Address.Hex())
	}

	content, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		p.lggr.Warnw("Failed to encode debug dump", "block", d.BlockNumber, "error", err)
		return
	}
	if err := os.MkdirAll(p.cfg.DebugDir, 0o755); err != nil {
		p.lggr.Warnw("Failed to create debug dir", "dir", p.cfg.DebugDir, "error", err)
		return
	}
	path := DumpPath(p.cfg.DebugDir, d.BlockNumber)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		p.lggr.Warnw("Failed to write debug dump", "path", path, "error", err)
		return
	}
	p.lggr.Infow("Wrote finality debug dump", "path", path)
}
