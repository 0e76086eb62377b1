// Package ledger connects adapters to the account and cell chains.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/pkg/finality"
	"github.com/Flouse/forcerelay/protocol"
)

// Compile-time checks to ensure AxonClient implements the reader interfaces.
var (
	_ chainaccess.LedgerReader   = (*AxonClient)(nil)
	_ chainaccess.FinalityReader = (*AxonClient)(nil)
)

const (
	methodGetBlockByID       = "axon_getBlockById"
	methodGetCurrentMetadata = "axon_getCurrentMetadata"
)

// AxonClient reads the account chain over its JSON-RPC endpoint: the
// standard eth namespace plus the axon namespace for consensus data.
type AxonClient struct {
	*ethclient.Client
	raw  *rpc.Client
	geth *gethclient.Client
}

// DialAxon connects to the JSON-RPC endpoint at url.
func DialAxon(ctx context.Context, url string) (*AxonClient, error) {
	raw, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %w", protocol.ErrTransportFailure, url, err)
	}
	return NewAxonClient(raw), nil
}

func NewAxonClient(raw *rpc.Client) *AxonClient {
	return &AxonClient{
		Client: ethclient.NewClient(raw),
		raw:    raw,
		geth:   gethclient.New(raw),
	}
}

type rpcHeader struct {
	PrevHash         common.Hash    `json:"prev_hash"`
	Proposer         common.Address `json:"proposer"`
	StateRoot        common.Hash    `json:"state_root"`
	TransactionsRoot common.Hash    `json:"transactions_root"`
	SignedTxsHash    common.Hash    `json:"signed_txs_hash"`
	ReceiptsRoot     common.Hash    `json:"receipts_root"`
	Timestamp        hexutil.Uint64 `json:"timestamp"`
	Number           hexutil.Uint64 `json:"number"`
	GasUsed          hexutil.Uint64 `json:"gas_used"`
	GasLimit         hexutil.Uint64 `json:"gas_limit"`
	Proof            rpcProof       `json:"proof"`
	ChainID          hexutil.Uint64 `json:"chain_id"`
}

type rpcProof struct {
	Number     hexutil.Uint64  `json:"number"`
	Round      hexutil.Uint64  `json:"round"`
	BlockHash  common.Hash     `json:"block_hash"`
	Bitmap     hexutil.Bytes   `json:"bitmap"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

type rpcBlock struct {
	Header   rpcHeader     `json:"header"`
	TxHashes []common.Hash `json:"tx_hashes"`
}

type rpcValidator struct {
	PubKey        hexutil.Bytes  `json:"pub_key"`
	Address       common.Address `json:"address"`
	ProposeWeight hexutil.Uint64 `json:"propose_weight"`
	VoteWeight    hexutil.Uint64 `json:"vote_weight"`
}

type rpcMetadata struct {
	Epoch        hexutil.Uint64 `json:"epoch"`
	VerifierList []rpcValidator `json:"verifier_list"`
}

func (c *AxonClient) getBlock(ctx context.Context, number uint64) (*rpcBlock, error) {
	var block *rpcBlock
	if err := c.raw.CallContext(ctx, &block, methodGetBlockByID, hexutil.Uint64(number)); err != nil {
		return nil, fmt.Errorf("%w: %s(%d): %w", protocol.ErrTransportFailure, methodGetBlockByID, number, err)
	}
	if block == nil {
		return nil, fmt.Errorf("block %d: %w", number, protocol.ErrNotFound)
	}
	return block, nil
}

func (c *AxonClient) BlockByNumber(ctx context.Context, number uint64) (*finality.Block, error) {
	block, err := c.getBlock(ctx, number)
	if err != nil {
		return nil, err
	}
	h := block.Header
	return &finality.Block{
		Header: finality.Header{
			PrevHash:         h.PrevHash,
			Proposer:         h.Proposer,
			StateRoot:        h.StateRoot,
			TransactionsRoot: h.TransactionsRoot,
			SignedTxsHash:    h.SignedTxsHash,
			ReceiptsRoot:     h.ReceiptsRoot,
			Timestamp:        uint64(h.Timestamp),
			Number:           uint64(h.Number),
			GasUsed:          uint64(h.GasUsed),
			GasLimit:         uint64(h.GasLimit),
			ChainID:          uint64(h.ChainID),
		},
		TxHashes: block.TxHashes,
	}, nil
}

func (c *AxonClient) ProofByNumber(ctx context.Context, number uint64) (*finality.Proof, error) {
	block, err := c.getBlock(ctx, number)
	if err != nil {
		return nil, err
	}
	p := block.Header.Proof
	sigs := make([][]byte, len(p.Signatures))
	for i, s := range p.Signatures {
		sigs[i] = s
	}
	return &finality.Proof{
		Number:     uint64(p.Number),
		Round:      uint64(p.Round),
		BlockHash:  p.BlockHash,
		Bitmap:     p.Bitmap,
		Signatures: sigs,
	}, nil
}

func (c *AxonClient) CurrentValidators(ctx context.Context) (finality.ValidatorSet, error) {
	var metadata *rpcMetadata
	if err := c.raw.CallContext(ctx, &metadata, methodGetCurrentMetadata); err != nil {
		return finality.ValidatorSet{}, fmt.Errorf("%w: %s: %w", protocol.ErrTransportFailure, methodGetCurrentMetadata, err)
	}
	if metadata == nil || len(metadata.VerifierList) == 0 {
		return finality.ValidatorSet{}, errors.New("chain returned no validators")
	}
	vals := make([]finality.Validator, len(metadata.VerifierList))
	for i, v := range metadata.VerifierList {
		vals[i] = finality.Validator{
			Address:       v.Address,
			PubKey:        v.PubKey,
			ProposeWeight: uint32(v.ProposeWeight), //nolint:gosec // weights are u32 on chain
			VoteWeight:    uint32(v.VoteWeight),    //nolint:gosec // weights are u32 on chain
		}
	}
	return finality.NewValidatorSet(vals), nil
}

func (c *AxonClient) GetProof(ctx context.Context, account common.Address, slots []common.Hash, number uint64) (*chainaccess.StorageProof, error) {
	keys := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = s.Hex()
	}
	res, err := c.geth.GetProof(ctx, account, keys, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("%w: eth_getProof at %d: %w", protocol.ErrTransportFailure, number, err)
	}

	accountProof, err := decodeProofNodes(res.AccountProof)
	if err != nil {
		return nil, fmt.Errorf("%w: account proof: %w", protocol.ErrMalformedProof, err)
	}
	out := &chainaccess.StorageProof{
		AccountProof:  accountProof,
		StorageHash:   res.StorageHash,
		StorageProofs: make([]chainaccess.SlotProof, len(res.StorageProof)),
	}
	for i, sp := range res.StorageProof {
		nodes, err := decodeProofNodes(sp.Proof)
		if err != nil {
			return nil, fmt.Errorf("%w: storage proof of %s: %w", protocol.ErrMalformedProof, sp.Key, err)
		}
		out.StorageProofs[i] = chainaccess.SlotProof{
			Key:   common.HexToHash(sp.Key),
			Value: sp.Value,
			Proof: nodes,
		}
	}
	return out, nil
}

func decodeProofNodes(nodes []string) ([][]byte, error) {
	out := make([][]byte, len(nodes))
	for i, n := range nodes {
		b, err := hexutil.Decode(n)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
