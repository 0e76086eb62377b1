package ckb

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/integration/pkg/ledger"
	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/integration/pkg/txbuilder"
	"github.com/Flouse/forcerelay/pkg/config"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// NewFromConfig dials the chain in cfg and assembles its adapter.
func NewFromConfig(_ context.Context, lggr logger.Logger, cfg config.ChainConfig) (protocol.ChainAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}
	pk, err := cfg.GetPrivateKey()
	if err != nil {
		return nil, err
	}
	c := cfg.Ckb

	client, err := ledger.DialCkb(cfg.RPCURL, c.GetCommitPollInterval(), c.GetCommitTimeout(), lggr)
	if err != nil {
		return nil, err
	}
	signer, err := ledger.NewCkbSigner(pk, ckbtypes.HexToHash(c.GetSecp256k1CodeHash()), cellDep(c.Secp256k1CellDep), client, c.GetFeeShannons(), lggr)
	if err != nil {
		return nil, err
	}
	scripts, err := scriptsFromConfig(c)
	if err != nil {
		return nil, err
	}

	return New(Params{
		Identity: cfg.Identity(),
		Ledger:   client,
		Signer:   signer,
		Wallet:   client,
		Scripts:  scripts,
		Monitor: monitor.Config{
			PollInterval:  cfg.GetPollInterval(),
			RPCTimeout:    cfg.GetRPCTimeout(),
			MaxBlockRange: cfg.GetMaxBlockRange(),
		},
		Lggr:    lggr,
		Metrics: monitoring.NewMetricLabeler(cfg.ChainID),
	})
}

func scriptsFromConfig(c config.CkbConfig) (Scripts, error) {
	idBytes, err := hash32(c.ClientIDBytes)
	if err != nil {
		return Scripts{}, fmt.Errorf("ckb.client_id_bytes: %w", err)
	}
	args, err := hexutil.Decode(c.StateLock.Args)
	if err != nil && c.StateLock.Args != "" {
		return Scripts{}, fmt.Errorf("ckb.state_lock.args: %w", err)
	}

	s := Scripts{
		ClientID:      c.ClientID,
		ClientIDBytes: idBytes,
		CodeHashes: txbuilder.CodeHashes{
			Client:     ckbtypes.HexToHash(c.ClientCodeHash),
			Connection: ckbtypes.HexToHash(c.ConnectionCodeHash),
			Channel:    ckbtypes.HexToHash(c.ChannelCodeHash),
			Packet:     ckbtypes.HexToHash(c.PacketCodeHash),
		},
		StateLock: &ckbtypes.Script{
			CodeHash: ckbtypes.HexToHash(c.StateLock.CodeHash),
			HashType: ckbtypes.ScriptHashType(c.StateLock.HashType),
			Args:     args,
		},
	}
	if c.ClientCellDep.TxHash != "" {
		s.ClientCellDep = cellDep(c.ClientCellDep)
	}
	for _, dep := range c.ContractCellDeps {
		s.ContractCellDeps = append(s.ContractCellDeps, cellDep(dep))
	}
	return s, nil
}

func cellDep(c config.CellDepConfig) *ckbtypes.CellDep {
	depType := ckbtypes.DepTypeCode
	if c.DepType != "" {
		depType = ckbtypes.DepType(c.DepType)
	}
	return &ckbtypes.CellDep{
		OutPoint: &ckbtypes.OutPoint{TxHash: ckbtypes.HexToHash(c.TxHash), Index: c.Index},
		DepType:  depType,
	}
}

func hash32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
