package axon

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Flouse/forcerelay/integration/pkg/contracttransmitter"
	"github.com/Flouse/forcerelay/integration/pkg/ledger"
	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/integration/pkg/proofs"
	"github.com/Flouse/forcerelay/pkg/config"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// NewFromConfig dials the chain in cfg and assembles its adapter.
func NewFromConfig(ctx context.Context, lggr logger.Logger, cfg config.ChainConfig) (protocol.ChainAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}
	pk, err := cfg.GetPrivateKey()
	if err != nil {
		return nil, err
	}

	client, err := ledger.DialAxon(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	reader := ledger.NewResilientReader(client, logger.Named(lggr, "AxonReader"), resilienceConfig(cfg.Resilience))

	transmitter, err := contracttransmitter.NewEVMContractTransmitterFromRPC(ctx, lggr, cfg.RPCURL, pk, contracttransmitter.Config{
		ReceiptPollInterval: cfg.Axon.GetReceiptPollInterval(),
		ReceiptTimeout:      cfg.Axon.GetReceiptTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transmitter: %w", err)
	}

	var transfer common.Address
	if cfg.Axon.TransferAddress != "" {
		transfer = common.HexToAddress(cfg.Axon.TransferAddress)
	}

	return New(Params{
		Identity:    cfg.Identity(),
		Reader:      reader,
		Finality:    reader,
		Transmitter: transmitter,
		Handler:     common.HexToAddress(cfg.Axon.HandlerAddress),
		Transfer:    transfer,
		Proofs: proofs.Config{
			PollInterval: cfg.Axon.GetProofPollInterval(),
			WaitTimeout:  cfg.Axon.GetProofWaitTimeout(),
			DebugDir:     cfg.Axon.GetDebugDir(),
		},
		Monitor: monitor.Config{
			PollInterval:  cfg.GetPollInterval(),
			RPCTimeout:    cfg.GetRPCTimeout(),
			MaxBlockRange: cfg.GetMaxBlockRange(),
		},
		Lggr:    lggr,
		Metrics: monitoring.NewMetricLabeler(cfg.ChainID),
	})
}

// resilienceConfig overlays the configured values on the defaults.
func resilienceConfig(c config.ResilienceConfig) ledger.ResilienceConfig {
	out := ledger.DefaultResilienceConfig()
	if c.FailureThreshold > 0 {
		out.FailureThreshold = c.FailureThreshold
	}
	if c.MaxRetries > 0 {
		out.MaxRetries = c.MaxRetries
	}
	if d := c.GetRequestTimeout(); d > 0 {
		out.RequestTimeout = d
	}
	if c.MaxConcurrentRequests > 0 {
		out.MaxConcurrentRequests = c.MaxConcurrentRequests
	}
	if c.MaxRequestsPerSecond > 0 {
		out.MaxRequestsPerSecond = c.MaxRequestsPerSecond
	}
	return out
}
