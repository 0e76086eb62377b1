package protocol

import (
	"context"
	"math/big"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
)

// HealthReporter should be implemented by any type requiring health checks.
type HealthReporter interface {
	// Ready should return nil if ready, or an error message otherwise.
	Ready() error
	// HealthReport returns a full health report of the callee including its dependencies.
	// Keys are based on Name(), with nil values when healthy or errors otherwise.
	HealthReport() map[string]error
	// Name returns the fully qualified name of the component. Usually the logger name.
	Name() string
}

// Service represents a long-running service inside the application.
type Service interface {
	// Start the service.
	//  - Must return promptly if the context is cancelled.
	//  - Must not retain the context after returning (only applies to start-up)
	Start(context.Context) error
	// Close stops the Service.
	Close() error

	HealthReporter
}

// Subscription is a consumer handle on an adapter's event monitor.
type Subscription interface {
	// ID is stable for the lifetime of the monitor; every Subscribe call on
	// the same adapter returns a handle with the same ID.
	ID() string
	// Events delivers one batch per block with IBC events. The channel is
	// closed when the adapter shuts down.
	Events() <-chan EventBatch
}

// ChainAdapter is the contract a chain must satisfy for the relayer engine.
//
// Thread-safety: all methods may be called concurrently. Reads are stateless.
// Submissions are serialized by the adapter when the ledger requires ordered
// nonces, so callers must not assume two concurrent batches interleave.
type ChainAdapter interface {
	Identity() ChainIdentity

	// Lifecycle
	HealthCheck(ctx context.Context) HealthCheck
	Subscribe(ctx context.Context) (Subscription, error)
	Shutdown() error
	SupportsFeature(f Feature) bool

	// Submission
	SendMessagesAndWaitCommit(ctx context.Context, msgs []*codectypes.Any) ([]IBCEventWithHeight, error)

	// Chain queries
	QueryApplicationStatus(ctx context.Context) (ChainStatus, error)
	QueryCommitmentPrefix() ([]byte, error)
	QueryHostConsensusState(ctx context.Context, req QueryHostConsensusStateRequest) (ConsensusState, error)
	QueryBalance(ctx context.Context, denom string) (*big.Int, error)
	QueryAllBalances(ctx context.Context) ([]Balance, error)
	QueryDenomTrace(ctx context.Context, hash string) (DenomTrace, error)

	// Client queries
	QueryClients(ctx context.Context) ([]IdentifiedClientState, error)
	QueryClientState(ctx context.Context, req QueryClientStateRequest, proof IncludeProof) (*codectypes.Any, *Proofs, error)
	QueryConsensusState(ctx context.Context, req QueryConsensusStateRequest, proof IncludeProof) (*codectypes.Any, *Proofs, error)
	QueryConsensusStateHeights(ctx context.Context, clientID string) ([]Height, error)

	// Connection queries
	QueryConnections(ctx context.Context) ([]connectiontypes.IdentifiedConnection, error)
	QueryClientConnections(ctx context.Context, req QueryClientConnectionsRequest) ([]string, error)
	QueryConnection(ctx context.Context, req QueryConnectionRequest, proof IncludeProof) (connectiontypes.ConnectionEnd, *Proofs, error)
	QueryConnectionChannels(ctx context.Context, req QueryConnectionChannelsRequest) ([]IdentifiedChannel, error)

	// Channel queries
	QueryChannels(ctx context.Context) ([]IdentifiedChannel, error)
	QueryChannel(ctx context.Context, req QueryChannelRequest, proof IncludeProof) (channeltypes.Channel, *Proofs, error)
	QueryChannelClientState(ctx context.Context, req QueryChannelClientStateRequest) (*IdentifiedClientState, error)

	// Packet queries
	QueryPacketCommitment(ctx context.Context, req QueryPacketRequest, proof IncludeProof) ([]byte, *Proofs, error)
	QueryPacketCommitments(ctx context.Context, req QueryPacketsRequest) ([]uint64, Height, error)
	QueryPacketReceipt(ctx context.Context, req QueryPacketRequest, proof IncludeProof) ([]byte, *Proofs, error)
	QueryUnreceivedPackets(ctx context.Context, req QueryUnreceivedRequest) ([]uint64, error)
	QueryPacketAcknowledgement(ctx context.Context, req QueryPacketRequest, proof IncludeProof) ([]byte, *Proofs, error)
	QueryPacketAcknowledgements(ctx context.Context, req QueryPacketsRequest) ([]uint64, Height, error)
	QueryUnreceivedAcknowledgements(ctx context.Context, req QueryUnreceivedRequest) ([]uint64, error)
	QueryNextSequenceReceive(ctx context.Context, req QueryNextSequenceReceiveRequest, proof IncludeProof) (uint64, *Proofs, error)

	// Event queries
	QueryTxs(ctx context.Context, req QueryTxRequest) ([]IBCEventWithHeight, error)
	QueryPacketEvents(ctx context.Context, req PacketEventQuery) ([]IBCEventWithHeight, error)

	// Builders
	BuildClientState(ctx context.Context, height Height, settings ClientSettings) (ClientState, error)
	BuildConsensusState(ctx context.Context, height Height) (ConsensusState, error)
	BuildHeader(ctx context.Context, trustedHeight, targetHeight Height) (Header, []Header, error)
	BuildConnectionProofsAndClientState(ctx context.Context, msg MsgKind, connectionID, clientID string, height Height) (*codectypes.Any, *Proofs, error)
	BuildChannelProofs(ctx context.Context, portID, channelID string, height Height) (*Proofs, error)
	BuildPacketProofs(ctx context.Context, msg MsgKind, portID, channelID string, sequence uint64, height Height) (*Proofs, error)

	// Optional features. Adapters that do not support them return empty
	// results; SupportsFeature tells the two apart.
	CrossChainQuery(ctx context.Context, requests []string) ([][]byte, error)
	QueryIncentivizedPacket(ctx context.Context, portID, channelID string, sequence uint64) ([]byte, error)
	MaybeRegisterCounterpartyPayee(ctx context.Context, portID, channelID, counterpartyPayee string) error
}
