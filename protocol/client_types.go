package protocol

import "time"

// ClientSettingsKind selects which light client the counterparty runs for this chain.
type ClientSettingsKind int

const (
	ClientSettingsTendermint ClientSettingsKind = iota
	ClientSettingsCkb
	ClientSettingsAxon
	ClientSettingsOther
)

func (k ClientSettingsKind) String() string {
	switch k {
	case ClientSettingsTendermint:
		return "Tendermint"
	case ClientSettingsCkb:
		return "Ckb"
	case ClientSettingsAxon:
		return "Axon"
	case ClientSettingsOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// ClientSettings are the counterparty-provided parameters for a new client.
type ClientSettings struct {
	Kind           ClientSettingsKind
	TrustingPeriod time.Duration
	MaxClockDrift  time.Duration
}

// ClientState is the state a counterparty client tracks for this chain.
type ClientState struct {
	ChainID      string
	LatestHeight Height
	Frozen       bool
}

// ConsensusState is the commitment root and timestamp of this chain at a height.
type ConsensusState struct {
	Root      []byte
	Timestamp time.Time
}

// Header updates a counterparty client of this chain.
type Header struct {
	Height Height
	Raw    []byte
}

// Feature names optional adapter capabilities.
type Feature int

const (
	FeatureCrossChainQuery Feature = iota
	FeatureIncentivizedPackets
	FeatureCounterpartyPayee
)

func (f Feature) String() string {
	switch f {
	case FeatureCrossChainQuery:
		return "CrossChainQuery"
	case FeatureIncentivizedPackets:
		return "IncentivizedPackets"
	case FeatureCounterpartyPayee:
		return "CounterpartyPayee"
	default:
		return "Unknown"
	}
}
