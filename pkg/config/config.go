// Package config holds the relayer's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap/zapcore"

	"github.com/Flouse/forcerelay/protocol"
)

const (
	DefaultConfigFile = "forcerelay.toml"
	// ConfigPathEnvVar overrides the config path given on the command line.
	ConfigPathEnvVar = "FORCERELAY_CONFIG"
)

type Configuration struct {
	LogLevel string `toml:"log_level"`
	// LogFormat is "console" (default) or "json".
	LogFormat string `toml:"log_format"`
	// MetricsAddress is where /metrics is served. Empty disables the endpoint.
	MetricsAddress string        `toml:"metrics_address"`
	Chains         []ChainConfig `toml:"chains"`
}

// Load decodes the file at path. Keys the configuration does not know are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (*Configuration, error) {
	var cfg Configuration
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// Path picks the config file: FORCERELAY_CONFIG, then the first argument,
// then DefaultConfigFile.
func Path(args []string) string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return DefaultConfigFile
}

func (c *Configuration) Validate() error {
	if len(c.Chains) == 0 {
		return errors.New("no chains configured")
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
		}
	}

	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q, expected console or json", c.LogFormat)
	}

	seen := make(map[string]bool, len(c.Chains))
	var errs []error
	for i := range c.Chains {
		chain := &c.Chains[i]
		if err := chain.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("chains[%d] (%s): %w", i, chain.ChainID, err))
			continue
		}
		if seen[chain.ChainID] {
			errs = append(errs, fmt.Errorf("chains[%d]: duplicate chain_id %s", i, chain.ChainID))
		}
		seen[chain.ChainID] = true
	}
	return errors.Join(errs...)
}

// JSONLogs reports whether logs are written as JSON lines.
func (c *Configuration) JSONLogs() bool {
	return c.LogFormat == "json"
}

func (c *Configuration) GetLogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

// ChainConfig configures one adapter. Family selects which of Axon and Ckb
// is read.
type ChainConfig struct {
	Family      string `toml:"family"`
	ChainID     string `toml:"chain_id"`
	RPCURL      string `toml:"rpc_url"`
	WSURL       string `toml:"ws_url"`
	StorePrefix string `toml:"store_prefix"`
	// PrivateKey is the hex encoded signing key. PrivateKeyEnv names an
	// environment variable holding it instead.
	PrivateKey    string `toml:"private_key"`
	PrivateKeyEnv string `toml:"private_key_env"`

	// Event monitor settings.
	PollInterval  string `toml:"poll_interval"`
	RPCTimeout    string `toml:"rpc_timeout"`
	MaxBlockRange uint64 `toml:"max_block_range"`

	Axon       AxonConfig       `toml:"axon"`
	Ckb        CkbConfig        `toml:"ckb"`
	Resilience ResilienceConfig `toml:"resilience"`
}

func (c *ChainConfig) Validate() error {
	if c.ChainID == "" {
		return errors.New("chain_id must be configured")
	}
	if c.RPCURL == "" {
		return errors.New("rpc_url must be configured")
	}
	switch protocol.ChainFamily(c.Family) {
	case protocol.ChainFamilyAxon:
		return c.Axon.Validate()
	case protocol.ChainFamilyCkb:
		return c.Ckb.Validate()
	default:
		return fmt.Errorf("unknown family %q, expected %q or %q", c.Family, protocol.ChainFamilyAxon, protocol.ChainFamilyCkb)
	}
}

// Identity is the adapter identity this chain is configured with.
func (c *ChainConfig) Identity() protocol.ChainIdentity {
	return protocol.ChainIdentity{
		ChainID:     c.ChainID,
		Family:      protocol.ChainFamily(c.Family),
		RPCURL:      c.RPCURL,
		WSURL:       c.WSURL,
		StorePrefix: []byte(c.StorePrefix),
	}
}

// GetPrivateKey returns the configured signing key, reading PrivateKeyEnv
// when no key is set inline.
func (c *ChainConfig) GetPrivateKey() (string, error) {
	if c.PrivateKey != "" {
		return c.PrivateKey, nil
	}
	if c.PrivateKeyEnv == "" {
		return "", errors.New("neither private_key nor private_key_env is configured")
	}
	pk := os.Getenv(c.PrivateKeyEnv)
	if pk == "" {
		return "", fmt.Errorf("environment variable %s is not set", c.PrivateKeyEnv)
	}
	return pk, nil
}

func (c *ChainConfig) GetPollInterval() time.Duration {
	return parseDuration(c.PollInterval, 2*time.Second)
}

func (c *ChainConfig) GetRPCTimeout() time.Duration {
	return parseDuration(c.RPCTimeout, 10*time.Second)
}

func (c *ChainConfig) GetMaxBlockRange() uint64 {
	if c.MaxBlockRange == 0 {
		return 100
	}
	return c.MaxBlockRange
}

// AxonConfig configures the account chain adapter.
type AxonConfig struct {
	HandlerAddress  string `toml:"handler_address"`
	TransferAddress string `toml:"transfer_address"`
	// ProofWaitTimeout bounds the wait for the finality proof of a block.
	// Zero waits as long as the caller's context allows.
	ProofWaitTimeout    string `toml:"proof_wait_timeout"`
	ProofPollInterval   string `toml:"proof_poll_interval"`
	ReceiptTimeout      string `toml:"receipt_timeout"`
	ReceiptPollInterval string `toml:"receipt_poll_interval"`
	// DebugDir receives dumps of blocks that fail finality verification.
	DebugDir string `toml:"debug_dir"`
}

func (a *AxonConfig) Validate() error {
	if !common.IsHexAddress(a.HandlerAddress) {
		return fmt.Errorf("axon.handler_address %q is not an address", a.HandlerAddress)
	}
	if a.TransferAddress != "" && !common.IsHexAddress(a.TransferAddress) {
		return fmt.Errorf("axon.transfer_address %q is not an address", a.TransferAddress)
	}
	return nil
}

func (a *AxonConfig) GetProofWaitTimeout() time.Duration {
	return parseDuration(a.ProofWaitTimeout, 0)
}

func (a *AxonConfig) GetProofPollInterval() time.Duration {
	return parseDuration(a.ProofPollInterval, time.Second)
}

func (a *AxonConfig) GetReceiptTimeout() time.Duration {
	return parseDuration(a.ReceiptTimeout, 2*time.Minute)
}

func (a *AxonConfig) GetReceiptPollInterval() time.Duration {
	return parseDuration(a.ReceiptPollInterval, time.Second)
}

func (a *AxonConfig) GetDebugDir() string {
	if a.DebugDir == "" {
		return "./debug"
	}
	return a.DebugDir
}

// CkbConfig configures the cell chain adapter. Hashes and args are 0x
// prefixed hex.
type CkbConfig struct {
	// ClientID is the IBC identifier of the account chain client on CKB and
	// ClientIDBytes the 32 byte id its cells are keyed by.
	ClientID      string `toml:"client_id"`
	ClientIDBytes string `toml:"client_id_bytes"`

	ClientCodeHash     string `toml:"client_code_hash"`
	ConnectionCodeHash string `toml:"connection_code_hash"`
	ChannelCodeHash    string `toml:"channel_code_hash"`
	PacketCodeHash     string `toml:"packet_code_hash"`

	ClientCellDep    CellDepConfig   `toml:"client_cell_dep"`
	ContractCellDeps []CellDepConfig `toml:"contract_cell_deps"`
	// StateLock locks connection and channel cells.
	StateLock ScriptConfig `toml:"state_lock"`

	// Secp256k1CodeHash and Secp256k1CellDep locate the sighash lock used
	// for fee cells and relayer owned packet cells.
	Secp256k1CodeHash string        `toml:"secp256k1_code_hash"`
	Secp256k1CellDep  CellDepConfig `toml:"secp256k1_cell_dep"`

	FeeShannons        uint64 `toml:"fee_shannons"`
	CommitTimeout      string `toml:"commit_timeout"`
	CommitPollInterval string `toml:"commit_poll_interval"`
}

// Secp256k1Blake160CodeHash is the type hash of the default sighash lock on
// mainnet and testnet.
const Secp256k1Blake160CodeHash = "0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8"

func (c *CkbConfig) Validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("ckb.client_id must be configured"))
	}
	for name, v := range map[string]string{
		"ckb.client_id_bytes":      c.ClientIDBytes,
		"ckb.client_code_hash":     c.ClientCodeHash,
		"ckb.connection_code_hash": c.ConnectionCodeHash,
		"ckb.channel_code_hash":    c.ChannelCodeHash,
		"ckb.packet_code_hash":     c.PacketCodeHash,
	} {
		if err := checkHash(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Secp256k1CodeHash != "" {
		if err := checkHash(c.Secp256k1CodeHash); err != nil {
			errs = append(errs, fmt.Errorf("ckb.secp256k1_code_hash: %w", err))
		}
	}
	if err := c.Secp256k1CellDep.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ckb.secp256k1_cell_dep: %w", err))
	}
	if c.ClientCellDep.TxHash != "" {
		if err := c.ClientCellDep.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ckb.client_cell_dep: %w", err))
		}
	}
	for i, dep := range c.ContractCellDeps {
		if err := dep.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ckb.contract_cell_deps[%d]: %w", i, err))
		}
	}
	if err := c.StateLock.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ckb.state_lock: %w", err))
	}
	return errors.Join(errs...)
}

func (c *CkbConfig) GetSecp256k1CodeHash() string {
	if c.Secp256k1CodeHash == "" {
		return Secp256k1Blake160CodeHash
	}
	return c.Secp256k1CodeHash
}

func (c *CkbConfig) GetFeeShannons() uint64 {
	if c.FeeShannons == 0 {
		return 100_000
	}
	return c.FeeShannons
}

func (c *CkbConfig) GetCommitTimeout() time.Duration {
	return parseDuration(c.CommitTimeout, 2*time.Minute)
}

func (c *CkbConfig) GetCommitPollInterval() time.Duration {
	return parseDuration(c.CommitPollInterval, 3*time.Second)
}

// CellDepConfig references a cell by out point.
type CellDepConfig struct {
	TxHash string `toml:"tx_hash"`
	Index  uint32 `toml:"index"`
	// DepType is "code" or "dep_group".
	DepType string `toml:"dep_type"`
}

func (d *CellDepConfig) Validate() error {
	if err := checkHash(d.TxHash); err != nil {
		return fmt.Errorf("tx_hash: %w", err)
	}
	switch d.DepType {
	case "code", "dep_group":
		return nil
	default:
		return fmt.Errorf("dep_type %q, expected code or dep_group", d.DepType)
	}
}

// ScriptConfig is a CKB script.
type ScriptConfig struct {
	CodeHash string `toml:"code_hash"`
	// HashType is "type", "data", "data1" or "data2".
	HashType string `toml:"hash_type"`
	Args     string `toml:"args"`
}

func (s *ScriptConfig) Validate() error {
	if err := checkHash(s.CodeHash); err != nil {
		return fmt.Errorf("code_hash: %w", err)
	}
	switch s.HashType {
	case "type", "data", "data1", "data2":
	default:
		return fmt.Errorf("hash_type %q is not a script hash type", s.HashType)
	}
	if s.Args != "" {
		if _, err := hexutil.Decode(s.Args); err != nil {
			return fmt.Errorf("args: %w", err)
		}
	}
	return nil
}

// ResilienceConfig tunes the policies wrapping ledger reads. Zero values
// keep the defaults.
type ResilienceConfig struct {
	FailureThreshold      uint   `toml:"failure_threshold"`
	MaxRetries            int    `toml:"max_retries"`
	RequestTimeout        string `toml:"request_timeout"`
	MaxConcurrentRequests uint   `toml:"max_concurrent_requests"`
	MaxRequestsPerSecond  uint   `toml:"max_requests_per_second"`
}

func (r *ResilienceConfig) GetRequestTimeout() time.Duration {
	return parseDuration(r.RequestTimeout, 0)
}

func checkHash(s string) error {
	b, err := hexutil.Decode(s)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
