package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// VerifierConfig is one entry of the static verifier set. Address is the
// verifier's on-chain identity used to attribute attestations; URL is its
// signing endpoint.
type VerifierConfig struct {
	URL     string `yaml:"url" validate:"required,url"`
	Address string `yaml:"address" validate:"required"`
}

type Configuration struct {
	// Server config
	Server struct {
		UseSSL    bool   `yaml:"ssl"`
		Port      int    `yaml:"port"`
		UseRedis  bool   `yaml:"use_redis"`
		RedisPort int    `yaml:"redis_port"`
		RedisHost string `yaml:"redis_host"`
	} `yaml:"server"`
	// Algorand-related config (source chain)
	Algorand struct {
		AlgodURL      string `yaml:"algod_url" validate:"required,url"`
		AlgodToken    string `yaml:"algod_token"`
		EscrowAddress string `yaml:"escrow_address" validate:"required"`
		AppID         uint64 `yaml:"app_id" validate:"required"`
		CarbonAssetID uint64 `yaml:"carbon_asset_id" validate:"required"`
		// important private stuff
		AdminMnemonic string `yaml:"admin_mnemonic"`
	} `yaml:"algorand"`
	// EVM-related config (target chain)
	EVM struct {
		ChainID         int    `yaml:"chain_id" validate:"required"`
		ContractAddress string `yaml:"contract_address" validate:"required"`
		PublicAddress   string `yaml:"address" validate:"required"`
		PrivateKey      string `yaml:"private_key"`
	} `yaml:"EVM"`
	Verifiers             []VerifierConfig `yaml:"verifiers" validate:"required,min=1,dive"`
	MinVerifierSignatures int              `yaml:"min_verifier_signatures" validate:"required,gte=1"`
	FeePercentage         int              `yaml:"fee_percentage" validate:"gte=0,lte=100"`
	// one window drives both the verification short-circuit and the
	// timeout scanner
	TimeoutMs         int64 `yaml:"timeout_ms"`
	VerifierTimeoutMs int64 `yaml:"verifier_timeout_ms"`
}

var Config Configuration

const (
	DefaultTimeoutMs         = 30 * 60 * 1000
	DefaultVerifierTimeoutMs = 10 * 1000
)

// maximum number of EVM RPC retries
const EVM_RETRIES = 3

// EVM-chains configs
type ChainConfig struct {
	Name             string
	ChainID          int
	RPCList          []string
	ContractAddress  string // wrapped carbon token address
	MinConfirmations int
}

var EVMChains = map[int]ChainConfig{
	137: {
		Name:             "Polygon",
		ChainID:          137,
		RPCList:          []string{"https://polygon-rpc.com", "https://polygon.drpc.org"},
		ContractAddress:  "",
		MinConfirmations: 3,
	},
	80002: {
		Name:             "Amoy",
		ChainID:          80002,
		RPCList:          []string{"https://rpc-amoy.polygon.technology"},
		ContractAddress:  "",
		MinConfirmations: 1,
	},
}

// ChainDecimals is the decimal scale of the carbon asset on each chain.
// Amounts are converted between scales, never truncated silently.
var ChainDecimals = map[types.ChainID]int32{
	types.ChainAlgorand: 6,
	types.ChainEVM:      18,
}

// Validate applies struct tags and the cross-field rules that cannot be
// expressed as tags. Called once at startup; a failure here means the
// system must not accept any operation.
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &types.ConfigurationError{Reason: err.Error()}
	}
	if c.MinVerifierSignatures > len(c.Verifiers) {
		return &types.ConfigurationError{
			Reason: fmt.Sprintf("min_verifier_signatures %d exceeds verifier count %d",
				c.MinVerifierSignatures, len(c.Verifiers)),
		}
	}
	if _, ok := EVMChains[c.EVM.ChainID]; !ok {
		return &types.ConfigurationError{Reason: fmt.Sprintf("unsupported EVM chain id %d", c.EVM.ChainID)}
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.VerifierTimeoutMs <= 0 {
		c.VerifierTimeoutMs = DefaultVerifierTimeoutMs
	}
	return nil
}
