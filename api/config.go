package api

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
	"gopkg.in/yaml.v3"

	"github.com/openalpha/epoch-vault/api/middleware"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

// EnvPort overrides the configured listen port
const EnvPort = "VAULT_API_PORT"

// Config contains API server configuration
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	DisableRateLimit bool                        `yaml:"disable_rate_limit"`
	RateLimit        *middleware.RateLimitConfig `yaml:"rate_limit"`

	// EnableFaucet exposes POST /v1/faucet for minting test balances
	EnableFaucet bool `yaml:"enable_faucet"`

	// Operators may call the allocation routes as their bound agent.
	// Without operators those routes are not served.
	Operators []OperatorSpec `yaml:"operators"`

	// Authority creates bootstrap pools and registers strategies
	Authority  string         `yaml:"authority"`
	Pools      []PoolSpec     `yaml:"pools"`
	Strategies []StrategySpec `yaml:"strategies"`
}

// OperatorSpec binds an API key to the agent address it acts as
type OperatorSpec struct {
	Agent  string `yaml:"agent"`
	APIKey string `yaml:"api_key"`
}

// minAPIKeyLen rejects keys short enough to guess
const minAPIKeyLen = 16

// PoolSpec describes a pool created at startup
type PoolSpec struct {
	ID             string        `yaml:"id"`
	Owner          string        `yaml:"owner"`
	Treasury       string        `yaml:"treasury"`
	Denom          string        `yaml:"denom"`
	WrappedDenom   string        `yaml:"wrapped_denom"`
	RiskTier       string        `yaml:"risk_tier"`
	Cap            string        `yaml:"cap"`
	YieldRateBps   int64         `yaml:"yield_rate_bps"`
	AccrualUnit    time.Duration `yaml:"accrual_unit"`
	WithdrawDelay  time.Duration `yaml:"withdraw_delay"`
	WithdrawWindow time.Duration `yaml:"withdraw_window"`

	// TreasuryFunding is minted to the treasury and approved as subsidy allowance
	TreasuryFunding string `yaml:"treasury_funding"`
}

// StrategySpec allow-lists a strategy and grants its agents allocate and
// deallocate capabilities
type StrategySpec struct {
	ID          string        `yaml:"id"`
	Custody     string        `yaml:"custody"`
	Description string        `yaml:"description"`
	Agents      []string      `yaml:"agents"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		RateLimit:    middleware.DefaultRateLimitConfig(),
	}
}

// LoadConfig reads a YAML file over the defaults and applies env overrides.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		bz, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(bz, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = middleware.DefaultRateLimitConfig()
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	raw := os.Getenv(EnvPort)
	if raw == "" {
		return nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", EnvPort, err)
	}
	c.Port = port
	return nil
}

// Validate checks listener settings and bootstrap entries
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Authority != "" {
		if _, err := sdk.AccAddressFromBech32(c.Authority); err != nil {
			return fmt.Errorf("invalid authority: %w", err)
		}
	}

	keys := make(map[string]bool, len(c.Operators))
	for _, op := range c.Operators {
		if _, err := sdk.AccAddressFromBech32(op.Agent); err != nil {
			return fmt.Errorf("operator agent %q: %w", op.Agent, err)
		}
		if len(op.APIKey) < minAPIKeyLen {
			return fmt.Errorf("operator %s: api key shorter than %d bytes", op.Agent, minAPIKeyLen)
		}
		if keys[op.APIKey] {
			return fmt.Errorf("operator %s: api key reused", op.Agent)
		}
		keys[op.APIKey] = true
	}

	seen := make(map[string]bool, len(c.Pools))
	for _, p := range c.Pools {
		if seen[p.ID] {
			return fmt.Errorf("duplicate pool %q", p.ID)
		}
		seen[p.ID] = true
		if _, err := p.PoolConfig(""); err != nil {
			return fmt.Errorf("pool %q: %w", p.ID, err)
		}
		if _, err := p.Funding(); err != nil {
			return fmt.Errorf("pool %q: %w", p.ID, err)
		}
	}

	seen = make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("strategy id %q is empty or duplicated", s.ID)
		}
		seen[s.ID] = true
		for _, agent := range s.Agents {
			if _, err := sdk.AccAddressFromBech32(agent); err != nil {
				return fmt.Errorf("strategy %q agent %q: %w", s.ID, agent, err)
			}
		}
	}
	return nil
}

// OperatorKeys maps each operator API key to its agent address
func (c *Config) OperatorKeys() map[string]string {
	keys := make(map[string]string, len(c.Operators))
	for _, op := range c.Operators {
		keys[op.APIKey] = op.Agent
	}
	return keys
}

// Address returns the configured listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PoolConfig converts the entry into a keeper pool configuration. Owner and
// treasury default to fallbackOwner and a derived treasury account.
func (p PoolSpec) PoolConfig(fallbackOwner string) (vaulttypes.PoolConfig, error) {
	poolCap, ok := math.NewIntFromString(p.Cap)
	if !ok {
		return vaulttypes.PoolConfig{}, fmt.Errorf("invalid cap %q", p.Cap)
	}
	owner := p.Owner
	if owner == "" {
		owner = fallbackOwner
	}
	treasury := p.Treasury
	if treasury == "" {
		treasury = BootstrapTreasury(p.ID).String()
	}

	return vaulttypes.PoolConfig{
		PoolID:                 p.ID,
		Owner:                  owner,
		Treasury:               treasury,
		Denom:                  p.Denom,
		WrappedDenom:           p.WrappedDenom,
		RiskTier:               vaulttypes.RiskTier(p.RiskTier),
		Cap:                    poolCap,
		YieldRateBps:           p.YieldRateBps,
		AccrualUnit:            p.AccrualUnit,
		WithdrawDelay:          p.WithdrawDelay,
		WithdrawWindowDuration: p.WithdrawWindow,
	}, nil
}

// Funding returns the treasury funding amount, zero when unset
func (p PoolSpec) Funding() (math.Int, error) {
	if p.TreasuryFunding == "" {
		return math.ZeroInt(), nil
	}
	amt, ok := math.NewIntFromString(p.TreasuryFunding)
	if !ok || amt.IsNegative() {
		return math.ZeroInt(), fmt.Errorf("invalid treasury funding %q", p.TreasuryFunding)
	}
	return amt, nil
}

// BootstrapTreasury derives the treasury used when a pool spec names none
func BootstrapTreasury(poolID string) sdk.AccAddress {
	return sdk.AccAddress(address.Module("vault-api", []byte("treasury/"+poolID)))
}
