package types

import (
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// PoolState is the stored lifecycle state of a pool
type PoolState string

const (
	PoolStateCollecting PoolState = "collecting"
	PoolStateDeployed   PoolState = "deployed"
)

// Phase is the observable lifecycle phase. The withdraw window is derived
// from the stored state and DeployedAt, never stored on its own.
type Phase string

const (
	PhaseCollecting         Phase = "collecting"
	PhaseDeployed           Phase = "deployed"
	PhaseWithdrawWindowOpen Phase = "withdraw_window_open"
)

// RiskTier selects how signed yield is treated
type RiskTier string

const (
	RiskTierGuaranteed RiskTier = "guaranteed"
	RiskTierMedium     RiskTier = "medium"
	RiskTierHigh       RiskTier = "high"
)

// IsValid reports whether the tier is known
func (t RiskTier) IsValid() bool {
	switch t {
	case RiskTierGuaranteed, RiskTierMedium, RiskTierHigh:
		return true
	}
	return false
}

// AllowsLoss reports whether accrued yield may go negative
func (t RiskTier) AllowsLoss() bool {
	return t == RiskTierMedium || t == RiskTierHigh
}

// Pool is the root vault aggregate. It is created once and reused across epochs.
type Pool struct {
	PoolID       string   `json:"pool_id"`
	Owner        string   `json:"owner"`
	Treasury     string   `json:"treasury"`
	Denom        string   `json:"denom"`
	WrappedDenom string   `json:"wrapped_denom,omitempty"`
	RiskTier     RiskTier `json:"risk_tier"`

	State PoolState `json:"state"`
	Cap   math.Int  `json:"cap"`

	TotalShares      math.Int `json:"total_shares"`
	DeployedAssets   math.Int `json:"deployed_assets"`
	AccumulatedYield math.Int `json:"accumulated_yield"`
	AllocatedAssets  math.Int `json:"allocated_assets"`

	LastAccrualAt time.Time `json:"last_accrual_at"`
	DeployedAt    time.Time `json:"deployed_at"`

	YieldRateBps           int64         `json:"yield_rate_bps"`
	AccrualUnit            time.Duration `json:"accrual_unit"`
	WithdrawDelay          time.Duration `json:"withdraw_delay"`
	WithdrawWindowDuration time.Duration `json:"withdraw_window_duration"`

	// SubsidyPulled is the treasury subsidy drawn during the current epoch
	SubsidyPulled math.Int `json:"subsidy_pulled"`

	Epoch     uint64 `json:"epoch"`
	CreatedAt int64  `json:"created_at"`
}

// PoolConfig carries the construction-time constants of a pool
type PoolConfig struct {
	PoolID                 string        `json:"pool_id"`
	Owner                  string        `json:"owner"`
	Treasury               string        `json:"treasury"`
	Denom                  string        `json:"denom"`
	WrappedDenom           string        `json:"wrapped_denom,omitempty"`
	RiskTier               RiskTier      `json:"risk_tier"`
	Cap                    math.Int      `json:"cap"`
	YieldRateBps           int64         `json:"yield_rate_bps"`
	AccrualUnit            time.Duration `json:"accrual_unit"`
	WithdrawDelay          time.Duration `json:"withdraw_delay"`
	WithdrawWindowDuration time.Duration `json:"withdraw_window_duration"`
}

// WithDefaults fills unset durations and the tier from module params
func (c PoolConfig) WithDefaults(params Params) PoolConfig {
	if c.RiskTier == "" {
		c.RiskTier = RiskTierGuaranteed
	}
	if c.AccrualUnit == 0 {
		c.AccrualUnit = params.DefaultAccrualUnit
	}
	if c.WithdrawDelay == 0 {
		c.WithdrawDelay = params.DefaultWithdrawDelay
	}
	if c.WithdrawWindowDuration == 0 {
		c.WithdrawWindowDuration = params.DefaultWithdrawWindow
	}
	return c
}

// Validate checks the config against module params
func (c PoolConfig) Validate(params Params) error {
	if strings.TrimSpace(c.PoolID) == "" {
		return errors.Wrap(ErrInvalidPoolConfig, "empty pool id")
	}
	if strings.ContainsRune(c.PoolID, 0) {
		return errors.Wrap(ErrInvalidPoolConfig, "pool id contains a null byte")
	}
	if _, err := sdk.AccAddressFromBech32(c.Owner); err != nil {
		return errors.Wrapf(ErrInvalidPoolConfig, "owner: %s", err)
	}
	if _, err := sdk.AccAddressFromBech32(c.Treasury); err != nil {
		return errors.Wrapf(ErrInvalidPoolConfig, "treasury: %s", err)
	}
	if err := sdk.ValidateDenom(c.Denom); err != nil {
		return errors.Wrapf(ErrInvalidPoolConfig, "denom: %s", err)
	}
	if c.WrappedDenom != "" {
		if err := sdk.ValidateDenom(c.WrappedDenom); err != nil {
			return errors.Wrapf(ErrInvalidPoolConfig, "wrapped denom: %s", err)
		}
		if c.WrappedDenom == c.Denom {
			return errors.Wrap(ErrInvalidPoolConfig, "wrapped denom equals base denom")
		}
	}
	if !c.RiskTier.IsValid() {
		return errors.Wrapf(ErrInvalidPoolConfig, "unknown risk tier %q", c.RiskTier)
	}
	if c.Cap.IsNil() || !c.Cap.IsPositive() {
		return errors.Wrap(ErrInvalidPoolConfig, "cap must be positive")
	}
	if c.AccrualUnit <= 0 {
		return errors.Wrap(ErrInvalidPoolConfig, "accrual unit must be positive")
	}
	if c.WithdrawDelay < 0 || c.WithdrawWindowDuration < 0 {
		return errors.Wrap(ErrInvalidPoolConfig, "durations cannot be negative")
	}
	if c.YieldRateBps < 0 && !c.RiskTier.AllowsLoss() {
		return errors.Wrapf(ErrInvalidPoolConfig, "negative rate %d on %s tier", c.YieldRateBps, c.RiskTier)
	}
	if c.YieldRateBps < -params.MaxYieldRateBps || c.YieldRateBps > params.MaxYieldRateBps {
		return errors.Wrapf(ErrInvalidPoolConfig, "rate %d exceeds max %d", c.YieldRateBps, params.MaxYieldRateBps)
	}
	return nil
}

// NewPool creates an empty, collecting pool from a validated config
func NewPool(cfg PoolConfig, createdAt int64) *Pool {
	return &Pool{
		PoolID:                 cfg.PoolID,
		Owner:                  cfg.Owner,
		Treasury:               cfg.Treasury,
		Denom:                  cfg.Denom,
		WrappedDenom:           cfg.WrappedDenom,
		RiskTier:               cfg.RiskTier,
		State:                  PoolStateCollecting,
		Cap:                    cfg.Cap,
		TotalShares:            math.ZeroInt(),
		DeployedAssets:         math.ZeroInt(),
		AccumulatedYield:       math.ZeroInt(),
		AllocatedAssets:        math.ZeroInt(),
		SubsidyPulled:          math.ZeroInt(),
		YieldRateBps:           cfg.YieldRateBps,
		AccrualUnit:            cfg.AccrualUnit,
		WithdrawDelay:          cfg.WithdrawDelay,
		WithdrawWindowDuration: cfg.WithdrawWindowDuration,
		CreatedAt:              createdAt,
	}
}

// IsCollecting returns true while deposits are accepted
func (p *Pool) IsCollecting() bool {
	return p.State == PoolStateCollecting
}

// IsDeployed returns true once the pool has left the collection phase
func (p *Pool) IsDeployed() bool {
	return p.State == PoolStateDeployed
}

// WithdrawOpensAt is the instant the withdraw window opens for the current epoch
func (p *Pool) WithdrawOpensAt() time.Time {
	return p.DeployedAt.Add(p.WithdrawDelay)
}

// WindowClosesAt is the advertised end of the withdraw window
func (p *Pool) WindowClosesAt() time.Time {
	return p.WithdrawOpensAt().Add(p.WithdrawWindowDuration)
}

// IsWithdrawOpen reports whether withdrawals are allowed at now
func (p *Pool) IsWithdrawOpen(now time.Time) bool {
	return p.IsDeployed() && !now.Before(p.WithdrawOpensAt())
}

// TimeUntilWithdraw returns how long until the window opens, or 0 when it is
// open or the pool is not deployed. It agrees with IsWithdrawOpen.
func (p *Pool) TimeUntilWithdraw(now time.Time) time.Duration {
	if !p.IsDeployed() || p.IsWithdrawOpen(now) {
		return 0
	}
	return p.WithdrawOpensAt().Sub(now)
}

// Phase derives the observable phase at now
func (p *Pool) Phase(now time.Time) Phase {
	switch {
	case p.IsWithdrawOpen(now):
		return PhaseWithdrawWindowOpen
	case p.IsDeployed():
		return PhaseDeployed
	default:
		return PhaseCollecting
	}
}

// Deploy snapshots the collected value and starts accrual
func (p *Pool) Deploy(snapshot math.Int, now time.Time) {
	p.DeployedAssets = snapshot
	p.AccumulatedYield = math.ZeroInt()
	p.DeployedAt = now
	p.LastAccrualAt = now
	p.State = PoolStateDeployed
}

// ResetForNextEpoch zeroes the per-epoch accounting and reopens collection.
// Callers settle every strategy allocation first.
func (p *Pool) ResetForNextEpoch() {
	p.TotalShares = math.ZeroInt()
	p.DeployedAssets = math.ZeroInt()
	p.AccumulatedYield = math.ZeroInt()
	p.SubsidyPulled = math.ZeroInt()
	p.AllocatedAssets = math.ZeroInt()
	p.LastAccrualAt = time.Time{}
	p.DeployedAt = time.Time{}
	p.State = PoolStateCollecting
	p.Epoch++
}

// String implements fmt.Stringer
func (p Pool) String() string {
	return fmt.Sprintf("Pool{ID: %s, State: %s, Epoch: %d, TotalShares: %s, Deployed: %s, Yield: %s}",
		p.PoolID, p.State, p.Epoch, p.TotalShares, p.DeployedAssets, p.AccumulatedYield)
}

// DepositorAccount is a depositor's position in one pool. Accounts are
// zeroed on full exit, never deleted.
type DepositorAccount struct {
	PoolID    string   `json:"pool_id"`
	Depositor string   `json:"depositor"`
	Shares    math.Int `json:"shares"`
	Principal math.Int `json:"principal"`
}

// NewDepositorAccount creates an empty account
func NewDepositorAccount(poolID, depositor string) *DepositorAccount {
	return &DepositorAccount{
		PoolID:    poolID,
		Depositor: depositor,
		Shares:    math.ZeroInt(),
		Principal: math.ZeroInt(),
	}
}

// IsEmpty reports whether the account holds nothing
func (a *DepositorAccount) IsEmpty() bool {
	return a.Shares.IsZero() && a.Principal.IsZero()
}

// TreasuryAllowance is the amount a treasury has pre-authorized the pool to pull
type TreasuryAllowance struct {
	PoolID   string   `json:"pool_id"`
	Treasury string   `json:"treasury"`
	Amount   math.Int `json:"amount"`
}

// EpochRecord summarizes a finished epoch
type EpochRecord struct {
	PoolID        string   `json:"pool_id"`
	Epoch         uint64   `json:"epoch"`
	DeployedAt    int64    `json:"deployed_at"`
	ResetAt       int64    `json:"reset_at"`
	SweptBase     math.Int `json:"swept_base"`
	SweptWrapped  math.Int `json:"swept_wrapped"`
	SubsidyPulled math.Int `json:"subsidy_pulled"`
	Manual        bool     `json:"manual"`
}
