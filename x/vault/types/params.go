package types

import (
	"fmt"
	"time"
)

// Params holds module-wide defaults applied when a pool config leaves a field unset
type Params struct {
	DefaultAccrualUnit    time.Duration `json:"default_accrual_unit"`
	DefaultWithdrawDelay  time.Duration `json:"default_withdraw_delay"`
	DefaultWithdrawWindow time.Duration `json:"default_withdraw_window"`
	// MaxYieldRateBps bounds |YieldRateBps| for every pool
	MaxYieldRateBps int64 `json:"max_yield_rate_bps"`
}

// DefaultParams returns default module parameters
func DefaultParams() Params {
	return Params{
		DefaultAccrualUnit:    time.Minute,
		DefaultWithdrawDelay:  7 * 24 * time.Hour,
		DefaultWithdrawWindow: 3 * 24 * time.Hour,
		MaxYieldRateBps:       BasisPoints,
	}
}

// Validate validates params
func (p Params) Validate() error {
	if p.DefaultAccrualUnit <= 0 {
		return fmt.Errorf("default accrual unit must be positive: %s", p.DefaultAccrualUnit)
	}
	if p.DefaultWithdrawDelay < 0 {
		return fmt.Errorf("default withdraw delay cannot be negative: %s", p.DefaultWithdrawDelay)
	}
	if p.DefaultWithdrawWindow < 0 {
		return fmt.Errorf("default withdraw window cannot be negative: %s", p.DefaultWithdrawWindow)
	}
	if p.MaxYieldRateBps <= 0 || p.MaxYieldRateBps > BasisPoints {
		return fmt.Errorf("max yield rate must be in (0, %d]: %d", BasisPoints, p.MaxYieldRateBps)
	}
	return nil
}
