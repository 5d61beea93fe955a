package types

import (
	"time"

	"cosmossdk.io/math"
)

// UnitsElapsed returns the whole accrual units since LastAccrualAt
func (p *Pool) UnitsElapsed(now time.Time) int64 {
	if p.AccrualUnit <= 0 || !now.After(p.LastAccrualAt) {
		return 0
	}
	return int64(now.Sub(p.LastAccrualAt) / p.AccrualUnit)
}

// PendingYield returns the signed yield accrued since the last
// materialization: deployed * rateBps * units / 10000, truncated toward zero.
// It is zero unless the pool is deployed with a non-zero base and at least
// one full unit has elapsed. The guaranteed tier never reports a loss.
func PendingYield(p *Pool, now time.Time) math.Int {
	if !p.IsDeployed() || p.DeployedAssets.IsZero() || p.YieldRateBps == 0 {
		return math.ZeroInt()
	}
	units := p.UnitsElapsed(now)
	if units == 0 {
		return math.ZeroInt()
	}
	pending := p.DeployedAssets.
		Mul(math.NewInt(p.YieldRateBps)).
		Mul(math.NewInt(units)).
		Quo(math.NewInt(BasisPoints))
	if pending.IsNegative() && !p.RiskTier.AllowsLoss() {
		return math.ZeroInt()
	}
	return pending
}

// Materialize folds pending yield into AccumulatedYield and advances
// LastAccrualAt by whole units only, keeping the fractional remainder.
// Calling it twice within one unit adds nothing.
func Materialize(p *Pool, now time.Time) math.Int {
	if !p.IsDeployed() {
		return math.ZeroInt()
	}
	units := p.UnitsElapsed(now)
	if units == 0 {
		return math.ZeroInt()
	}
	pending := PendingYield(p, now)
	p.AccumulatedYield = p.AccumulatedYield.Add(pending)
	p.LastAccrualAt = p.LastAccrualAt.Add(time.Duration(units) * p.AccrualUnit)
	return pending
}

// TotalAssetsDeployed is deployed + accumulated + pending, floored at zero
func TotalAssetsDeployed(p *Pool, now time.Time) math.Int {
	if !p.IsDeployed() {
		return math.ZeroInt()
	}
	total := p.DeployedAssets.Add(p.AccumulatedYield).Add(PendingYield(p, now))
	if total.IsNegative() {
		return math.ZeroInt()
	}
	return total
}

// YieldEarned is accumulated plus pending yield for the current epoch
func YieldEarned(p *Pool, now time.Time) math.Int {
	if !p.IsDeployed() {
		return math.ZeroInt()
	}
	return p.AccumulatedYield.Add(PendingYield(p, now))
}
