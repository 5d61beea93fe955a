package types

import (
	"cosmossdk.io/errors"
)

// CheckInvariants verifies the per-pool state invariants that do not need
// the depositor set: collecting pools carry no deployed value, an empty
// share supply implies collecting, and counters are never negative.
func (p *Pool) CheckInvariants() error {
	if p.TotalShares.IsNegative() || p.DeployedAssets.IsNegative() || p.AllocatedAssets.IsNegative() {
		return errors.Wrapf(ErrInvariantBroken, "pool %s has a negative counter", p.PoolID)
	}
	if p.IsCollecting() && (!p.DeployedAssets.IsZero() || !p.AccumulatedYield.IsZero()) {
		return errors.Wrapf(ErrInvariantBroken, "pool %s collecting with deployed %s yield %s",
			p.PoolID, p.DeployedAssets, p.AccumulatedYield)
	}
	if p.TotalShares.IsZero() && !p.IsCollecting() {
		return errors.Wrapf(ErrInvariantBroken, "pool %s has no shares but state %s", p.PoolID, p.State)
	}
	if p.AccumulatedYield.IsNegative() && !p.RiskTier.AllowsLoss() {
		return errors.Wrapf(ErrInvariantBroken, "guaranteed pool %s has negative yield", p.PoolID)
	}
	return nil
}
