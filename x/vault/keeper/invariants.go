package keeper

import (
	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// CheckInvariants walks every pool and verifies share supply against the
// accounts, principal conservation and the per-pool state invariants
func (k *Keeper) CheckInvariants(ctx sdk.Context) error {
	for _, pool := range k.GetAllPools(ctx) {
		if err := pool.CheckInvariants(); err != nil {
			return err
		}

		shares := math.ZeroInt()
		principal := math.ZeroInt()
		for _, acc := range k.GetPoolAccounts(ctx, pool.PoolID) {
			if acc.Shares.IsNegative() || acc.Principal.IsNegative() {
				return errors.Wrapf(types.ErrInvariantBroken, "account %s in %s is negative", acc.Depositor, pool.PoolID)
			}
			shares = shares.Add(acc.Shares)
			principal = principal.Add(acc.Principal)
		}
		if !shares.Equal(pool.TotalShares) {
			return errors.Wrapf(types.ErrInvariantBroken, "pool %s total shares %s, accounts hold %s",
				pool.PoolID, pool.TotalShares, shares)
		}

		backing := pool.DeployedAssets
		if pool.IsCollecting() {
			backing = k.collectedAssets(ctx, pool)
		}
		if principal.GT(backing) {
			return errors.Wrapf(types.ErrInvariantBroken, "pool %s principal %s exceeds backing %s",
				pool.PoolID, principal, backing)
		}
	}
	return nil
}
