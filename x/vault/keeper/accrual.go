package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// materialize folds pending yield into the pool at block time and saves it
func (k *Keeper) materialize(ctx sdk.Context, pool *types.Pool) math.Int {
	before := pool.LastAccrualAt
	accrued := types.Materialize(pool, ctx.BlockTime())
	if !pool.LastAccrualAt.Equal(before) {
		k.SetPool(ctx, pool)
		k.logger.Debug("Yield materialized",
			"pool_id", pool.PoolID,
			"accrued", accrued.String(),
			"accumulated", pool.AccumulatedYield.String(),
		)
	}
	return accrued
}

// Materialize folds pending yield of a pool into its accumulator. Anyone may
// trigger it; the result does not depend on how often it is called.
func (k *Keeper) Materialize(ctx sdk.Context, poolID string) (math.Int, error) {
	var accrued math.Int
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		pool, err := k.mustGetPool(ctx, poolID)
		if err != nil {
			return err
		}
		accrued = k.materialize(ctx, pool)
		return nil
	})
	return accrued, err
}

// PendingYield returns yield accrued since the last materialization
func (k *Keeper) PendingYield(ctx sdk.Context, poolID string) (math.Int, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	return types.PendingYield(pool, ctx.BlockTime()), nil
}
