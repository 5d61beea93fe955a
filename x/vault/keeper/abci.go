package keeper

import (
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// EndBlocker refreshes the pool gauges and checks the ledger invariants.
// Accrual stays lazy; nothing is materialized here.
func (k *Keeper) EndBlocker(ctx sdk.Context) error {
	start := time.Now()

	pools := k.GetAllPools(ctx)
	for _, pool := range pools {
		k.metrics.RecordPoolState(pool.PoolID, pool.IsDeployed(), pool.TotalShares, pool.DeployedAssets)
	}

	if err := k.CheckInvariants(ctx); err != nil {
		k.logger.Error("vault invariant broken",
			"block", ctx.BlockHeight(),
			"error", err,
		)
		return err
	}

	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		k.logger.Warn("vault EndBlocker exceeded latency threshold",
			"block", ctx.BlockHeight(),
			"pools", len(pools),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return nil
}
