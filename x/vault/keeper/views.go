package keeper

import (
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// TotalAssetsCollecting is idle plus allocated value while collecting, else 0
func (k *Keeper) TotalAssetsCollecting(ctx sdk.Context, poolID string) (math.Int, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	if !pool.IsCollecting() {
		return math.ZeroInt(), nil
	}
	return k.collectedAssets(ctx, pool), nil
}

// TotalAssetsDeployed is deployed + accumulated + pending yield, floored at 0
func (k *Keeper) TotalAssetsDeployed(ctx sdk.Context, poolID string) (math.Int, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	return types.TotalAssetsDeployed(pool, ctx.BlockTime()), nil
}

// TotalAssets values the pool for its current phase
func (k *Keeper) TotalAssets(ctx sdk.Context, poolID string) (math.Int, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	return k.totalAssets(ctx, pool), nil
}

func (k *Keeper) totalAssets(ctx sdk.Context, pool *types.Pool) math.Int {
	if pool.IsCollecting() {
		return k.collectedAssets(ctx, pool)
	}
	return types.TotalAssetsDeployed(pool, ctx.BlockTime())
}

// YieldEarned is the epoch's accumulated plus pending yield
func (k *Keeper) YieldEarned(ctx sdk.Context, poolID string) (math.Int, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	return types.YieldEarned(pool, ctx.BlockTime()), nil
}

// PreviewWithdraw settles a full exit of depositor on a copy of the pool
// without writing anything
func (k *Keeper) PreviewWithdraw(ctx sdk.Context, poolID, depositor string) (types.WithdrawPreview, error) {
	preview := types.WithdrawPreview{
		Shares:        math.ZeroInt(),
		PaidOut:       math.ZeroInt(),
		YieldPaid:     math.ZeroInt(),
		Principal:     math.ZeroInt(),
		Loss:          math.ZeroInt(),
		SubsidyNeeded: math.ZeroInt(),
	}
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return preview, err
	}
	acc := k.GetAccount(ctx, poolID, depositor)
	if acc == nil || acc.Shares.IsZero() {
		return preview, nil
	}
	preview.Shares = acc.Shares
	preview.Principal = acc.Principal
	if !pool.IsDeployed() {
		return preview, nil
	}

	snapshot := *pool
	types.Materialize(&snapshot, ctx.BlockTime())
	res, err := types.BurnShares(acc.Shares, *acc, snapshot.DeployedAssets.Add(snapshot.AccumulatedYield), snapshot.TotalShares)
	if err != nil {
		return preview, err
	}
	preview.PaidOut = res.UserAssets
	preview.YieldPaid = res.YieldWithdrawn
	preview.Principal = res.PrincipalWithdrawn
	preview.Loss = res.LossRealized
	preview.SubsidyNeeded = types.SubFloorZero(res.UserAssets, k.escrowBalance(ctx, pool, pool.Denom))
	return preview, nil
}

// IsWithdrawOpen reports whether the withdraw window is open
func (k *Keeper) IsWithdrawOpen(ctx sdk.Context, poolID string) (bool, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return false, err
	}
	return pool.IsWithdrawOpen(ctx.BlockTime()), nil
}

// TimeUntilWithdraw returns the wait until the window opens, 0 if open or not deployed
func (k *Keeper) TimeUntilWithdraw(ctx sdk.Context, poolID string) (time.Duration, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return 0, err
	}
	return pool.TimeUntilWithdraw(ctx.BlockTime()), nil
}

// IsCapReached reports whether the collected value meets the cap. A deployed
// pool has by definition reached it.
func (k *Keeper) IsCapReached(ctx sdk.Context, poolID string) (bool, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return false, err
	}
	if pool.IsDeployed() {
		return true, nil
	}
	return k.collectedAssets(ctx, pool).GTE(pool.Cap), nil
}

// CanWithdraw reports whether depositor could withdraw right now
func (k *Keeper) CanWithdraw(ctx sdk.Context, poolID, depositor string) (bool, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return false, err
	}
	if !pool.IsWithdrawOpen(ctx.BlockTime()) {
		return false, nil
	}
	acc := k.GetAccount(ctx, poolID, depositor)
	return acc != nil && acc.Shares.IsPositive(), nil
}

// PoolStatus gathers every view of a pool in one read
func (k *Keeper) PoolStatus(ctx sdk.Context, poolID string) (*types.PoolStatus, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	now := ctx.BlockTime()
	status := &types.PoolStatus{
		Pool:              *pool,
		Phase:             pool.Phase(now),
		Escrow:            k.EscrowAddress(poolID).String(),
		TotalAssets:       k.totalAssets(ctx, pool),
		YieldEarned:       types.YieldEarned(pool, now),
		PendingYield:      types.PendingYield(pool, now),
		IsCapReached:      pool.IsDeployed() || k.collectedAssets(ctx, pool).GTE(pool.Cap),
		IsWithdrawOpen:    pool.IsWithdrawOpen(now),
		TimeUntilWithdraw: pool.TimeUntilWithdraw(now),
	}
	if pool.IsDeployed() {
		status.WindowClosesAt = pool.WindowClosesAt()
	}
	return status, nil
}
