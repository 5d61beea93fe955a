package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// Deploy moves a collecting pool whose cap is reached into the deployed
// phase. It is permissionless.
func (k *Keeper) Deploy(goCtx context.Context, poolID string) (math.Int, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var snapshot math.Int
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		pool, err := k.mustGetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if !pool.IsCollecting() {
			return types.ErrAlreadyDeployed
		}
		snapshot, err = k.deploy(ctx, pool)
		return err
	})
	if err != nil {
		return math.ZeroInt(), err
	}

	k.metrics.RecordDeploy(poolID)
	return snapshot, nil
}

// deploy snapshots idle plus allocated value into DeployedAssets and starts
// the accrual clock
func (k *Keeper) deploy(ctx sdk.Context, pool *types.Pool) (math.Int, error) {
	collected := k.collectedAssets(ctx, pool)
	if collected.LT(pool.Cap) {
		return math.ZeroInt(), errors.Wrapf(types.ErrCapNotReached, "collected %s of %s", collected, pool.Cap)
	}
	if pool.TotalShares.IsZero() {
		return math.ZeroInt(), errors.Wrap(types.ErrCapNotReached, "no shares outstanding")
	}

	now := ctx.BlockTime()
	pool.Deploy(collected, now)
	k.SetPool(ctx, pool)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeDeployedToStrategy,
			sdk.NewAttribute(types.AttributeKeyPoolID, pool.PoolID),
			sdk.NewAttribute(types.AttributeKeyDeployed, collected.String()),
			sdk.NewAttribute(types.AttributeKeyDeployedAt, strconv.FormatInt(now.Unix(), 10)),
			sdk.NewAttribute(types.AttributeKeyWithdrawAt, strconv.FormatInt(pool.WithdrawOpensAt().Unix(), 10)),
			sdk.NewAttribute(types.AttributeKeyEpoch, strconv.FormatUint(pool.Epoch, 10)),
		),
	)

	k.logger.Info("Pool deployed",
		"pool_id", pool.PoolID,
		"deployed_assets", collected.String(),
		"epoch", pool.Epoch,
	)
	return collected, nil
}

// collectedAssets is idle escrow balance plus assets allocated to strategies
func (k *Keeper) collectedAssets(ctx sdk.Context, pool *types.Pool) math.Int {
	return k.escrowBalance(ctx, pool, pool.Denom).Add(pool.AllocatedAssets)
}

// sweepAndReset closes the current epoch: the pool is reset first, then any
// residual base and wrapped balances are swept to the treasury. Every
// strategy allocation must be settled, so nothing carries into the next epoch.
func (k *Keeper) sweepAndReset(ctx sdk.Context, pool *types.Pool, manual bool) error {
	if !pool.TotalShares.IsZero() {
		return errors.Wrapf(types.ErrSharesOutstanding, "%s shares", pool.TotalShares)
	}
	if pool.AllocatedAssets.IsPositive() {
		return errors.Wrapf(types.ErrAllocationsOutstanding, "%s allocated", pool.AllocatedAssets)
	}

	record := types.EpochRecord{
		PoolID:        pool.PoolID,
		Epoch:         pool.Epoch,
		ResetAt:       ctx.BlockTime().Unix(),
		SweptBase:     math.ZeroInt(),
		SweptWrapped:  math.ZeroInt(),
		SubsidyPulled: pool.SubsidyPulled,
		Manual:        manual,
	}
	if !pool.DeployedAt.IsZero() {
		record.DeployedAt = pool.DeployedAt.Unix()
	}

	pool.ResetForNextEpoch()
	k.SetPool(ctx, pool)

	treasury, err := sdk.AccAddressFromBech32(pool.Treasury)
	if err != nil {
		return errors.Wrapf(types.ErrInvalidAddress, "treasury: %s", err)
	}
	escrow := k.EscrowAddress(pool.PoolID)

	var sweep sdk.Coins
	if bal := k.escrowBalance(ctx, pool, pool.Denom); bal.IsPositive() {
		record.SweptBase = bal
		sweep = sweep.Add(sdk.NewCoin(pool.Denom, bal))
	}
	if pool.WrappedDenom != "" {
		if bal := k.escrowBalance(ctx, pool, pool.WrappedDenom); bal.IsPositive() {
			record.SweptWrapped = bal
			sweep = sweep.Add(sdk.NewCoin(pool.WrappedDenom, bal))
		}
	}
	if !sweep.IsZero() {
		if err := k.bankKeeper.SendCoins(ctx, escrow, treasury, sweep); err != nil {
			return errors.Wrapf(types.ErrTransferFailed, "sweep to treasury: %s", err)
		}
	}
	k.SetEpochRecord(ctx, record)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypePoolReset,
			sdk.NewAttribute(types.AttributeKeyPoolID, pool.PoolID),
			sdk.NewAttribute(types.AttributeKeyTreasury, pool.Treasury),
			sdk.NewAttribute(types.AttributeKeySweptBase, record.SweptBase.String()),
			sdk.NewAttribute(types.AttributeKeySweptWrapped, record.SweptWrapped.String()),
			sdk.NewAttribute(types.AttributeKeyEpoch, strconv.FormatUint(pool.Epoch, 10)),
			sdk.NewAttribute(types.AttributeKeyManual, strconv.FormatBool(manual)),
		),
	)

	k.logger.Info("Pool reset",
		"pool_id", pool.PoolID,
		"closed_epoch", record.Epoch,
		"swept_base", record.SweptBase.String(),
		"swept_wrapped", record.SweptWrapped.String(),
		"manual", manual,
	)
	return nil
}

// ResetPool is the owner's emergency reset. It only applies once every
// share has been redeemed.
func (k *Keeper) ResetPool(goCtx context.Context, sender, poolID string) error {
	ctx := sdk.UnwrapSDKContext(goCtx)

	err := k.atomically(ctx, func(ctx sdk.Context) error {
		pool, err := k.mustGetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.Owner != sender {
			return types.ErrNotOwner
		}
		if !pool.TotalShares.IsZero() {
			return errors.Wrapf(types.ErrSharesOutstanding, "%s shares", pool.TotalShares)
		}
		return k.sweepAndReset(ctx, pool, true)
	})
	if err != nil {
		return err
	}

	k.metrics.RecordReset(poolID, true)
	return nil
}
