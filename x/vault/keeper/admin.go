package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// CreatePool registers a new pool. Only the module authority may create pools.
func (k *Keeper) CreatePool(goCtx context.Context, authority string, cfg types.PoolConfig) (*types.Pool, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	if authority != k.authority {
		return nil, errors.Wrapf(types.ErrUnauthorized, "expected %s, got %s", k.authority, authority)
	}

	var pool *types.Pool
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		cfg = cfg.WithDefaults(k.GetParams(ctx))
		if err := cfg.Validate(k.GetParams(ctx)); err != nil {
			return err
		}
		if k.GetPool(ctx, cfg.PoolID) != nil {
			return errors.Wrap(types.ErrPoolExists, cfg.PoolID)
		}

		pool = types.NewPool(cfg, ctx.BlockTime().Unix())
		k.SetPool(ctx, pool)

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypePoolCreated,
				sdk.NewAttribute(types.AttributeKeyPoolID, pool.PoolID),
				sdk.NewAttribute(types.AttributeKeyOwner, pool.Owner),
				sdk.NewAttribute(types.AttributeKeyTreasury, pool.Treasury),
				sdk.NewAttribute(types.AttributeKeyCap, pool.Cap.String()),
			),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	k.logger.Info("Pool created",
		"pool_id", pool.PoolID,
		"owner", pool.Owner,
		"risk_tier", string(pool.RiskTier),
		"cap", pool.Cap.String(),
		"rate_bps", pool.YieldRateBps,
	)
	return pool, nil
}

// updateOwned loads a pool, checks sender owns it and saves what fn changed
func (k *Keeper) updateOwned(goCtx context.Context, sender, poolID string, fn func(ctx sdk.Context, pool *types.Pool) error) error {
	ctx := sdk.UnwrapSDKContext(goCtx)
	return k.atomically(ctx, func(ctx sdk.Context) error {
		pool, err := k.mustGetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.Owner != sender {
			return types.ErrNotOwner
		}
		if err := fn(ctx, pool); err != nil {
			return err
		}
		k.SetPool(ctx, pool)
		return nil
	})
}

// TransferOwnership hands the pool to newOwner
func (k *Keeper) TransferOwnership(goCtx context.Context, sender, poolID, newOwner string) error {
	if _, err := sdk.AccAddressFromBech32(newOwner); err != nil {
		return errors.Wrapf(types.ErrInvalidAddress, "new owner: %s", err)
	}
	return k.updateOwned(goCtx, sender, poolID, func(ctx sdk.Context, pool *types.Pool) error {
		pool.Owner = newOwner
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeOwnershipChanged,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyPreviousOwner, sender),
				sdk.NewAttribute(types.AttributeKeyOwner, newOwner),
			),
		)
		return nil
	})
}

// SetTreasury points the pool at a new treasury. The new treasury starts
// with no allowance until it approves one.
func (k *Keeper) SetTreasury(goCtx context.Context, sender, poolID, treasury string) error {
	if _, err := sdk.AccAddressFromBech32(treasury); err != nil {
		return errors.Wrapf(types.ErrInvalidAddress, "treasury: %s", err)
	}
	return k.updateOwned(goCtx, sender, poolID, func(ctx sdk.Context, pool *types.Pool) error {
		pool.Treasury = treasury
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeTreasuryChanged,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyTreasury, treasury),
			),
		)
		return nil
	})
}

// SetCap changes the cap of a collecting pool
func (k *Keeper) SetCap(goCtx context.Context, sender, poolID string, newCap math.Int) error {
	if newCap.IsNil() || !newCap.IsPositive() {
		return errors.Wrap(types.ErrInvalidPoolConfig, "cap must be positive")
	}
	return k.updateOwned(goCtx, sender, poolID, func(ctx sdk.Context, pool *types.Pool) error {
		if !pool.IsCollecting() {
			return types.ErrNotCollecting
		}
		pool.Cap = newCap
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeCapChanged,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyCap, newCap.String()),
				sdk.NewAttribute(types.AttributeKeyEpoch, strconv.FormatUint(pool.Epoch, 10)),
			),
		)
		return nil
	})
}

// AdjustAllocated moves the pool-wide allocated counter by delta. It is the
// only entry point the strategy module uses to touch pool accounting.
func (k *Keeper) AdjustAllocated(ctx sdk.Context, poolID string, delta math.Int) error {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return err
	}
	next := pool.AllocatedAssets.Add(delta)
	if next.IsNegative() {
		return errors.Wrapf(types.ErrAllocationUnderflow, "allocated %s, delta %s", pool.AllocatedAssets, delta)
	}
	pool.AllocatedAssets = next
	k.SetPool(ctx, pool)
	return nil
}
