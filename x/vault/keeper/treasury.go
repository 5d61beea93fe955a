package keeper

import (
	"context"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// CoverShortfall makes sure the pool escrow can pay owed. When available is
// short it pulls exactly owed-available from the treasury against its
// allowance, or fails with ErrTreasuryShortfall. It never pays partially.
// While assets sit in strategy custody the treasury is not asked to front
// them: the pull fails with ErrAllocationsOutstanding until they are
// deallocated.
func (k *Keeper) CoverShortfall(ctx sdk.Context, pool *types.Pool, owed, available math.Int) (math.Int, error) {
	if owed.LTE(available) {
		return math.ZeroInt(), nil
	}
	shortfall := owed.Sub(available)
	if pool.AllocatedAssets.IsPositive() {
		return math.ZeroInt(), errors.Wrapf(types.ErrAllocationsOutstanding,
			"shortfall %s with %s allocated", shortfall, pool.AllocatedAssets)
	}

	treasury, err := sdk.AccAddressFromBech32(pool.Treasury)
	if err != nil {
		return math.ZeroInt(), errors.Wrapf(types.ErrTreasuryShortfall, "treasury address: %s", err)
	}

	allowance := k.GetTreasuryAllowance(ctx, pool.PoolID, pool.Treasury)
	if allowance.LT(shortfall) {
		return math.ZeroInt(), errors.Wrapf(types.ErrTreasuryShortfall,
			"allowance %s below shortfall %s", allowance, shortfall)
	}
	balance := k.bankKeeper.GetBalance(ctx, treasury, pool.Denom).Amount
	if balance.LT(shortfall) {
		return math.ZeroInt(), errors.Wrapf(types.ErrTreasuryShortfall,
			"treasury balance %s below shortfall %s", balance, shortfall)
	}

	k.SetTreasuryAllowance(ctx, types.TreasuryAllowance{
		PoolID:   pool.PoolID,
		Treasury: pool.Treasury,
		Amount:   allowance.Sub(shortfall),
	})
	pool.SubsidyPulled = pool.SubsidyPulled.Add(shortfall)
	k.SetPool(ctx, pool)

	coins := sdk.NewCoins(sdk.NewCoin(pool.Denom, shortfall))
	if err := k.bankKeeper.SendCoins(ctx, treasury, k.EscrowAddress(pool.PoolID), coins); err != nil {
		return math.ZeroInt(), errors.Wrapf(types.ErrTreasuryShortfall, "pull failed: %s", err)
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTreasurySubsidy,
			sdk.NewAttribute(types.AttributeKeyPoolID, pool.PoolID),
			sdk.NewAttribute(types.AttributeKeyTreasury, pool.Treasury),
			sdk.NewAttribute(types.AttributeKeyAmount, shortfall.String()),
		),
	)

	k.logger.Info("Treasury subsidy pulled",
		"pool_id", pool.PoolID,
		"treasury", pool.Treasury,
		"amount", shortfall.String(),
	)
	return shortfall, nil
}

// ApproveTreasury records how much the pool may pull from its treasury.
// Only the treasury account itself can set it.
func (k *Keeper) ApproveTreasury(goCtx context.Context, sender, poolID string, amount math.Int) error {
	ctx := sdk.UnwrapSDKContext(goCtx)

	if amount.IsNil() || amount.IsNegative() {
		return errors.Wrap(types.ErrZeroAmount, "allowance cannot be negative")
	}
	return k.atomically(ctx, func(ctx sdk.Context) error {
		pool, err := k.mustGetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.Treasury != sender {
			return types.ErrNotTreasury
		}
		k.SetTreasuryAllowance(ctx, types.TreasuryAllowance{
			PoolID:   poolID,
			Treasury: sender,
			Amount:   amount,
		})

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeTreasuryApproved,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyTreasury, sender),
				sdk.NewAttribute(types.AttributeKeyAllowance, amount.String()),
			),
		)
		return nil
	})
}
