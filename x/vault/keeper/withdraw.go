package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// Withdraw burns shareAmount of the withdrawer's shares for principal plus
// yield. All ledger effects are written before the treasury pull and the
// payout. If the burn drains the share supply the pool resets in the same
// operation.
func (k *Keeper) Withdraw(goCtx context.Context, withdrawer, poolID string, shareAmount math.Int) (*types.WithdrawReceipt, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var receipt *types.WithdrawReceipt
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		var err error
		receipt, err = k.withdraw(ctx, withdrawer, poolID, func(*types.DepositorAccount) math.Int { return shareAmount })
		return err
	})
	if err != nil {
		return nil, err
	}
	k.afterWithdraw(ctx, receipt)
	return receipt, nil
}

// WithdrawAll redeems every share the withdrawer holds
func (k *Keeper) WithdrawAll(goCtx context.Context, withdrawer, poolID string) (*types.WithdrawReceipt, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var receipt *types.WithdrawReceipt
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		var err error
		receipt, err = k.withdraw(ctx, withdrawer, poolID, func(acc *types.DepositorAccount) math.Int {
			if acc == nil {
				return math.ZeroInt()
			}
			return acc.Shares
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	k.afterWithdraw(ctx, receipt)
	return receipt, nil
}

func (k *Keeper) withdraw(
	ctx sdk.Context,
	withdrawer, poolID string,
	sharesOf func(*types.DepositorAccount) math.Int,
) (*types.WithdrawReceipt, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	now := ctx.BlockTime()
	if !pool.IsDeployed() {
		return nil, types.ErrNotDeployed
	}
	if !pool.IsWithdrawOpen(now) {
		return nil, errors.Wrapf(types.ErrWindowNotOpen, "opens in %s", pool.TimeUntilWithdraw(now))
	}
	to, err := sdk.AccAddressFromBech32(withdrawer)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAddress, "withdrawer: %s", err)
	}

	shareAmount := sharesOf(k.GetAccount(ctx, poolID, withdrawer))
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return nil, types.ErrZeroShares
	}

	k.materialize(ctx, pool)
	res, err := k.burn(ctx, pool, withdrawer, shareAmount)
	if err != nil {
		return nil, err
	}

	receipt := &types.WithdrawReceipt{
		PoolID:             poolID,
		Withdrawer:         withdrawer,
		SharesBurned:       shareAmount,
		PaidOut:            res.UserAssets,
		YieldPaid:          res.YieldWithdrawn,
		PrincipalWithdrawn: res.PrincipalWithdrawn,
		LossRealized:       res.LossRealized,
		Subsidy:            math.ZeroInt(),
		Epoch:              pool.Epoch,
	}

	if res.UserAssets.IsPositive() {
		available := k.escrowBalance(ctx, pool, pool.Denom)
		receipt.Subsidy, err = k.CoverShortfall(ctx, pool, res.UserAssets, available)
		if err != nil {
			return nil, err
		}
		coins := sdk.NewCoins(sdk.NewCoin(pool.Denom, res.UserAssets))
		if err := k.bankKeeper.SendCoins(ctx, k.EscrowAddress(poolID), to, coins); err != nil {
			return nil, errors.Wrapf(types.ErrTransferFailed, "payout: %s", err)
		}
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeWithdrawn,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeyDepositor, withdrawer),
			sdk.NewAttribute(types.AttributeKeyShares, shareAmount.String()),
			sdk.NewAttribute(types.AttributeKeyPaidOut, res.UserAssets.String()),
			sdk.NewAttribute(types.AttributeKeyYieldPaid, res.YieldWithdrawn.String()),
			sdk.NewAttribute(types.AttributeKeyPrincipal, res.PrincipalWithdrawn.String()),
			sdk.NewAttribute(types.AttributeKeyLoss, res.LossRealized.String()),
			sdk.NewAttribute(types.AttributeKeyEpoch, strconv.FormatUint(pool.Epoch, 10)),
		),
	)

	if pool.TotalShares.IsZero() {
		if err := k.sweepAndReset(ctx, pool, false); err != nil {
			return nil, err
		}
		receipt.PoolReset = true
	}
	return receipt, nil
}

func (k *Keeper) afterWithdraw(ctx sdk.Context, r *types.WithdrawReceipt) {
	k.logger.Info("Withdrawal processed",
		"pool_id", r.PoolID,
		"withdrawer", r.Withdrawer,
		"shares", r.SharesBurned.String(),
		"paid_out", r.PaidOut.String(),
		"yield", r.YieldPaid.String(),
		"subsidy", r.Subsidy.String(),
		"pool_reset", r.PoolReset,
	)

	k.metrics.RecordWithdrawal(r.PoolID, r.PaidOut, r.YieldPaid, r.LossRealized)
	k.metrics.RecordSubsidy(r.PoolID, r.Subsidy)
	if r.PoolReset {
		k.metrics.RecordReset(r.PoolID, false)
	}
	if pool := k.GetPool(ctx, r.PoolID); pool != nil {
		k.metrics.RecordPoolState(r.PoolID, pool.IsDeployed(), pool.TotalShares, pool.DeployedAssets)
	}
}
