package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// Deposit mints shares for amount against the pre-deposit valuation and
// moves the asset into the pool escrow. A deposit that brings the pool to
// its cap deploys it in the same operation.
func (k *Keeper) Deposit(goCtx context.Context, depositor, poolID string, amount math.Int) (*types.DepositReceipt, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var receipt *types.DepositReceipt
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		pool, err := k.mustGetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if !pool.IsCollecting() {
			return types.ErrNotCollecting
		}
		if amount.IsNil() || !amount.IsPositive() {
			return types.ErrZeroAmount
		}
		from, err := sdk.AccAddressFromBech32(depositor)
		if err != nil {
			return errors.Wrapf(types.ErrInvalidAddress, "depositor: %s", err)
		}

		totalAssets := k.collectedAssets(ctx, pool)
		shares, err := k.mint(ctx, pool, depositor, amount, totalAssets)
		if err != nil {
			return err
		}

		coins := sdk.NewCoins(sdk.NewCoin(pool.Denom, amount))
		if err := k.bankKeeper.SendCoins(ctx, from, k.EscrowAddress(poolID), coins); err != nil {
			return errors.Wrapf(types.ErrTransferFailed, "%s", err)
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeDeposited,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyDepositor, depositor),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
				sdk.NewAttribute(types.AttributeKeyShares, shares.String()),
				sdk.NewAttribute(types.AttributeKeyEpoch, strconv.FormatUint(pool.Epoch, 10)),
			),
		)

		receipt = &types.DepositReceipt{
			PoolID:       poolID,
			Depositor:    depositor,
			Amount:       amount,
			SharesMinted: shares,
			Epoch:        pool.Epoch,
		}

		if totalAssets.Add(amount).GTE(pool.Cap) {
			if _, err := k.deploy(ctx, pool); err != nil {
				return err
			}
			receipt.Deployed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	k.logger.Info("Deposit processed",
		"pool_id", poolID,
		"depositor", depositor,
		"amount", amount.String(),
		"shares", receipt.SharesMinted.String(),
		"deployed", receipt.Deployed,
	)

	k.metrics.RecordDeposit(poolID, amount)
	if receipt.Deployed {
		k.metrics.RecordDeploy(poolID)
	}
	if pool := k.GetPool(ctx, poolID); pool != nil {
		k.metrics.RecordPoolState(poolID, pool.IsDeployed(), pool.TotalShares, pool.DeployedAssets)
	}
	return receipt, nil
}
