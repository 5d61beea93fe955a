package keeper

import (
	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// mint credits a deposit to depositor's account and the pool supply.
// totalAssets is the pre-deposit valuation.
func (k *Keeper) mint(ctx sdk.Context, pool *types.Pool, depositor string, amount, totalAssets math.Int) (math.Int, error) {
	if !pool.IsCollecting() {
		return math.ZeroInt(), types.ErrNotCollecting
	}
	shares, err := types.MintShares(amount, totalAssets, pool.TotalShares)
	if err != nil {
		return math.ZeroInt(), err
	}

	acc := k.getOrCreateAccount(ctx, pool.PoolID, depositor)
	acc.ApplyMint(amount, shares)
	pool.TotalShares = pool.TotalShares.Add(shares)

	k.SetAccount(ctx, acc)
	k.SetPool(ctx, pool)
	return shares, nil
}

// burn settles shareAmount of depositor's shares against the pool's current
// value and writes the reduced account and aggregates. The caller must have
// materialized pending yield first.
func (k *Keeper) burn(ctx sdk.Context, pool *types.Pool, depositor string, shareAmount math.Int) (types.BurnResult, error) {
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return types.BurnResult{}, types.ErrZeroShares
	}
	acc := k.GetAccount(ctx, pool.PoolID, depositor)
	if acc == nil || acc.Shares.LT(shareAmount) {
		held := math.ZeroInt()
		if acc != nil {
			held = acc.Shares
		}
		return types.BurnResult{}, errors.Wrapf(types.ErrInsufficientShares, "have %s, burning %s", held, shareAmount)
	}

	totalAssets := pool.DeployedAssets.Add(pool.AccumulatedYield)
	res, err := types.BurnShares(shareAmount, *acc, totalAssets, pool.TotalShares)
	if err != nil {
		return types.BurnResult{}, err
	}

	acc.ApplyBurn(shareAmount, res)
	pool.ApplyBurn(shareAmount, res)

	k.SetAccount(ctx, acc)
	k.SetPool(ctx, pool)
	return res, nil
}
