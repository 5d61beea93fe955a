package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/strategy/types"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

// GetAllocation returns what poolID has pushed into strategyID
func (k *Keeper) GetAllocation(ctx sdk.Context, poolID, strategyID string) math.Int {
	v, err := k.Allocations.Get(ctx, collections.Join(poolID, strategyID))
	if err != nil {
		return math.ZeroInt()
	}
	return v
}

// PoolAllocations lists the non-zero allocations of one pool
func (k *Keeper) PoolAllocations(ctx sdk.Context, poolID string) ([]types.Allocation, error) {
	return k.collectAllocations(ctx, collections.NewPrefixedPairRange[string, string](poolID))
}

// AllAllocations lists every allocation in the ledger
func (k *Keeper) AllAllocations(ctx sdk.Context) ([]types.Allocation, error) {
	return k.collectAllocations(ctx, nil)
}

func (k *Keeper) collectAllocations(ctx sdk.Context, rng collections.Ranger[collections.Pair[string, string]]) ([]types.Allocation, error) {
	iter, err := k.Allocations.Iterate(ctx, rng)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []types.Allocation
	for ; iter.Valid(); iter.Next() {
		kv, err := iter.KeyValue()
		if err != nil {
			return nil, err
		}
		out = append(out, types.Allocation{PoolID: kv.Key.K1(), StrategyID: kv.Key.K2(), Amount: kv.Value})
	}
	return out, nil
}

func (k *Keeper) hasAllocations(ctx sdk.Context, strategyID string) (bool, error) {
	all, err := k.AllAllocations(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range all {
		if a.StrategyID == strategyID && a.Amount.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}

func (k *Keeper) setAllocation(ctx sdk.Context, poolID, strategyID string, amount math.Int) error {
	key := collections.Join(poolID, strategyID)
	if amount.IsZero() {
		err := k.Allocations.Remove(ctx, key)
		if errors.Is(err, collections.ErrNotFound) {
			return nil
		}
		return err
	}
	return k.Allocations.Set(ctx, key, amount)
}

// allocationTarget resolves the pool and the strategy after the capability
// check has passed
func (k *Keeper) allocationTarget(ctx sdk.Context, agent, poolID, strategyID string, sel types.Selector, amount math.Int) (*vaulttypes.Pool, types.Strategy, error) {
	s, err := k.strategy(ctx, strategyID)
	if err != nil {
		return nil, types.Strategy{}, err
	}
	if err := k.authorize(ctx, agent, strategyID, sel); err != nil {
		return nil, types.Strategy{}, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return nil, types.Strategy{}, types.ErrZeroAmount
	}
	pool := k.vaultKeeper.GetPool(ctx, poolID)
	if pool == nil {
		return nil, types.Strategy{}, errorsmod.Wrapf(types.ErrPoolNotFound, "%s", poolID)
	}
	return pool, s, nil
}

// Allocate moves amount of the pool's idle base asset from its escrow into
// the strategy's custody
func (k *Keeper) Allocate(goCtx context.Context, agent, poolID, strategyID string, amount math.Int) (math.Int, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var allocated math.Int
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		pool, s, err := k.allocationTarget(ctx, agent, poolID, strategyID, types.SelectorAllocate, amount)
		if err != nil {
			return err
		}

		escrow := k.vaultKeeper.EscrowAddress(poolID)
		idle := k.bankKeeper.GetBalance(ctx, escrow, pool.Denom).Amount
		if idle.LT(amount) {
			return errorsmod.Wrapf(types.ErrInsufficientIdle, "idle %s, requested %s", idle, amount)
		}

		allocated = k.GetAllocation(ctx, poolID, strategyID).Add(amount)
		if err := k.setAllocation(ctx, poolID, strategyID, allocated); err != nil {
			return err
		}
		if err := k.vaultKeeper.AdjustAllocated(ctx, poolID, amount); err != nil {
			return err
		}

		coins := sdk.NewCoins(sdk.NewCoin(pool.Denom, amount))
		if err := k.bankKeeper.SendCoins(ctx, escrow, s.CustodyAddress(), coins); err != nil {
			return errorsmod.Wrapf(types.ErrStrategyCallFailed, "transfer to custody: %s", err)
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeAllocated,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyStrategyID, strategyID),
				sdk.NewAttribute(types.AttributeKeyAgent, agent),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
				sdk.NewAttribute(types.AttributeKeyAllocated, allocated.String()),
			),
		)
		return nil
	})
	if err != nil {
		return math.Int{}, err
	}

	k.logger.Info("Allocated to strategy",
		"pool_id", poolID,
		"strategy_id", strategyID,
		"agent", agent,
		"amount", amount.String(),
		"allocated", allocated.String(),
	)
	k.metrics.RecordAllocation(poolID, strategyID, allocated)
	return allocated, nil
}

// Deallocate returns amount from the strategy's custody to the pool escrow
func (k *Keeper) Deallocate(goCtx context.Context, agent, poolID, strategyID string, amount math.Int) (math.Int, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var allocated math.Int
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		pool, s, err := k.allocationTarget(ctx, agent, poolID, strategyID, types.SelectorDeallocate, amount)
		if err != nil {
			return err
		}

		current := k.GetAllocation(ctx, poolID, strategyID)
		if current.LT(amount) {
			return errorsmod.Wrapf(types.ErrInsufficientAllocation, "allocated %s, requested %s", current, amount)
		}

		allocated = current.Sub(amount)
		if err := k.setAllocation(ctx, poolID, strategyID, allocated); err != nil {
			return err
		}
		if err := k.vaultKeeper.AdjustAllocated(ctx, poolID, amount.Neg()); err != nil {
			return err
		}

		coins := sdk.NewCoins(sdk.NewCoin(pool.Denom, amount))
		if err := k.bankKeeper.SendCoins(ctx, s.CustodyAddress(), k.vaultKeeper.EscrowAddress(poolID), coins); err != nil {
			return errorsmod.Wrapf(types.ErrStrategyCallFailed, "transfer from custody: %s", err)
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeDeallocated,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
				sdk.NewAttribute(types.AttributeKeyStrategyID, strategyID),
				sdk.NewAttribute(types.AttributeKeyAgent, agent),
				sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
				sdk.NewAttribute(types.AttributeKeyAllocated, allocated.String()),
			),
		)
		return nil
	})
	if err != nil {
		return math.Int{}, err
	}

	k.logger.Info("Deallocated from strategy",
		"pool_id", poolID,
		"strategy_id", strategyID,
		"agent", agent,
		"amount", amount.String(),
		"allocated", allocated.String(),
	)
	k.metrics.RecordAllocation(poolID, strategyID, allocated)
	return allocated, nil
}
