package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

// InitGenesis loads the allow-list, capabilities and allocations
func (k *Keeper) InitGenesis(ctx sdk.Context, gs types.GenesisState) {
	for _, s := range gs.Strategies {
		if err := k.Strategies.Set(ctx, s.ID, s); err != nil {
			panic(err)
		}
	}
	for _, c := range gs.Capabilities {
		sel, err := types.ParseSelector(c.Selector)
		if err != nil {
			panic(err)
		}
		if err := k.Capabilities.Set(ctx, capabilityKey(c.Agent, c.StrategyID, sel), c.Capability); err != nil {
			panic(err)
		}
	}
	for _, a := range gs.Allocations {
		if err := k.setAllocation(ctx, a.PoolID, a.StrategyID, a.Amount); err != nil {
			panic(err)
		}
	}
	k.logger.Info("Strategy genesis initialized", "strategies", len(gs.Strategies), "capabilities", len(gs.Capabilities))
}

// ExportGenesis dumps module state
func (k *Keeper) ExportGenesis(ctx sdk.Context) (*types.GenesisState, error) {
	gs := types.DefaultGenesis()

	iter, err := k.Strategies.Iterate(ctx, nil)
	if err != nil {
		return nil, err
	}
	strategies, err := iter.Values()
	if err != nil {
		return nil, err
	}
	gs.Strategies = append(gs.Strategies, strategies...)

	caps, err := k.collectCapabilities(ctx, nil)
	if err != nil {
		return nil, err
	}
	gs.Capabilities = append(gs.Capabilities, caps...)

	allocs, err := k.AllAllocations(ctx)
	if err != nil {
		return nil, err
	}
	gs.Allocations = append(gs.Allocations, allocs...)
	return gs, nil
}
