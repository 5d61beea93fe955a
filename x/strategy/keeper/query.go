package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

// QueryServer serves read-only strategy queries
type QueryServer struct {
	keeper *Keeper
}

// NewQueryServerImpl creates a new QueryServer instance
func NewQueryServerImpl(keeper *Keeper) *QueryServer {
	return &QueryServer{keeper: keeper}
}

// Strategy returns one allow-list entry, enabled or not
func (q *QueryServer) Strategy(ctx context.Context, strategyID string) (types.Strategy, error) {
	s, err := q.keeper.Strategies.Get(sdk.UnwrapSDKContext(ctx), strategyID)
	if errors.Is(err, collections.ErrNotFound) {
		return types.Strategy{}, errorsmod.Wrapf(types.ErrUnknownStrategy, "%s", strategyID)
	}
	return s, err
}

// Strategies returns the whole allow-list
func (q *QueryServer) Strategies(ctx context.Context) ([]types.Strategy, error) {
	iter, err := q.keeper.Strategies.Iterate(sdk.UnwrapSDKContext(ctx), nil)
	if err != nil {
		return nil, err
	}
	return iter.Values()
}

// Allocation returns the amount poolID has pushed into strategyID
func (q *QueryServer) Allocation(ctx context.Context, poolID, strategyID string) math.Int {
	return q.keeper.GetAllocation(sdk.UnwrapSDKContext(ctx), poolID, strategyID)
}

// PoolAllocations returns every allocation of poolID
func (q *QueryServer) PoolAllocations(ctx context.Context, poolID string) ([]types.Allocation, error) {
	return q.keeper.PoolAllocations(sdk.UnwrapSDKContext(ctx), poolID)
}

// Capabilities returns what agent is allowed to call
func (q *QueryServer) Capabilities(ctx context.Context, agent string) ([]types.CapabilityEntry, error) {
	return q.keeper.AgentCapabilities(sdk.UnwrapSDKContext(ctx), agent)
}
