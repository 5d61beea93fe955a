package keeper

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// QueryServer defines the vault QueryServer
type QueryServer struct {
	keeper *Keeper
}

// NewQueryServerImpl creates a new QueryServer instance
func NewQueryServerImpl(keeper *Keeper) *QueryServer {
	return &QueryServer{keeper: keeper}
}

// Params returns module params
func (q *QueryServer) Params(ctx context.Context) types.Params {
	return q.keeper.GetParams(sdk.UnwrapSDKContext(ctx))
}

// Pool returns a pool by ID
func (q *QueryServer) Pool(ctx context.Context, poolID string) (*types.Pool, error) {
	return q.keeper.mustGetPool(sdk.UnwrapSDKContext(ctx), poolID)
}

// Pools returns a page of pools
func (q *QueryServer) Pools(ctx context.Context, offset, limit uint64) ([]*types.Pool, uint64, error) {
	allPools := q.keeper.GetAllPools(sdk.UnwrapSDKContext(ctx))
	total := uint64(len(allPools))

	// Apply pagination
	if offset >= total {
		return []*types.Pool{}, total, nil
	}
	end := offset + limit
	if end > total || limit == 0 {
		end = total
	}
	return allPools[offset:end], total, nil
}

// PoolStatus returns every derived view of a pool
func (q *QueryServer) PoolStatus(ctx context.Context, poolID string) (*types.PoolStatus, error) {
	return q.keeper.PoolStatus(sdk.UnwrapSDKContext(ctx), poolID)
}

// Account returns a depositor's position, zeroed if it never deposited
func (q *QueryServer) Account(ctx context.Context, poolID, depositor string) (*types.DepositorAccount, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if _, err := q.keeper.mustGetPool(sdkCtx, poolID); err != nil {
		return nil, err
	}
	if acc := q.keeper.GetAccount(sdkCtx, poolID, depositor); acc != nil {
		return acc, nil
	}
	return types.NewDepositorAccount(poolID, depositor), nil
}

// PreviewWithdraw returns what a full exit would settle to
func (q *QueryServer) PreviewWithdraw(ctx context.Context, poolID, depositor string) (types.WithdrawPreview, error) {
	return q.keeper.PreviewWithdraw(sdk.UnwrapSDKContext(ctx), poolID, depositor)
}

// CanWithdraw reports whether depositor may withdraw now
func (q *QueryServer) CanWithdraw(ctx context.Context, poolID, depositor string) (bool, error) {
	return q.keeper.CanWithdraw(sdk.UnwrapSDKContext(ctx), poolID, depositor)
}

// TreasuryAllowance returns the remaining allowance of the pool's treasury
func (q *QueryServer) TreasuryAllowance(ctx context.Context, poolID string) (math.Int, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	pool, err := q.keeper.mustGetPool(sdkCtx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	return q.keeper.GetTreasuryAllowance(sdkCtx, poolID, pool.Treasury), nil
}

// EpochHistory returns finished epochs of a pool
func (q *QueryServer) EpochHistory(ctx context.Context, poolID string) ([]types.EpochRecord, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if _, err := q.keeper.mustGetPool(sdkCtx, poolID); err != nil {
		return nil, err
	}
	return q.keeper.GetEpochRecords(sdkCtx, poolID), nil
}
