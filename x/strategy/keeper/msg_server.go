package keeper

import (
	"context"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

// MsgServer defines the strategy MsgServer
type MsgServer struct {
	keeper *Keeper
}

// NewMsgServerImpl creates a new MsgServer instance
func NewMsgServerImpl(keeper *Keeper) *MsgServer {
	return &MsgServer{keeper: keeper}
}

// Allocate handles MsgAllocate
func (m *MsgServer) Allocate(ctx context.Context, msg *types.MsgAllocate) (*types.MsgAllocateResponse, error) {
	amount, err := types.ParseAmount(msg.Amount)
	if err != nil {
		return nil, err
	}
	allocated, err := m.keeper.Allocate(ctx, msg.Agent, msg.PoolID, msg.StrategyID, amount)
	if err != nil {
		return nil, err
	}
	return &types.MsgAllocateResponse{Allocated: allocated.String()}, nil
}

// Deallocate handles MsgDeallocate
func (m *MsgServer) Deallocate(ctx context.Context, msg *types.MsgDeallocate) (*types.MsgAllocateResponse, error) {
	amount, err := types.ParseAmount(msg.Amount)
	if err != nil {
		return nil, err
	}
	allocated, err := m.keeper.Deallocate(ctx, msg.Agent, msg.PoolID, msg.StrategyID, amount)
	if err != nil {
		return nil, err
	}
	return &types.MsgAllocateResponse{Allocated: allocated.String()}, nil
}

// CallStrategy handles MsgCallStrategy
func (m *MsgServer) CallStrategy(ctx context.Context, msg *types.MsgCallStrategy) (*types.MsgCallStrategyResponse, error) {
	out, err := m.keeper.CallStrategy(ctx, msg.Agent, msg.StrategyID, msg.Payload)
	if err != nil {
		return nil, err
	}
	return &types.MsgCallStrategyResponse{Result: out}, nil
}

// RegisterStrategy handles MsgRegisterStrategy
func (m *MsgServer) RegisterStrategy(ctx context.Context, msg *types.MsgRegisterStrategy) (*types.MsgEmptyResponse, error) {
	if _, err := m.keeper.RegisterStrategy(ctx, msg.Authority, msg.Strategy); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// GrantCapability handles MsgGrantCapability
func (m *MsgServer) GrantCapability(ctx context.Context, msg *types.MsgGrantCapability) (*types.MsgEmptyResponse, error) {
	sel, err := types.ParseSelector(msg.Selector)
	if err != nil {
		return nil, err
	}
	if err := m.keeper.GrantCapability(ctx, msg.Authority, msg.Agent, msg.StrategyID, sel, msg.MinInterval); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// RevokeCapability handles MsgRevokeCapability
func (m *MsgServer) RevokeCapability(ctx context.Context, msg *types.MsgRevokeCapability) (*types.MsgEmptyResponse, error) {
	sel, err := types.ParseSelector(msg.Selector)
	if err != nil {
		return nil, err
	}
	if err := m.keeper.RevokeCapability(ctx, msg.Authority, msg.Agent, msg.StrategyID, sel); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}
