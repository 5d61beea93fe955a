package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// MsgServer defines the vault MsgServer
type MsgServer struct {
	keeper *Keeper
}

// NewMsgServerImpl creates a new MsgServer instance
func NewMsgServerImpl(keeper *Keeper) *MsgServer {
	return &MsgServer{keeper: keeper}
}

func parseAmount(field, raw string) (math.Int, error) {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return v, nil
}

// CreatePool handles MsgCreatePool
func (m *MsgServer) CreatePool(ctx context.Context, msg *types.MsgCreatePool) (*types.MsgCreatePoolResponse, error) {
	pool, err := m.keeper.CreatePool(ctx, msg.Authority, msg.Config)
	if err != nil {
		return nil, err
	}
	return &types.MsgCreatePoolResponse{
		PoolID: pool.PoolID,
		Escrow: m.keeper.EscrowAddress(pool.PoolID).String(),
	}, nil
}

// Deposit handles MsgDeposit
func (m *MsgServer) Deposit(ctx context.Context, msg *types.MsgDeposit) (*types.MsgDepositResponse, error) {
	amount, err := parseAmount("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := m.keeper.Deposit(ctx, msg.Depositor, msg.PoolID, amount)
	if err != nil {
		return nil, err
	}
	return &types.MsgDepositResponse{
		SharesMinted: receipt.SharesMinted.String(),
		Deployed:     receipt.Deployed,
	}, nil
}

// DeployToStrategy handles MsgDeployToStrategy
func (m *MsgServer) DeployToStrategy(ctx context.Context, msg *types.MsgDeployToStrategy) (*types.MsgDeployToStrategyResponse, error) {
	deployed, err := m.keeper.Deploy(ctx, msg.PoolID)
	if err != nil {
		return nil, err
	}
	return &types.MsgDeployToStrategyResponse{DeployedAssets: deployed.String()}, nil
}

func withdrawResponse(r *types.WithdrawReceipt) *types.MsgWithdrawResponse {
	return &types.MsgWithdrawResponse{
		PaidOut:   r.PaidOut.String(),
		YieldPaid: r.YieldPaid.String(),
		Subsidy:   r.Subsidy.String(),
		PoolReset: r.PoolReset,
	}
}

// Withdraw handles MsgWithdraw
func (m *MsgServer) Withdraw(ctx context.Context, msg *types.MsgWithdraw) (*types.MsgWithdrawResponse, error) {
	shares, err := parseAmount("shares", msg.Shares)
	if err != nil {
		return nil, err
	}
	receipt, err := m.keeper.Withdraw(ctx, msg.Withdrawer, msg.PoolID, shares)
	if err != nil {
		return nil, err
	}
	return withdrawResponse(receipt), nil
}

// WithdrawAll handles MsgWithdrawAll
func (m *MsgServer) WithdrawAll(ctx context.Context, msg *types.MsgWithdrawAll) (*types.MsgWithdrawResponse, error) {
	receipt, err := m.keeper.WithdrawAll(ctx, msg.Withdrawer, msg.PoolID)
	if err != nil {
		return nil, err
	}
	return withdrawResponse(receipt), nil
}

// ResetPool handles MsgResetPool
func (m *MsgServer) ResetPool(ctx context.Context, msg *types.MsgResetPool) (*types.MsgEmptyResponse, error) {
	if err := m.keeper.ResetPool(ctx, msg.Owner, msg.PoolID); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// TransferOwnership handles MsgTransferOwnership
func (m *MsgServer) TransferOwnership(ctx context.Context, msg *types.MsgTransferOwnership) (*types.MsgEmptyResponse, error) {
	if err := m.keeper.TransferOwnership(ctx, msg.Owner, msg.PoolID, msg.NewOwner); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// SetTreasury handles MsgSetTreasury
func (m *MsgServer) SetTreasury(ctx context.Context, msg *types.MsgSetTreasury) (*types.MsgEmptyResponse, error) {
	if err := m.keeper.SetTreasury(ctx, msg.Owner, msg.PoolID, msg.Treasury); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// SetCap handles MsgSetCap
func (m *MsgServer) SetCap(ctx context.Context, msg *types.MsgSetCap) (*types.MsgEmptyResponse, error) {
	newCap, err := parseAmount("cap", msg.Cap)
	if err != nil {
		return nil, err
	}
	if err := m.keeper.SetCap(ctx, msg.Owner, msg.PoolID, newCap); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// ApproveTreasury handles MsgApproveTreasury
func (m *MsgServer) ApproveTreasury(ctx context.Context, msg *types.MsgApproveTreasury) (*types.MsgEmptyResponse, error) {
	amount, err := parseAmount("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	if err := m.keeper.ApproveTreasury(ctx, msg.Treasury, msg.PoolID, amount); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}
