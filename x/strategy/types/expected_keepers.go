package types

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

// VaultKeeper is the slice of the vault keeper the allocation ledger uses
type VaultKeeper interface {
	GetPool(ctx sdk.Context, poolID string) *vaulttypes.Pool
	EscrowAddress(poolID string) sdk.AccAddress
	AdjustAllocated(ctx sdk.Context, poolID string, delta math.Int) error
}

// BankKeeper defines the expected bank keeper interface
type BankKeeper interface {
	SendCoins(ctx context.Context, fromAddr, toAddr sdk.AccAddress, amt sdk.Coins) error
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin
}
