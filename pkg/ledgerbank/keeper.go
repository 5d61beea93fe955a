// Package ledgerbank is a minimal store-backed bank for running the vault
// keepers outside a full chain. Balances live in the same multistore as the
// module state, so a discarded cache context rolls transfers back too.
package ledgerbank

import (
	"context"

	"cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// StoreKey is the default store key name
const StoreKey = "ledgerbank"

// BalanceKeyPrefix prefixes every balance entry
var BalanceKeyPrefix = []byte{0x01}

// Keeper holds balances keyed by address and denom
type Keeper struct {
	storeKey storetypes.StoreKey
	logger   log.Logger
	blocked  map[string]bool
}

// NewKeeper creates a new ledger bank
func NewKeeper(storeKey storetypes.StoreKey, logger log.Logger) *Keeper {
	return &Keeper{
		storeKey: storeKey,
		logger:   logger.With("module", "ledgerbank"),
		blocked:  make(map[string]bool),
	}
}

// BlockAddress makes every send from or to addr fail
func (k *Keeper) BlockAddress(addr sdk.AccAddress) {
	k.blocked[addr.String()] = true
}

// UnblockAddress lifts BlockAddress
func (k *Keeper) UnblockAddress(addr sdk.AccAddress) {
	delete(k.blocked, addr.String())
}

func balanceKey(addr sdk.AccAddress, denom string) []byte {
	key := append([]byte{}, BalanceKeyPrefix...)
	key = append(key, address.MustLengthPrefix(addr)...)
	return append(key, denom...)
}

func (k *Keeper) store(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(k.storeKey)
}

// GetBalance returns the balance of denom held by addr
func (k *Keeper) GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin {
	bz := k.store(ctx).Get(balanceKey(addr, denom))
	if bz == nil {
		return sdk.NewCoin(denom, math.ZeroInt())
	}
	var amount math.Int
	if err := amount.Unmarshal(bz); err != nil {
		k.logger.Error("corrupt balance", "address", addr.String(), "denom", denom, "error", err)
		return sdk.NewCoin(denom, math.ZeroInt())
	}
	return sdk.NewCoin(denom, amount)
}

// GetAllBalances returns every non-zero balance of addr
func (k *Keeper) GetAllBalances(ctx context.Context, addr sdk.AccAddress) sdk.Coins {
	prefix := append(append([]byte{}, BalanceKeyPrefix...), address.MustLengthPrefix(addr)...)
	iterator := storetypes.KVStorePrefixIterator(k.store(ctx), prefix)
	defer iterator.Close()

	var coins sdk.Coins
	for ; iterator.Valid(); iterator.Next() {
		var amount math.Int
		if err := amount.Unmarshal(iterator.Value()); err != nil {
			continue
		}
		denom := string(iterator.Key()[len(prefix):])
		if amount.IsPositive() {
			coins = coins.Add(sdk.NewCoin(denom, amount))
		}
	}
	return coins
}

func (k *Keeper) setBalance(ctx context.Context, addr sdk.AccAddress, coin sdk.Coin) {
	if coin.Amount.IsZero() {
		k.store(ctx).Delete(balanceKey(addr, coin.Denom))
		return
	}
	bz, err := coin.Amount.Marshal()
	if err != nil {
		panic(err)
	}
	k.store(ctx).Set(balanceKey(addr, coin.Denom), bz)
}

// SendCoins moves amt from fromAddr to toAddr
func (k *Keeper) SendCoins(ctx context.Context, fromAddr, toAddr sdk.AccAddress, amt sdk.Coins) error {
	if !amt.IsValid() {
		return errors.Wrap(sdkerrors.ErrInvalidCoins, amt.String())
	}
	if k.blocked[fromAddr.String()] || k.blocked[toAddr.String()] {
		return errors.Wrapf(sdkerrors.ErrUnauthorized, "transfer %s -> %s blocked", fromAddr, toAddr)
	}
	for _, coin := range amt {
		bal := k.GetBalance(ctx, fromAddr, coin.Denom)
		if bal.Amount.LT(coin.Amount) {
			return errors.Wrapf(sdkerrors.ErrInsufficientFunds, "%s < %s", bal, coin)
		}
	}
	for _, coin := range amt {
		from := k.GetBalance(ctx, fromAddr, coin.Denom)
		k.setBalance(ctx, fromAddr, from.Sub(coin))
		to := k.GetBalance(ctx, toAddr, coin.Denom)
		k.setBalance(ctx, toAddr, to.Add(coin))
	}
	return nil
}

// MintCoins credits amt to addr out of thin air
func (k *Keeper) MintCoins(ctx context.Context, addr sdk.AccAddress, amt sdk.Coins) error {
	if !amt.IsValid() {
		return errors.Wrap(sdkerrors.ErrInvalidCoins, amt.String())
	}
	for _, coin := range amt {
		bal := k.GetBalance(ctx, addr, coin.Denom)
		k.setBalance(ctx, addr, bal.Add(coin))
	}
	return nil
}
