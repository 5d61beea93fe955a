// Package memstore runs module keepers on an in-memory multistore with a
// ledger bank, for the standalone API service and keeper tests.
package memstore

import (
	"fmt"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/pkg/ledgerbank"
)

// Env is an in-memory store with a ledger bank mounted next to the module stores
type Env struct {
	Ctx  sdk.Context
	Keys map[string]*storetypes.KVStoreKey
	Bank *ledgerbank.Keeper
	CMS  storetypes.CommitMultiStore
}

// NewEnv mounts a KV store per name plus the ledger bank store
func NewEnv(genesisTime time.Time, storeNames ...string) (*Env, error) {
	db := dbm.NewMemDB()
	cms := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())

	keys := make(map[string]*storetypes.KVStoreKey, len(storeNames)+1)
	for _, name := range append(storeNames, ledgerbank.StoreKey) {
		key := storetypes.NewKVStoreKey(name)
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, db)
		keys[name] = key
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	ctx := sdk.NewContext(cms, cmtproto.Header{
		Time:   genesisTime,
		Height: 1,
	}, false, log.NewNopLogger())

	return &Env{
		Ctx:  ctx,
		Keys: keys,
		Bank: ledgerbank.NewKeeper(keys[ledgerbank.StoreKey], log.NewNopLogger()),
		CMS:  cms,
	}, nil
}

// Advance moves block time forward by d and bumps the height
func (e *Env) Advance(d time.Duration) sdk.Context {
	e.Ctx = e.Ctx.WithBlockTime(e.Ctx.BlockTime().Add(d)).WithBlockHeight(e.Ctx.BlockHeight() + 1)
	return e.Ctx
}

// Fund mints coins to addr
func (e *Env) Fund(addr sdk.AccAddress, coins sdk.Coins) {
	if err := e.Bank.MintCoins(e.Ctx, addr, coins); err != nil {
		panic(err)
	}
}

// Events returns events emitted so far and resets the manager
func (e *Env) Events() sdk.Events {
	evs := e.Ctx.EventManager().Events()
	e.Ctx = e.Ctx.WithEventManager(sdk.NewEventManager())
	return evs
}
