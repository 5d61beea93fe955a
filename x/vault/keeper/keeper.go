package keeper

import (
	"context"
	"encoding/json"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"

	"github.com/openalpha/epoch-vault/metrics"
	"github.com/openalpha/epoch-vault/x/vault/types"
)

// Store key prefixes
var (
	PoolKeyPrefix        = []byte{0x01}
	AccountKeyPrefix     = []byte{0x02}
	AllowanceKeyPrefix   = []byte{0x03}
	EpochRecordKeyPrefix = []byte{0x04}
	ParamsKey            = []byte{0x05}
)

// Keeper manages the vault module state
type Keeper struct {
	storeKey   storetypes.StoreKey
	bankKeeper types.BankKeeper
	metrics    *metrics.Collector
	logger     log.Logger
	authority  string
}

// NewKeeper creates a new vault keeper
func NewKeeper(
	storeKey storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	authority string,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		storeKey:   storeKey,
		bankKeeper: bankKeeper,
		authority:  authority,
		logger:     logger.With("module", "x/vault"),
	}
}

// SetMetrics attaches a metrics collector. Without one nothing is recorded.
func (k *Keeper) SetMetrics(c *metrics.Collector) {
	k.metrics = c
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the governance authority address
func (k *Keeper) GetAuthority() string {
	return k.authority
}

// GetStore returns the KVStore
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

// EscrowAddress derives the account that custodies a pool's assets
func (k *Keeper) EscrowAddress(poolID string) sdk.AccAddress {
	return sdk.AccAddress(address.Module(types.ModuleName, []byte(poolID)))
}

// atomically runs fn on a cache context and commits only if it succeeds.
// Events emitted inside fn are dropped with the cache on failure.
func (k *Keeper) atomically(ctx sdk.Context, fn func(sdk.Context) error) error {
	cacheCtx, write := ctx.CacheContext()
	if err := fn(cacheCtx); err != nil {
		return err
	}
	write()
	return nil
}

func prefixed(prefix []byte, parts ...string) []byte {
	key := make([]byte, 0, 64)
	key = append(key, prefix...)
	for i, p := range parts {
		if i > 0 {
			key = append(key, 0x00)
		}
		key = append(key, p...)
	}
	return key
}

func poolKey(poolID string) []byte {
	return prefixed(PoolKeyPrefix, poolID)
}

func accountKey(poolID, depositor string) []byte {
	return prefixed(AccountKeyPrefix, poolID, depositor)
}

func accountPoolPrefix(poolID string) []byte {
	return append(prefixed(AccountKeyPrefix, poolID), 0x00)
}

func allowanceKey(poolID, treasury string) []byte {
	return prefixed(AllowanceKeyPrefix, poolID, treasury)
}

func epochRecordKey(poolID string, epoch uint64) []byte {
	return append(append(prefixed(EpochRecordKeyPrefix, poolID), 0x00), sdk.Uint64ToBigEndian(epoch)...)
}

func (k *Keeper) set(ctx sdk.Context, key []byte, v interface{}) {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	k.GetStore(ctx).Set(key, bz)
}

func (k *Keeper) get(ctx sdk.Context, key []byte, v interface{}) bool {
	bz := k.GetStore(ctx).Get(key)
	if bz == nil {
		return false
	}
	if err := json.Unmarshal(bz, v); err != nil {
		k.logger.Error("corrupt store entry", "key", string(key), "error", err)
		return false
	}
	return true
}

// ============ Params ============

// GetParams returns module params, falling back to defaults
func (k *Keeper) GetParams(ctx sdk.Context) types.Params {
	var params types.Params
	if !k.get(ctx, ParamsKey, &params) {
		return types.DefaultParams()
	}
	return params
}

// SetParams stores module params
func (k *Keeper) SetParams(ctx sdk.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	k.set(ctx, ParamsKey, params)
	return nil
}

// ============ Pool Operations ============

// SetPool saves a pool to the store
func (k *Keeper) SetPool(ctx sdk.Context, pool *types.Pool) {
	k.set(ctx, poolKey(pool.PoolID), pool)
}

// GetPool retrieves a pool from the store
func (k *Keeper) GetPool(ctx sdk.Context, poolID string) *types.Pool {
	var pool types.Pool
	if !k.get(ctx, poolKey(poolID), &pool) {
		return nil
	}
	return &pool
}

// mustGetPool is GetPool returning ErrPoolNotFound
func (k *Keeper) mustGetPool(ctx sdk.Context, poolID string) (*types.Pool, error) {
	pool := k.GetPool(ctx, poolID)
	if pool == nil {
		return nil, types.ErrPoolNotFound.Wrap(poolID)
	}
	return pool, nil
}

// GetAllPools returns all pools
func (k *Keeper) GetAllPools(ctx sdk.Context) []*types.Pool {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), PoolKeyPrefix)
	defer iterator.Close()

	var pools []*types.Pool
	for ; iterator.Valid(); iterator.Next() {
		var pool types.Pool
		if err := json.Unmarshal(iterator.Value(), &pool); err != nil {
			continue
		}
		pools = append(pools, &pool)
	}
	return pools
}

// ============ Depositor Accounts ============

// SetAccount saves a depositor account
func (k *Keeper) SetAccount(ctx sdk.Context, acc *types.DepositorAccount) {
	k.set(ctx, accountKey(acc.PoolID, acc.Depositor), acc)
}

// GetAccount returns a depositor account, or nil if it never deposited
func (k *Keeper) GetAccount(ctx sdk.Context, poolID, depositor string) *types.DepositorAccount {
	var acc types.DepositorAccount
	if !k.get(ctx, accountKey(poolID, depositor), &acc) {
		return nil
	}
	return &acc
}

// getOrCreateAccount returns the stored account or a fresh zeroed one
func (k *Keeper) getOrCreateAccount(ctx sdk.Context, poolID, depositor string) *types.DepositorAccount {
	if acc := k.GetAccount(ctx, poolID, depositor); acc != nil {
		return acc
	}
	return types.NewDepositorAccount(poolID, depositor)
}

// GetPoolAccounts returns every account of a pool, including zeroed ones
func (k *Keeper) GetPoolAccounts(ctx sdk.Context, poolID string) []*types.DepositorAccount {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), accountPoolPrefix(poolID))
	defer iterator.Close()

	var accounts []*types.DepositorAccount
	for ; iterator.Valid(); iterator.Next() {
		var acc types.DepositorAccount
		if err := json.Unmarshal(iterator.Value(), &acc); err != nil {
			continue
		}
		accounts = append(accounts, &acc)
	}
	return accounts
}

// ============ Treasury Allowances ============

// GetTreasuryAllowance returns what treasury has authorized the pool to pull
func (k *Keeper) GetTreasuryAllowance(ctx sdk.Context, poolID, treasury string) math.Int {
	var a types.TreasuryAllowance
	if !k.get(ctx, allowanceKey(poolID, treasury), &a) {
		return math.ZeroInt()
	}
	return a.Amount
}

// SetTreasuryAllowance stores an allowance
func (k *Keeper) SetTreasuryAllowance(ctx sdk.Context, a types.TreasuryAllowance) {
	k.set(ctx, allowanceKey(a.PoolID, a.Treasury), a)
}

// GetAllAllowances returns all stored allowances
func (k *Keeper) GetAllAllowances(ctx sdk.Context) []types.TreasuryAllowance {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), AllowanceKeyPrefix)
	defer iterator.Close()

	var out []types.TreasuryAllowance
	for ; iterator.Valid(); iterator.Next() {
		var a types.TreasuryAllowance
		if err := json.Unmarshal(iterator.Value(), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ============ Epoch Records ============

// SetEpochRecord stores the summary of a finished epoch
func (k *Keeper) SetEpochRecord(ctx sdk.Context, rec types.EpochRecord) {
	k.set(ctx, epochRecordKey(rec.PoolID, rec.Epoch), rec)
}

// GetEpochRecords returns the finished epochs of a pool, oldest first
func (k *Keeper) GetEpochRecords(ctx sdk.Context, poolID string) []types.EpochRecord {
	prefix := append(prefixed(EpochRecordKeyPrefix, poolID), 0x00)
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), prefix)
	defer iterator.Close()

	var out []types.EpochRecord
	for ; iterator.Valid(); iterator.Next() {
		var rec types.EpochRecord
		if err := json.Unmarshal(iterator.Value(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// getAllEpochRecords returns every epoch record in the store
func (k *Keeper) getAllEpochRecords(ctx sdk.Context) []types.EpochRecord {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), EpochRecordKeyPrefix)
	defer iterator.Close()

	var out []types.EpochRecord
	for ; iterator.Valid(); iterator.Next() {
		var rec types.EpochRecord
		if err := json.Unmarshal(iterator.Value(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ============ Bank helpers ============

// escrowBalance is the on-hand balance of denom held for the pool
func (k *Keeper) escrowBalance(ctx context.Context, pool *types.Pool, denom string) math.Int {
	return k.bankKeeper.GetBalance(ctx, k.EscrowAddress(pool.PoolID), denom).Amount
}
