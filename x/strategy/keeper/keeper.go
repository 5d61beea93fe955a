package keeper

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/collections"
	collcodec "cosmossdk.io/collections/codec"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/metrics"
	"github.com/openalpha/epoch-vault/x/strategy/types"
)

// Keeper owns the strategy allow-list, the capability registry and the
// per-strategy allocation ledger
type Keeper struct {
	Schema       collections.Schema
	Strategies   collections.Map[string, types.Strategy]
	Capabilities collections.Map[collections.Triple[string, string, string], types.Capability]
	Allocations  collections.Map[collections.Pair[string, string], math.Int]

	vaultKeeper types.VaultKeeper
	bankKeeper  types.BankKeeper
	handlers    map[string]types.StrategyHandler
	metrics     *metrics.Collector
	logger      log.Logger
	authority   string
}

// NewKeeper creates a new strategy keeper
func NewKeeper(
	storeKey *storetypes.KVStoreKey,
	vaultKeeper types.VaultKeeper,
	bankKeeper types.BankKeeper,
	authority string,
	logger log.Logger,
) *Keeper {
	sb := collections.NewSchemaBuilder(runtime.NewKVStoreService(storeKey))

	k := &Keeper{
		Strategies: collections.NewMap(sb, types.StrategiesKey, "strategies",
			collections.StringKey, jsonValue[types.Strategy]{}),
		Capabilities: collections.NewMap(sb, types.CapabilitiesKey, "capabilities",
			collections.TripleKeyCodec(collections.StringKey, collections.StringKey, collections.StringKey),
			jsonValue[types.Capability]{}),
		Allocations: collections.NewMap(sb, types.AllocationsKey, "allocations",
			collections.PairKeyCodec(collections.StringKey, collections.StringKey), sdk.IntValue),
		vaultKeeper: vaultKeeper,
		bankKeeper:  bankKeeper,
		handlers:    make(map[string]types.StrategyHandler),
		authority:   authority,
		logger:      logger.With("module", "x/strategy"),
	}

	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema
	return k
}

// SetMetrics attaches a metrics collector
func (k *Keeper) SetMetrics(c *metrics.Collector) {
	k.metrics = c
}

// RegisterHandler binds the executor for a strategy id. Handlers are wired at
// app construction and are not part of consensus state.
func (k *Keeper) RegisterHandler(strategyID string, h types.StrategyHandler) {
	k.handlers[strategyID] = h
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the address allowed to manage strategies and capabilities
func (k *Keeper) GetAuthority() string {
	return k.authority
}

func (k *Keeper) atomically(ctx sdk.Context, fn func(sdk.Context) error) error {
	cacheCtx, write := ctx.CacheContext()
	if err := fn(cacheCtx); err != nil {
		return err
	}
	write()
	return nil
}

// jsonValue stores values as JSON, matching the encoding the vault keeper uses
type jsonValue[T any] struct{}

var _ collcodec.ValueCodec[types.Strategy] = jsonValue[types.Strategy]{}

func (jsonValue[T]) Encode(value T) ([]byte, error) { return json.Marshal(value) }

func (jsonValue[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

func (c jsonValue[T]) EncodeJSON(value T) ([]byte, error) { return c.Encode(value) }

func (c jsonValue[T]) DecodeJSON(b []byte) (T, error) { return c.Decode(b) }

func (jsonValue[T]) Stringify(value T) string { return fmt.Sprintf("%+v", value) }

func (jsonValue[T]) ValueType() string {
	var v T
	return fmt.Sprintf("json/%T", v)
}
