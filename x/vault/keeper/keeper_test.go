package keeper_test

import (
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/testutil"
	"github.com/openalpha/epoch-vault/x/vault/keeper"
	"github.com/openalpha/epoch-vault/x/vault/types"
)

const (
	denom   = "uusdc"
	wrapped = "wusdc"
	poolID  = "usdc-guaranteed"
)

var genesisTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	env       *testutil.Env
	k         *keeper.Keeper
	authority string
	owner     string
	treasury  sdk.AccAddress
	escrow    sdk.AccAddress
}

func newFixture(t require.TestingT) *fixture {
	env, err := testutil.NewEnv(genesisTime, types.StoreKey)
	require.NoError(t, err)

	authority := testutil.AccAddress("gov").String()
	k := keeper.NewKeeper(env.Keys[types.StoreKey], env.Bank, authority, log.NewNopLogger())

	return &fixture{
		env:       env,
		k:         k,
		authority: authority,
		owner:     testutil.AccAddress("owner").String(),
		treasury:  testutil.AccAddress("treasury"),
	}
}

// scenarioConfig is a 10 unit (6 decimals) guaranteed pool accruing 30 bps per hour
func (f *fixture) scenarioConfig() types.PoolConfig {
	return types.PoolConfig{
		PoolID:                 poolID,
		Owner:                  f.owner,
		Treasury:               f.treasury.String(),
		Denom:                  denom,
		WrappedDenom:           wrapped,
		RiskTier:               types.RiskTierGuaranteed,
		Cap:                    math.NewInt(10_000_000),
		YieldRateBps:           30,
		AccrualUnit:            time.Hour,
		WithdrawDelay:          time.Hour,
		WithdrawWindowDuration: 24 * time.Hour,
	}
}

func (f *fixture) createPool(t require.TestingT, cfg types.PoolConfig) *types.Pool {
	pool, err := f.k.CreatePool(f.env.Ctx, f.authority, cfg)
	require.NoError(t, err)
	f.escrow = f.k.EscrowAddress(cfg.PoolID)
	return pool
}

// fundTreasury gives the treasury coins and approves an allowance for the pool
func (f *fixture) fundTreasury(t require.TestingT, id string, amount int64) {
	f.env.Fund(f.treasury, sdk.NewCoins(sdk.NewInt64Coin(denom, amount)))
	require.NoError(t, f.k.ApproveTreasury(f.env.Ctx, f.treasury.String(), id, math.NewInt(amount)))
}

func (f *fixture) user(name string, funds int64) string {
	addr := testutil.AccAddress(name)
	if funds > 0 {
		f.env.Fund(addr, sdk.NewCoins(sdk.NewInt64Coin(denom, funds)))
	}
	return addr.String()
}

func (f *fixture) balance(addr string, d string) math.Int {
	return f.env.Bank.GetBalance(f.env.Ctx, sdk.MustAccAddressFromBech32(addr), d).Amount
}

func (f *fixture) pool(t require.TestingT, id string) *types.Pool {
	p := f.k.GetPool(f.env.Ctx, id)
	require.NotNil(t, p)
	return p
}

func (f *fixture) requireInvariants(t require.TestingT) {
	require.NoError(t, f.k.CheckInvariants(f.env.Ctx))
}

func requireIntEq(t require.TestingT, want int64, got math.Int) {
	require.True(t, math.NewInt(want).Equal(got), "want %d got %s", want, got)
}

func eventTypes(evs sdk.Events) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}
