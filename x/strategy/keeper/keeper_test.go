package keeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/testutil"
	"github.com/openalpha/epoch-vault/x/strategy/keeper"
	"github.com/openalpha/epoch-vault/x/strategy/types"
	vaultkeeper "github.com/openalpha/epoch-vault/x/vault/keeper"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

const (
	denom      = "uusdc"
	poolID     = "usdc-guaranteed"
	strategyID = "lending"
)

var genesisTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	env       *testutil.Env
	vault     *vaultkeeper.Keeper
	k         *keeper.Keeper
	authority string
	agent     string
	treasury  sdk.AccAddress
	escrow    sdk.AccAddress
	custody   sdk.AccAddress
}

// newFixture wires both keepers on one store, creates a 10 unit pool and
// allow-lists a strategy with the default custody account
func newFixture(t *testing.T) *fixture {
	env, err := testutil.NewEnv(genesisTime, vaulttypes.StoreKey, types.StoreKey)
	require.NoError(t, err)

	authority := testutil.AccAddress("gov").String()
	vk := vaultkeeper.NewKeeper(env.Keys[vaulttypes.StoreKey], env.Bank, authority, log.NewNopLogger())
	sk := keeper.NewKeeper(env.Keys[types.StoreKey], vk, env.Bank, authority, log.NewNopLogger())

	f := &fixture{
		env:       env,
		vault:     vk,
		k:         sk,
		authority: authority,
		agent:     testutil.AccAddress("agent").String(),
		treasury:  testutil.AccAddress("treasury"),
		escrow:    vk.EscrowAddress(poolID),
		custody:   types.DefaultCustody(strategyID),
	}

	_, err = vk.CreatePool(env.Ctx, authority, vaulttypes.PoolConfig{
		PoolID:                 poolID,
		Owner:                  testutil.AccAddress("owner").String(),
		Treasury:               f.treasury.String(),
		Denom:                  denom,
		WrappedDenom:           "wusdc",
		RiskTier:               vaulttypes.RiskTierGuaranteed,
		Cap:                    math.NewInt(10_000_000),
		YieldRateBps:           30,
		AccrualUnit:            time.Hour,
		WithdrawDelay:          time.Hour,
		WithdrawWindowDuration: 24 * time.Hour,
	})
	require.NoError(t, err)

	_, err = sk.RegisterStrategy(env.Ctx, authority, types.Strategy{ID: strategyID, Enabled: true})
	require.NoError(t, err)
	return f
}

func (f *fixture) deposit(t *testing.T, name string, amount int64) string {
	addr := testutil.AccAddress(name)
	f.env.Fund(addr, sdk.NewCoins(sdk.NewInt64Coin(denom, amount)))
	_, err := f.vault.Deposit(f.env.Ctx, addr.String(), poolID, math.NewInt(amount))
	require.NoError(t, err)
	return addr.String()
}

func (f *fixture) grant(t *testing.T, sel types.Selector, minInterval time.Duration) {
	require.NoError(t, f.k.GrantCapability(f.env.Ctx, f.authority, f.agent, strategyID, sel, minInterval))
}

func (f *fixture) balance(addr sdk.AccAddress) math.Int {
	return f.env.Bank.GetBalance(f.env.Ctx, addr, denom).Amount
}

func requireIntEq(t *testing.T, want int64, got math.Int) {
	t.Helper()
	require.True(t, math.NewInt(want).Equal(got), "want %d got %s", want, got)
}

func TestScenarioAllocateRequiresCapability(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", 6_000_000)

	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrUnauthorizedAgent)
	requireIntEq(t, 6_000_000, f.balance(f.escrow))

	// a deallocate capability does not cover allocate
	f.grant(t, types.SelectorDeallocate, 0)
	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrUnauthorizedAgent)

	f.grant(t, types.SelectorAllocate, 0)
	allocated, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1_000_000))
	require.NoError(t, err)
	requireIntEq(t, 1_000_000, allocated)
	requireIntEq(t, 5_000_000, f.balance(f.escrow))
	requireIntEq(t, 1_000_000, f.balance(f.custody))
}

func TestAllocateKeepsPoolValuation(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, 0)
	f.grant(t, types.SelectorDeallocate, 0)
	f.deposit(t, "alice", 6_000_000)

	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(2_000_000))
	require.NoError(t, err)

	pool := f.vault.GetPool(f.env.Ctx, poolID)
	requireIntEq(t, 2_000_000, pool.AllocatedAssets)
	requireIntEq(t, 2_000_000, f.k.GetAllocation(f.env.Ctx, poolID, strategyID))
	collecting, err := f.vault.TotalAssetsCollecting(f.env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEq(t, 6_000_000, collecting)
	require.NoError(t, f.vault.CheckInvariants(f.env.Ctx))

	// bob's deposit still mints at the peg and fills the cap
	bob := testutil.AccAddress("bob")
	f.env.Fund(bob, sdk.NewCoins(sdk.NewInt64Coin(denom, 4_000_000)))
	receipt, err := f.vault.Deposit(f.env.Ctx, bob.String(), poolID, math.NewInt(4_000_000))
	require.NoError(t, err)
	requireIntEq(t, 4_000_000, receipt.SharesMinted)
	require.True(t, receipt.Deployed)
	requireIntEq(t, 10_000_000, f.vault.GetPool(f.env.Ctx, poolID).DeployedAssets)

	allocated, err := f.k.Deallocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(2_000_000))
	require.NoError(t, err)
	require.True(t, allocated.IsZero())
	requireIntEq(t, 10_000_000, f.balance(f.escrow))
	require.True(t, f.vault.GetPool(f.env.Ctx, poolID).AllocatedAssets.IsZero())

	allocs, err := f.k.PoolAllocations(f.env.Ctx, poolID)
	require.NoError(t, err)
	require.Empty(t, allocs, "zeroed allocations are removed")
}

func TestAllocationErrors(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, 0)
	f.grant(t, types.SelectorDeallocate, 0)
	f.deposit(t, "alice", 3_000_000)

	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, "unknown", math.NewInt(1))
	require.ErrorIs(t, err, types.ErrUnknownStrategy)

	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(3_000_001))
	require.ErrorIs(t, err, types.ErrInsufficientIdle)

	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.ZeroInt())
	require.ErrorIs(t, err, types.ErrZeroAmount)

	_, err = f.k.Allocate(f.env.Ctx, f.agent, "missing", strategyID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrPoolNotFound)

	_, err = f.k.Deallocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientAllocation)

	_, err = f.k.RegisterStrategy(f.env.Ctx, f.authority, types.Strategy{ID: strategyID, Enabled: false})
	require.NoError(t, err)
	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrUnknownStrategy, "disabled strategies are off the allow-list")

	requireIntEq(t, 3_000_000, f.balance(f.escrow))
	require.True(t, f.vault.GetPool(f.env.Ctx, poolID).AllocatedAssets.IsZero())
}

func TestCapabilityRateLimitIsConsumedAtomically(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, time.Hour)
	f.deposit(t, "alice", 3_000_000)

	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(100))
	require.NoError(t, err)

	f.env.Advance(30 * time.Minute)
	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(100))
	require.ErrorIs(t, err, types.ErrUnauthorizedAgent)

	// a call that fails after the check does not burn the slot
	f.env.Advance(30 * time.Minute)
	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(10_000_000))
	require.ErrorIs(t, err, types.ErrInsufficientIdle)
	c, ok := f.k.GetCapability(f.env.Ctx, f.agent, strategyID, types.SelectorAllocate)
	require.True(t, ok)
	require.True(t, c.LastUsedAt.Equal(genesisTime))

	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(100))
	require.NoError(t, err)
	requireIntEq(t, 200, f.k.GetAllocation(f.env.Ctx, poolID, strategyID))
}

func TestRevokeAndAuthority(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", 1_000_000)

	err := f.k.GrantCapability(f.env.Ctx, f.agent, f.agent, strategyID, types.SelectorAllocate, 0)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.k.RegisterStrategy(f.env.Ctx, f.agent, types.Strategy{ID: "rogue", Enabled: true})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	err = f.k.GrantCapability(f.env.Ctx, f.authority, f.agent, "unknown", types.SelectorAllocate, 0)
	require.ErrorIs(t, err, types.ErrUnknownStrategy)

	f.grant(t, types.SelectorAllocate, 0)
	caps, err := f.k.AgentCapabilities(f.env.Ctx, f.agent)
	require.NoError(t, err)
	require.Len(t, caps, 1)
	require.Equal(t, types.SelectorAllocate.String(), caps[0].Selector)

	require.NoError(t, f.k.RevokeCapability(f.env.Ctx, f.authority, f.agent, strategyID, types.SelectorAllocate))
	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrUnauthorizedAgent)
}

func TestCustodyIsPinnedWhileAllocated(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, 0)
	f.deposit(t, "alice", 1_000_000)
	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(500))
	require.NoError(t, err)

	_, err = f.k.RegisterStrategy(f.env.Ctx, f.authority, types.Strategy{
		ID:      strategyID,
		Custody: testutil.AccAddress("elsewhere").String(),
		Enabled: true,
	})
	require.ErrorIs(t, err, types.ErrStrategyExists)
}

func TestCallStrategy(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", 1_000_000)
	f.env.Fund(f.custody, sdk.NewCoins(sdk.NewInt64Coin(denom, 1_000)))

	harvest := types.SelectorOf("harvest()")
	sink := testutil.AccAddress("sink")
	var fail bool
	f.k.RegisterHandler(strategyID, types.HandlerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		if err := f.env.Bank.SendCoins(ctx, f.custody, sink, sdk.NewCoins(sdk.NewInt64Coin(denom, 400))); err != nil {
			return nil, err
		}
		if fail {
			return nil, errors.New("harvest reverted")
		}
		return append([]byte("ok:"), payload[types.SelectorLen:]...), nil
	}))

	payload := append(harvest[:], 0x2a)
	_, err := f.k.CallStrategy(f.env.Ctx, f.agent, strategyID, payload)
	require.ErrorIs(t, err, types.ErrUnauthorizedAgent)

	f.grant(t, harvest, 0)
	out, err := f.k.CallStrategy(f.env.Ctx, f.agent, strategyID, payload)
	require.NoError(t, err)
	require.Equal(t, []byte("ok:*"), out)
	requireIntEq(t, 400, f.balance(sink))

	evs := f.env.Events()
	last := evs[len(evs)-1]
	require.Equal(t, types.EventTypeExecuted, last.Type)

	fail = true
	_, err = f.k.CallStrategy(f.env.Ctx, f.agent, strategyID, payload)
	require.ErrorIs(t, err, types.ErrStrategyCallFailed)
	// failed call leaves no partial transfer
	requireIntEq(t, 400, f.balance(sink))
	requireIntEq(t, 600, f.balance(f.custody))
	for _, ev := range f.env.Events() {
		require.NotEqual(t, types.EventTypeExecuted, ev.Type)
	}

	_, err = f.k.CallStrategy(f.env.Ctx, f.agent, strategyID, []byte{0x01})
	require.ErrorIs(t, err, types.ErrInvalidPayload)
	_, err = f.k.CallStrategy(f.env.Ctx, f.agent, "unknown", payload)
	require.ErrorIs(t, err, types.ErrUnknownStrategy)
}

func TestCallStrategyWithoutHandler(t *testing.T) {
	f := newFixture(t)
	sel := types.SelectorOf("harvest()")
	f.grant(t, sel, 0)

	_, err := f.k.CallStrategy(f.env.Ctx, f.agent, strategyID, sel[:])
	require.ErrorIs(t, err, types.ErrStrategyCallFailed)
}

func TestGenesisRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, time.Minute)
	f.deposit(t, "alice", 1_000_000)
	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(250))
	require.NoError(t, err)

	gs, err := f.k.ExportGenesis(f.env.Ctx)
	require.NoError(t, err)
	require.NoError(t, gs.Validate())
	require.Len(t, gs.Strategies, 1)
	require.Len(t, gs.Capabilities, 1)
	require.Len(t, gs.Allocations, 1)

	g := newFixture(t)
	g.k.InitGenesis(g.env.Ctx, *gs)
	requireIntEq(t, 250, g.k.GetAllocation(g.env.Ctx, poolID, strategyID))
	c, ok := g.k.GetCapability(g.env.Ctx, f.agent, strategyID, types.SelectorAllocate)
	require.True(t, ok)
	require.Equal(t, time.Minute, c.MinInterval)
}

func TestMsgServer(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", 1_000_000)
	srv := keeper.NewMsgServerImpl(f.k)

	_, err := srv.GrantCapability(f.env.Ctx, &types.MsgGrantCapability{
		Authority:  f.authority,
		Agent:      f.agent,
		StrategyID: strategyID,
		Selector:   types.SigAllocate,
	})
	require.NoError(t, err)

	resp, err := srv.Allocate(f.env.Ctx, &types.MsgAllocate{
		Agent: f.agent, PoolID: poolID, StrategyID: strategyID, Amount: "1000",
	})
	require.NoError(t, err)
	require.Equal(t, "1000", resp.Allocated)

	_, err = srv.Deallocate(f.env.Ctx, &types.MsgDeallocate{
		Agent: f.agent, PoolID: poolID, StrategyID: strategyID, Amount: "1000",
	})
	require.ErrorIs(t, err, types.ErrUnauthorizedAgent)

	_, err = srv.Allocate(f.env.Ctx, &types.MsgAllocate{
		Agent: f.agent, PoolID: poolID, StrategyID: strategyID, Amount: "0",
	})
	require.ErrorIs(t, err, types.ErrZeroAmount)
}

// Value parked in a strategy is never fronted by the treasury, and nothing
// allocated in one epoch is counted by the next.
func TestAllocationsSettleBeforeEpochReset(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, 0)
	f.grant(t, types.SelectorDeallocate, 0)

	f.env.Fund(f.treasury, sdk.NewCoins(sdk.NewInt64Coin(denom, 100_000_000)))
	require.NoError(t, f.vault.ApproveTreasury(f.env.Ctx, f.treasury.String(), poolID, math.NewInt(100_000_000)))

	alice := f.deposit(t, "alice", 10_000_000)
	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(9_000_000))
	require.NoError(t, err)

	f.env.Advance(time.Hour)

	_, err = f.vault.WithdrawAll(f.env.Ctx, alice, poolID)
	require.ErrorIs(t, err, vaulttypes.ErrAllocationsOutstanding)
	requireIntEq(t, 100_000_000, f.balance(f.treasury))
	requireIntEq(t, 1_000_000, f.balance(f.escrow))
	requireIntEq(t, 10_000_000, f.vault.GetPool(f.env.Ctx, poolID).TotalShares)

	_, err = f.k.Deallocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(9_000_000))
	require.NoError(t, err)

	receipt, err := f.vault.WithdrawAll(f.env.Ctx, alice, poolID)
	require.NoError(t, err)
	requireIntEq(t, 10_030_000, receipt.PaidOut)
	requireIntEq(t, 30_000, receipt.Subsidy)
	require.True(t, receipt.PoolReset)
	requireIntEq(t, 99_970_000, f.balance(f.treasury))
	require.True(t, f.balance(f.custody).IsZero())

	pool := f.vault.GetPool(f.env.Ctx, poolID)
	require.True(t, pool.IsCollecting())
	require.True(t, pool.AllocatedAssets.IsZero())
	require.Equal(t, uint64(1), pool.Epoch)

	// the next epoch starts from its own deposits only
	bob := testutil.AccAddress("bob")
	f.env.Fund(bob, sdk.NewCoins(sdk.NewInt64Coin(denom, 1_000_000)))
	dep, err := f.vault.Deposit(f.env.Ctx, bob.String(), poolID, math.NewInt(1_000_000))
	require.NoError(t, err)
	requireIntEq(t, 1_000_000, dep.SharesMinted)
	require.False(t, dep.Deployed)

	_, err = f.vault.Deploy(f.env.Ctx, poolID)
	require.ErrorIs(t, err, vaulttypes.ErrCapNotReached)
	collecting, err := f.vault.TotalAssetsCollecting(f.env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEq(t, 1_000_000, collecting)
	requireIntEq(t, 99_970_000, f.balance(f.treasury))
	require.NoError(t, f.vault.CheckInvariants(f.env.Ctx))
}

func TestResetRequiresSettledAllocations(t *testing.T) {
	f := newFixture(t)
	f.grant(t, types.SelectorAllocate, 0)
	f.grant(t, types.SelectorDeallocate, 0)

	alice := f.deposit(t, "alice", 10_000_000)
	_, err := f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(100_000))
	require.NoError(t, err)

	// a donation lets the escrow alone cover the exit, so only the drain check stops it
	f.env.Fund(f.escrow, sdk.NewCoins(sdk.NewInt64Coin(denom, 200_000)))
	f.env.Advance(time.Hour)

	_, err = f.vault.WithdrawAll(f.env.Ctx, alice, poolID)
	require.ErrorIs(t, err, vaulttypes.ErrAllocationsOutstanding)
	require.True(t, f.balance(testutil.AccAddress("alice")).IsZero())

	_, err = f.k.Deallocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(100_000))
	require.NoError(t, err)
	receipt, err := f.vault.WithdrawAll(f.env.Ctx, alice, poolID)
	require.NoError(t, err)
	require.True(t, receipt.Subsidy.IsZero())
	require.True(t, receipt.PoolReset)
	requireIntEq(t, 170_000, f.balance(f.treasury))

	// an empty pool with assets in custody cannot be reset by the owner either
	f.env.Fund(f.escrow, sdk.NewCoins(sdk.NewInt64Coin(denom, 1_000_000)))
	_, err = f.k.Allocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1_000_000))
	require.NoError(t, err)

	owner := testutil.AccAddress("owner").String()
	require.ErrorIs(t, f.vault.ResetPool(f.env.Ctx, owner, poolID), vaulttypes.ErrAllocationsOutstanding)

	_, err = f.k.Deallocate(f.env.Ctx, f.agent, poolID, strategyID, math.NewInt(1_000_000))
	require.NoError(t, err)
	require.NoError(t, f.vault.ResetPool(f.env.Ctx, owner, poolID))
	require.Equal(t, uint64(2), f.vault.GetPool(f.env.Ctx, poolID).Epoch)
}
