package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

func TestDepositMintsAtPeg(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 4_000_000)
	f.env.Events()

	receipt, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(4_000_000))
	require.NoError(t, err)
	requireIntEq(t, 4_000_000, receipt.SharesMinted)
	require.False(t, receipt.Deployed)

	acc := f.k.GetAccount(f.env.Ctx, poolID, alice)
	requireIntEq(t, 4_000_000, acc.Shares)
	requireIntEq(t, 4_000_000, acc.Principal)
	requireIntEq(t, 4_000_000, f.pool(t, poolID).TotalShares)
	requireIntEq(t, 4_000_000, f.balance(f.escrow.String(), denom))
	requireIntEq(t, 0, f.balance(alice, denom))

	require.Equal(t, []string{types.EventTypeDeposited}, eventTypes(f.env.Events()))
	f.requireInvariants(t)
}

func TestDepositPreconditions(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 1_000)

	_, err := f.k.Deposit(f.env.Ctx, alice, "missing", math.NewInt(1))
	require.ErrorIs(t, err, types.ErrPoolNotFound)

	_, err = f.k.Deposit(f.env.Ctx, alice, poolID, math.ZeroInt())
	require.ErrorIs(t, err, types.ErrZeroAmount)

	_, err = f.k.Deposit(f.env.Ctx, "not-an-address", poolID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestDepositTransferFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 1_000)
	f.env.Events()

	_, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(5_000))
	require.ErrorIs(t, err, types.ErrTransferFailed)

	require.Nil(t, f.k.GetAccount(f.env.Ctx, poolID, alice))
	require.True(t, f.pool(t, poolID).TotalShares.IsZero())
	requireIntEq(t, 1_000, f.balance(alice, denom))
	require.Empty(t, f.env.Events())
}

func TestDepositDust(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 1)
	bob := f.user("bob", 1)

	_, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(1))
	require.NoError(t, err)

	// a direct transfer to escrow inflates the share price above one bob unit
	f.env.Fund(f.escrow, sdk.NewCoins(sdk.NewInt64Coin(denom, 1_000)))

	_, err = f.k.Deposit(f.env.Ctx, bob, poolID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrDustDeposit)
	require.Nil(t, f.k.GetAccount(f.env.Ctx, poolID, bob))
	requireIntEq(t, 1, f.balance(bob, denom))
}

func TestDepositDilutionUsesPreDepositValuation(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 1_000)
	bob := f.user("bob", 3_000)

	_, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(1_000))
	require.NoError(t, err)
	f.env.Fund(f.escrow, sdk.NewCoins(sdk.NewInt64Coin(denom, 1_000)))

	// A=2000, S=1000: 3000 mints floor(3000*1000/2000) = 1500
	receipt, err := f.k.Deposit(f.env.Ctx, bob, poolID, math.NewInt(3_000))
	require.NoError(t, err)
	requireIntEq(t, 1_500, receipt.SharesMinted)
	requireIntEq(t, 2_500, f.pool(t, poolID).TotalShares)
	f.requireInvariants(t)
}

func TestDepositAutoDeploysAtCap(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 6_000_000)
	bob := f.user("bob", 5_000_000)
	f.env.Events()

	receipt, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(6_000_000))
	require.NoError(t, err)
	require.False(t, receipt.Deployed)

	// overshooting the cap is allowed, the whole balance is deployed
	receipt, err = f.k.Deposit(f.env.Ctx, bob, poolID, math.NewInt(5_000_000))
	require.NoError(t, err)
	require.True(t, receipt.Deployed)

	pool := f.pool(t, poolID)
	require.Equal(t, types.PoolStateDeployed, pool.State)
	requireIntEq(t, 11_000_000, pool.DeployedAssets)
	require.True(t, pool.AccumulatedYield.IsZero())
	require.True(t, genesisTime.Equal(pool.DeployedAt))
	require.True(t, genesisTime.Equal(pool.LastAccrualAt))

	require.Equal(t, []string{
		types.EventTypeDeposited,
		types.EventTypeDeposited,
		types.EventTypeDeployedToStrategy,
	}, eventTypes(f.env.Events()))

	_, err = f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrNotCollecting)
	f.requireInvariants(t)
}
