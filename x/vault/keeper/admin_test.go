package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/testutil"
	"github.com/openalpha/epoch-vault/x/vault/types"
)

func TestCreatePool(t *testing.T) {
	f := newFixture(t)
	cfg := f.scenarioConfig()

	_, err := f.k.CreatePool(f.env.Ctx, f.owner, cfg)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	pool := f.createPool(t, cfg)
	require.Equal(t, types.PoolStateCollecting, pool.State)
	require.Equal(t, uint64(0), pool.Epoch)

	_, err = f.k.CreatePool(f.env.Ctx, f.authority, cfg)
	require.ErrorIs(t, err, types.ErrPoolExists)

	bad := cfg
	bad.PoolID = "other"
	bad.Cap = math.ZeroInt()
	_, err = f.k.CreatePool(f.env.Ctx, f.authority, bad)
	require.ErrorIs(t, err, types.ErrInvalidPoolConfig)

	// unset durations and tier come from params
	minimal := types.PoolConfig{
		PoolID:   "minimal",
		Owner:    f.owner,
		Treasury: f.treasury.String(),
		Denom:    denom,
		Cap:      math.NewInt(1),
	}
	p, err := f.k.CreatePool(f.env.Ctx, f.authority, minimal)
	require.NoError(t, err)
	params := types.DefaultParams()
	require.Equal(t, types.RiskTierGuaranteed, p.RiskTier)
	require.Equal(t, params.DefaultAccrualUnit, p.AccrualUnit)
	require.Equal(t, params.DefaultWithdrawDelay, p.WithdrawDelay)
	require.Len(t, f.k.GetAllPools(f.env.Ctx), 2)
}

func TestEscrowAddressesAreDistinct(t *testing.T) {
	f := newFixture(t)
	a := f.k.EscrowAddress("a")
	b := f.k.EscrowAddress("b")
	require.NotEqual(t, a, b)
	require.Equal(t, a, f.k.EscrowAddress("a"))
}

func TestOwnerOperations(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	stranger := testutil.AccAddress("stranger").String()
	newOwner := testutil.AccAddress("new-owner").String()
	newTreasury := testutil.AccAddress("new-treasury").String()

	require.ErrorIs(t, f.k.SetCap(f.env.Ctx, stranger, poolID, math.NewInt(5)), types.ErrNotOwner)
	require.ErrorIs(t, f.k.SetTreasury(f.env.Ctx, stranger, poolID, newTreasury), types.ErrNotOwner)
	require.ErrorIs(t, f.k.TransferOwnership(f.env.Ctx, stranger, poolID, stranger), types.ErrNotOwner)
	require.ErrorIs(t, f.k.ResetPool(f.env.Ctx, stranger, poolID), types.ErrNotOwner)

	require.NoError(t, f.k.SetCap(f.env.Ctx, f.owner, poolID, math.NewInt(5_000_000)))
	requireIntEq(t, 5_000_000, f.pool(t, poolID).Cap)
	require.ErrorIs(t, f.k.SetCap(f.env.Ctx, f.owner, poolID, math.ZeroInt()), types.ErrInvalidPoolConfig)

	require.NoError(t, f.k.SetTreasury(f.env.Ctx, f.owner, poolID, newTreasury))
	require.Equal(t, newTreasury, f.pool(t, poolID).Treasury)

	require.NoError(t, f.k.TransferOwnership(f.env.Ctx, f.owner, poolID, newOwner))
	require.Equal(t, newOwner, f.pool(t, poolID).Owner)
	require.ErrorIs(t, f.k.SetCap(f.env.Ctx, f.owner, poolID, math.NewInt(1)), types.ErrNotOwner)

	// cap is frozen once deployed
	alice := f.user("alice", 5_000_000)
	_, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(5_000_000))
	require.NoError(t, err)
	require.ErrorIs(t, f.k.SetCap(f.env.Ctx, newOwner, poolID, math.NewInt(9)), types.ErrNotCollecting)
}

func TestApproveTreasuryOnlyByTreasury(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())

	err := f.k.ApproveTreasury(f.env.Ctx, f.owner, poolID, math.NewInt(10))
	require.ErrorIs(t, err, types.ErrNotTreasury)

	require.NoError(t, f.k.ApproveTreasury(f.env.Ctx, f.treasury.String(), poolID, math.NewInt(10)))
	requireIntEq(t, 10, f.k.GetTreasuryAllowance(f.env.Ctx, poolID, f.treasury.String()))

	// a new treasury starts without allowance
	newTreasury := testutil.AccAddress("new-treasury").String()
	require.NoError(t, f.k.SetTreasury(f.env.Ctx, f.owner, poolID, newTreasury))
	requireIntEq(t, 0, f.k.GetTreasuryAllowance(f.env.Ctx, poolID, newTreasury))
}

func TestManualDeploy(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 4_000_000)

	_, err := f.k.Deploy(f.env.Ctx, poolID)
	require.ErrorIs(t, err, types.ErrCapNotReached)

	_, err = f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(4_000_000))
	require.NoError(t, err)
	_, err = f.k.Deploy(f.env.Ctx, poolID)
	require.ErrorIs(t, err, types.ErrCapNotReached)

	// lowering the cap makes the pool deployable by anyone
	require.NoError(t, f.k.SetCap(f.env.Ctx, f.owner, poolID, math.NewInt(4_000_000)))
	reached, err := f.k.IsCapReached(f.env.Ctx, poolID)
	require.NoError(t, err)
	require.True(t, reached)

	deployed, err := f.k.Deploy(f.env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEq(t, 4_000_000, deployed)

	_, err = f.k.Deploy(f.env.Ctx, poolID)
	require.ErrorIs(t, err, types.ErrAlreadyDeployed)
	f.requireInvariants(t)
}

func TestDeployNeedsShares(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	f.env.Fund(f.escrow, sdk.NewCoins(sdk.NewInt64Coin(denom, 20_000_000)))

	_, err := f.k.Deploy(f.env.Ctx, poolID)
	require.ErrorIs(t, err, types.ErrCapNotReached)
	require.Equal(t, types.PoolStateCollecting, f.pool(t, poolID).State)
}

func TestManualResetPool(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	alice := f.user("alice", 1_000)

	_, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(1_000))
	require.NoError(t, err)
	require.ErrorIs(t, f.k.ResetPool(f.env.Ctx, f.owner, poolID), types.ErrSharesOutstanding)

	// a drained pool with stray funds can be swept by the owner
	g := newFixture(t)
	g.createPool(t, g.scenarioConfig())
	g.env.Fund(g.escrow, sdk.NewCoins(sdk.NewInt64Coin(denom, 42)))
	g.env.Advance(time.Minute)
	g.env.Events()

	require.NoError(t, g.k.ResetPool(g.env.Ctx, g.owner, poolID))
	requireIntEq(t, 42, g.balance(g.treasury.String(), denom))
	require.Equal(t, uint64(1), g.pool(t, poolID).Epoch)
	require.Equal(t, []string{types.EventTypePoolReset}, eventTypes(g.env.Events()))

	records := g.k.GetEpochRecords(g.env.Ctx, poolID)
	require.Len(t, records, 1)
	require.True(t, records[0].Manual)
}

func TestGenesisRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.createPool(t, f.scenarioConfig())
	f.fundTreasury(t, poolID, 500)
	alice := f.user("alice", 3_000)
	_, err := f.k.Deposit(f.env.Ctx, alice, poolID, math.NewInt(3_000))
	require.NoError(t, err)

	exported := f.k.ExportGenesis(f.env.Ctx)
	require.NoError(t, exported.Validate())
	require.Len(t, exported.Pools, 1)
	require.Len(t, exported.Accounts, 1)
	require.Len(t, exported.Allowances, 1)

	g := newFixture(t)
	g.k.InitGenesis(g.env.Ctx, *exported)
	requireIntEq(t, 3_000, g.k.GetAccount(g.env.Ctx, poolID, alice).Shares)
	requireIntEq(t, 500, g.k.GetTreasuryAllowance(g.env.Ctx, poolID, f.treasury.String()))
	require.Equal(t, exported, g.k.ExportGenesis(g.env.Ctx))
}
