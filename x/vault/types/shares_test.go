package types

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMintSharesFirstDepositorPeg(t *testing.T) {
	for _, amt := range []int64{1, 7, 10_000_000, 1 << 40} {
		shares, err := MintShares(math.NewInt(amt), math.ZeroInt(), math.ZeroInt())
		require.NoError(t, err)
		require.Equal(t, math.NewInt(amt), shares)
	}
}

func TestMintSharesErrors(t *testing.T) {
	tests := []struct {
		name        string
		amount      math.Int
		totalAssets math.Int
		totalShares math.Int
		want        error
	}{
		{"zero amount", math.ZeroInt(), math.NewInt(10), math.NewInt(10), ErrZeroAmount},
		{"negative amount", math.NewInt(-1), math.NewInt(10), math.NewInt(10), ErrZeroAmount},
		{"dust", math.NewInt(1), math.NewInt(1000), math.NewInt(10), ErrDustDeposit},
		{"worthless shares", math.NewInt(5), math.ZeroInt(), math.NewInt(10), ErrInvalidValuation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MintShares(tc.amount, tc.totalAssets, tc.totalShares)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMintSharesProportionalDilution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(1, 1_000_000_000_000).Draw(t, "assets")
		s := rapid.Int64Range(1, 1_000_000_000_000).Draw(t, "shares")
		x := rapid.Int64Range(1, 1_000_000_000_000).Draw(t, "amount")

		want := math.NewInt(x).Mul(math.NewInt(s)).Quo(math.NewInt(a))
		got, err := MintShares(math.NewInt(x), math.NewInt(a), math.NewInt(s))
		if want.IsZero() {
			require.ErrorIs(t, err, ErrDustDeposit)
			return
		}
		require.NoError(t, err)
		require.True(t, want.Equal(got), "want %s got %s", want, got)

		// minted shares never claim more than was deposited
		claim := got.Mul(math.NewInt(a).Add(math.NewInt(x))).Quo(math.NewInt(s).Add(got))
		require.True(t, claim.LTE(math.NewInt(x)), "claim %s > deposit %d", claim, x)
	})
}

func TestBurnSharesSplit(t *testing.T) {
	acc := DepositorAccount{Shares: math.NewInt(6_000_000), Principal: math.NewInt(6_000_000)}

	res, err := BurnShares(math.NewInt(3_000_000), acc, math.NewInt(10_030_000), math.NewInt(10_000_000))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(3_009_000), res.UserAssets)
	require.Equal(t, math.NewInt(3_000_000), res.PrincipalWithdrawn)
	require.Equal(t, math.NewInt(9_000), res.YieldWithdrawn)
	require.True(t, res.LossRealized.IsZero())
}

func TestBurnSharesLoss(t *testing.T) {
	acc := DepositorAccount{Shares: math.NewInt(100), Principal: math.NewInt(100)}

	res, err := BurnShares(math.NewInt(100), acc, math.NewInt(90), math.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(90), res.UserAssets)
	require.Equal(t, math.NewInt(100), res.PrincipalWithdrawn)
	require.True(t, res.YieldWithdrawn.IsZero())
	require.Equal(t, math.NewInt(10), res.LossRealized)

	// negative valuation is clamped, never paid as a negative amount
	res, err = BurnShares(math.NewInt(50), acc, math.NewInt(-5), math.NewInt(100))
	require.NoError(t, err)
	require.True(t, res.UserAssets.IsZero())
}

func TestBurnSharesPreconditions(t *testing.T) {
	acc := DepositorAccount{Shares: math.NewInt(10), Principal: math.NewInt(10)}

	_, err := BurnShares(math.ZeroInt(), acc, math.NewInt(10), math.NewInt(10))
	require.True(t, errors.Is(err, ErrZeroShares))

	_, err = BurnShares(math.NewInt(11), acc, math.NewInt(10), math.NewInt(20))
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestPoolApplyBurnFloorsAggregates(t *testing.T) {
	p := &Pool{
		TotalShares:      math.NewInt(10),
		DeployedAssets:   math.NewInt(5),
		AccumulatedYield: math.NewInt(2),
	}
	p.ApplyBurn(math.NewInt(10), BurnResult{
		PrincipalWithdrawn: math.NewInt(7),
		YieldWithdrawn:     math.NewInt(3),
		LossRealized:       math.ZeroInt(),
	})
	require.True(t, p.TotalShares.IsZero())
	require.True(t, p.DeployedAssets.IsZero())
	require.True(t, p.AccumulatedYield.IsZero())
}

func TestPoolApplyBurnRecoversLoss(t *testing.T) {
	p := &Pool{
		TotalShares:      math.NewInt(100),
		DeployedAssets:   math.NewInt(100),
		AccumulatedYield: math.NewInt(-10),
	}
	p.ApplyBurn(math.NewInt(50), BurnResult{
		PrincipalWithdrawn: math.NewInt(50),
		YieldWithdrawn:     math.ZeroInt(),
		LossRealized:       math.NewInt(5),
	})
	require.Equal(t, math.NewInt(-5), p.AccumulatedYield)

	p.ApplyBurn(math.NewInt(50), BurnResult{
		PrincipalWithdrawn: math.NewInt(50),
		YieldWithdrawn:     math.ZeroInt(),
		LossRealized:       math.NewInt(9),
	})
	require.True(t, p.AccumulatedYield.IsZero())
}

func TestSubFloorZero(t *testing.T) {
	require.Equal(t, math.NewInt(3), SubFloorZero(math.NewInt(5), math.NewInt(2)))
	require.True(t, SubFloorZero(math.NewInt(2), math.NewInt(5)).IsZero())
	require.True(t, SubFloorZero(math.NewInt(2), math.NewInt(2)).IsZero())
}
