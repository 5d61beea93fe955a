package types

import (
	"cosmossdk.io/errors"
	"cosmossdk.io/math"
)

// ShareRatioPrecision is the fixed-point unit used for the per-depositor burn ratio
var ShareRatioPrecision = math.NewIntWithDecimal(1, 18)

// MintShares returns the shares owed for depositing amount against the
// pre-deposit valuation. An empty pool pegs shares 1:1 to assets; otherwise
// shares = floor(amount * totalShares / totalAssets).
func MintShares(amount, totalAssets, totalShares math.Int) (math.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return math.ZeroInt(), ErrZeroAmount
	}
	if totalShares.IsZero() {
		return amount, nil
	}
	if !totalAssets.IsPositive() {
		return math.ZeroInt(), errors.Wrapf(ErrInvalidValuation, "assets %s backing %s shares", totalAssets, totalShares)
	}
	shares := amount.Mul(totalShares).Quo(totalAssets)
	if shares.IsZero() {
		return math.ZeroInt(), errors.Wrapf(ErrDustDeposit, "amount %s mints no shares at %s/%s", amount, totalAssets, totalShares)
	}
	return shares, nil
}

// BurnResult is the settlement of a share burn
type BurnResult struct {
	UserAssets         math.Int
	PrincipalWithdrawn math.Int
	YieldWithdrawn     math.Int
	// LossRealized is principal not covered by the share value; only risk tiers produce it
	LossRealized math.Int
}

// BurnShares settles shareAmount of account against the current pool value.
//
// userAssets = floor(shareAmount * totalAssets / totalShares). The principal
// share is taken with a 1e18 fixed-point ratio against the account's
// pre-withdrawal principal, so a depositor exiting in several partial
// withdrawals can end up a few units below a single pro-rata exit.
func BurnShares(shareAmount math.Int, account DepositorAccount, totalAssets, totalShares math.Int) (BurnResult, error) {
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return BurnResult{}, ErrZeroShares
	}
	if shareAmount.GT(account.Shares) {
		return BurnResult{}, errors.Wrapf(ErrInsufficientShares, "have %s, burning %s", account.Shares, shareAmount)
	}
	if shareAmount.GT(totalShares) {
		return BurnResult{}, errors.Wrapf(ErrInsufficientShares, "supply %s, burning %s", totalShares, shareAmount)
	}
	if totalAssets.IsNegative() {
		totalAssets = math.ZeroInt()
	}

	userAssets := shareAmount.Mul(totalAssets).Quo(totalShares)
	ratio := shareAmount.Mul(ShareRatioPrecision).Quo(account.Shares)
	principal := account.Principal.Mul(ratio).Quo(ShareRatioPrecision)

	res := BurnResult{
		UserAssets:         userAssets,
		PrincipalWithdrawn: principal,
		YieldWithdrawn:     math.ZeroInt(),
		LossRealized:       math.ZeroInt(),
	}
	if userAssets.GT(principal) {
		res.YieldWithdrawn = userAssets.Sub(principal)
	} else {
		res.LossRealized = principal.Sub(userAssets)
	}
	return res, nil
}

// SubFloorZero returns max(0, a-b)
func SubFloorZero(a, b math.Int) math.Int {
	if b.GTE(a) {
		return math.ZeroInt()
	}
	return a.Sub(b)
}

// ApplyMint credits a deposit to the account
func (a *DepositorAccount) ApplyMint(amount, shares math.Int) {
	a.Shares = a.Shares.Add(shares)
	a.Principal = a.Principal.Add(amount)
}

// ApplyBurn debits a settled burn from the account
func (a *DepositorAccount) ApplyBurn(shares math.Int, res BurnResult) {
	a.Shares = a.Shares.Sub(shares)
	a.Principal = SubFloorZero(a.Principal, res.PrincipalWithdrawn)
}

// ApplyBurn removes a settled burn from the pool aggregates. Positive yield
// is floored at zero; realized loss moves a negative accumulator back toward zero.
func (p *Pool) ApplyBurn(shares math.Int, res BurnResult) {
	p.TotalShares = SubFloorZero(p.TotalShares, shares)
	p.DeployedAssets = SubFloorZero(p.DeployedAssets, res.PrincipalWithdrawn)

	acc := p.AccumulatedYield
	switch {
	case res.YieldWithdrawn.IsPositive() && !acc.IsNegative():
		acc = SubFloorZero(acc, res.YieldWithdrawn)
	case res.YieldWithdrawn.IsPositive():
		acc = acc.Sub(res.YieldWithdrawn)
	case res.LossRealized.IsPositive() && acc.IsNegative():
		acc = acc.Add(res.LossRealized)
		if acc.IsPositive() {
			acc = math.ZeroInt()
		}
	}
	p.AccumulatedYield = acc
}
