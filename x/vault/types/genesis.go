package types

import (
	"fmt"
)

// GenesisState defines the vault module's genesis state
type GenesisState struct {
	Params       Params              `json:"params"`
	Pools        []Pool              `json:"pools"`
	Accounts     []DepositorAccount  `json:"accounts"`
	Allowances   []TreasuryAllowance `json:"allowances"`
	EpochRecords []EpochRecord       `json:"epoch_records,omitempty"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:     DefaultParams(),
		Pools:      []Pool{},
		Accounts:   []DepositorAccount{},
		Allowances: []TreasuryAllowance{},
	}
}

// Validate performs basic genesis state validation, including the share
// supply invariant per pool
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}

	pools := make(map[string]*Pool, len(gs.Pools))
	for i := range gs.Pools {
		p := &gs.Pools[i]
		if _, dup := pools[p.PoolID]; dup {
			return fmt.Errorf("duplicate pool %s", p.PoolID)
		}
		cfg := PoolConfig{
			PoolID: p.PoolID, Owner: p.Owner, Treasury: p.Treasury, Denom: p.Denom,
			WrappedDenom: p.WrappedDenom, RiskTier: p.RiskTier, Cap: p.Cap,
			YieldRateBps: p.YieldRateBps, AccrualUnit: p.AccrualUnit,
			WithdrawDelay: p.WithdrawDelay, WithdrawWindowDuration: p.WithdrawWindowDuration,
		}
		if err := cfg.Validate(gs.Params); err != nil {
			return fmt.Errorf("pool %s: %w", p.PoolID, err)
		}
		pools[p.PoolID] = p
	}

	shares := make(map[string][]DepositorAccount)
	for _, acc := range gs.Accounts {
		if _, ok := pools[acc.PoolID]; !ok {
			return fmt.Errorf("account %s references unknown pool %s", acc.Depositor, acc.PoolID)
		}
		if acc.Shares.IsNegative() || acc.Principal.IsNegative() {
			return fmt.Errorf("account %s in %s has negative balance", acc.Depositor, acc.PoolID)
		}
		shares[acc.PoolID] = append(shares[acc.PoolID], acc)
	}
	for id, p := range pools {
		total := p.TotalShares
		for _, acc := range shares[id] {
			total = total.Sub(acc.Shares)
		}
		if !total.IsZero() {
			return fmt.Errorf("pool %s total shares %s does not match accounts", id, p.TotalShares)
		}
		if err := p.CheckInvariants(); err != nil {
			return err
		}
	}
	for _, a := range gs.Allowances {
		if _, ok := pools[a.PoolID]; !ok {
			return fmt.Errorf("allowance references unknown pool %s", a.PoolID)
		}
		if a.Amount.IsNegative() {
			return fmt.Errorf("negative allowance for %s", a.PoolID)
		}
	}
	return nil
}
