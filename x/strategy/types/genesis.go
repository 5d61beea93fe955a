package types

import (
	"fmt"
)

// GenesisState defines the strategy module's genesis state
type GenesisState struct {
	Strategies   []Strategy        `json:"strategies"`
	Capabilities []CapabilityEntry `json:"capabilities"`
	Allocations  []Allocation      `json:"allocations"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Strategies:   []Strategy{},
		Capabilities: []CapabilityEntry{},
		Allocations:  []Allocation{},
	}
}

// Validate performs basic genesis state validation
func (gs GenesisState) Validate() error {
	known := make(map[string]bool, len(gs.Strategies))
	for _, s := range gs.Strategies {
		if known[s.ID] {
			return fmt.Errorf("duplicate strategy %s", s.ID)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		known[s.ID] = true
	}

	for _, c := range gs.Capabilities {
		if !known[c.StrategyID] {
			return fmt.Errorf("capability for unknown strategy %s", c.StrategyID)
		}
		if err := validateAddress("agent", c.Agent); err != nil {
			return err
		}
		if _, err := ParseSelector(c.Selector); err != nil {
			return err
		}
		if c.Capability.MinInterval < 0 {
			return fmt.Errorf("negative min interval for %s on %s", c.Agent, c.StrategyID)
		}
	}

	seen := make(map[string]bool, len(gs.Allocations))
	for _, a := range gs.Allocations {
		if !known[a.StrategyID] {
			return fmt.Errorf("allocation to unknown strategy %s", a.StrategyID)
		}
		if a.Amount.IsNil() || a.Amount.IsNegative() {
			return fmt.Errorf("negative allocation %s", a)
		}
		key := a.PoolID + "\x00" + a.StrategyID
		if seen[key] {
			return fmt.Errorf("duplicate allocation %s", a)
		}
		seen[key] = true
	}
	return nil
}
