package types_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

func TestCapabilityRateLimit(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	c := types.Capability{Enabled: true, MinInterval: time.Hour}
	require.True(t, c.Allows(t0), "never used")

	c.LastUsedAt = t0
	require.False(t, c.Allows(t0.Add(59*time.Minute)))
	require.True(t, c.Allows(t0.Add(time.Hour)))

	c.MinInterval = 0
	require.True(t, c.Allows(t0), "no interval")

	c.Enabled = false
	require.False(t, c.Allows(t0.Add(24*time.Hour)))
}

func TestGenesisValidate(t *testing.T) {
	custody := types.DefaultCustody("lend").String()
	agent := types.DefaultCustody("agent").String()

	valid := func() types.GenesisState {
		return types.GenesisState{
			Strategies: []types.Strategy{{ID: "lend", Custody: custody, Enabled: true}},
			Capabilities: []types.CapabilityEntry{{
				Agent: agent, StrategyID: "lend", Selector: types.SelectorAllocate.String(),
				Capability: types.Capability{Enabled: true},
			}},
			Allocations: []types.Allocation{{PoolID: "p", StrategyID: "lend", Amount: math.NewInt(5)}},
		}
	}
	require.NoError(t, valid().Validate())
	require.NoError(t, types.DefaultGenesis().Validate())

	tests := []struct {
		name   string
		mutate func(*types.GenesisState)
	}{
		{"duplicate strategy", func(gs *types.GenesisState) { gs.Strategies = append(gs.Strategies, gs.Strategies[0]) }},
		{"bad custody", func(gs *types.GenesisState) { gs.Strategies[0].Custody = "nope" }},
		{"capability unknown strategy", func(gs *types.GenesisState) { gs.Capabilities[0].StrategyID = "x" }},
		{"bad selector", func(gs *types.GenesisState) { gs.Capabilities[0].Selector = "0x12" }},
		{"negative allocation", func(gs *types.GenesisState) { gs.Allocations[0].Amount = math.NewInt(-1) }},
		{"duplicate allocation", func(gs *types.GenesisState) { gs.Allocations = append(gs.Allocations, gs.Allocations[0]) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gs := valid()
			tc.mutate(&gs)
			require.Error(t, gs.Validate())
		})
	}
}
