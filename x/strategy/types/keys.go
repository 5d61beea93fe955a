package types

import (
	"cosmossdk.io/collections"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
)

const (
	// ModuleName defines the module name
	ModuleName = "strategy"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey defines the module's message routing key
	RouterKey = ModuleName
)

var (
	// StrategiesKey prefixes the strategy allow-list
	StrategiesKey = collections.NewPrefix(0)

	// CapabilitiesKey prefixes (agent, strategy, selector) capability entries
	CapabilitiesKey = collections.NewPrefix(1)

	// AllocationsKey prefixes per (pool, strategy) allocated amounts
	AllocationsKey = collections.NewPrefix(2)
)

// DefaultCustody derives the account that holds assets allocated to a strategy
func DefaultCustody(strategyID string) sdk.AccAddress {
	return sdk.AccAddress(address.Module(ModuleName, []byte("custody/"+strategyID)))
}
