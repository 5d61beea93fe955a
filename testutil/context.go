// Package testutil holds helpers shared by keeper and API tests
package testutil

import (
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/pkg/memstore"
)

// Env is the in-memory store environment keepers are tested on
type Env = memstore.Env

// NewEnv mounts a KV store per name plus the ledger bank store
func NewEnv(genesisTime time.Time, storeNames ...string) (*Env, error) {
	return memstore.NewEnv(genesisTime, storeNames...)
}

// AccAddress returns a deterministic test address
func AccAddress(name string) sdk.AccAddress {
	bz := make([]byte, 20)
	copy(bz, name)
	return sdk.AccAddress(bz)
}
