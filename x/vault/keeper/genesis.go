package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

// InitGenesis loads pools, accounts and allowances from genesis
func (k *Keeper) InitGenesis(ctx sdk.Context, gs types.GenesisState) {
	if err := k.SetParams(ctx, gs.Params); err != nil {
		panic(err)
	}
	for i := range gs.Pools {
		k.SetPool(ctx, &gs.Pools[i])
	}
	for i := range gs.Accounts {
		k.SetAccount(ctx, &gs.Accounts[i])
	}
	for _, a := range gs.Allowances {
		k.SetTreasuryAllowance(ctx, a)
	}
	for _, rec := range gs.EpochRecords {
		k.SetEpochRecord(ctx, rec)
	}
	k.logger.Info("Vault genesis initialized", "pools", len(gs.Pools), "accounts", len(gs.Accounts))
}

// ExportGenesis dumps module state
func (k *Keeper) ExportGenesis(ctx sdk.Context) *types.GenesisState {
	gs := types.DefaultGenesis()
	gs.Params = k.GetParams(ctx)
	for _, pool := range k.GetAllPools(ctx) {
		gs.Pools = append(gs.Pools, *pool)
		for _, acc := range k.GetPoolAccounts(ctx, pool.PoolID) {
			gs.Accounts = append(gs.Accounts, *acc)
		}
	}
	gs.Allowances = append(gs.Allowances, k.GetAllAllowances(ctx)...)
	gs.EpochRecords = k.getAllEpochRecords(ctx)
	return gs
}
