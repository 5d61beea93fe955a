package strategy

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/core/appmodule"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/module"
	"github.com/grpc-ecosystem/grpc-gateway/runtime"
	"github.com/spf13/cobra"

	"github.com/openalpha/epoch-vault/x/strategy/client/cli"
	"github.com/openalpha/epoch-vault/x/strategy/keeper"
	"github.com/openalpha/epoch-vault/x/strategy/types"
)

const (
	ModuleName = types.ModuleName
)

var (
	_ module.AppModuleBasic   = AppModuleBasic{}
	_ module.HasGenesisBasics = AppModuleBasic{}
	_ appmodule.AppModule     = AppModule{}
)

// AppModuleBasic defines the basic application module for strategy
type AppModuleBasic struct{}

// Name returns the module's name
func (AppModuleBasic) Name() string {
	return ModuleName
}

// RegisterLegacyAminoCodec registers the module's types on the given LegacyAmino codec
func (AppModuleBasic) RegisterLegacyAminoCodec(cdc *codec.LegacyAmino) {
	cdc.RegisterConcrete(&types.MsgAllocate{}, "strategy/MsgAllocate", nil)
	cdc.RegisterConcrete(&types.MsgDeallocate{}, "strategy/MsgDeallocate", nil)
	cdc.RegisterConcrete(&types.MsgCallStrategy{}, "strategy/MsgCallStrategy", nil)
	cdc.RegisterConcrete(&types.MsgRegisterStrategy{}, "strategy/MsgRegisterStrategy", nil)
	cdc.RegisterConcrete(&types.MsgGrantCapability{}, "strategy/MsgGrantCapability", nil)
	cdc.RegisterConcrete(&types.MsgRevokeCapability{}, "strategy/MsgRevokeCapability", nil)
}

// RegisterInterfaces is a no-op, see the vault module
func (AppModuleBasic) RegisterInterfaces(registry cdctypes.InterfaceRegistry) {}

// DefaultGenesis returns default genesis state as raw bytes
func (AppModuleBasic) DefaultGenesis(cdc codec.JSONCodec) json.RawMessage {
	bz, err := json.Marshal(types.DefaultGenesis())
	if err != nil {
		panic(err)
	}
	return bz
}

// ValidateGenesis performs genesis state validation
func (AppModuleBasic) ValidateGenesis(cdc codec.JSONCodec, config client.TxEncodingConfig, bz json.RawMessage) error {
	gs, err := ParseGenesis(bz)
	if err != nil {
		return err
	}
	return gs.Validate()
}

// RegisterGRPCGatewayRoutes registers the gRPC Gateway routes for the module
func (AppModuleBasic) RegisterGRPCGatewayRoutes(clientCtx client.Context, mux *runtime.ServeMux) {}

// GetTxCmd returns the root tx command
func (AppModuleBasic) GetTxCmd() *cobra.Command {
	return cli.GetTxCmd()
}

// GetQueryCmd returns the root query command
func (AppModuleBasic) GetQueryCmd() *cobra.Command {
	return cli.GetQueryCmd()
}

// ParseGenesis decodes raw genesis JSON
func ParseGenesis(bz json.RawMessage) (*types.GenesisState, error) {
	if len(bz) == 0 {
		return types.DefaultGenesis(), nil
	}
	var gs types.GenesisState
	if err := json.Unmarshal(bz, &gs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s genesis state: %w", ModuleName, err)
	}
	return &gs, nil
}

// AppModule implements an application module for the strategy module
type AppModule struct {
	AppModuleBasic
	keeper *keeper.Keeper
}

// NewAppModule creates a new AppModule object
func NewAppModule(k *keeper.Keeper) AppModule {
	return AppModule{
		AppModuleBasic: AppModuleBasic{},
		keeper:         k,
	}
}

// Name returns the module's name
func (am AppModule) Name() string {
	return ModuleName
}

// InitGenesis loads the allow-list, capabilities and allocations
func (am AppModule) InitGenesis(ctx sdk.Context, bz json.RawMessage) error {
	gs, err := ParseGenesis(bz)
	if err != nil {
		return err
	}
	if err := gs.Validate(); err != nil {
		return err
	}
	am.keeper.InitGenesis(ctx, *gs)
	return nil
}

// ExportGenesis returns the module state as raw JSON
func (am AppModule) ExportGenesis(ctx sdk.Context) (json.RawMessage, error) {
	gs, err := am.keeper.ExportGenesis(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(gs)
}

// IsOnePerModuleType implements the depinject.OnePerModuleType interface
func (am AppModule) IsOnePerModuleType() {}

// IsAppModule implements the appmodule.AppModule interface
func (am AppModule) IsAppModule() {}
