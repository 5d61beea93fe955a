package types

import (
	"fmt"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgCreatePool        = "create_pool"
	TypeMsgDeposit           = "deposit"
	TypeMsgDeployToStrategy  = "deploy_to_strategy"
	TypeMsgWithdraw          = "withdraw"
	TypeMsgWithdrawAll       = "withdraw_all"
	TypeMsgResetPool         = "reset_pool"
	TypeMsgTransferOwnership = "transfer_ownership"
	TypeMsgSetTreasury       = "set_treasury"
	TypeMsgSetCap            = "set_cap"
	TypeMsgApproveTreasury   = "approve_treasury"
)

func validateAddress(field, addr string) error {
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return errors.Wrapf(ErrInvalidAddress, "%s: %s", field, err)
	}
	return nil
}

func parsePositive(field, raw string, zeroErr error) (math.Int, error) {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid %s: %q", field, raw)
	}
	if !v.IsPositive() {
		return math.Int{}, zeroErr
	}
	return v, nil
}

func signer(addr string) []sdk.AccAddress {
	a, _ := sdk.AccAddressFromBech32(addr)
	return []sdk.AccAddress{a}
}

// ============ MsgCreatePool ============

// MsgCreatePool registers a new pool. Only the module authority may send it.
type MsgCreatePool struct {
	Authority string     `json:"authority"`
	Config    PoolConfig `json:"config"`
}

// Route implements sdk.Msg
func (msg MsgCreatePool) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgCreatePool) Type() string { return TypeMsgCreatePool }

// ValidateBasic implements sdk.Msg
func (msg MsgCreatePool) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	if msg.Config.PoolID == "" {
		return errors.Wrap(ErrInvalidPoolConfig, "empty pool id")
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgCreatePool) GetSigners() []sdk.AccAddress { return signer(msg.Authority) }

// ProtoMessage implements proto.Message
func (*MsgCreatePool) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgCreatePool) Reset() { *msg = MsgCreatePool{} }

// String implements proto.Message
func (msg MsgCreatePool) String() string {
	return fmt.Sprintf("MsgCreatePool{Authority: %s, PoolID: %s}", msg.Authority, msg.Config.PoolID)
}

// MsgCreatePoolResponse returns the escrow address of the new pool
type MsgCreatePoolResponse struct {
	PoolID string `json:"pool_id"`
	Escrow string `json:"escrow"`
}

// ============ MsgDeposit ============

// MsgDeposit deposits base asset into a collecting pool
type MsgDeposit struct {
	Depositor string `json:"depositor"`
	PoolID    string `json:"pool_id"`
	Amount    string `json:"amount"`
}

// Route implements sdk.Msg
func (msg MsgDeposit) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgDeposit) Type() string { return TypeMsgDeposit }

// ValidateBasic implements sdk.Msg
func (msg MsgDeposit) ValidateBasic() error {
	if err := validateAddress("depositor", msg.Depositor); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	_, err := parsePositive("amount", msg.Amount, ErrZeroAmount)
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgDeposit) GetSigners() []sdk.AccAddress { return signer(msg.Depositor) }

// ProtoMessage implements proto.Message
func (*MsgDeposit) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgDeposit) Reset() { *msg = MsgDeposit{} }

// String implements proto.Message
func (msg MsgDeposit) String() string {
	return fmt.Sprintf("MsgDeposit{Depositor: %s, PoolID: %s, Amount: %s}", msg.Depositor, msg.PoolID, msg.Amount)
}

// MsgDepositResponse defines the Deposit response
type MsgDepositResponse struct {
	SharesMinted string `json:"shares_minted"`
	Deployed     bool   `json:"deployed"`
}

// ============ MsgDeployToStrategy ============

// MsgDeployToStrategy deploys a pool whose cap is reached. Anyone may send it.
type MsgDeployToStrategy struct {
	Sender string `json:"sender"`
	PoolID string `json:"pool_id"`
}

// Route implements sdk.Msg
func (msg MsgDeployToStrategy) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgDeployToStrategy) Type() string { return TypeMsgDeployToStrategy }

// ValidateBasic implements sdk.Msg
func (msg MsgDeployToStrategy) ValidateBasic() error {
	if err := validateAddress("sender", msg.Sender); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgDeployToStrategy) GetSigners() []sdk.AccAddress { return signer(msg.Sender) }

// ProtoMessage implements proto.Message
func (*MsgDeployToStrategy) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgDeployToStrategy) Reset() { *msg = MsgDeployToStrategy{} }

// String implements proto.Message
func (msg MsgDeployToStrategy) String() string {
	return fmt.Sprintf("MsgDeployToStrategy{Sender: %s, PoolID: %s}", msg.Sender, msg.PoolID)
}

// MsgDeployToStrategyResponse defines the deploy response
type MsgDeployToStrategyResponse struct {
	DeployedAssets string `json:"deployed_assets"`
}

// ============ MsgWithdraw ============

// MsgWithdraw burns shares for principal plus yield
type MsgWithdraw struct {
	Withdrawer string `json:"withdrawer"`
	PoolID     string `json:"pool_id"`
	Shares     string `json:"shares"`
}

// Route implements sdk.Msg
func (msg MsgWithdraw) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgWithdraw) Type() string { return TypeMsgWithdraw }

// ValidateBasic implements sdk.Msg
func (msg MsgWithdraw) ValidateBasic() error {
	if err := validateAddress("withdrawer", msg.Withdrawer); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	_, err := parsePositive("shares", msg.Shares, ErrZeroShares)
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgWithdraw) GetSigners() []sdk.AccAddress { return signer(msg.Withdrawer) }

// ProtoMessage implements proto.Message
func (*MsgWithdraw) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgWithdraw) Reset() { *msg = MsgWithdraw{} }

// String implements proto.Message
func (msg MsgWithdraw) String() string {
	return fmt.Sprintf("MsgWithdraw{Withdrawer: %s, PoolID: %s, Shares: %s}", msg.Withdrawer, msg.PoolID, msg.Shares)
}

// MsgWithdrawResponse defines the withdraw response
type MsgWithdrawResponse struct {
	PaidOut   string `json:"paid_out"`
	YieldPaid string `json:"yield_paid"`
	Subsidy   string `json:"subsidy"`
	PoolReset bool   `json:"pool_reset"`
}

// ============ MsgWithdrawAll ============

// MsgWithdrawAll burns every share the sender holds
type MsgWithdrawAll struct {
	Withdrawer string `json:"withdrawer"`
	PoolID     string `json:"pool_id"`
}

// Route implements sdk.Msg
func (msg MsgWithdrawAll) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgWithdrawAll) Type() string { return TypeMsgWithdrawAll }

// ValidateBasic implements sdk.Msg
func (msg MsgWithdrawAll) ValidateBasic() error {
	if err := validateAddress("withdrawer", msg.Withdrawer); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgWithdrawAll) GetSigners() []sdk.AccAddress { return signer(msg.Withdrawer) }

// ProtoMessage implements proto.Message
func (*MsgWithdrawAll) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgWithdrawAll) Reset() { *msg = MsgWithdrawAll{} }

// String implements proto.Message
func (msg MsgWithdrawAll) String() string {
	return fmt.Sprintf("MsgWithdrawAll{Withdrawer: %s, PoolID: %s}", msg.Withdrawer, msg.PoolID)
}

// ============ Owner messages ============

// MsgResetPool is the owner's emergency reset for a drained pool
type MsgResetPool struct {
	Owner  string `json:"owner"`
	PoolID string `json:"pool_id"`
}

// Route implements sdk.Msg
func (msg MsgResetPool) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgResetPool) Type() string { return TypeMsgResetPool }

// ValidateBasic implements sdk.Msg
func (msg MsgResetPool) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgResetPool) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

// ProtoMessage implements proto.Message
func (*MsgResetPool) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgResetPool) Reset() { *msg = MsgResetPool{} }

// String implements proto.Message
func (msg MsgResetPool) String() string {
	return fmt.Sprintf("MsgResetPool{Owner: %s, PoolID: %s}", msg.Owner, msg.PoolID)
}

// MsgTransferOwnership hands the pool to a new owner
type MsgTransferOwnership struct {
	Owner    string `json:"owner"`
	PoolID   string `json:"pool_id"`
	NewOwner string `json:"new_owner"`
}

// Route implements sdk.Msg
func (msg MsgTransferOwnership) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgTransferOwnership) Type() string { return TypeMsgTransferOwnership }

// ValidateBasic implements sdk.Msg
func (msg MsgTransferOwnership) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return validateAddress("new_owner", msg.NewOwner)
}

// GetSigners implements sdk.Msg
func (msg MsgTransferOwnership) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

// ProtoMessage implements proto.Message
func (*MsgTransferOwnership) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgTransferOwnership) Reset() { *msg = MsgTransferOwnership{} }

// String implements proto.Message
func (msg MsgTransferOwnership) String() string {
	return fmt.Sprintf("MsgTransferOwnership{Owner: %s, PoolID: %s, NewOwner: %s}", msg.Owner, msg.PoolID, msg.NewOwner)
}

// MsgSetTreasury points the pool at a new treasury account
type MsgSetTreasury struct {
	Owner    string `json:"owner"`
	PoolID   string `json:"pool_id"`
	Treasury string `json:"treasury"`
}

// Route implements sdk.Msg
func (msg MsgSetTreasury) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgSetTreasury) Type() string { return TypeMsgSetTreasury }

// ValidateBasic implements sdk.Msg
func (msg MsgSetTreasury) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return validateAddress("treasury", msg.Treasury)
}

// GetSigners implements sdk.Msg
func (msg MsgSetTreasury) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

// ProtoMessage implements proto.Message
func (*MsgSetTreasury) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgSetTreasury) Reset() { *msg = MsgSetTreasury{} }

// String implements proto.Message
func (msg MsgSetTreasury) String() string {
	return fmt.Sprintf("MsgSetTreasury{Owner: %s, PoolID: %s, Treasury: %s}", msg.Owner, msg.PoolID, msg.Treasury)
}

// MsgSetCap changes the cap while the pool is collecting
type MsgSetCap struct {
	Owner  string `json:"owner"`
	PoolID string `json:"pool_id"`
	Cap    string `json:"cap"`
}

// Route implements sdk.Msg
func (msg MsgSetCap) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgSetCap) Type() string { return TypeMsgSetCap }

// ValidateBasic implements sdk.Msg
func (msg MsgSetCap) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	_, err := parsePositive("cap", msg.Cap, errors.Wrap(ErrInvalidPoolConfig, "cap must be positive"))
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgSetCap) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

// ProtoMessage implements proto.Message
func (*MsgSetCap) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgSetCap) Reset() { *msg = MsgSetCap{} }

// String implements proto.Message
func (msg MsgSetCap) String() string {
	return fmt.Sprintf("MsgSetCap{Owner: %s, PoolID: %s, Cap: %s}", msg.Owner, msg.PoolID, msg.Cap)
}

// ============ MsgApproveTreasury ============

// MsgApproveTreasury sets how much the pool may pull from the treasury to
// cover withdrawal shortfalls. It must be signed by the treasury itself.
type MsgApproveTreasury struct {
	Treasury string `json:"treasury"`
	PoolID   string `json:"pool_id"`
	Amount   string `json:"amount"`
}

// Route implements sdk.Msg
func (msg MsgApproveTreasury) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgApproveTreasury) Type() string { return TypeMsgApproveTreasury }

// ValidateBasic implements sdk.Msg
func (msg MsgApproveTreasury) ValidateBasic() error {
	if err := validateAddress("treasury", msg.Treasury); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	v, ok := math.NewIntFromString(msg.Amount)
	if !ok || v.IsNegative() {
		return fmt.Errorf("invalid allowance: %q", msg.Amount)
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgApproveTreasury) GetSigners() []sdk.AccAddress { return signer(msg.Treasury) }

// ProtoMessage implements proto.Message
func (*MsgApproveTreasury) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgApproveTreasury) Reset() { *msg = MsgApproveTreasury{} }

// String implements proto.Message
func (msg MsgApproveTreasury) String() string {
	return fmt.Sprintf("MsgApproveTreasury{Treasury: %s, PoolID: %s, Amount: %s}", msg.Treasury, msg.PoolID, msg.Amount)
}

// MsgEmptyResponse is returned by messages without a payload
type MsgEmptyResponse struct{}
