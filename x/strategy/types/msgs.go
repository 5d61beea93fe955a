package types

import (
	"encoding/hex"
	"fmt"
	"time"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgAllocate         = "allocate"
	TypeMsgDeallocate       = "deallocate"
	TypeMsgCallStrategy     = "call_strategy"
	TypeMsgRegisterStrategy = "register_strategy"
	TypeMsgGrantCapability  = "grant_capability"
	TypeMsgRevokeCapability = "revoke_capability"
)

func validateAddress(field, addr string) error {
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return errors.Wrapf(ErrInvalidAddress, "%s: %s", field, err)
	}
	return nil
}

func signer(addr string) []sdk.AccAddress {
	a, _ := sdk.AccAddressFromBech32(addr)
	return []sdk.AccAddress{a}
}

// ParseAmount parses a positive integer amount
func ParseAmount(raw string) (math.Int, error) {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount: %q", raw)
	}
	if !v.IsPositive() {
		return math.Int{}, ErrZeroAmount
	}
	return v, nil
}

// ============ MsgAllocate ============

// MsgAllocate moves idle pool assets into a strategy's custody
type MsgAllocate struct {
	Agent      string `json:"agent"`
	PoolID     string `json:"pool_id"`
	StrategyID string `json:"strategy_id"`
	Amount     string `json:"amount"`
}

// Route implements sdk.Msg
func (msg MsgAllocate) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgAllocate) Type() string { return TypeMsgAllocate }

// ValidateBasic implements sdk.Msg
func (msg MsgAllocate) ValidateBasic() error {
	if err := validateAddress("agent", msg.Agent); err != nil {
		return err
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	if msg.StrategyID == "" {
		return ErrUnknownStrategy
	}
	_, err := ParseAmount(msg.Amount)
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgAllocate) GetSigners() []sdk.AccAddress { return signer(msg.Agent) }

// ProtoMessage implements proto.Message
func (*MsgAllocate) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgAllocate) Reset() { *msg = MsgAllocate{} }

// String implements proto.Message
func (msg MsgAllocate) String() string {
	return fmt.Sprintf("MsgAllocate{Agent: %s, PoolID: %s, StrategyID: %s, Amount: %s}",
		msg.Agent, msg.PoolID, msg.StrategyID, msg.Amount)
}

// MsgAllocateResponse carries the strategy's allocation after the move
type MsgAllocateResponse struct {
	Allocated string `json:"allocated"`
}

// ============ MsgDeallocate ============

// MsgDeallocate returns assets from a strategy's custody to the pool escrow
type MsgDeallocate struct {
	Agent      string `json:"agent"`
	PoolID     string `json:"pool_id"`
	StrategyID string `json:"strategy_id"`
	Amount     string `json:"amount"`
}

// Route implements sdk.Msg
func (msg MsgDeallocate) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgDeallocate) Type() string { return TypeMsgDeallocate }

// ValidateBasic implements sdk.Msg
func (msg MsgDeallocate) ValidateBasic() error {
	return MsgAllocate(msg).ValidateBasic()
}

// GetSigners implements sdk.Msg
func (msg MsgDeallocate) GetSigners() []sdk.AccAddress { return signer(msg.Agent) }

// ProtoMessage implements proto.Message
func (*MsgDeallocate) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgDeallocate) Reset() { *msg = MsgDeallocate{} }

// String implements proto.Message
func (msg MsgDeallocate) String() string {
	return fmt.Sprintf("MsgDeallocate{Agent: %s, PoolID: %s, StrategyID: %s, Amount: %s}",
		msg.Agent, msg.PoolID, msg.StrategyID, msg.Amount)
}

// ============ MsgCallStrategy ============

// MsgCallStrategy forwards an opaque payload to a strategy handler. The
// first four bytes select the function and drive the capability check.
type MsgCallStrategy struct {
	Agent      string `json:"agent"`
	StrategyID string `json:"strategy_id"`
	Payload    []byte `json:"payload"`
}

// Route implements sdk.Msg
func (msg MsgCallStrategy) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgCallStrategy) Type() string { return TypeMsgCallStrategy }

// ValidateBasic implements sdk.Msg
func (msg MsgCallStrategy) ValidateBasic() error {
	if err := validateAddress("agent", msg.Agent); err != nil {
		return err
	}
	if msg.StrategyID == "" {
		return ErrUnknownStrategy
	}
	_, err := DecodeSelector(msg.Payload)
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgCallStrategy) GetSigners() []sdk.AccAddress { return signer(msg.Agent) }

// ProtoMessage implements proto.Message
func (*MsgCallStrategy) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgCallStrategy) Reset() { *msg = MsgCallStrategy{} }

// String implements proto.Message
func (msg MsgCallStrategy) String() string {
	return fmt.Sprintf("MsgCallStrategy{Agent: %s, StrategyID: %s, Payload: 0x%s}",
		msg.Agent, msg.StrategyID, hex.EncodeToString(msg.Payload))
}

// MsgCallStrategyResponse returns whatever the handler produced
type MsgCallStrategyResponse struct {
	Result []byte `json:"result"`
}

// ============ MsgRegisterStrategy ============

// MsgRegisterStrategy adds or updates an allow-listed strategy
type MsgRegisterStrategy struct {
	Authority string   `json:"authority"`
	Strategy  Strategy `json:"strategy"`
}

// Route implements sdk.Msg
func (msg MsgRegisterStrategy) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgRegisterStrategy) Type() string { return TypeMsgRegisterStrategy }

// ValidateBasic implements sdk.Msg
func (msg MsgRegisterStrategy) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	if msg.Strategy.ID == "" {
		return ErrInvalidStrategy.Wrap("empty id")
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgRegisterStrategy) GetSigners() []sdk.AccAddress { return signer(msg.Authority) }

// ProtoMessage implements proto.Message
func (*MsgRegisterStrategy) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgRegisterStrategy) Reset() { *msg = MsgRegisterStrategy{} }

// String implements proto.Message
func (msg MsgRegisterStrategy) String() string {
	return fmt.Sprintf("MsgRegisterStrategy{Authority: %s, ID: %s, Enabled: %t}",
		msg.Authority, msg.Strategy.ID, msg.Strategy.Enabled)
}

// ============ MsgGrantCapability ============

// MsgGrantCapability lets Agent call Selector on StrategyID. Selector is a
// 0x-prefixed hex selector or a function signature.
type MsgGrantCapability struct {
	Authority   string        `json:"authority"`
	Agent       string        `json:"agent"`
	StrategyID  string        `json:"strategy_id"`
	Selector    string        `json:"selector"`
	MinInterval time.Duration `json:"min_interval"`
}

// Route implements sdk.Msg
func (msg MsgGrantCapability) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgGrantCapability) Type() string { return TypeMsgGrantCapability }

// ValidateBasic implements sdk.Msg
func (msg MsgGrantCapability) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	if err := validateAddress("agent", msg.Agent); err != nil {
		return err
	}
	if msg.StrategyID == "" {
		return ErrUnknownStrategy
	}
	if msg.MinInterval < 0 {
		return fmt.Errorf("negative min interval %s", msg.MinInterval)
	}
	_, err := ParseSelector(msg.Selector)
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgGrantCapability) GetSigners() []sdk.AccAddress { return signer(msg.Authority) }

// ProtoMessage implements proto.Message
func (*MsgGrantCapability) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgGrantCapability) Reset() { *msg = MsgGrantCapability{} }

// String implements proto.Message
func (msg MsgGrantCapability) String() string {
	return fmt.Sprintf("MsgGrantCapability{Agent: %s, StrategyID: %s, Selector: %s, MinInterval: %s}",
		msg.Agent, msg.StrategyID, msg.Selector, msg.MinInterval)
}

// ============ MsgRevokeCapability ============

// MsgRevokeCapability removes a capability entry
type MsgRevokeCapability struct {
	Authority  string `json:"authority"`
	Agent      string `json:"agent"`
	StrategyID string `json:"strategy_id"`
	Selector   string `json:"selector"`
}

// Route implements sdk.Msg
func (msg MsgRevokeCapability) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgRevokeCapability) Type() string { return TypeMsgRevokeCapability }

// ValidateBasic implements sdk.Msg
func (msg MsgRevokeCapability) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	if err := validateAddress("agent", msg.Agent); err != nil {
		return err
	}
	_, err := ParseSelector(msg.Selector)
	return err
}

// GetSigners implements sdk.Msg
func (msg MsgRevokeCapability) GetSigners() []sdk.AccAddress { return signer(msg.Authority) }

// ProtoMessage implements proto.Message
func (*MsgRevokeCapability) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgRevokeCapability) Reset() { *msg = MsgRevokeCapability{} }

// String implements proto.Message
func (msg MsgRevokeCapability) String() string {
	return fmt.Sprintf("MsgRevokeCapability{Agent: %s, StrategyID: %s, Selector: %s}",
		msg.Agent, msg.StrategyID, msg.Selector)
}

// MsgEmptyResponse is returned by messages without a payload
type MsgEmptyResponse struct{}
