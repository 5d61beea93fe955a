package types

import (
	"cosmossdk.io/errors"
)

// x/strategy module sentinel errors
var (
	ErrUnauthorizedAgent      = errors.Register(ModuleName, 1, "agent lacks capability")
	ErrUnknownStrategy        = errors.Register(ModuleName, 2, "strategy not allow-listed")
	ErrStrategyCallFailed     = errors.Register(ModuleName, 3, "strategy call failed")
	ErrInvalidPayload         = errors.Register(ModuleName, 4, "invalid strategy payload")
	ErrInsufficientIdle       = errors.Register(ModuleName, 5, "insufficient idle pool balance")
	ErrInsufficientAllocation = errors.Register(ModuleName, 6, "insufficient allocation")
	ErrUnauthorized           = errors.Register(ModuleName, 7, "unauthorized")
	ErrStrategyExists         = errors.Register(ModuleName, 8, "strategy already registered")
	ErrInvalidStrategy        = errors.Register(ModuleName, 9, "invalid strategy")
	ErrInvalidAddress         = errors.Register(ModuleName, 10, "invalid address")
	ErrZeroAmount             = errors.Register(ModuleName, 11, "amount must be positive")
	ErrPoolNotFound           = errors.Register(ModuleName, 12, "pool not found")
)
