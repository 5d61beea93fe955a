package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrPoolNotFound       = errors.Register(ModuleName, 1, "pool not found")
	ErrNotCollecting      = errors.Register(ModuleName, 2, "pool is not collecting deposits")
	ErrZeroAmount         = errors.Register(ModuleName, 3, "amount must be positive")
	ErrTransferFailed     = errors.Register(ModuleName, 4, "asset transfer failed")
	ErrDustDeposit        = errors.Register(ModuleName, 5, "deposit too small to mint a share")
	ErrAlreadyDeployed    = errors.Register(ModuleName, 6, "pool already deployed")
	ErrCapNotReached      = errors.Register(ModuleName, 7, "pool cap not reached")
	ErrNotDeployed        = errors.Register(ModuleName, 8, "pool not deployed")
	ErrWindowNotOpen      = errors.Register(ModuleName, 9, "withdraw window not open")
	ErrZeroShares         = errors.Register(ModuleName, 10, "share amount must be positive")
	ErrInsufficientShares = errors.Register(ModuleName, 11, "insufficient shares")
	ErrTreasuryShortfall  = errors.Register(ModuleName, 12, "treasury cannot cover shortfall")

	// Admin errors
	ErrNotOwner           = errors.Register(ModuleName, 13, "caller is not the pool owner")
	ErrSharesOutstanding  = errors.Register(ModuleName, 14, "shares still outstanding")
	ErrUnauthorized       = errors.Register(ModuleName, 15, "unauthorized")
	ErrPoolExists         = errors.Register(ModuleName, 16, "pool already exists")
	ErrInvalidPoolConfig  = errors.Register(ModuleName, 17, "invalid pool configuration")
	ErrNotTreasury        = errors.Register(ModuleName, 18, "caller is not the pool treasury")
	ErrInvalidParams      = errors.Register(ModuleName, 19, "invalid module params")
	ErrInvalidAddress     = errors.Register(ModuleName, 20, "invalid address")

	// Accounting errors
	ErrInvalidValuation       = errors.Register(ModuleName, 21, "pool valuation is not positive")
	ErrAllocationUnderflow    = errors.Register(ModuleName, 22, "allocated assets would go negative")
	ErrInvariantBroken        = errors.Register(ModuleName, 23, "vault invariant broken")
	ErrAllocationsOutstanding = errors.Register(ModuleName, 24, "pool assets still allocated to strategies")
)
