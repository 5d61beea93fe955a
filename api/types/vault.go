package types

import (
	"cosmossdk.io/math"

	strategytypes "github.com/openalpha/epoch-vault/x/strategy/types"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

// VaultService defines what the HTTP handlers need from the vault backend
type VaultService interface {
	// Pool queries
	GetPools(offset, limit uint64) ([]*vaulttypes.Pool, uint64, error)
	GetPool(poolID string) (*vaulttypes.Pool, error)
	GetPoolStatus(poolID string) (*vaulttypes.PoolStatus, error)
	GetAllowance(poolID string) (*AllowanceInfo, error)
	GetEpochs(poolID string) ([]vaulttypes.EpochRecord, error)
	GetAllocations(poolID string) ([]strategytypes.Allocation, error)

	// Depositor queries
	GetAccount(poolID, depositor string) (*AccountInfo, error)
	PreviewWithdraw(poolID, depositor string) (*vaulttypes.WithdrawPreview, error)

	// Transactions
	Deposit(poolID, depositor string, amount math.Int) (*vaulttypes.DepositReceipt, error)
	Withdraw(poolID, withdrawer string, shares math.Int) (*vaulttypes.WithdrawReceipt, error)
	WithdrawAll(poolID, withdrawer string) (*vaulttypes.WithdrawReceipt, error)
	Deploy(poolID string) (math.Int, error)
	Allocate(poolID, agent, strategyID string, amount math.Int) (math.Int, error)
	Deallocate(poolID, agent, strategyID string, amount math.Int) (math.Int, error)
	Faucet(address, denom string, amount math.Int) (math.Int, error)
}

// AccountInfo is a depositor position with its current withdraw eligibility
type AccountInfo struct {
	vaulttypes.DepositorAccount
	CanWithdraw bool   `json:"can_withdraw"`
	Balance     string `json:"balance"`
}

// AllowanceInfo is the subsidy budget a treasury granted a pool
type AllowanceInfo struct {
	PoolID   string   `json:"pool_id"`
	Treasury string   `json:"treasury"`
	Amount   math.Int `json:"amount"`
	Balance  math.Int `json:"balance"`
}

// DepositRequest is the body of POST /v1/pools/{id}/deposit
type DepositRequest struct {
	Depositor string `json:"depositor" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
}

// WithdrawRequest is the body of POST /v1/pools/{id}/withdraw. Shares is
// ignored when All is set.
type WithdrawRequest struct {
	Withdrawer string `json:"withdrawer" validate:"required"`
	Shares     string `json:"shares,omitempty" validate:"required_without=All"`
	All        bool   `json:"all,omitempty"`
}

// AllocationRequest is the body of POST /v1/pools/{id}/allocate and /deallocate.
// The acting agent comes from the operator API key; Agent, when set, must match it.
type AllocationRequest struct {
	Agent      string `json:"agent,omitempty"`
	StrategyID string `json:"strategy_id" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
}

// AllocationResponse reports the pool's allocation to a strategy after the move
type AllocationResponse struct {
	PoolID     string   `json:"pool_id"`
	StrategyID string   `json:"strategy_id"`
	Allocated  math.Int `json:"allocated"`
}

// FaucetRequest is the body of POST /v1/faucet
type FaucetRequest struct {
	Address string `json:"address" validate:"required"`
	Denom   string `json:"denom" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
}

// DeployResponse reports the snapshot taken at deployment
type DeployResponse struct {
	PoolID         string   `json:"pool_id"`
	DeployedAssets math.Int `json:"deployed_assets"`
}

// PoolsResponse is a page of pools
type PoolsResponse struct {
	Pools []*vaulttypes.Pool `json:"pools"`
	Total uint64             `json:"total"`
}

// EpochsResponse lists the completed epochs of a pool
type EpochsResponse struct {
	Epochs []vaulttypes.EpochRecord `json:"epochs"`
}

// AllocationsResponse lists a pool's strategy allocations
type AllocationsResponse struct {
	Allocations []strategytypes.Allocation `json:"allocations"`
}

// FaucetResponse reports the balance after minting
type FaucetResponse struct {
	Address string   `json:"address"`
	Denom   string   `json:"denom"`
	Balance math.Int `json:"balance"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
