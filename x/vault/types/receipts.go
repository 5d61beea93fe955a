package types

import (
	"time"

	"cosmossdk.io/math"
)

// DepositReceipt is returned by a successful deposit
type DepositReceipt struct {
	PoolID       string   `json:"pool_id"`
	Depositor    string   `json:"depositor"`
	Amount       math.Int `json:"amount"`
	SharesMinted math.Int `json:"shares_minted"`
	Deployed     bool     `json:"deployed"`
	Epoch        uint64   `json:"epoch"`
}

// WithdrawReceipt is returned by a successful withdrawal
type WithdrawReceipt struct {
	PoolID             string   `json:"pool_id"`
	Withdrawer         string   `json:"withdrawer"`
	SharesBurned       math.Int `json:"shares_burned"`
	PaidOut            math.Int `json:"paid_out"`
	YieldPaid          math.Int `json:"yield_paid"`
	PrincipalWithdrawn math.Int `json:"principal_withdrawn"`
	LossRealized       math.Int `json:"loss_realized"`
	Subsidy            math.Int `json:"subsidy"`
	PoolReset          bool     `json:"pool_reset"`
	Epoch              uint64   `json:"epoch"`
}

// WithdrawPreview is what a full withdrawal would settle to right now
type WithdrawPreview struct {
	Shares        math.Int `json:"shares"`
	PaidOut       math.Int `json:"paid_out"`
	YieldPaid     math.Int `json:"yield_paid"`
	Principal     math.Int `json:"principal"`
	Loss          math.Int `json:"loss"`
	SubsidyNeeded math.Int `json:"subsidy_needed"`
}

// PoolStatus is the read-only view of a pool at a point in time
type PoolStatus struct {
	Pool              Pool          `json:"pool"`
	Phase             Phase         `json:"phase"`
	Escrow            string        `json:"escrow"`
	TotalAssets       math.Int      `json:"total_assets"`
	YieldEarned       math.Int      `json:"yield_earned"`
	PendingYield      math.Int      `json:"pending_yield"`
	IsCapReached      bool          `json:"is_cap_reached"`
	IsWithdrawOpen    bool          `json:"is_withdraw_open"`
	TimeUntilWithdraw time.Duration `json:"time_until_withdraw"`
	WindowClosesAt    time.Time     `json:"window_closes_at,omitempty"`
}
