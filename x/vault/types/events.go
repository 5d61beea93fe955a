package types

// Event types
const (
	EventTypeDeposited          = "vault_deposited"
	EventTypeWithdrawn          = "vault_withdrawn"
	EventTypeDeployedToStrategy = "vault_deployed_to_strategy"
	EventTypePoolReset          = "vault_pool_reset"
	EventTypeTreasurySubsidy    = "vault_treasury_subsidy"
	EventTypePoolCreated        = "vault_pool_created"
	EventTypeOwnershipChanged   = "vault_ownership_transferred"
	EventTypeTreasuryChanged    = "vault_treasury_changed"
	EventTypeCapChanged         = "vault_cap_changed"
	EventTypeTreasuryApproved   = "vault_treasury_approved"
)

// Event attribute keys
const (
	AttributeKeyPoolID        = "pool_id"
	AttributeKeyDepositor     = "depositor"
	AttributeKeyAmount        = "amount"
	AttributeKeyShares        = "shares"
	AttributeKeyPaidOut       = "paid_out"
	AttributeKeyYieldPaid     = "yield_paid"
	AttributeKeyPrincipal     = "principal"
	AttributeKeyLoss          = "loss"
	AttributeKeyDeployed      = "deployed_assets"
	AttributeKeyDeployedAt    = "deployed_at"
	AttributeKeyWithdrawAt    = "withdraw_opens_at"
	AttributeKeyTreasury      = "treasury"
	AttributeKeySweptBase     = "swept_base"
	AttributeKeySweptWrapped  = "swept_wrapped"
	AttributeKeyEpoch         = "epoch"
	AttributeKeyManual        = "manual"
	AttributeKeyOwner         = "owner"
	AttributeKeyPreviousOwner = "previous_owner"
	AttributeKeyCap           = "cap"
	AttributeKeyAllowance     = "allowance"
)
