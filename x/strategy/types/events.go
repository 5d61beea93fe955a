package types

// Strategy module event types
const (
	EventTypeExecuted          = "strategy_executed"
	EventTypeAllocated         = "strategy_allocated"
	EventTypeDeallocated       = "strategy_deallocated"
	EventTypeRegistered        = "strategy_registered"
	EventTypeCapabilityGranted = "strategy_capability_granted"
	EventTypeCapabilityRevoked = "strategy_capability_revoked"

	AttributeKeyStrategyID  = "strategy_id"
	AttributeKeyAgent       = "agent"
	AttributeKeySelector    = "selector"
	AttributeKeyPoolID      = "pool_id"
	AttributeKeyAmount      = "amount"
	AttributeKeyAllocated   = "allocated"
	AttributeKeyCustody     = "custody"
	AttributeKeyResultSize  = "result_size"
	AttributeKeyMinInterval = "min_interval"
)
