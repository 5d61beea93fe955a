package types

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Strategy is an allow-listed yield destination
type Strategy struct {
	ID          string `json:"id"`
	Custody     string `json:"custody"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Validate checks the strategy id and custody address
func (s Strategy) Validate() error {
	if s.ID == "" || strings.ContainsRune(s.ID, 0) {
		return ErrInvalidStrategy.Wrapf("bad id %q", s.ID)
	}
	if _, err := sdk.AccAddressFromBech32(s.Custody); err != nil {
		return ErrInvalidAddress.Wrapf("custody: %s", err)
	}
	return nil
}

// CustodyAddress returns the parsed custody account
func (s Strategy) CustodyAddress() sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(s.Custody)
	return addr
}

// Capability authorizes one agent to invoke one selector on one strategy,
// no more often than MinInterval
type Capability struct {
	MinInterval time.Duration `json:"min_interval"`
	LastUsedAt  time.Time     `json:"last_used_at"`
	Enabled     bool          `json:"enabled"`
}

// NextAllowedAt is the earliest time the capability may be used again
func (c Capability) NextAllowedAt() time.Time {
	if c.LastUsedAt.IsZero() || c.MinInterval <= 0 {
		return time.Time{}
	}
	return c.LastUsedAt.Add(c.MinInterval)
}

// Allows reports whether the capability can be exercised at now
func (c Capability) Allows(now time.Time) bool {
	return c.Enabled && !now.Before(c.NextAllowedAt())
}

// CapabilityEntry is a capability together with its registry key
type CapabilityEntry struct {
	Agent      string     `json:"agent"`
	StrategyID string     `json:"strategy_id"`
	Selector   string     `json:"selector"`
	Capability Capability `json:"capability"`
}

// Allocation is the amount a pool has pushed into a strategy
type Allocation struct {
	PoolID     string   `json:"pool_id"`
	StrategyID string   `json:"strategy_id"`
	Amount     math.Int `json:"amount"`
}

func (a Allocation) String() string {
	return fmt.Sprintf("%s->%s:%s", a.PoolID, a.StrategyID, a.Amount)
}

// StrategyHandler executes forwarded calls for a strategy. The payload
// includes the leading selector. A returned error reverts the whole call.
type StrategyHandler interface {
	Execute(ctx context.Context, payload []byte) ([]byte, error)
}

// HandlerFunc adapts a function to StrategyHandler
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Execute calls f
func (f HandlerFunc) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}
