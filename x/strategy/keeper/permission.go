package keeper

import (
	"context"
	"errors"
	"strconv"
	"time"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

func capabilityKey(agent, strategyID string, sel types.Selector) collections.Triple[string, string, string] {
	return collections.Join3(agent, strategyID, sel.String())
}

// strategy returns an enabled, allow-listed strategy
func (k *Keeper) strategy(ctx sdk.Context, strategyID string) (types.Strategy, error) {
	s, err := k.Strategies.Get(ctx, strategyID)
	if errors.Is(err, collections.ErrNotFound) {
		return types.Strategy{}, errorsmod.Wrapf(types.ErrUnknownStrategy, "%s", strategyID)
	}
	if err != nil {
		return types.Strategy{}, err
	}
	if !s.Enabled {
		return types.Strategy{}, errorsmod.Wrapf(types.ErrUnknownStrategy, "%s is disabled", strategyID)
	}
	return s, nil
}

// authorize checks the (agent, strategy, selector) capability and stamps its
// LastUsedAt in the same step, so a passing check is always consumed
func (k *Keeper) authorize(ctx sdk.Context, agent, strategyID string, sel types.Selector) error {
	key := capabilityKey(agent, strategyID, sel)
	capability, err := k.Capabilities.Get(ctx, key)
	if errors.Is(err, collections.ErrNotFound) || (err == nil && !capability.Enabled) {
		k.metrics.RecordCapabilityDenial(strategyID, "missing")
		return errorsmod.Wrapf(types.ErrUnauthorizedAgent, "%s may not call %s on %s", agent, sel, strategyID)
	}
	if err != nil {
		return err
	}

	now := ctx.BlockTime()
	if !capability.Allows(now) {
		k.metrics.RecordCapabilityDenial(strategyID, "rate_limited")
		return errorsmod.Wrapf(types.ErrUnauthorizedAgent, "%s rate limited on %s until %s",
			agent, strategyID, capability.NextAllowedAt().UTC().Format(time.RFC3339))
	}

	capability.LastUsedAt = now
	return k.Capabilities.Set(ctx, key, capability)
}

func (k *Keeper) requireAuthority(sender string) error {
	if sender != k.authority {
		return errorsmod.Wrapf(types.ErrUnauthorized, "expected %s, got %s", k.authority, sender)
	}
	return nil
}

// RegisterStrategy adds or replaces an allow-list entry. An empty custody
// address defaults to the module-derived custody account.
func (k *Keeper) RegisterStrategy(goCtx context.Context, authority string, s types.Strategy) (*types.Strategy, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if err := k.requireAuthority(authority); err != nil {
		return nil, err
	}
	if s.Custody == "" {
		s.Custody = types.DefaultCustody(s.ID).String()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if prev, err := k.Strategies.Get(ctx, s.ID); err == nil && prev.Custody != s.Custody {
		if has, err := k.hasAllocations(ctx, s.ID); err != nil {
			return nil, err
		} else if has {
			return nil, errorsmod.Wrapf(types.ErrStrategyExists, "%s holds allocations, custody cannot change", s.ID)
		}
	}

	if err := k.Strategies.Set(ctx, s.ID, s); err != nil {
		return nil, err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeRegistered,
			sdk.NewAttribute(types.AttributeKeyStrategyID, s.ID),
			sdk.NewAttribute(types.AttributeKeyCustody, s.Custody),
		),
	)
	k.logger.Info("Strategy registered", "strategy_id", s.ID, "custody", s.Custody, "enabled", s.Enabled)
	return &s, nil
}

// GrantCapability lets agent invoke sel on strategyID at most once per minInterval
func (k *Keeper) GrantCapability(goCtx context.Context, authority, agent, strategyID string, sel types.Selector, minInterval time.Duration) error {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if err := k.requireAuthority(authority); err != nil {
		return err
	}
	if _, err := sdk.AccAddressFromBech32(agent); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidAddress, "agent: %s", err)
	}
	if _, err := k.strategy(ctx, strategyID); err != nil {
		return err
	}

	key := capabilityKey(agent, strategyID, sel)
	capability, err := k.Capabilities.Get(ctx, key)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return err
	}
	capability.Enabled = true
	capability.MinInterval = minInterval
	if err := k.Capabilities.Set(ctx, key, capability); err != nil {
		return err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCapabilityGranted,
			sdk.NewAttribute(types.AttributeKeyAgent, agent),
			sdk.NewAttribute(types.AttributeKeyStrategyID, strategyID),
			sdk.NewAttribute(types.AttributeKeySelector, sel.String()),
			sdk.NewAttribute(types.AttributeKeyMinInterval, strconv.FormatInt(int64(minInterval/time.Second), 10)),
		),
	)
	return nil
}

// RevokeCapability deletes the entry; revoking an absent entry is a no-op
func (k *Keeper) RevokeCapability(goCtx context.Context, authority, agent, strategyID string, sel types.Selector) error {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if err := k.requireAuthority(authority); err != nil {
		return err
	}
	if err := k.Capabilities.Remove(ctx, capabilityKey(agent, strategyID, sel)); err != nil {
		return err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCapabilityRevoked,
			sdk.NewAttribute(types.AttributeKeyAgent, agent),
			sdk.NewAttribute(types.AttributeKeyStrategyID, strategyID),
			sdk.NewAttribute(types.AttributeKeySelector, sel.String()),
		),
	)
	return nil
}

// GetCapability returns the capability entry, if any
func (k *Keeper) GetCapability(ctx sdk.Context, agent, strategyID string, sel types.Selector) (types.Capability, bool) {
	c, err := k.Capabilities.Get(ctx, capabilityKey(agent, strategyID, sel))
	if err != nil {
		return types.Capability{}, false
	}
	return c, true
}

// AgentCapabilities lists every capability held by agent
func (k *Keeper) AgentCapabilities(ctx sdk.Context, agent string) ([]types.CapabilityEntry, error) {
	rng := collections.NewPrefixedTripleRange[string, string, string](agent)
	return k.collectCapabilities(ctx, rng)
}

func (k *Keeper) collectCapabilities(ctx sdk.Context, rng collections.Ranger[collections.Triple[string, string, string]]) ([]types.CapabilityEntry, error) {
	iter, err := k.Capabilities.Iterate(ctx, rng)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []types.CapabilityEntry
	for ; iter.Valid(); iter.Next() {
		kv, err := iter.KeyValue()
		if err != nil {
			return nil, err
		}
		out = append(out, types.CapabilityEntry{
			Agent:      kv.Key.K1(),
			StrategyID: kv.Key.K2(),
			Selector:   kv.Key.K3(),
			Capability: kv.Value,
		})
	}
	return out, nil
}
