package keeper

import (
	"context"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

// CallStrategy forwards payload verbatim to the strategy's handler after
// checking the capability for the selector in its first four bytes. A
// handler error discards every write made during the call.
func (k *Keeper) CallStrategy(goCtx context.Context, agent, strategyID string, payload []byte) ([]byte, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	var (
		result []byte
		sel    types.Selector
	)
	err := k.atomically(ctx, func(ctx sdk.Context) error {
		if _, err := k.strategy(ctx, strategyID); err != nil {
			return err
		}
		var err error
		sel, err = types.DecodeSelector(payload)
		if err != nil {
			return err
		}
		if err := k.authorize(ctx, agent, strategyID, sel); err != nil {
			return err
		}

		handler, ok := k.handlers[strategyID]
		if !ok {
			return errorsmod.Wrapf(types.ErrStrategyCallFailed, "no handler bound for %s", strategyID)
		}
		out, err := handler.Execute(ctx, payload)
		if err != nil {
			return errorsmod.Wrapf(types.ErrStrategyCallFailed, "%s %s: %s", strategyID, sel, err)
		}
		result = out

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeExecuted,
				sdk.NewAttribute(types.AttributeKeyStrategyID, strategyID),
				sdk.NewAttribute(types.AttributeKeyAgent, agent),
				sdk.NewAttribute(types.AttributeKeySelector, sel.String()),
				sdk.NewAttribute(types.AttributeKeyResultSize, strconv.Itoa(len(out))),
			),
		)
		return nil
	})
	if err != nil {
		k.metrics.RecordStrategyCall(strategyID, sel.String(), "failed")
		k.logger.Debug("Strategy call rejected", "strategy_id", strategyID, "agent", agent, "error", err)
		return nil, err
	}

	k.metrics.RecordStrategyCall(strategyID, sel.String(), "ok")
	k.logger.Info("Strategy call executed",
		"strategy_id", strategyID,
		"agent", agent,
		"selector", sel.String(),
	)
	return result, nil
}
