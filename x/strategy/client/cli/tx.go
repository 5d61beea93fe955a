package cli

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/strategy/types"
)

const (
	flagCustody     = "custody"
	flagDescription = "description"
	flagDisabled    = "disabled"
	flagMinInterval = "min-interval"
)

type strategyMsg interface {
	sdk.Msg
	ValidateBasic() error
}

// GetTxCmd returns the transaction commands for the strategy module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Strategy module transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdAllocate(),
		CmdDeallocate(),
		CmdCall(),
		CmdRegister(),
		CmdGrant(),
		CmdRevoke(),
	)

	return cmd
}

func txCommand(use, short string, nargs int, build func(from string, args []string) (strategyMsg, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			msg, err := build(clientCtx.GetFromAddress().String(), args)
			if err != nil {
				return err
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdAllocate returns the command to move idle pool assets into a strategy
func CmdAllocate() *cobra.Command {
	return txCommand("allocate [pool-id] [strategy-id] [amount]", "Allocate idle pool assets to a strategy", 3,
		func(from string, args []string) (strategyMsg, error) {
			return &types.MsgAllocate{Agent: from, PoolID: args[0], StrategyID: args[1], Amount: args[2]}, nil
		})
}

// CmdDeallocate returns the command to pull assets back from a strategy
func CmdDeallocate() *cobra.Command {
	return txCommand("deallocate [pool-id] [strategy-id] [amount]", "Return allocated assets to the pool escrow", 3,
		func(from string, args []string) (strategyMsg, error) {
			return &types.MsgDeallocate{Agent: from, PoolID: args[0], StrategyID: args[1], Amount: args[2]}, nil
		})
}

// CmdCall returns the command to forward a hex payload to a strategy handler
func CmdCall() *cobra.Command {
	return txCommand("call [strategy-id] [payload-hex]", "Forward a raw call to a strategy", 2,
		func(from string, args []string) (strategyMsg, error) {
			payload, err := hex.DecodeString(strings.TrimPrefix(args[1], "0x"))
			if err != nil {
				return nil, fmt.Errorf("invalid payload: %w", err)
			}
			return &types.MsgCallStrategy{Agent: from, StrategyID: args[0], Payload: payload}, nil
		})
}

// CmdRegister returns the command to allow-list a strategy
func CmdRegister() *cobra.Command {
	var (
		custody, description string
		disabled             bool
	)
	cmd := txCommand("register [strategy-id]", "Add or update an allow-listed strategy (authority only)", 1,
		func(from string, args []string) (strategyMsg, error) {
			return &types.MsgRegisterStrategy{
				Authority: from,
				Strategy: types.Strategy{
					ID:          args[0],
					Custody:     custody,
					Description: description,
					Enabled:     !disabled,
				},
			}, nil
		})
	cmd.Flags().StringVar(&custody, flagCustody, "", "Custody address (defaults to a module-derived account)")
	cmd.Flags().StringVar(&description, flagDescription, "", "Free-form description")
	cmd.Flags().BoolVar(&disabled, flagDisabled, false, "Register the strategy disabled")
	return cmd
}

// CmdGrant returns the command to grant a capability
func CmdGrant() *cobra.Command {
	var minInterval time.Duration
	cmd := txCommand("grant [agent] [strategy-id] [selector]", "Grant an agent a (strategy, selector) capability", 3,
		func(from string, args []string) (strategyMsg, error) {
			return &types.MsgGrantCapability{
				Authority:   from,
				Agent:       args[0],
				StrategyID:  args[1],
				Selector:    args[2],
				MinInterval: minInterval,
			}, nil
		})
	cmd.Flags().DurationVar(&minInterval, flagMinInterval, 0, "Minimum time between two uses")
	return cmd
}

// CmdRevoke returns the command to revoke a capability
func CmdRevoke() *cobra.Command {
	return txCommand("revoke [agent] [strategy-id] [selector]", "Revoke a capability", 3,
		func(from string, args []string) (strategyMsg, error) {
			return &types.MsgRevokeCapability{Authority: from, Agent: args[0], StrategyID: args[1], Selector: args[2]}, nil
		})
}
