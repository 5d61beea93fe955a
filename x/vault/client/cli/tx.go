package cli

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/epoch-vault/x/vault/types"
)

const (
	flagOwner          = "owner"
	flagTreasury       = "treasury"
	flagWrappedDenom   = "wrapped-denom"
	flagRiskTier       = "risk-tier"
	flagYieldRateBps   = "yield-rate-bps"
	flagAccrualUnit    = "accrual-unit"
	flagWithdrawDelay  = "withdraw-delay"
	flagWithdrawWindow = "withdraw-window"
)

// GetTxCmd returns the transaction commands for the vault module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Vault module transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdCreatePool(),
		CmdDeposit(),
		CmdDeploy(),
		CmdWithdraw(),
		CmdWithdrawAll(),
		CmdResetPool(),
		CmdTransferOwnership(),
		CmdSetTreasury(),
		CmdSetCap(),
		CmdApproveTreasury(),
	)

	return cmd
}

type vaultMsg interface {
	sdk.Msg
	ValidateBasic() error
}

func txCommand(use, short string, nargs int, build func(from string, args []string) (vaultMsg, error)) *cobra.Command {
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

// CmdCreatePool returns the command to register a new pool
func CmdCreatePool() *cobra.Command {
	var (
		owner, treasury, wrapped, tier string
		rateBps                        int64
		unit, delay, window            time.Duration
	)

	cmd := txCommand("create-pool [pool-id] [denom] [cap]", "Create a capped pool (authority only)", 3,
		func(from string, args []string) (vaultMsg, error) {
			capAmt, ok := math.NewIntFromString(args[2])
			if !ok {
				return nil, fmt.Errorf("invalid cap: %q", args[2])
			}
			if owner == "" {
				owner = from
			}
			return &types.MsgCreatePool{
				Authority: from,
				Config: types.PoolConfig{
					PoolID:                 args[0],
					Owner:                  owner,
					Treasury:               treasury,
					Denom:                  args[1],
					WrappedDenom:           wrapped,
					RiskTier:               types.RiskTier(tier),
					Cap:                    capAmt,
					YieldRateBps:           rateBps,
					AccrualUnit:            unit,
					WithdrawDelay:          delay,
					WithdrawWindowDuration: window,
				},
			}, nil
		})

	cmd.Flags().StringVar(&owner, flagOwner, "", "Pool owner (defaults to the signer)")
	cmd.Flags().StringVar(&treasury, flagTreasury, "", "Treasury address covering yield shortfalls")
	cmd.Flags().StringVar(&wrapped, flagWrappedDenom, "", "Denom of the wrapped strategy position")
	cmd.Flags().StringVar(&tier, flagRiskTier, string(types.RiskTierGuaranteed), "Risk tier: guaranteed, medium or high")
	cmd.Flags().Int64Var(&rateBps, flagYieldRateBps, 0, "Yield per accrual unit in basis points")
	cmd.Flags().DurationVar(&unit, flagAccrualUnit, 0, "Accrual unit (0 uses the module default)")
	cmd.Flags().DurationVar(&delay, flagWithdrawDelay, 0, "Delay between deployment and the withdraw window")
	cmd.Flags().DurationVar(&window, flagWithdrawWindow, 0, "Advertised withdraw window length")
	return cmd
}

// CmdDeposit returns the command to deposit into a collecting pool
func CmdDeposit() *cobra.Command {
	return txCommand("deposit [pool-id] [amount]", "Deposit the pool asset and receive shares", 2,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgDeposit{Depositor: from, PoolID: args[0], Amount: args[1]}, nil
		})
}

// CmdDeploy returns the command to deploy a pool that reached its cap
func CmdDeploy() *cobra.Command {
	return txCommand("deploy [pool-id]", "Deploy a capped pool to its strategy", 1,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgDeployToStrategy{Sender: from, PoolID: args[0]}, nil
		})
}

// CmdWithdraw returns the command to burn shares once the window is open
func CmdWithdraw() *cobra.Command {
	return txCommand("withdraw [pool-id] [shares]", "Burn shares for principal plus yield", 2,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgWithdraw{Withdrawer: from, PoolID: args[0], Shares: args[1]}, nil
		})
}

// CmdWithdrawAll returns the command to burn every share the signer holds
func CmdWithdrawAll() *cobra.Command {
	return txCommand("withdraw-all [pool-id]", "Burn all of the signer's shares", 1,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgWithdrawAll{Withdrawer: from, PoolID: args[0]}, nil
		})
}

// CmdResetPool returns the command to sweep and reset an empty pool
func CmdResetPool() *cobra.Command {
	return txCommand("reset [pool-id]", "Sweep an empty pool to its treasury and start a new epoch", 1,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgResetPool{Owner: from, PoolID: args[0]}, nil
		})
}

func CmdTransferOwnership() *cobra.Command {
	return txCommand("transfer-ownership [pool-id] [new-owner]", "Hand pool ownership to another address", 2,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgTransferOwnership{Owner: from, PoolID: args[0], NewOwner: args[1]}, nil
		})
}

func CmdSetTreasury() *cobra.Command {
	return txCommand("set-treasury [pool-id] [treasury]", "Point the pool at a new treasury", 2,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgSetTreasury{Owner: from, PoolID: args[0], Treasury: args[1]}, nil
		})
}

func CmdSetCap() *cobra.Command {
	return txCommand("set-cap [pool-id] [cap]", "Change the cap of a collecting pool", 2,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgSetCap{Owner: from, PoolID: args[0], Cap: args[1]}, nil
		})
}

// CmdApproveTreasury returns the command a treasury uses to set its subsidy allowance
func CmdApproveTreasury() *cobra.Command {
	return txCommand("approve-treasury [pool-id] [amount]", "Set the treasury subsidy allowance for a pool", 2,
		func(from string, args []string) (vaultMsg, error) {
			return &types.MsgApproveTreasury{Treasury: from, PoolID: args[0], Amount: args[1]}, nil
		})
}
