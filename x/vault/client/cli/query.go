package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"

	"github.com/openalpha/epoch-vault/pkg/vaultclient"
	"github.com/openalpha/epoch-vault/x/vault/types"
)

const (
	flagAPI = "api"
)

// GetQueryCmd returns the cli query commands for the vault module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Querying commands for the vault module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQueryPools(),
		CmdQueryPool(),
		CmdQueryStatus(),
		CmdQueryAccount(),
		CmdQueryPreview(),
		CmdQueryAllowance(),
		CmdQueryEpochs(),
	)

	return cmd
}

// queryCommand builds a command that fetches path from the vault API and
// prints the JSON body
func queryCommand(use, short string, nargs int, path func(args []string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString(flagAPI)
			config := vaultclient.DefaultConfig()
			config.BaseURL = base

			body, err := vaultclient.NewClient(config, nil).Raw(cmd.Context(), path(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}

	cmd.Flags().String(flagAPI, vaultclient.DefaultConfig().BaseURL, "Base URL of the vault API server")
	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPools returns the command to list all pools
func CmdQueryPools() *cobra.Command {
	return queryCommand("pools", "List all pools", 0, func([]string) string {
		return "/v1/pools"
	})
}

// CmdQueryPool returns the command to query a pool record
func CmdQueryPool() *cobra.Command {
	return queryCommand("pool [pool-id]", "Query a pool record", 1, func(args []string) string {
		return vaultclient.PoolPath(args[0])
	})
}

// CmdQueryStatus returns the command to query the pool views
func CmdQueryStatus() *cobra.Command {
	return queryCommand("status [pool-id]", "Query phase, total assets and window timing of a pool", 1, func(args []string) string {
		return vaultclient.PoolPath(args[0], "status")
	})
}

func CmdQueryAccount() *cobra.Command {
	return queryCommand("account [pool-id] [address]", "Query a depositor's shares and principal", 2, func(args []string) string {
		return vaultclient.PoolPath(args[0], "accounts", args[1])
	})
}

func CmdQueryPreview() *cobra.Command {
	return queryCommand("preview-withdraw [pool-id] [address]", "Preview a full withdrawal at the current time", 2, func(args []string) string {
		return vaultclient.PoolPath(args[0], "accounts", args[1], "preview")
	})
}

func CmdQueryAllowance() *cobra.Command {
	return queryCommand("allowance [pool-id]", "Query the treasury subsidy allowance", 1, func(args []string) string {
		return vaultclient.PoolPath(args[0], "allowance")
	})
}

func CmdQueryEpochs() *cobra.Command {
	return queryCommand("epochs [pool-id]", "List completed epochs of a pool", 1, func(args []string) string {
		return vaultclient.PoolPath(args[0], "epochs")
	})
}
