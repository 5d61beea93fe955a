package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"

	"github.com/openalpha/epoch-vault/pkg/vaultclient"
	"github.com/openalpha/epoch-vault/x/strategy/types"
)

const flagAPI = "api"

// GetQueryCmd returns the cli query commands for the strategy module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Querying commands for the strategy module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdSelector(),
		CmdQueryAllocations(),
	)

	return cmd
}

// CmdSelector prints the 4-byte selector of a function signature
func CmdSelector() *cobra.Command {
	return &cobra.Command{
		Use:     "selector [signature]",
		Short:   "Compute the Keccak-256 selector of a function signature",
		Example: `selector "allocate(string,uint256)"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), types.SelectorOf(args[0]).String())
			return nil
		},
	}
}

// CmdQueryAllocations lists a pool's allocations through the vault API
func CmdQueryAllocations() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocations [pool-id]",
		Short: "List what a pool has allocated to each strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString(flagAPI)
			config := vaultclient.DefaultConfig()
			config.BaseURL = base

			body, err := vaultclient.NewClient(config, nil).Raw(cmd.Context(), vaultclient.PoolPath(args[0], "allocations"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
	cmd.Flags().String(flagAPI, vaultclient.DefaultConfig().BaseURL, "Base URL of the vault API server")
	return cmd
}
