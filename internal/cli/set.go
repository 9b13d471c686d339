package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/presence/internal/config"
	"github.com/llehouerou/presence/internal/errmsg"
)

func newSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting in the configuration file",
		Long: `Store a setting in the configuration file.

The required settings are application_id (the Discord application id) and
api_key (the freeimage.host API key). fallback_image is the URL shown when a
track has no artwork. Nested settings use dots, e.g. player.source.`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.Keys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.writablePath()
			if err := config.Set(path, args[0], args[1]); err != nil {
				return errmsg.WrapWith(errmsg.OpConfigSet, args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated in %s\n", args[0], path)
			return nil
		},
	}
}
