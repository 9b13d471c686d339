package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llehouerou/presence/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "List configuration files in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			paths := config.Paths()
			if p := ctx.configPath(); p != "" {
				paths = append(paths, p)
			}
			for _, p := range paths {
				status := "missing"
				if _, err := os.Stat(p); err == nil {
					status = "found"
				}
				fmt.Fprintf(out, "%-8s %s\n", status, p)
			}
			fmt.Fprintf(out, "\n`presence set` writes to %s\n", ctx.writablePath())
			return nil
		},
	})

	return cmd
}
