// Package cli implements the presence command line.
package cli

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/llehouerou/presence/internal/config"
	"github.com/llehouerou/presence/internal/errmsg"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// ensureConfig loads the default files plus the --config file, once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		paths := config.Paths()
		if extra := c.configPath(); extra != "" {
			paths = append(paths, extra)
		}
		c.config, c.configErr = config.LoadFrom(paths...)
		c.configErr = errmsg.Wrap(errmsg.OpLoadConfig, c.configErr)
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// writablePath is the file `set` edits.
func (c *commandContext) writablePath() string {
	if p := c.configPath(); p != "" {
		return p
	}
	return config.UserPath()
}

// NewRootCommand builds the presence command tree.
func NewRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "presence",
		Short:         "Show what your music player is playing as Discord rich presence",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Additional configuration file (loaded last)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newSetCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newLastfmCommand(ctx))

	return rootCmd
}
