package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/app"
	"github.com/llehouerou/presence/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel string
		player   string
		noFile   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the presence daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if player != "" {
				cfg.Player.Source = player
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := logging.Config{
				Level:      cfg.Log.Level,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
				Console:    cmd.ErrOrStderr(),
			}
			if noFile {
				logCfg.File = ""
			}
			logger, err := logging.New(logCfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := app.New(cfg, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.Flags().StringVar(&player, "player", "", "Player source override (mpd, mpris)")
	cmd.Flags().BoolVar(&noFile, "no-log-file", false, "Log to the console only")
	return cmd
}
