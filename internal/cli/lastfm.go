package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llehouerou/presence/internal/config"
	"github.com/llehouerou/presence/internal/errmsg"
	"github.com/llehouerou/presence/internal/lastfm"
)

const authWait = 5 * time.Minute

func newLastfmCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lastfm",
		Short: "Manage the Last.fm integration",
	}

	var noBrowser bool
	login := &cobra.Command{
		Use:   "login",
		Short: "Authorize presence to scrobble to your Last.fm account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Lastfm.APIKey == "" || cfg.Lastfm.APISecret == "" {
				return errors.New("set lastfm.api_key and lastfm.api_secret first")
			}
			out := cmd.OutOrStdout()

			client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, "")
			token, err := client.Token()
			if err != nil {
				return errmsg.Wrap(errmsg.OpLastfmToken, err)
			}

			server, err := lastfm.StartAuthServer("")
			if err != nil {
				return errmsg.Wrap(errmsg.OpLastfmAuth, err)
			}
			defer server.Shutdown()

			authURL := client.AuthURL(token, server.CallbackURL())
			fmt.Fprintf(out, "Authorize presence at:\n  %s\n", authURL)
			if !noBrowser {
				if err := lastfm.OpenBrowser(authURL); err != nil {
					fmt.Fprintf(out, "Could not open a browser: %v\n", err)
				}
			}

			token, err = server.Wait(cmd.Context(), authWait)
			if err != nil {
				return errmsg.Wrap(errmsg.OpLastfmAuth, err)
			}
			user, sessionKey, err := client.Login(token)
			if err != nil {
				return errmsg.Wrap(errmsg.OpLastfmLogin, err)
			}

			path := ctx.writablePath()
			if err := config.Set(path, "lastfm.session_key", sessionKey); err != nil {
				return errmsg.WrapWith(errmsg.OpConfigSet, "lastfm.session_key", err)
			}
			if user == "" {
				user = "your account"
			}
			fmt.Fprintf(out, "Logged in as %s; session saved to %s\n", user, path)
			return nil
		},
	}
	login.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL without opening it")
	cmd.AddCommand(login)

	return cmd
}
