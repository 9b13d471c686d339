package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/presence/internal/errmsg"
	"github.com/llehouerou/presence/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently shown tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.History.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No history recorded yet.")
				return nil
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return errmsg.WrapWith(errmsg.OpHistoryOpen, cfg.History.Path, err)
			}
			defer store.Close()

			plays, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return errmsg.Wrap(errmsg.OpHistoryList, err)
			}
			if len(plays) == 0 {
				fmt.Fprintln(out, "No history recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tARTIST\tTITLE\tALBUM\tSHOWN")
			for _, p := range plays {
				shown := "now"
				if !p.EndedAt.IsZero() {
					shown = p.EndedAt.Sub(p.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(p.StartedAt), p.Artist, p.Title, p.Album, shown)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of plays to show")
	return cmd
}
