package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/llehouerou/presence/internal/artcache"
	"github.com/llehouerou/presence/internal/errmsg"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the artwork cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show artwork cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Cache.Dir

			files, size, err := dirUsage(dir)
			if err != nil {
				return errmsg.Wrap(errmsg.OpCacheStats, err)
			}
			loaded := 0
			if files > 0 {
				c := artcache.New(nil, artcache.WithMaxEntries(cfg.Cache.MaxEntries))
				defer c.Close()
				if loaded, err = c.LoadFrom(dir); err != nil {
					return errmsg.Wrap(errmsg.OpCacheStats, err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directory: %s\n", dir)
			fmt.Fprintf(out, "Entries:   %d valid of %d files (limit %d)\n", loaded, files, cfg.Cache.MaxEntries)
			fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(size)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached artwork URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// A running daemon would write its entries back on exit.
			lock := flock.New(cfg.LockPath())
			if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0o755); err != nil {
				return err
			}
			locked, err := lock.TryLock()
			if err != nil {
				return err
			}
			if !locked {
				return errors.New("presence is running; stop it before clearing the cache")
			}
			defer func() { _ = lock.Unlock() }()

			files, _, err := dirUsage(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			empty := artcache.New(nil)
			defer empty.Close()
			if _, err := empty.SaveTo(cfg.Cache.Dir); err != nil {
				return errmsg.Wrap(errmsg.OpCacheClear, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached %s\n", files, plural(files, "entry", "entries"))
			return nil
		},
	})

	return cmd
}

// dirUsage counts regular files and their total size. A missing directory
// is empty.
func dirUsage(dir string) (int, int64, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	var (
		n    int
		size int64
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		n++
		size += info.Size()
	}
	return n, size, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
