package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/services"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/cryptox"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newInitCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new sync group from the local profile",
		Long: `Generates a recovery phrase, encrypts the local profile with a key derived
from it and uploads it as a new sync group. Enter the phrase on other devices
with "join". The phrase is shown once and is never sent to the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			phrase, err := cryptox.GenerateRecoveryPhrase()
			if err != nil {
				return err
			}
			if err := a.sync.Enable(cmd.Context(), phrase, true); err != nil {
				return err
			}

			printOK(a.out, "sync enabled")
			a.println("Recovery phrase (write it down, it unlocks your data on other devices):")
			a.println("")
			a.println("    " + value(phrase))
			a.println("")
			return nil
		},
	}
}

func newJoinCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Join an existing sync group with its recovery phrase",
		Long: `Reads the recovery phrase (without echo on a terminal), downloads the
group's profile and replaces the local profile file with it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			phrase, err := GetSecret(a.in, "Recovery phrase", a.out)
			if err != nil {
				return err
			}
			if err := a.sync.Enable(cmd.Context(), phrase, false); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return &messageError{msg: "no sync group matches this phrase", err: err}
				}
				if errors.Is(err, common.ErrAuthentication) {
					return &messageError{msg: "the phrase does not unlock this sync group", err: err}
				}
				return err
			}
			printOK(a.out, "joined, profile written to %s", a.config.ProfilePath)
			return nil
		},
	}
}

func newPushCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the local profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			v, err := a.sync.Push(cmd.Context())
			if err != nil {
				return err
			}
			printOK(a.out, "pushed version %d", v)
			return nil
		},
	}
}

func newPullCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the latest profile",
		Long: `Replaces the local profile when the server holds a newer version. Local
changes that were not pushed yet are overwritten: the newest upload wins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			replaced, err := a.sync.Pull(cmd.Context())
			if err != nil {
				return err
			}
			if replaced {
				printOK(a.out, "profile updated from server")
			} else {
				printOK(a.out, "already up to date")
			}
			return nil
		},
	}
}

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			st, err := a.sync.Status(cmd.Context())
			if err != nil {
				return err
			}
			a.checkOnline(cmd.Context())

			printField(a.out, "Server", a.config.ServerURL)
			printField(a.out, "Device", a.deviceID)
			if !st.Enabled {
				printField(a.out, "Sync", "disabled")
				a.println(hint("→") + " run " + hint("manylla init") + " or " + hint("manylla join"))
				return nil
			}
			printField(a.out, "Sync", "enabled")
			printField(a.out, "Sync ID", st.SyncID)
			printField(a.out, "Version", st.LastVersion)
			printField(a.out, "Unpushed", st.Dirty)
			printField(a.out, "Last pull", formatTime(st.LastPullAt))
			printField(a.out, "Last push", formatTime(st.LastPushAt))
			return nil
		},
	}
}

func newDisableCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Stop syncing on this device, keeping the server copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			if !yes {
				ok, err := Confirm(a.in, "Forget the sync key on this device?", a.out)
				if err != nil || !ok {
					return err
				}
			}
			if err := a.sync.Disable(cmd.Context()); err != nil {
				return err
			}
			printOK(a.out, "sync disabled on this device")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDeleteCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the sync group from the server",
		Long:  `Deletes the encrypted profile from the server for every device and disables sync here.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			if !yes {
				ok, err := Confirm(a.in, "Delete the synced profile from the server for all devices?", a.out)
				if err != nil || !ok {
					return err
				}
			}
			n, err := a.sync.DeleteRemote(cmd.Context())
			if err != nil {
				return err
			}
			printOK(a.out, "deleted %d sync group(s)", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newWatchCmd(s *session) *cobra.Command {
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing until interrupted",
		Long: `Pushes the profile file shortly after it changes and pulls remote changes
periodically. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			if _, err := a.sync.Status(cmd.Context()); err != nil {
				return err
			}

			syncer := services.NewSyncer(a.sync, a.config.PushDebounce, a.config.PullInterval, a.logger)
			syncer.Resume()
			printOK(a.out, "watching %s (ctrl-c to stop)", a.config.ProfilePath)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return syncer.Run(ctx) })
			g.Go(func() error {
				a.StartOnlineStatusWatcher(ctx, a.config.PullInterval)
				return nil
			})
			g.Go(func() error {
				watchFile(ctx, a.store, poll, syncer.Changed)
				return nil
			})

			return g.Wait()
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "how often to check the profile file for changes")
	return cmd
}

// watchFile calls changed whenever the profile file's modification time or
// size moves, except when the move is the store's own write. The first
// observation is the baseline.
func watchFile(ctx context.Context, store *FileProfileStore, every time.Duration, changed func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var (
		lastMod  time.Time
		lastSize int64
	)
	if fi, err := os.Stat(store.Path()); err == nil {
		lastMod, lastSize = fi.ModTime(), fi.Size()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fi, err := os.Stat(store.Path())
			if err != nil {
				continue
			}
			if fi.ModTime().Equal(lastMod) && fi.Size() == lastSize {
				continue
			}
			lastMod, lastSize = fi.ModTime(), fi.Size()
			if !fi.ModTime().Equal(store.WrittenAt()) {
				changed()
			}
		}
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return muted("never")
	}
	return t.Local().Format(time.RFC1123)
}

func (a *App) println(line string) {
	_, _ = a.out.Write([]byte(line + "\n"))
}
