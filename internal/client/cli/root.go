package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/manylla-sync/internal/client/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	serverURL   string
	statePath   string
	profilePath string
	logLevel    string
}

// session carries the App built by the root command's pre-run to the
// subcommand that runs afterwards.
type session struct {
	app *App
}

// messageError shows a friendly message while keeping the cause for
// errors.Is.
type messageError struct {
	msg string
	err error
}

func (e *messageError) Error() string { return e.msg }
func (e *messageError) Unwrap() error { return e.err }

func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("server") {
		cfg.ServerURL = o.serverURL
	}
	if f.Changed("state") {
		cfg.StatePath = o.statePath
	}
	if f.Changed("profile") {
		cfg.ProfilePath = o.profilePath
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

// NewRootCommand builds the command tree. in and out replace stdin and
// stdout so the whole CLI can be driven from tests.
func NewRootCommand(in io.Reader, out io.Writer, s *session) *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:           "manylla",
		Short:         "Sync and share an encrypted profile",
		Long:          `Keeps a profile in sync across devices with end-to-end encryption, and issues read-only share links.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			app, err := NewApp(cmd.Context(), cfg, in, out)
			if err != nil {
				return err
			}
			s.app = app
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON config file")
	pf.StringVarP(&opts.serverURL, "server", "s", "", "sync server base URL")
	pf.StringVar(&opts.statePath, "state", "", "path to the local state database")
	pf.StringVarP(&opts.profilePath, "profile", "p", "", "path to the profile JSON file")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(s),
		newJoinCmd(s),
		newPushCmd(s),
		newPullCmd(s),
		newStatusCmd(s),
		newDisableCmd(s),
		newDeleteCmd(s),
		newWatchCmd(s),
		newShareCmd(s),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer) int {
	s := &session{}
	root := NewRootCommand(in, out, s)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if s.app != nil {
		if cerr := s.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	printFail(out, "%v", err)
	return 1
}
