package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/pickem/pkg/feed"
)

// TailOptions holds flags for the tail command.
type TailOptions struct {
	*RootOptions
	Cursor       int64
	MaxAttempts  int
	Backoff      time.Duration
	PollInterval time.Duration
}

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TailOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the event feed live",
		Long: `Follow the event feed live.

Connects to the streaming endpoint and prints events as they happen.
When streaming keeps failing the command falls back to polling on a
fixed interval for the rest of the session.

Example:
  pickemctl tail --user alice --cursor 1041`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailFeed(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Cursor, "cursor", 0, "resume after this event id")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", 5, "streaming attempts before the polling fallback")
	cmd.Flags().DurationVar(&opts.Backoff, "backoff", 2*time.Second, "wait between streaming attempts")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 10*time.Second, "polling cadence after the fallback")

	return cmd
}

func tailFeed(opts *TailOptions, cmd *cobra.Command) error {
	hook := feed.NewHook(opts.Server,
		feed.WithUserID(opts.UserID),
		feed.WithCursor(opts.Cursor),
		feed.WithMaxAttempts(opts.MaxAttempts),
		feed.WithBackoff(opts.Backoff),
		feed.WithPollInterval(opts.PollInterval),
	)

	ctx := cmd.Context()
	done := make(chan error, 1)
	go func() { done <- hook.Run(ctx) }()

	if opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "tailing %s from cursor %d\n", opts.Server, opts.Cursor)
	}

	for e := range hook.Events() {
		if err := printEvent(cmd.OutOrStdout(), opts.Format, e); err != nil {
			return err
		}
	}

	err := <-done
	if opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "feed closed in state %s at cursor %d\n", hook.State(), hook.Cursor())
	}
	if ctx.Err() != nil {
		// Interrupted by the user; not a failure.
		return nil
	}
	return err
}
