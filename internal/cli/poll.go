package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/pkg/feed"
)

// PollOptions holds flags for the poll command.
type PollOptions struct {
	*RootOptions
	Cursor int64
	Since  string
	Limit  int
}

// NewPollCommand creates the poll command.
func NewPollCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PollOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Fetch events once and exit",
		Long: `Fetch events once and exit.

Queries the polling endpoint with either an event-id cursor or an
RFC3339 timestamp and prints the page. The printed lastEventId is the
cursor for the next call.

Example:
  pickemctl poll --cursor 1041 --limit 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pollOnce(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Cursor, "cursor", 0, "return events after this event id")
	cmd.Flags().StringVar(&opts.Since, "since", "", "return events created after this RFC3339 time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum events per page")

	return cmd
}

func pollOnce(opts *PollOptions, cmd *cobra.Command) error {
	// url.Values escapes the timestamp; an RFC3339 zone offset carries a
	// literal '+' that would otherwise decode as a space server-side.
	q := url.Values{}
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Since != "" {
		q.Set("since", opts.Since)
	} else {
		q.Set("lastEventId", strconv.FormatInt(opts.Cursor, 10))
	}
	u := opts.Server + "/feed/poll?" + q.Encode()

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build poll request: %w", err)
	}
	if opts.UserID != "" {
		req.Header.Set(feed.UserHeader, opts.UserID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}

	var page event.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return fmt.Errorf("decode poll page: %w", err)
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(page)
	}
	for _, e := range page.Events {
		if err := printEvent(cmd.OutOrStdout(), opts.Format, e); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "lastEventId=%d hasMore=%t\n", page.NextCursor, page.HasMore)
	return nil
}
