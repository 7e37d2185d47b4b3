package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass on the server",
		Long: `Run one reconciliation pass on the server.

Triggers a synchronous fetch-and-apply of external scores: game
updates, pick scoring, auto-picks, and the resulting feed events.
Safe to run repeatedly; a pass with nothing new to apply is a no-op.

Example:
  pickemctl reconcile --server http://localhost:9080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return triggerReconcile(rootOpts, cmd)
		},
	}

	return cmd
}

func triggerReconcile(opts *RootOptions, cmd *cobra.Command) error {
	u := opts.Server + "/admin/reconcile"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, u, strings.NewReader(""))
	if err != nil {
		return fmt.Errorf("build reconcile request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reconcile: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if opts.Format == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(body, &out); err == nil && out["status"] != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "reconcile: %s\n", out["status"])
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "reconcile: done")
	return nil
}
