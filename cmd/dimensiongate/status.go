// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/observability"
)

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	server     string
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd(deps *Deps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether each dimension is open or closed",
		Long: `Show the open/closed status of every dimension. By default the state
is read from the configured storage backend; with --server it is fetched
from a running instance's /status endpoint, which also lists active
schedules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps.withDefaults())
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&cfg.server, "server", "", "query a running instance at host:port instead of storage")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, deps *Deps) error {
	var (
		status observability.Status
		err    error
	)
	if cfg.server != "" {
		status, err = fetchStatus(cmd.Context(), cfg.server)
	} else {
		status, err = localStatus(cmd, deps)
	}
	if err != nil {
		return err
	}

	if cfg.jsonOutput {
		out, err := formatStatusJSON(status)
		if err != nil {
			return err
		}
		cmd.Println(out)
		return nil
	}
	cmd.Print(formatStatusTable(status))
	return nil
}

func localStatus(cmd *cobra.Command, deps *Deps) (observability.Status, error) {
	rt, err := openRuntime(cmd, deps)
	if err != nil {
		return observability.Status{}, err
	}
	defer rt.Close() //nolint:errcheck // read-only use

	return observability.Status{Dimensions: rt.gate.Status()}, nil
}

func fetchStatus(ctx context.Context, server string) (observability.Status, error) {
	url := server
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/") + "/status"

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return observability.Status{}, oops.In("status").With("url", url).Wrap(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return observability.Status{}, oops.In("status").
			Code("STATUS_UNAVAILABLE").
			With("url", url).
			Hint("is dimensiongate serve running with observability.addr set?").
			Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return observability.Status{}, oops.In("status").
			Code("STATUS_UNAVAILABLE").
			With("url", url).
			Errorf("unexpected status %d", resp.StatusCode)
	}
	var status observability.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return observability.Status{}, oops.In("status").With("url", url).Wrap(err)
	}
	return status, nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status observability.Status) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "DIMENSION\tSTATUS")
	_, _ = fmt.Fprintln(w, "---------\t------")
	for _, d := range dimension.All() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", d.DisplayName(), dimension.StatusText(status.Dimensions[d]))
	}
	_ = w.Flush()

	if len(status.Schedules) > 0 {
		fmt.Fprintf(&b, "\nActive schedules: %s\n", strings.Join(status.Schedules, ", "))
	}
	return b.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status observability.Status) (string, error) {
	if status.Dimensions == nil {
		status.Dimensions = map[dimension.Dimension]bool{}
	}
	if status.Schedules == nil {
		status.Schedules = []string{}
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", oops.In("status").Wrap(err)
	}
	return string(data), nil
}
