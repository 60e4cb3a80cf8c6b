package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"autoshield/internal/registry/handler"
)

func NewCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the total number of successful writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			var resp handler.CountResponse
			if err := newAPIClient(opts).get(ctx, "/v1/verifications/count", &resp); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Count)
			return err
		},
	}
}
