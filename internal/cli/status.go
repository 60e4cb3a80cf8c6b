package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"autoshield/internal/registry/handler"
)

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status ADDRESS",
		Short: "Show the current verification record for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			var resp handler.StatusResponse
			if err := newAPIClient(opts).get(ctx, "/v1/verifications/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintf(w, "address\t%s\n", resp.Address)
			fmt.Fprintf(w, "status\t%s (%d)\n", resp.StatusName, resp.Status)
			fmt.Fprintf(w, "attestation\t%s\n", resp.AttestationHash)
			fmt.Fprintf(w, "confidence\t%d\n", resp.ConfidenceScore)
			fmt.Fprintf(w, "last checked\t%s\n", formatUnix(resp.LastChecked))
			if !resp.Exists {
				fmt.Fprintln(w, "note\tnever written")
			}
			return w.Flush()
		},
	}
}
